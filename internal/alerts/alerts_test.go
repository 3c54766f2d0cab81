package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAlerter struct {
	alerts []Alert
	err    error
}

func newMockAlerter(err error) *mockAlerter {
	return &mockAlerter{err: err}
}

func (m *mockAlerter) Send(ctx context.Context, alert Alert) error {
	m.alerts = append(m.alerts, alert)
	return m.err
}

func TestNewManager(t *testing.T) {
	a1, a2 := newMockAlerter(nil), newMockAlerter(nil)
	manager := NewManager(zerolog.Nop(), a1, a2)
	require.NotNil(t, manager)
	assert.Len(t, manager.alerters, 2)
}

func TestManager_Send_SetsTimestampWhenZero(t *testing.T) {
	mock := newMockAlerter(nil)
	manager := NewManager(zerolog.Nop(), mock)

	require.NoError(t, manager.Send(context.Background(), Alert{Title: "t", Message: "m", Severity: SeverityInfo}))
	require.Len(t, mock.alerts, 1)
	assert.False(t, mock.alerts[0].Timestamp.IsZero())
}

func TestManager_Send_PreservesExplicitTimestamp(t *testing.T) {
	mock := newMockAlerter(nil)
	manager := NewManager(zerolog.Nop(), mock)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, manager.Send(context.Background(), Alert{Title: "t", Message: "m", Severity: SeverityCritical, Timestamp: ts}))
	assert.Equal(t, ts, mock.alerts[0].Timestamp)
}

func TestManager_Send_ReturnsErrorFromFailingAlerter(t *testing.T) {
	mock := newMockAlerter(errors.New("send error"))
	manager := NewManager(zerolog.Nop(), mock)

	err := manager.Send(context.Background(), Alert{Title: "t", Message: "m", Severity: SeverityWarning})
	assert.Error(t, err)
}

func TestManager_Send_FansOutToAllAlerters(t *testing.T) {
	a1 := newMockAlerter(nil)
	a2 := newMockAlerter(errors.New("a2 failed"))
	a3 := newMockAlerter(nil)
	manager := NewManager(zerolog.Nop(), a1, a2, a3)

	err := manager.Send(context.Background(), Alert{Title: "multi", Message: "m", Severity: SeverityWarning})
	assert.Error(t, err)
	assert.Len(t, a1.alerts, 1)
	assert.Len(t, a2.alerts, 1)
	assert.Len(t, a3.alerts, 1)
}

func TestManager_Alert_ImplementsLearningAlertSink(t *testing.T) {
	mock := newMockAlerter(nil)
	manager := NewManager(zerolog.Nop(), mock)

	manager.Alert(context.Background(), "venue degraded", map[string]any{"venue": "jupiter"})

	require.Len(t, mock.alerts, 1)
	alert := mock.alerts[0]
	assert.Equal(t, SeverityWarning, alert.Severity)
	assert.Equal(t, "venue degraded", alert.Message)
	assert.Equal(t, "jupiter", alert.Fields["venue"])
}

func TestLogAlerter_Send_AllSeverities(t *testing.T) {
	alerter := NewLogAlerter(zerolog.Nop())
	for _, sev := range []Severity{SeverityCritical, SeverityWarning, SeverityInfo} {
		err := alerter.Send(context.Background(), Alert{
			Title: "log test", Message: "log test message", Severity: sev,
			Timestamp: time.Now(), Fields: map[string]any{"k": "v"},
		})
		assert.NoError(t, err)
	}
}

func TestConsoleAlerter_Send(t *testing.T) {
	alerter := NewConsoleAlerter()
	err := alerter.Send(context.Background(), Alert{
		Title: "console test", Message: "console test message", Severity: SeverityCritical,
		Timestamp: time.Now(), Fields: map[string]any{"symbol": "SOL/USDC", "price": 150.0},
	})
	assert.NoError(t, err)
}

func TestConsoleAlerter_Send_WithoutFields(t *testing.T) {
	alerter := NewConsoleAlerter()
	err := alerter.Send(context.Background(), Alert{
		Title: "no fields", Message: "testing without fields", Severity: SeverityInfo, Timestamp: time.Now(),
	})
	assert.NoError(t, err)
}

func TestSeverityConstants(t *testing.T) {
	assert.Equal(t, Severity("INFO"), SeverityInfo)
	assert.Equal(t, Severity("WARNING"), SeverityWarning)
	assert.Equal(t, Severity("CRITICAL"), SeverityCritical)
}
