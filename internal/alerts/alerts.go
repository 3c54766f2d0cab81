// Package alerts fans out C9's sustained-degradation notifications to
// one or more external channels (log, console, Telegram), implementing
// internal/learning.AlertSink. Grounded on cryptofunk's
// internal/alerts/{alerts,telegram}.go Manager/Alerter shape, narrowed
// from its generic trading-alert helpers (AlertOrderFailed etc., which
// have no analogue in this pipeline) down to the single degradation-
// alert entry point the learner actually calls.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Severity classifies an alert for display/routing purposes.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is one degradation notification.
type Alert struct {
	Title     string
	Message   string
	Severity  Severity
	Timestamp time.Time
	Fields    map[string]any
}

// Alerter sends one alert to a single channel.
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// Manager fans an alert out to every configured Alerter and implements
// internal/learning.AlertSink so it can be wired in directly as C8's
// alert sink.
type Manager struct {
	alerters []Alerter
	log      zerolog.Logger
}

func NewManager(log zerolog.Logger, alerters ...Alerter) *Manager {
	return &Manager{alerters: alerters, log: log.With().Str("component", "alerts").Logger()}
}

// Send delivers alert to every configured channel, continuing past
// per-channel failures.
func (m *Manager) Send(ctx context.Context, alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	var lastErr error
	for _, alerter := range m.alerters {
		if err := alerter.Send(ctx, alert); err != nil {
			m.log.Error().Err(err).Str("title", alert.Title).Msg("failed to send alert")
			lastErr = err
		}
	}
	return lastErr
}

// Alert implements internal/learning.AlertSink: every sustained-
// degradation notification from C8 is routed here as a Warning-severity
// alert. Degradation is a signal to watch, not by itself a fatal
// condition — the pipeline keeps running and the next GetSystemMetrics
// poll reflects the same state until it recovers or an operator acts.
func (m *Manager) Alert(ctx context.Context, message string, fields map[string]any) {
	_ = m.Send(ctx, Alert{
		Title:    "Sustained degradation detected",
		Message:  message,
		Severity: SeverityWarning,
		Fields:   fields,
	})
}

// LogAlerter logs alerts via zerolog.
type LogAlerter struct {
	log zerolog.Logger
}

func NewLogAlerter(log zerolog.Logger) *LogAlerter {
	return &LogAlerter{log: log.With().Str("component", "alerts_log").Logger()}
}

func (l *LogAlerter) Send(ctx context.Context, alert Alert) error {
	var event *zerolog.Event
	switch alert.Severity {
	case SeverityCritical:
		event = l.log.Error()
	case SeverityWarning:
		event = l.log.Warn()
	default:
		event = l.log.Info()
	}

	for key, value := range alert.Fields {
		event = event.Interface(key, value)
	}

	event.Str("alert_title", alert.Title).
		Str("alert_severity", string(alert.Severity)).
		Time("alert_time", alert.Timestamp).
		Msg(alert.Message)
	return nil
}

// ConsoleAlerter prints alerts for a foreground/dev run.
type ConsoleAlerter struct{}

func NewConsoleAlerter() *ConsoleAlerter { return &ConsoleAlerter{} }

func (c *ConsoleAlerter) Send(ctx context.Context, alert Alert) error {
	fmt.Printf("[%s] %s: %s (%s)\n", alert.Severity, alert.Title, alert.Message, alert.Timestamp.Format(time.RFC3339))
	for key, value := range alert.Fields {
		fmt.Printf("  %s: %v\n", key, value)
	}
	return nil
}
