package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDropReason(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"protection cost exceeds benefit", DropReasonCostExceedsBenefit},
		{"below risk tolerance", DropReasonRiskTolerance},
		{"leg quote stale", DropReasonStaleOpportunity},
		{"negative net profit", DropReasonNegativeProfit},
		{"something unexpected", DropReasonOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDropReason(tt.reason))
	}
}

func TestNormalizeFailureReason(t *testing.T) {
	assert.Equal(t, "", NormalizeFailureReason(nil))
	assert.Equal(t, FailureReasonTimeout, NormalizeFailureReason(errors.New("context deadline exceeded")))
	assert.Equal(t, FailureReasonStale, NormalizeFailureReason(errors.New("opportunity is stale")))
	assert.Equal(t, FailureReasonInvariant, NormalizeFailureReason(errors.New("invariant violated")))
	assert.Equal(t, FailureReasonSubmission, NormalizeFailureReason(errors.New("bundle rejected")))
	assert.Equal(t, FailureReasonOther, NormalizeFailureReason(errors.New("boom")))
}

func TestNormalizeProviderError(t *testing.T) {
	assert.Equal(t, "", NormalizeProviderError(nil))
	assert.Equal(t, ProviderErrorRateLimit, NormalizeProviderError(errors.New("429 too many requests")))
	assert.Equal(t, ProviderErrorNetwork, NormalizeProviderError(errors.New("connection refused")))
	assert.Equal(t, ProviderErrorInvalidResp, NormalizeProviderError(errors.New("invalid json")))
	assert.Equal(t, ProviderErrorOther, NormalizeProviderError(errors.New("mystery")))
}

func TestRecordDiscovery(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordDiscovery(3, 1, 12.5)
	})
}

func TestRecordRiskAssessment(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordRiskAssessment("high", 0.6)
	})
}

func TestRecordProtectionDrop(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordProtectionDrop("cost exceeds benefit")
	})
}

func TestRecordExecution(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordExecution("bundle", true, nil, 150.0, 0.02)
		RecordExecution("private", false, errors.New("stale opportunity"), 50.0, -0.0001)
	})
}

func TestRecordDecision(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordDecision(true)
		RecordDecision(false)
	})
}

func TestUpdateLearningState(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateLearningState(0.82, 0.74)
	})
}

func TestUpdateVenueSuccessRate(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateVenueSuccessRate("jupiter", 0.9)
	})
}

func TestRecordDegradationAlert(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordDegradationAlert()
	})
}

func TestUpdateProviderStatus(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateProviderStatus("jupiter", true)
		UpdateProviderStatus("jupiter", false)
	})
}

func TestRecordProviderError(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordProviderError("jupiter", errors.New("timeout"))
	})
}

func TestUpdateDatabaseConnections(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateDatabaseConnections(5, 2)
	})
}

func TestRecordAPIRequest(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordAPIRequest("GET", "/metrics", "200", 3.2)
	})
}

func TestRecordError(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError("timeout", "execution")
	})
}
