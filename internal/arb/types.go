// Package arb holds the shared data model for the arbitrage pipeline:
// price quotes, opportunity candidates, and the records that accumulate
// around them as they move through the pipeline stages.
package arb

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CandidateKind distinguishes how a candidate's legs form a cycle.
type CandidateKind string

const (
	KindCrossVenuePair CandidateKind = "cross_venue_pair"
	KindTriangular     CandidateKind = "triangular"
)

// RiskLevel is the step-wise bucket used for sandwich risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RecommendedAction is C4's direct map from sandwich level.
type RecommendedAction string

const (
	ActionProceed      RecommendedAction = "proceed"
	ActionWidenSlippage RecommendedAction = "widen_slippage"
	ActionDelay        RecommendedAction = "delay"
	ActionAbort        RecommendedAction = "abort"
)

// StrategyKind is the protection strategy family chosen by C5.
type StrategyKind string

const (
	StrategyBundle  StrategyKind = "bundle"
	StrategyPrivate StrategyKind = "private"
	StrategyDelayed StrategyKind = "delayed"
	StrategySplit   StrategyKind = "split"
)

// BundleStatus mirrors the bundle endpoint's terminal/non-terminal states.
type BundleStatus string

const (
	BundleAccepted BundleStatus = "accepted"
	BundleRejected BundleStatus = "rejected"
	BundlePending  BundleStatus = "pending"
	BundleTimeout  BundleStatus = "timeout"
	BundleFailed   BundleStatus = "failed"
)

// PriceQuote is one provider's view of one directed token pair at one instant.
//
// observed_at is a monotonic instant (see Clock in internal/clock); it is
// never a wall-clock timestamp so that cache/TTL math survives clock skew
// and is reproducible under a virtual clock in tests.
type PriceQuote struct {
	Provider            string
	Venue               string // specific DEX; empty for aggregator-style quotes
	InputMint           string
	OutputMint          string
	InputAmount         decimal.Decimal
	OutputAmount        decimal.Decimal
	PriceImpact         float64
	FeeBps              int
	EstimatedGas        decimal.Decimal
	EstimatedLatencyMs  int
	Volume24h           decimal.Decimal // used by C3 liquidity signal and C4 liquidity_risk
	ObservedAt          time.Duration   // monotonic offset, see clock.Clock.Now
	ValidityDurationMs  int
}

// ExpiresAt returns the monotonic instant at which the quote must be
// rejected by consumers.
func (q PriceQuote) ExpiresAt() time.Duration {
	return q.ObservedAt + time.Duration(q.ValidityDurationMs)*time.Millisecond
}

// Expired reports whether the quote is past its validity window as of now.
func (q PriceQuote) Expired(now time.Duration) bool {
	return now >= q.ExpiresAt()
}

// Rate is output/input, used to compare and to multiply across legs for
// triangular detection. A zero InputAmount yields a zero rate.
func (q PriceQuote) Rate() float64 {
	in, _ := q.InputAmount.Float64()
	out, _ := q.OutputAmount.Float64()
	if in == 0 {
		return 0
	}
	return out / in
}

// Leg is one swap within a candidate.
type Leg struct {
	Venue              string
	InputMint          string
	OutputMint         string
	ExpectedAmountIn   decimal.Decimal
	ExpectedAmountOut  decimal.Decimal
	SourceQuoteID      string
	Liquidity24h       decimal.Decimal
	EstimatedLatencyMs int
	QuoteObservedAt    time.Duration
	QuoteExpiresAt     time.Duration
}

// OpportunityCandidate is a proposed arbitrage, built by C2 and enriched in
// place by C3/C4/C5 as it moves through the pipeline.
type OpportunityCandidate struct {
	ID                  string
	Kind                CandidateKind
	Path                []string
	Legs                []Leg
	NotionalIn          decimal.Decimal
	ExpectedGrossProfit decimal.Decimal
	ExpectedFeesTotal   decimal.Decimal
	ExpectedNetProfit   decimal.Decimal
	CreatedAt           time.Duration

	Score *Score
	Risk  *RiskAssessment
	Plan  *ProtectedExecutionPlan
}

// NewCandidateID returns a fresh, unique candidate ID.
func NewCandidateID() string { return uuid.NewString() }

// Score is attached after C3.
type Score struct {
	Confidence float64
	Reasoning  []string
	Priority   float64 // confidence * expected_net_profit
}

// RiskAssessment is attached after C4.
type RiskAssessment struct {
	SandwichRisk      float64
	SandwichLevel     RiskLevel
	LiquidityRisk     float64
	ExecutionRisk     float64
	ConcentrationRisk float64
	Overall           float64
	RecommendedAction RecommendedAction
}

// BundleParams holds Bundle-strategy parameters.
type BundleParams struct {
	Tip       decimal.Decimal
	MaxWaitMs int
}

// PrivateParams holds Private-strategy parameters.
type PrivateParams struct {
	PriorityFee decimal.Decimal
}

// DelayedParams holds Delayed-strategy parameters.
type DelayedParams struct {
	DelayMs   int
	Randomize bool
}

// SplitParams holds Split-strategy parameters.
type SplitParams struct {
	NTrades    int
	SpacingMs  int
}

// ProtectedExecutionPlan is attached after C5.
type ProtectedExecutionPlan struct {
	Strategy              StrategyKind
	Bundle                *BundleParams
	Private               *PrivateParams
	Delayed               *DelayedParams
	Split                 *SplitParams
	MaxSlippageBps         int
	DeadlineMs             int
	ProtectionCostEstimate decimal.Decimal
}

// ExecutionResult is produced by C6.
type ExecutionResult struct {
	Success              bool
	SubmissionID         string
	TxRefs               []string
	RealizedProfit       decimal.Decimal
	ProtectionCostActual decimal.Decimal
	Elapsed              time.Duration
	BundleStatus         BundleStatus
	AttacksDetected      int
	AttacksPrevented     int
	Error                string
}

// DecisionRecord is the learner's atomic unit, append-only.
type DecisionRecord struct {
	SchemaVersion int
	Candidate     OpportunityCandidate
	Score         Score
	Risk          RiskAssessment
	Plan          ProtectedExecutionPlan
	Result        ExecutionResult
	Features      [8]float64
	RecordedAt    time.Duration
}

// CurrentSchemaVersion is bumped whenever DecisionRecord's persisted shape
// changes in a way that affects decoders.
const CurrentSchemaVersion = 1

// LearnedModel is C7's weight vector plus bookkeeping, single-writer owned
// by C8 and read by everyone else as cloned snapshots.
type LearnedModel struct {
	SchemaVersion     int
	W                 [8]float64
	FeatureImportance map[string]float64
	RollingAccuracy   float64
	ConfidenceThreshold float64
	LastUpdated       time.Duration
}

// Clone returns a deep copy safe for a reader to hold indefinitely.
func (m LearnedModel) Clone() LearnedModel {
	c := m
	c.FeatureImportance = make(map[string]float64, len(m.FeatureImportance))
	for k, v := range m.FeatureImportance {
		c.FeatureImportance[k] = v
	}
	return c
}

// FeatureNames is the fixed order of the 8-dimensional feature vector used
// throughout C7.
var FeatureNames = [8]string{
	"spread",
	"min_liquidity_norm",
	"max_volume_norm",
	"portfolio_concentration",
	"market_volatility",
	"trend_strength",
	"sentiment",
	"hour_of_day_norm",
}
