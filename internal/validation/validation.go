// Package validation provides a small, composable field validator,
// grounded on cryptofunk's internal/validation/validation.go, narrowed
// from order/session/config-update validators to the one shape this
// engine actually accepts from outside the process: a CreateBot
// payload's watched pairs, base tokens, and sizing limits.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError is one field-level failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every failure from one validation pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "validation errors: " + strings.Join(msgs, "; ")
}

// HasErrors reports whether any failure was recorded.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator accumulates field-level errors across a validation pass.
type Validator struct {
	errors ValidationErrors
}

func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Required validates that a string is not empty.
func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
}

// MinLength validates minimum string length.
func (v *Validator) MinLength(field, value string, min int) {
	if len(value) < min {
		v.AddError(field, fmt.Sprintf("must be at least %d characters", min))
	}
}

// MaxLength validates maximum string length.
func (v *Validator) MaxLength(field, value string, max int) {
	if len(value) > max {
		v.AddError(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// Positive validates that a number is positive.
func (v *Validator) Positive(field string, value float64) {
	if value <= 0 {
		v.AddError(field, "must be positive")
	}
}

// MaxValue validates a maximum numeric bound.
func (v *Validator) MaxValue(field string, value, max float64) {
	if value > max {
		v.AddError(field, fmt.Sprintf("must be at most %v", max))
	}
}

// Range validates a [min, max] numeric bound.
func (v *Validator) Range(field string, value, min, max float64) {
	if value < min || value > max {
		v.AddError(field, fmt.Sprintf("must be between %v and %v", min, max))
	}
}

// Alphanumeric validates that a string contains only letters and digits.
func (v *Validator) Alphanumeric(field, value string) {
	if !alphanumericRegex.MatchString(value) {
		v.AddError(field, "must contain only alphanumeric characters")
	}
}

var alphanumericRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// BotConfigValidator validates one CreateBot JSON payload inside the
// bot factory (validateBotConfig in newBotFactory), catching malformed
// mint pairs and out-of-range sizing before a bot is ever constructed.
type BotConfigValidator struct {
	*Validator
}

func NewBotConfigValidator() *BotConfigValidator {
	return &BotConfigValidator{Validator: NewValidator()}
}

// ValidateMintPair validates one (inputMint, outputMint) watched pair:
// both sides non-empty and alphanumeric, and distinct from each other.
func (v *BotConfigValidator) ValidateMintPair(index int, inputMint, outputMint string) {
	field := fmt.Sprintf("watched_pairs[%d]", index)
	v.Required(field+".input", inputMint)
	v.Required(field+".output", outputMint)
	if v.HasErrors() {
		return
	}
	v.Alphanumeric(field+".input", inputMint)
	v.Alphanumeric(field+".output", outputMint)
	if inputMint == outputMint {
		v.AddError(field, "input and output mint must differ")
	}
}

// ValidateBaseToken validates one triangular base token symbol.
func (v *BotConfigValidator) ValidateBaseToken(index int, token string) {
	field := fmt.Sprintf("triangular_base_tokens[%d]", index)
	v.Required(field, token)
	if v.HasErrors() {
		return
	}
	v.Alphanumeric(field, token)
}

// ValidateAmount validates the per-trade notional amount.
func (v *BotConfigValidator) ValidateAmount(amount float64) {
	if amount == 0 {
		return // zero means "use the process default", per decimalOr
	}
	v.Positive("amount", amount)
	v.MaxValue("amount", amount, 1_000_000)
}

// ValidatePerTickBudget validates the per-tick notional budget.
func (v *BotConfigValidator) ValidatePerTickBudget(budget float64) {
	if budget == 0 {
		return
	}
	v.Positive("per_tick_budget", budget)
	v.MaxValue("per_tick_budget", budget, 10_000_000)
}

// ValidateWorstCaseLoss validates the worst-case-loss ceiling.
func (v *BotConfigValidator) ValidateWorstCaseLoss(loss float64) {
	if loss == 0 {
		return
	}
	v.Positive("worst_case_loss", loss)
	v.MaxValue("worst_case_loss", loss, 1_000_000)
}

// SanitizeToken uppercases and trims a token/mint symbol the way a
// CreateBot payload's free-text fields are normalized before use.
func SanitizeToken(token string) string {
	token = strings.TrimSpace(token)
	token = strings.ReplaceAll(token, " ", "")
	return strings.ToUpper(token)
}
