package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Required(t *testing.T) {
	v := NewValidator()
	v.Required("name", "")
	assert.True(t, v.HasErrors())
	assert.Equal(t, "name", v.Errors()[0].Field)
}

func TestValidator_Required_Passes(t *testing.T) {
	v := NewValidator()
	v.Required("name", "SOL")
	assert.False(t, v.HasErrors())
}

func TestValidator_Positive(t *testing.T) {
	v := NewValidator()
	v.Positive("amount", -1)
	assert.True(t, v.HasErrors())
}

func TestValidator_Range(t *testing.T) {
	v := NewValidator()
	v.Range("risk_tolerance", 1.5, 0, 1)
	assert.True(t, v.HasErrors())
}

func TestValidator_Alphanumeric(t *testing.T) {
	v := NewValidator()
	v.Alphanumeric("mint", "SOL$")
	assert.True(t, v.HasErrors())
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Message: "is required"},
		{Field: "b", Message: "must be positive"},
	}
	assert.Contains(t, errs.Error(), "a: is required")
	assert.Contains(t, errs.Error(), "b: must be positive")
}

func TestBotConfigValidator_ValidateMintPair(t *testing.T) {
	v := NewBotConfigValidator()
	v.ValidateMintPair(0, "SOL", "SOL")
	assert.True(t, v.HasErrors())
	assert.Contains(t, v.Errors().Error(), "differ")
}

func TestBotConfigValidator_ValidateMintPair_Passes(t *testing.T) {
	v := NewBotConfigValidator()
	v.ValidateMintPair(0, "SOL", "USDC")
	assert.False(t, v.HasErrors())
}

func TestBotConfigValidator_ValidateAmount_ZeroIsDefault(t *testing.T) {
	v := NewBotConfigValidator()
	v.ValidateAmount(0)
	assert.False(t, v.HasErrors())
}

func TestBotConfigValidator_ValidateAmount_RejectsNegative(t *testing.T) {
	v := NewBotConfigValidator()
	v.ValidateAmount(-5)
	assert.True(t, v.HasErrors())
}

func TestBotConfigValidator_ValidateAmount_RejectsTooLarge(t *testing.T) {
	v := NewBotConfigValidator()
	v.ValidateAmount(2_000_000)
	assert.True(t, v.HasErrors())
}

func TestBotConfigValidator_ValidateBaseToken(t *testing.T) {
	v := NewBotConfigValidator()
	v.ValidateBaseToken(0, "")
	assert.True(t, v.HasErrors())
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "SOL", SanitizeToken(" sol "))
	assert.Equal(t, "USDC", SanitizeToken("us dc"))
}
