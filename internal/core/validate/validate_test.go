package validate

import (
	"math"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormula(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "x^2", false},
		{"nested braces", `\frac{a}{b_{i}}`, false},
		{"escaped braces", `\{ x \}`, false},
		{"escaped brace inside group", `{\}}`, false},
		{"empty string", "", true},
		{"only spaces", "   ", true},
		{"unclosed brace", `\frac{a}{b`, true},
		{"stray closing brace", "a}", true},
		{"dollar sign", "$x$", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Formula(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "Formula(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		})
	}
}

func TestZoom(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		wantErr bool
	}{
		{"default", 1, false},
		{"small", 0.25, false},
		{"max", 10, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"too large", 11, true},
		{"nan", math.NaN(), true},
		{"infinite", math.Inf(1), true},
		{"negative infinite", math.Inf(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Zoom(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "Zoom(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		})
	}
}

func TestFormulaField(t *testing.T) {
	err := criterio.ValidateStruct(FormulaField("formula", ""))

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "formula", fieldErrs[0].Field)

	assert.NoError(t, FormulaField("formula", "x"))
	assert.NoError(t, ZoomField("zoom", 2))
	assert.Error(t, ZoomField("zoom", 0))
}
