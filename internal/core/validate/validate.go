// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/hay-kot/criterio"
)

// Formula validates a formula is non-empty after trimming whitespace and
// that its braces are balanced. Escaped braces (\{ and \}) are ignored.
func Formula(formula string) error {
	if strings.TrimSpace(formula) == "" {
		return fmt.Errorf("formula is required")
	}

	depth := 0
	escaped := false
	for i, r := range formula {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '{':
			depth++
		case r == '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("unexpected '}' at offset %d", i)
			}
		}
	}
	if depth > 0 {
		return fmt.Errorf("%d unclosed '{'", depth)
	}

	if strings.Contains(formula, "$") {
		return fmt.Errorf("formula must not contain '$', it is already typeset in math mode")
	}
	return nil
}

// FormulaField returns a criterio validator for formulas.
func FormulaField(field, formula string) error {
	return criterio.Run(field, formula, Formula)
}

// Zoom validates a zoom scale is a positive factor no larger than 10.
func Zoom(scale float64) error {
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return fmt.Errorf("zoom must be a finite number")
	}
	if scale <= 0 {
		return fmt.Errorf("zoom must be greater than 0")
	}
	if scale > 10 {
		return fmt.Errorf("zoom %.2f is larger than 10", scale)
	}
	return nil
}

// ZoomField returns a criterio validator for zoom scales.
func ZoomField(field string, scale float64) error {
	return criterio.Run(field, scale, Zoom)
}
