// Package style derives map visuals from the selection state: layer
// visibility per admin level, step-function fill colors and the legend.
package style

import "github.com/joeblew999/plat-stat/internal/catalog"

// valueExpr returns the paint expression input for a field: the property value
// with nulls coalesced to 0, divided by 12 for monthly metrics.
func valueExpr(field string, monthly bool) []any {
	in := []any{"coalesce", []any{"get", field}, 0}
	if monthly {
		return []any{"/", in, 12}
	}
	return in
}

// StepExpression builds a MapLibre "step" expression for rule:
// ["step", input, c0, s1, c1, ..., sN, cN].
func StepExpression(rule catalog.ColorRule, monthly bool) []any {
	expr := []any{"step", valueExpr(rule.Field, monthly), rule.Colors[0]}
	for i := 1; i < len(rule.Colors); i++ {
		expr = append(expr, rule.Stops[i], rule.Colors[i])
	}
	return expr
}

// Evaluate applies the step function to one value. A nil value counts as 0.
// Values below stops[1] take colors[0]; otherwise the last stop not above
// the value selects the color.
func Evaluate(rule catalog.ColorRule, value *float64, monthly bool) string {
	v := 0.0
	if value != nil {
		v = *value
	}
	if monthly {
		v /= 12
	}
	color := rule.Colors[0]
	for i := 1; i < len(rule.Colors); i++ {
		if v < rule.Stops[i] {
			break
		}
		color = rule.Colors[i]
	}
	return color
}
