package rules

import (
	"math"

	"github.com/trezcool/matembezi/core"
)

type realParam struct {
	X float64 `json:"x"`
}

type realRangeParam struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type toleranceParam struct {
	X   float64 `json:"x"`
	Tol float64 `json:"tol"`
}

func init() {
	register(ObjReal, "Equals", "is equal to {{x|Real}}", nil,
		func(p realParam, v float64) bool { return v == p.X })
	register(ObjReal, "IsLessThan", "is less than {{x|Real}}", nil,
		func(p realParam, v float64) bool { return v < p.X })
	register(ObjReal, "IsGreaterThan", "is greater than {{x|Real}}", nil,
		func(p realParam, v float64) bool { return v > p.X })
	register(ObjReal, "IsLessThanOrEqualTo", "is less than or equal to {{x|Real}}", nil,
		func(p realParam, v float64) bool { return v <= p.X })
	register(ObjReal, "IsGreaterThanOrEqualTo", "is greater than or equal to {{x|Real}}", nil,
		func(p realParam, v float64) bool { return v >= p.X })
	register(ObjReal, "IsInclusivelyBetween", "is between {{a|Real}} and {{b|Real}}, inclusive", nil,
		func(p realRangeParam, v float64) bool { return v >= p.A && v <= p.B })
	register(ObjReal, "IsWithinTolerance", "is within {{tol|Real}} of {{x|Real}}",
		func(p toleranceParam) error {
			if p.Tol < 0 || math.IsNaN(p.Tol) {
				return core.NewValidationErrorf("Invalid tolerance: %v", p.Tol)
			}
			return nil
		},
		func(p toleranceParam, v float64) bool { return v >= p.X-p.Tol && v <= p.X+p.Tol })
}
