package rules

import "github.com/trezcool/matembezi/core"

type intParam struct {
	X int `json:"x"`
}

type lengthRangeParam struct {
	A int `json:"a"`
	B int `json:"b"`
}

type elementParam struct {
	Index int    `json:"index"`
	X     string `json:"x"`
}

func stringSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func init() {
	register(ObjListOfUnicodeString, "Equals", "is equal to {{x|ListOfUnicodeString}}", nil,
		func(p stringsParam, s []string) bool {
			if len(p.X) != len(s) {
				return false
			}
			for i := range s {
				if s[i] != p.X[i] {
					return false
				}
			}
			return true
		})
	register(ObjListOfUnicodeString, "IsLongerThan", "has more than {{x|NonnegativeInt}} elements", nil,
		func(p intParam, s []string) bool {
			return len(s) > p.X
		})
	register(ObjListOfUnicodeString, "HasLengthInclusivelyBetween",
		"has between {{a|NonnegativeInt}} and {{b|NonnegativeInt}} elements, inclusive",
		func(p lengthRangeParam) error {
			if p.A > p.B {
				return core.NewValidationErrorf("Invalid length range: %d is greater than %d", p.A, p.B)
			}
			return nil
		},
		func(p lengthRangeParam, s []string) bool {
			return len(s) >= p.A && len(s) <= p.B
		})
	register(ObjListOfUnicodeString, "EqualsElementWise", "has element {{index|NonnegativeInt}} equal to {{x|UnicodeString}}",
		func(p elementParam) error {
			if p.Index < 0 {
				return core.NewValidationErrorf("Invalid element index: %d", p.Index)
			}
			return nil
		},
		func(p elementParam, s []string) bool {
			return p.Index < len(s) && s[p.Index] == p.X
		})
	register(ObjListOfUnicodeString, "HasElementsIn", "has elements in common with {{x|ListOfUnicodeString}}", nil,
		func(p stringsParam, s []string) bool {
			set := stringSet(p.X)
			for _, it := range s {
				if _, ok := set[it]; ok {
					return true
				}
			}
			return false
		})
	register(ObjListOfUnicodeString, "HasElementsNotIn", "has elements not in {{x|ListOfUnicodeString}}", nil,
		func(p stringsParam, s []string) bool {
			set := stringSet(p.X)
			for _, it := range s {
				if _, ok := set[it]; !ok {
					return true
				}
			}
			return false
		})
	register(ObjListOfUnicodeString, "OmitsElementsIn", "omits some elements of {{x|ListOfUnicodeString}}", nil,
		func(p stringsParam, s []string) bool {
			set := stringSet(s)
			for _, it := range p.X {
				if _, ok := set[it]; !ok {
					return true
				}
			}
			return false
		})
	register(ObjListOfUnicodeString, "IsDisjointFrom", "has no elements in common with {{x|ListOfUnicodeString}}", nil,
		func(p stringsParam, s []string) bool {
			set := stringSet(p.X)
			for _, it := range s {
				if _, ok := set[it]; ok {
					return false
				}
			}
			return true
		})
}
