// Package rules holds the classification rules that match learner answers against the answer
// groups of an interaction. Rules are looked up by object type and name in a static registry.
package rules

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
)

// Object types a rule can classify.
const (
	ObjCodeWithTestResults = "CodeWithTestResults"
	ObjCodeSuiteEvaluation = "CodeSuiteEvaluation"
	ObjListOfUnicodeString = "ListOfUnicodeString"
	ObjReal                = "Real"
)

// Rule is a bound classification rule.
type Rule struct {
	ObjType     string
	Name        string
	Description string
	eval        func(subject json.RawMessage) (bool, error)
}

// Evaluate reports whether subject satisfies the rule.
// A subject that does not decode as the rule's object type is a ValidationError.
func (r Rule) Evaluate(subject json.RawMessage) (bool, error) {
	return r.eval(subject)
}

// Spec is the stored form of a rule: its name and JSON encoded inputs.
type Spec struct {
	RuleType string          `json:"rule_type"`
	Inputs   json.RawMessage `json:"inputs"`
}

type factory struct {
	description string
	build       func(inputs json.RawMessage) (func(json.RawMessage) (bool, error), error)
}

var registry = map[string]factory{}

func key(objType, name string) string {
	return objType + "." + name
}

// register adds a rule whose inputs decode into P and whose subjects decode into S.
func register[P any, S any](objType, name, description string, check func(P) error, eval func(P, S) bool) {
	k := key(objType, name)
	if _, dup := registry[k]; dup {
		panic("rules: duplicate rule " + k)
	}
	registry[k] = factory{
		description: description,
		build: func(inputs json.RawMessage) (func(json.RawMessage) (bool, error), error) {
			var params P
			if len(inputs) > 0 {
				if err := json.Unmarshal(inputs, &params); err != nil {
					return nil, core.NewValidationErrorf("Invalid inputs for rule %s: %v", name, err)
				}
			}
			if check != nil {
				if err := check(params); err != nil {
					return nil, err
				}
			}
			return func(raw json.RawMessage) (bool, error) {
				var subject S
				if err := json.Unmarshal(raw, &subject); err != nil {
					return false, core.NewValidationErrorf("Expected a %s answer for rule %s: %v", objType, name, err)
				}
				return eval(params, subject), nil
			}, nil
		},
	}
}

// Build binds inputs to the rule registered as objType.ruleName.
func Build(objType, ruleName string, inputs json.RawMessage) (Rule, error) {
	f, ok := registry[key(objType, ruleName)]
	if !ok {
		return Rule{}, core.NewValidationErrorf("Unknown rule %s for object type %s", ruleName, objType)
	}
	eval, err := f.build(inputs)
	if err != nil {
		return Rule{}, err
	}
	return Rule{ObjType: objType, Name: ruleName, Description: f.description, eval: eval}, nil
}

// BuildSpec is Build for a stored rule spec.
func BuildSpec(objType string, spec Spec) (Rule, error) {
	return Build(objType, spec.RuleType, spec.Inputs)
}

// Names lists the rules registered for objType, sorted.
func Names(objType string) []string {
	prefix := objType + "."
	var names []string
	for k := range registry {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			names = append(names, k[len(prefix):])
		}
	}
	sort.Strings(names)
	return names
}

// Classify returns the index of the first rule subject satisfies, or -1.
func Classify(rules []Rule, subject json.RawMessage) (int, error) {
	for i, r := range rules {
		ok, err := r.Evaluate(subject)
		if err != nil {
			return -1, errors.Wrapf(err, "evaluating %s", r.Name)
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}
