package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
)

func mustBuild(t *testing.T, objType, name, inputs string) Rule {
	t.Helper()
	r, err := Build(objType, name, json.RawMessage(inputs))
	require.NoError(t, err)
	return r
}

func eval(t *testing.T, r Rule, subject string) bool {
	t.Helper()
	ok, err := r.Evaluate(json.RawMessage(subject))
	require.NoError(t, err)
	return ok
}

func TestListOfUnicodeStringRules(t *testing.T) {
	tests := []struct {
		rule    string
		inputs  string
		matches []string
		misses  []string
	}{
		{"Equals", `{"x": ["1", "3"]}`, []string{`["1", "3"]`}, []string{`["3", "1"]`, `["1"]`}},
		{"IsLongerThan", `{"x": 2}`, []string{`["a", "b", "c"]`}, []string{`["b", "b"]`, `[]`}},
		{
			"HasLengthInclusivelyBetween", `{"a": 1, "b": 3}`,
			[]string{`["a", "c", "b"]`, `["a", "ab"]`, `["a"]`},
			[]string{`[]`, `["a", "b", "c", "d"]`},
		},
		{
			"EqualsElementWise", `{"index": 0, "x": "abc"}`,
			[]string{`["abc"]`, `["abc", "def"]`},
			[]string{`["cba"]`, `["cba", "abc", "abc"]`, `[]`},
		},
		{"HasElementsIn", `{"x": ["a", "b"]}`, []string{`["a", "c", "b"]`, `["b"]`}, []string{`["c"]`, `[]`}},
		{"HasElementsNotIn", `{"x": ["a", "b"]}`, []string{`["a", "c", "b"]`, `["c"]`}, []string{`["a", "b"]`, `["a"]`, `[]`}},
		{
			"OmitsElementsIn", `{"x": ["a", "b"]}`,
			[]string{`["c", "ab"]`, `["c"]`, `[]`, `["a"]`},
			[]string{`["a", "c", "b"]`, `["a", "b"]`},
		},
		{
			"IsDisjointFrom", `{"x": ["a", "b"]}`,
			[]string{`["c", "ab"]`, `["c"]`, `[]`},
			[]string{`["a", "c", "b"]`, `["a", "b"]`, `["a"]`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			r := mustBuild(t, ObjListOfUnicodeString, tt.rule, tt.inputs)
			for _, s := range tt.matches {
				assert.True(t, eval(t, r, s), s)
			}
			for _, s := range tt.misses {
				assert.False(t, eval(t, r, s), s)
			}
		})
	}

	_, err := Build(ObjListOfUnicodeString, "HasLengthInclusivelyBetween", json.RawMessage(`{"a": 3, "b": 1}`))
	assert.True(t, core.IsValidationError(err))
}

func TestCodeRules(t *testing.T) {
	results := `{"code": "def f(): return 1", "testResults": [{"result": "correct"}, {"result": "wrong"}]}`

	tests := []struct {
		name    string
		objType string
		rule    string
		inputs  string
		subject string
		want    bool
	}{
		{"signature matches", ObjCodeWithTestResults, "TestSignatureMatches", `{"x": ["correct", "wrong"]}`, results, true},
		{"wildcards match anything", ObjCodeWithTestResults, "TestSignatureMatches", `{"x": ["", "wrong"]}`, results, true},
		{"signature differs", ObjCodeWithTestResults, "TestSignatureMatches", `{"x": ["correct", "correct"]}`, results, false},
		{"length mismatch never matches", ObjCodeWithTestResults, "TestSignatureMatches", `{"x": ["correct"]}`, results, false},
		{"does not match", ObjCodeWithTestResults, "TestSignatureDoesNotMatch", `{"x": ["correct", "correct"]}`, results, true},
		{"does not match fully matching", ObjCodeWithTestResults, "TestSignatureDoesNotMatch", `{"x": ["", ""]}`, results, false},
		{"does not match length mismatch", ObjCodeWithTestResults, "TestSignatureDoesNotMatch", `{"x": []}`, results, false},
		{
			"all same result", ObjCodeSuiteEvaluation, "AllTestCasesHaveSameResult", `{"x": "ok"}`,
			`{"code": "", "test_results": [["ok", "ok"], ["ok"]]}`, true,
		},
		{
			"not all same result", ObjCodeSuiteEvaluation, "AllTestCasesHaveSameResult", `{"x": "ok"}`,
			`{"code": "", "test_results": [["ok"], ["fail"]]}`, false,
		},
		{"code contains", ObjCodeSuiteEvaluation, "CodeContains", `{"x": "return"}`, `{"code": "return 1", "test_results": []}`, true},
		{
			"at least one result", ObjCodeSuiteEvaluation, "HasAtLeastOneResultOfType", `{"x": "fail"}`,
			`{"code": "", "test_results": [["ok"], ["ok", "fail"]]}`, true,
		},
		{
			"no result of type", ObjCodeSuiteEvaluation, "HasAtLeastOneResultOfType", `{"x": "fail"}`,
			`{"code": "", "test_results": [["ok"]]}`, false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustBuild(t, tt.objType, tt.rule, tt.inputs)
			assert.Equal(t, tt.want, eval(t, r, tt.subject))
		})
	}
}

func TestRealRules(t *testing.T) {
	tests := []struct {
		rule   string
		inputs string
		value  string
		want   bool
	}{
		{"Equals", `{"x": 3}`, `3`, true},
		{"IsLessThan", `{"x": 3}`, `3`, false},
		{"IsGreaterThan", `{"x": 3}`, `3.5`, true},
		{"IsLessThanOrEqualTo", `{"x": 3}`, `3`, true},
		{"IsGreaterThanOrEqualTo", `{"x": 3}`, `2.9`, false},
		{"IsInclusivelyBetween", `{"a": 1, "b": 2}`, `2`, true},
		{"IsWithinTolerance", `{"x": 10, "tol": 0.5}`, `10.5`, true},
		{"IsWithinTolerance", `{"x": 10, "tol": 0.5}`, `9.4`, false},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			r := mustBuild(t, ObjReal, tt.rule, tt.inputs)
			assert.Equal(t, tt.want, eval(t, r, tt.value))
		})
	}
}

func TestBuildAndClassify(t *testing.T) {
	_, err := Build(ObjReal, "IsPrime", nil)
	assert.EqualError(t, err, "Unknown rule IsPrime for object type Real")

	_, err = Build(ObjReal, "Equals", json.RawMessage(`{"x": "three"}`))
	assert.True(t, core.IsValidationError(err))

	assert.Equal(t, []string{"AllTestCasesHaveSameResult", "CodeContains", "HasAtLeastOneResultOfType"}, Names(ObjCodeSuiteEvaluation))

	small := mustBuild(t, ObjReal, "IsLessThan", `{"x": 0}`)
	exact, err := BuildSpec(ObjReal, Spec{RuleType: "Equals", Inputs: json.RawMessage(`{"x": 5}`)})
	require.NoError(t, err)
	big := mustBuild(t, ObjReal, "IsGreaterThanOrEqualTo", `{"x": 5}`)
	rules := []Rule{small, exact, big}

	tests := []struct {
		answer string
		want   int
	}{
		{"-1", 0},
		{"5", 1},
		{"6", 2},
		{"2", -1},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			got, err := Classify(rules, json.RawMessage(tt.answer))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = Classify(rules, json.RawMessage(`"five"`))
	assert.True(t, core.IsValidationError(err))
}
