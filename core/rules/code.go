package rules

import "strings"

type testResult struct {
	Result string `json:"result"`
}

// CodeWithTestResults is the answer of a code interaction run against its tests.
type CodeWithTestResults struct {
	Code        string       `json:"code"`
	Output      string       `json:"output"`
	Evaluation  string       `json:"evaluation"`
	Error       string       `json:"error"`
	TestResults []testResult `json:"testResults"`
}

// CodeSuiteEvaluation is the answer of a code interaction run against suites of test cases.
type CodeSuiteEvaluation struct {
	Code        string     `json:"code"`
	TestResults [][]string `json:"test_results"`
}

type stringsParam struct {
	X []string `json:"x"`
}

type stringParam struct {
	X string `json:"x"`
}

// signatureMatches compares results with the expected signature; empty expected entries are wildcards.
// ok is false when the lengths differ.
func signatureMatches(expected []string, results []testResult) (matches, ok bool) {
	if len(expected) != len(results) {
		return false, false
	}
	matches = true
	for i, r := range results {
		if expected[i] != "" && expected[i] != r.Result {
			matches = false
		}
	}
	return matches, true
}

func init() {
	register(ObjCodeWithTestResults, "TestSignatureMatches", "has test signatures matching {{x|ListOfUnicodeString}}", nil,
		func(p stringsParam, s CodeWithTestResults) bool {
			matches, ok := signatureMatches(p.X, s.TestResults)
			return ok && matches
		})
	register(ObjCodeWithTestResults, "TestSignatureDoesNotMatch", "has test signatures that do not match {{x|ListOfUnicodeString}}", nil,
		func(p stringsParam, s CodeWithTestResults) bool {
			matches, ok := signatureMatches(p.X, s.TestResults)
			return ok && !matches
		})

	register(ObjCodeSuiteEvaluation, "AllTestCasesHaveSameResult", "corresponds to all test cases having result {{x|UnicodeString}}", nil,
		func(p stringParam, s CodeSuiteEvaluation) bool {
			for _, suite := range s.TestResults {
				for _, r := range suite {
					if r != p.X {
						return false
					}
				}
			}
			return true
		})
	register(ObjCodeSuiteEvaluation, "CodeContains", "contains {{x|UnicodeString}}", nil,
		func(p stringParam, s CodeSuiteEvaluation) bool {
			return strings.Contains(s.Code, p.X)
		})
	register(ObjCodeSuiteEvaluation, "HasAtLeastOneResultOfType", "has at least one test case with result {{x|UnicodeString}}", nil,
		func(p stringParam, s CodeSuiteEvaluation) bool {
			for _, suite := range s.TestResults {
				for _, r := range suite {
					if r == p.X {
						return true
					}
				}
			}
			return false
		})
}
