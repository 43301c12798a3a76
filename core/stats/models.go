// Package stats records learner answers per exploration state and computes the aggregates shown on
// the exploration statistics dashboards.
package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
)

const (
	MaxBytesPerAnswerString       = 500
	MaxBytesPerVisualizationsOpts = 999999
)

var (
	ErrStateAnswersNotFound = core.NewNotFoundError("state answers")
	ErrCalcOutputNotFound   = core.NewNotFoundError("calculation output")

	requiredAnswerKeys = []string{"answer_string", "time_taken_to_answer", "session_id"}
)

// Key identifies the answers of one state of one exploration version.
type Key struct {
	ExplorationID      string `json:"exploration_id"`
	ExplorationVersion int    `json:"exploration_version"`
	StateName          string `json:"state_name"`
}

// String is the storage id of the key. State names cannot hold ':'.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%s", k.ExplorationID, k.ExplorationVersion, k.StateName)
}

func (k Key) Validate() error {
	if k.ExplorationID == "" {
		return core.NewValidationErrorf("Expected exploration_id to be a non-empty string, received %q", k.ExplorationID)
	}
	if k.ExplorationVersion < 1 {
		return core.NewValidationErrorf("Expected exploration_version to be a positive int, received %d", k.ExplorationVersion)
	}
	if k.StateName == "" {
		return core.NewValidationErrorf("Expected state_name to be a non-empty string, received %q", k.StateName)
	}
	return nil
}

type Answer struct {
	AnswerString      string  `json:"answer_string"`
	TimeTakenToAnswer float64 `json:"time_taken_to_answer"`
	SessionID         string  `json:"session_id"`
}

// ParseAnswer decodes and validates a submitted answer dict.
func ParseAnswer(raw json.RawMessage) (Answer, error) {
	var dict map[string]json.RawMessage
	if err := json.Unmarshal(raw, &dict); err != nil || dict == nil {
		return Answer{}, core.NewValidationErrorf("Expected answer_dict to be a dict, received %s", string(raw))
	}

	var missing []string
	for _, k := range requiredAnswerKeys {
		if _, ok := dict[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Answer{}, core.NewValidationErrorf("answer_dict misses required keys [%s]", strings.Join(missing, ", "))
	}

	var a Answer
	if err := json.Unmarshal(dict["answer_string"], &a.AnswerString); err != nil {
		return Answer{}, core.NewValidationErrorf("Expected answer_string to be a string, received %s", string(dict["answer_string"]))
	}
	if err := json.Unmarshal(dict["session_id"], &a.SessionID); err != nil {
		return Answer{}, core.NewValidationErrorf("Expected session_id to be a string, received %s", string(dict["session_id"]))
	}
	if err := json.Unmarshal(dict["time_taken_to_answer"], &a.TimeTakenToAnswer); err != nil {
		return Answer{}, core.NewValidationErrorf(
			"Expected time_taken_to_answer to be a float, received %s", string(dict["time_taken_to_answer"]))
	}
	return a, a.Validate()
}

// Validate checks the answer can be appended to a log.
// The size bound is on the UTF-8 bytes of answer_string.
func (a Answer) Validate() error {
	if len(a.AnswerString) > MaxBytesPerAnswerString {
		return core.NewValidationErrorf("answer_string is too big to be stored: %s", a.AnswerString)
	}
	t := a.TimeTakenToAnswer
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return core.NewValidationErrorf("Expected time_taken_to_answer to be a non-negative float, received %v", t)
	}
	return nil
}

// StateAnswers is the append-only answer log of a state.
type StateAnswers struct {
	Key
	InteractionID string   `json:"interaction_id"`
	Answers       []Answer `json:"answers"`
}

func NewStateAnswers(key Key, interactionID string) StateAnswers {
	return StateAnswers{Key: key, InteractionID: interactionID, Answers: []Answer{}}
}

// RecordAnswer validates a and appends it. An invalid answer leaves the log unchanged.
func (sa *StateAnswers) RecordAnswer(a Answer) error {
	if err := a.Validate(); err != nil {
		return err
	}
	sa.Answers = append(sa.Answers, a)
	return nil
}

// RecordAnswers appends all of answers, or none of them if any is invalid.
func (sa *StateAnswers) RecordAnswers(answers []Answer) error {
	for _, a := range answers {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	sa.Answers = append(sa.Answers, answers...)
	return nil
}

func (sa StateAnswers) Validate() error {
	return sa.Key.Validate()
}

// Visualization ids.
const VisualizationValuesAndCountsTable = "values_and_counts_table"

// VisualizationOpts is the data of one visualization, in the shape its frontend expects.
type VisualizationOpts interface {
	VisualizationID() string
}

// ValueCount is one row of a values and counts table, encoded as a [value, count] pair.
type ValueCount struct {
	Value string
	Count int
}

func (vc ValueCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{vc.Value, vc.Count})
}

func (vc *ValueCount) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errors.Errorf("expected a [value, count] pair, received %s", string(b))
	}
	if err := json.Unmarshal(pair[0], &vc.Value); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &vc.Count)
}

type ValuesAndCountsTable struct {
	Data         []ValueCount `json:"data"`
	Title        string       `json:"title"`
	ColumnLabels []string     `json:"column_labels"`
}

func (ValuesAndCountsTable) VisualizationID() string { return VisualizationValuesAndCountsTable }

// Visualization is a tagged union of the known visualization options.
type Visualization struct {
	Opts VisualizationOpts
}

type visualizationJSON struct {
	VisualizationID   string          `json:"visualization_id"`
	VisualizationOpts json.RawMessage `json:"visualization_opts"`
}

func (v Visualization) MarshalJSON() ([]byte, error) {
	if v.Opts == nil {
		return nil, errors.New("visualization has no options")
	}
	opts, err := json.Marshal(v.Opts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(visualizationJSON{VisualizationID: v.Opts.VisualizationID(), VisualizationOpts: opts})
}

func (v *Visualization) UnmarshalJSON(b []byte) error {
	var vj visualizationJSON
	if err := json.Unmarshal(b, &vj); err != nil {
		return err
	}
	switch vj.VisualizationID {
	case VisualizationValuesAndCountsTable:
		var t ValuesAndCountsTable
		if err := json.Unmarshal(vj.VisualizationOpts, &t); err != nil {
			return err
		}
		v.Opts = t
	default:
		return core.NewValidationErrorf("Unrecognized visualization_id: %s", vj.VisualizationID)
	}
	return nil
}

// CalcOutput is the result of one calculation over a state's answers. It is overwritten on recomputation.
type CalcOutput struct {
	Key
	CalculationID string          `json:"calculation_id"`
	Outputs       []Visualization `json:"calculation_outputs"`
}

// ID is the storage id of the output.
func (co CalcOutput) ID() string {
	return co.Key.String() + ":" + co.CalculationID
}

func (co CalcOutput) Validate() error {
	if err := co.Key.Validate(); err != nil {
		return err
	}
	if co.CalculationID == "" {
		return core.NewValidationErrorf("Expected calculation_id to be a non-empty string")
	}
	for _, out := range co.Outputs {
		if out.Opts == nil {
			return core.NewValidationErrorf("Expected calc_output['visualization_opts'] to be set")
		}
		opts, err := json.Marshal(out.Opts)
		if err != nil {
			return errors.Wrap(err, "encoding visualization_opts")
		}
		if len(opts) > MaxBytesPerVisualizationsOpts {
			return core.NewValidationErrorf("visualization_opts is too big to be stored: %s", string(opts))
		}
	}
	return nil
}

// RuleAnswerLog counts the answers that were classified by one rule of a state.
type RuleAnswerLog struct {
	ExplorationID string         `json:"exploration_id"`
	StateName     string         `json:"state_name"`
	RuleStr       string         `json:"rule_str"`
	Answers       map[string]int `json:"answers"`
}

func NewRuleAnswerLog(explorationID, stateName, ruleStr string) RuleAnswerLog {
	return RuleAnswerLog{ExplorationID: explorationID, StateName: stateName, RuleStr: ruleStr, Answers: map[string]int{}}
}

// RuleAnswerLogID is the storage id of a rule answer log.
func RuleAnswerLogID(explorationID, stateName, ruleStr string) string {
	return explorationID + ":" + stateName + ":" + ruleStr
}

func (l RuleAnswerLog) ID() string {
	return RuleAnswerLogID(l.ExplorationID, l.StateName, l.RuleStr)
}

func (l RuleAnswerLog) TotalCount() int {
	var total int
	for _, c := range l.Answers {
		total += c
	}
	return total
}

// TopAnswers returns the n most frequent answers, most frequent first.
func (l RuleAnswerLog) TopAnswers(n int) []ValueCount {
	top := make([]ValueCount, 0, len(l.Answers))
	for a, c := range l.Answers {
		top = append(top, ValueCount{Value: a, Count: c})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count == top[j].Count {
			return top[i].Value < top[j].Value
		}
		return top[i].Count > top[j].Count
	})
	if n >= 0 && n < len(top) {
		top = top[:n]
	}
	return top
}
