package stats

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
)

var key = Key{ExplorationID: "exp0", ExplorationVersion: 1, StateName: "Introduction"}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Answer
		wantMsg string
	}{
		{
			name: "valid",
			raw:  `{"answer_string": "First choice", "time_taken_to_answer": 1.5, "session_id": "s1"}`,
			want: Answer{AnswerString: "First choice", TimeTakenToAnswer: 1.5, SessionID: "s1"},
		},
		{
			name:    "not a dict",
			raw:     `["a"]`,
			wantMsg: `Expected answer_dict to be a dict, received ["a"]`,
		},
		{
			name:    "missing keys",
			raw:     `{"answer_string": "a"}`,
			wantMsg: "answer_dict misses required keys [session_id, time_taken_to_answer]",
		},
		{
			name:    "answer is not a string",
			raw:     `{"answer_string": 3, "time_taken_to_answer": 1.0, "session_id": "s1"}`,
			wantMsg: "Expected answer_string to be a string, received 3",
		},
		{
			name:    "session is not a string",
			raw:     `{"answer_string": "a", "time_taken_to_answer": 1.0, "session_id": 1}`,
			wantMsg: "Expected session_id to be a string, received 1",
		},
		{
			name:    "negative time",
			raw:     `{"answer_string": "a", "time_taken_to_answer": -1, "session_id": "s1"}`,
			wantMsg: "Expected time_taken_to_answer to be a non-negative float, received -1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswer(json.RawMessage(tt.raw))
			if tt.wantMsg != "" {
				assert.True(t, core.IsValidationError(err))
				assert.EqualError(t, err, tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnswer_Validate(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		wantErr bool
	}{
		{name: "at the bound", answer: strings.Repeat("a", MaxBytesPerAnswerString)},
		{name: "over the bound", answer: strings.Repeat("a", MaxBytesPerAnswerString+1), wantErr: true},
		{name: "markup is counted as is", answer: strings.Repeat("<&>", 150)},
		{name: "multi-byte runes count their bytes", answer: strings.Repeat("é", 250)},
		{name: "multi-byte runes over the bound", answer: strings.Repeat("é", 251), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Answer{AnswerString: tt.answer, SessionID: "s1"}.Validate()
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStateAnswers_RecordAnswer(t *testing.T) {
	sa := NewStateAnswers(key, "MultipleChoiceInput")
	require.NoError(t, sa.RecordAnswer(Answer{AnswerString: "a", TimeTakenToAnswer: 1, SessionID: "s"}))

	// 498 chars + 2 quotes is the largest accepted answer
	require.NoError(t, sa.RecordAnswer(Answer{AnswerString: strings.Repeat("x", 498), SessionID: "s"}))
	err := sa.RecordAnswer(Answer{AnswerString: strings.Repeat("x", 499), SessionID: "s"})
	assert.True(t, core.IsValidationError(err))
	assert.Contains(t, err.Error(), "answer_string is too big to be stored: ")

	err = sa.RecordAnswer(Answer{AnswerString: "b", TimeTakenToAnswer: math.NaN(), SessionID: "s"})
	assert.True(t, core.IsValidationError(err))
	assert.Len(t, sa.Answers, 2)

	err = sa.RecordAnswers([]Answer{
		{AnswerString: "c", SessionID: "s"},
		{AnswerString: "d", TimeTakenToAnswer: -2, SessionID: "s"},
	})
	assert.Error(t, err)
	assert.Len(t, sa.Answers, 2, "a batch with an invalid answer is rejected whole")

	require.NoError(t, sa.RecordAnswers([]Answer{{AnswerString: "c"}, {AnswerString: "d"}}))
	assert.Len(t, sa.Answers, 4)
}

func TestAnswerCounts_Calculate(t *testing.T) {
	sa := NewStateAnswers(key, "MultipleChoiceInput")
	for answer, n := range map[string]int{"First choice": 5, "Second choice": 2, "Fourth choice": 1} {
		for i := 0; i < n; i++ {
			require.NoError(t, sa.RecordAnswer(Answer{AnswerString: answer, TimeTakenToAnswer: 1, SessionID: "s"}))
		}
	}

	calc, err := GetCalculation("AnswerCounts")
	require.NoError(t, err)
	assert.Equal(t, "Answer counts", calc.Name())
	assert.Equal(t, "Calculate answer counts for each answer option.", calc.Description())

	out, err := calc.Calculate(sa)
	require.NoError(t, err)
	assert.Equal(t, key, out.Key)
	require.Len(t, out.Outputs, 1)

	table, ok := out.Outputs[0].Opts.(ValuesAndCountsTable)
	require.True(t, ok)
	assert.Equal(t, "Answer counts", table.Title)
	assert.Equal(t, []string{"Answer", "Count"}, table.ColumnLabels)
	assert.ElementsMatch(t, []ValueCount{
		{Value: "First choice", Count: 5},
		{Value: "Second choice", Count: 2},
		{Value: "Fourth choice", Count: 1},
	}, table.Data)

	raw, err := json.Marshal(out.Outputs[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"visualization_id":"values_and_counts_table"`)
	assert.Contains(t, string(raw), `["First choice",5]`)

	var back Visualization
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, out.Outputs[0], back)

	sa.InteractionID = "TextInput"
	_, err = calc.Calculate(sa)
	assert.True(t, core.IsValidationError(err))

	_, err = GetCalculation("Median")
	assert.True(t, core.IsValidationError(err))
	assert.Len(t, CalculationsFor("MultipleChoiceInput"), 1)
	assert.Empty(t, CalculationsFor("TextInput"))
}

func TestCalcOutput_Validate(t *testing.T) {
	big := ValuesAndCountsTable{Title: strings.Repeat("x", MaxBytesPerVisualizationsOpts)}
	out := CalcOutput{Key: key, CalculationID: "AnswerCounts", Outputs: []Visualization{{Opts: big}}}
	err := out.Validate()
	assert.True(t, core.IsValidationError(err))
	assert.True(t, strings.HasPrefix(err.Error(), "visualization_opts is too big to be stored: "))

	out.Outputs = nil
	out.StateName = ""
	assert.EqualError(t, out.Validate(), `Expected state_name to be a non-empty string, received ""`)
}

func TestRuleAnswerLog(t *testing.T) {
	log := NewRuleAnswerLog("exp0", "Introduction", "Equals(5)")
	assert.Equal(t, 0, log.TotalCount())
	assert.Empty(t, log.TopAnswers(3))

	log.Answers = map[string]int{"5": 4, "6": 1, "7": 4, "8": 2}
	assert.Equal(t, 11, log.TotalCount())
	assert.Equal(t, []ValueCount{{"5", 4}, {"7", 4}, {"8", 2}}, log.TopAnswers(3))
	assert.Len(t, log.TopAnswers(10), 4)
}
