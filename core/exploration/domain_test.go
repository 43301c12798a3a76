package exploration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/rules"
	"github.com/trezcool/matembezi/core/versioned"
)

func spec(ruleType, inputs string) rules.Spec {
	return rules.Spec{RuleType: ruleType, Inputs: json.RawMessage(inputs)}
}

// quiz asks for a number in Introduction: 5 leads to End, anything else loops back.
func quiz(t *testing.T) Exploration {
	t.Helper()
	e := CreateDefault("exp0", "Counting", "Mathematics")
	e.Objective = "Learn to count"
	require.NoError(t, e.AddState("End"))

	intro := e.States[DefaultInitStateName]
	intro.Content = "How many fingers on one hand?"
	intro.Interaction.ID = InteractionNumericInput
	intro.Interaction.AnswerGroups = []AnswerGroup{{
		RuleSpecs: []rules.Spec{spec("Equals", `{"x": 5}`), spec("IsWithinTolerance", `{"x": 5, "tol": 0.1}`)},
		Outcome:   Outcome{Dest: "End", Feedback: "Right!"},
	}}
	e.States[DefaultInitStateName] = intro

	end := e.States["End"]
	end.Interaction = Interaction{ID: InteractionEndExploration, AnswerGroups: []AnswerGroup{}}
	e.States["End"] = end
	return e
}

func TestExploration_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Exploration)
		wantMsg string
	}{
		{name: "valid", mutate: func(e *Exploration) {}},
		{
			name:    "empty title",
			mutate:  func(e *Exploration) { e.Title = "" },
			wantMsg: "The length of the exploration title should be between 1 and 50 characters; received ",
		},
		{
			name:    "bad category",
			mutate:  func(e *Exploration) { e.Category = "Maths|Algebra" },
			wantMsg: "Invalid character | in the exploration category: Maths|Algebra",
		},
		{
			name:    "unsupported language",
			mutate:  func(e *Exploration) { e.LanguageCode = "xx" },
			wantMsg: "Invalid language_code: xx",
		},
		{
			name:    "uppercase skill tag",
			mutate:  func(e *Exploration) { e.SkillTags = []string{"Counting"} },
			wantMsg: `Skill tags should be non-empty, lowercase and trimmed; received "Counting"`,
		},
		{
			name:    "duplicate skill tags",
			mutate:  func(e *Exploration) { e.SkillTags = []string{"counting", "counting"} },
			wantMsg: "Some skill tags duplicate each other: counting, counting",
		},
		{
			name:    "no states",
			mutate:  func(e *Exploration) { e.States = map[string]State{} },
			wantMsg: "This exploration has no states.",
		},
		{
			name: "bad state name",
			mutate: func(e *Exploration) {
				e.States["a  b"] = NewState("a  b")
			},
			wantMsg: "Adjacent whitespace in a state name should be collapsed.",
		},
		{
			name:    "missing initial state",
			mutate:  func(e *Exploration) { e.InitStateName = "Start" },
			wantMsg: "There is no state in [End Introduction] corresponding to the exploration's initial state name Start.",
		},
		{
			name: "unknown interaction",
			mutate: func(e *Exploration) {
				s := e.States["End"]
				s.Interaction.ID = "Slider"
				e.States["End"] = s
			},
			wantMsg: "Invalid interaction id: Slider",
		},
		{
			name: "unknown rule",
			mutate: func(e *Exploration) {
				e.States[DefaultInitStateName].Interaction.AnswerGroups[0].RuleSpecs[0] = spec("Contains", `{"x": 5}`)
			},
			wantMsg: "Unknown rule Contains for object type Real",
		},
		{
			name: "invalid destination",
			mutate: func(e *Exploration) {
				e.States[DefaultInitStateName].Interaction.AnswerGroups[0].Outcome.Dest = "Nowhere"
			},
			wantMsg: "The destination Nowhere is not a valid state.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := quiz(t)
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, core.IsValidationError(err))
			assert.EqualError(t, err, tt.wantMsg)
		})
	}
}

func TestExploration_CheckPublishable(t *testing.T) {
	e := quiz(t)
	require.NoError(t, e.CheckPublishable())

	e.Objective = ""
	assert.EqualError(t, e.CheckPublishable(), "An objective must be specified (in the 'Settings' tab).")

	e = quiz(t)
	require.NoError(t, e.AddState("Extra"))
	assert.EqualError(t, e.CheckPublishable(), "No interaction specified for state Extra.")

	e = CreateDefault("exp1", "Draft", "Drafts")
	e.Objective = "None yet"
	s := e.States[DefaultInitStateName]
	s.Interaction.ID = InteractionContinue
	e.States[DefaultInitStateName] = s
	assert.EqualError(t, e.CheckPublishable(), "This exploration has no terminal state.")
}

func TestExploration_StateCommands(t *testing.T) {
	e := quiz(t)
	require.NoError(t, e.ApplyCommand(&versioned.Command{Cmd: CmdAddState, StateName: "Hint"}))
	assert.Error(t, e.ApplyCommand(&versioned.Command{Cmd: CmdAddState, StateName: "Hint"}))
	hint := e.States["Hint"]
	hint.Interaction.DefaultOutcome = &Outcome{Dest: "End"}
	e.States["Hint"] = hint

	// renaming retargets destinations and the initial state
	require.NoError(t, e.ApplyCommand(&versioned.Command{Cmd: CmdRenameState, OldStateName: "End", NewStateName: "Finish"}))
	assert.Equal(t, "Finish", e.States[DefaultInitStateName].Interaction.AnswerGroups[0].Outcome.Dest)
	assert.Equal(t, "Finish", e.States["Hint"].Interaction.DefaultOutcome.Dest)
	require.NoError(t, e.ApplyCommand(&versioned.Command{Cmd: CmdRenameState, OldStateName: DefaultInitStateName, NewStateName: "Start"}))
	assert.Equal(t, "Start", e.InitStateName)
	assert.Equal(t, "Start", e.States["Start"].Interaction.DefaultOutcome.Dest)
	assert.Error(t, e.RenameState("Start", "Hint"))
	assert.Error(t, e.RenameState("Missing", "Other"))
	require.NoError(t, e.Validate())

	err := e.ApplyCommand(&versioned.Command{Cmd: CmdDeleteState, StateName: "Start"})
	assert.EqualError(t, err, "Cannot delete initial state of an exploration.")

	// outcomes leading to a deleted state loop back
	require.NoError(t, e.ApplyCommand(&versioned.Command{Cmd: CmdDeleteState, StateName: "Finish"}))
	assert.Equal(t, "Start", e.States["Start"].Interaction.AnswerGroups[0].Outcome.Dest)
	assert.Equal(t, "Hint", e.States["Hint"].Interaction.DefaultOutcome.Dest)
	assert.Error(t, e.DeleteState("Finish"))
	require.NoError(t, e.Validate())
}

func TestExploration_EditCommands(t *testing.T) {
	e := quiz(t)

	cmd, err := versioned.PropertyCommand(CmdEditProperty, PropertyTitle, nil, "Counting to five")
	require.NoError(t, err)
	require.NoError(t, e.ApplyCommand(&cmd))
	assert.Equal(t, "Counting to five", e.Title)
	assert.JSONEq(t, `"Counting"`, string(cmd.OldValue))

	cmd, err = versioned.PropertyCommand(CmdEditProperty, PropertySkillTags, nil, []string{"counting", "numbers"})
	require.NoError(t, err)
	require.NoError(t, e.ApplyCommand(&cmd))
	assert.Equal(t, []string{"counting", "numbers"}, e.SkillTags)

	cmd, err = versioned.PropertyCommand(CmdEditProperty, "rating", nil, "5")
	require.NoError(t, err)
	assert.EqualError(t, e.ApplyCommand(&cmd), "Invalid exploration property: rating")

	cmd, err = versioned.PropertyCommand(CmdEditProperty, PropertyObjective, nil, 5)
	require.NoError(t, err)
	assert.EqualError(t, e.ApplyCommand(&cmd), "Expected objective to be a string, received 5")

	cmd, err = versioned.PropertyCommand(CmdEditStateProperty, StatePropertyContent, nil, "Count them")
	require.NoError(t, err)
	cmd.StateName = DefaultInitStateName
	require.NoError(t, e.ApplyCommand(&cmd))
	assert.Equal(t, "Count them", e.States[DefaultInitStateName].Content)

	cmd, err = versioned.PropertyCommand(CmdEditStateProperty, StatePropertyDefaultOutcome, nil, Outcome{Dest: "End"})
	require.NoError(t, err)
	cmd.StateName = DefaultInitStateName
	require.NoError(t, e.ApplyCommand(&cmd))
	assert.Equal(t, &Outcome{Dest: "End"}, e.States[DefaultInitStateName].Interaction.DefaultOutcome)
	assert.JSONEq(t, `{"dest": "Introduction", "feedback": ""}`, string(cmd.OldValue))

	cmd, err = versioned.PropertyCommand(CmdEditStateProperty, StatePropertyAnswerGroups, nil, []AnswerGroup{})
	require.NoError(t, err)
	cmd.StateName = "Missing"
	assert.EqualError(t, e.ApplyCommand(&cmd), "State Missing does not exist")

	assert.EqualError(t, e.ApplyCommand(&versioned.Command{Cmd: "fly"}), "Invalid change_dict: fly")
}

func TestClassifyAnswer(t *testing.T) {
	intro := quiz(t).States[DefaultInitStateName]
	tests := []struct {
		name      string
		subject   string
		wantGroup int
		wantRule  int
		wantStr   string
		wantDest  string
	}{
		{name: "first rule", subject: `5`, wantGroup: 0, wantRule: 0, wantStr: `Equals({"x":5})`, wantDest: "End"},
		{name: "second rule", subject: `5.05`, wantGroup: 0, wantRule: 1, wantStr: `IsWithinTolerance({"x":5,"tol":0.1})`, wantDest: "End"},
		{name: "default", subject: `4`, wantGroup: -1, wantRule: -1, wantStr: DefaultRuleString, wantDest: DefaultInitStateName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, err := ClassifyAnswer(intro, json.RawMessage(tt.subject))
			require.NoError(t, err)
			assert.Equal(t, tt.wantGroup, cls.AnswerGroupIndex)
			assert.Equal(t, tt.wantRule, cls.RuleSpecIndex)
			assert.Equal(t, tt.wantStr, cls.RuleStr)
			assert.Equal(t, tt.wantDest, cls.Outcome.Dest)
		})
	}

	_, err := ClassifyAnswer(intro, json.RawMessage(`"five"`))
	assert.True(t, core.IsValidationError(err))
	_, err = ClassifyAnswer(NewState("Blank"), json.RawMessage(`5`))
	assert.EqualError(t, err, "Invalid interaction id: ")
}
