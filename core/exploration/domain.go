// Package exploration holds explorations: graphs of states, each showing some content and an
// interaction whose answers are classified by rules into the next state.
package exploration

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/rules"
)

const DefaultInitStateName = "Introduction"

// Interaction ids.
const (
	InteractionContinue       = "Continue"
	InteractionEndExploration = "EndExploration"
	InteractionTextInput      = "TextInput"
	InteractionNumericInput   = "NumericInput"
	InteractionMultipleChoice = "MultipleChoiceInput"
	InteractionItemSelection  = "ItemSelectionInput"
	InteractionCodeRepl       = "CodeRepl"
	InteractionCodeReplSuite  = "CodeReplSuite"
)

// interactions maps an interaction id to the object type its answers are classified as.
// An empty object type means the interaction has no rules.
var interactions = map[string]string{
	InteractionContinue:       "",
	InteractionEndExploration: "",
	InteractionTextInput:      "",
	InteractionNumericInput:   rules.ObjReal,
	InteractionMultipleChoice: rules.ObjReal,
	InteractionItemSelection:  rules.ObjListOfUnicodeString,
	InteractionCodeRepl:       rules.ObjCodeWithTestResults,
	InteractionCodeReplSuite:  rules.ObjCodeSuiteEvaluation,
}

// Interactions lists the known interaction ids.
func Interactions() []string {
	ids := make([]string, 0, len(interactions))
	for id := range interactions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ObjectType returns the rule object type of an interaction.
func ObjectType(interactionID string) (string, bool) {
	t, ok := interactions[interactionID]
	return t, ok
}

type Outcome struct {
	Dest     string `json:"dest"`
	Feedback string `json:"feedback"`
}

// AnswerGroup sends answers matching any of its rules to its outcome.
type AnswerGroup struct {
	RuleSpecs []rules.Spec `json:"rule_specs"`
	Outcome   Outcome      `json:"outcome"`
}

type Interaction struct {
	ID             string        `json:"id"`
	AnswerGroups   []AnswerGroup `json:"answer_groups"`
	DefaultOutcome *Outcome      `json:"default_outcome"`
}

// Terminal reports whether learners finish the exploration at this interaction.
func (i Interaction) Terminal() bool {
	return i.ID == InteractionEndExploration
}

func (i Interaction) outcomes() []*Outcome {
	outs := make([]*Outcome, 0, len(i.AnswerGroups)+1)
	for g := range i.AnswerGroups {
		outs = append(outs, &i.AnswerGroups[g].Outcome)
	}
	if i.DefaultOutcome != nil {
		outs = append(outs, i.DefaultOutcome)
	}
	return outs
}

type State struct {
	Content     string      `json:"content"`
	Interaction Interaction `json:"interaction"`
}

// NewState returns a state without interaction whose default outcome loops back to itself.
func NewState(name string) State {
	return State{
		Interaction: Interaction{
			AnswerGroups:   []AnswerGroup{},
			DefaultOutcome: &Outcome{Dest: name},
		},
	}
}

func (s State) validate(name string, states map[string]State) error {
	i := s.Interaction
	objType, ok := interactions[i.ID]
	if i.ID != "" && !ok {
		return core.NewValidationErrorf("Invalid interaction id: %s", i.ID)
	}
	if len(i.AnswerGroups) > 0 && objType == "" {
		return core.NewValidationErrorf("Interaction %q of state %s does not support answer groups", i.ID, name)
	}
	if i.Terminal() && i.DefaultOutcome != nil {
		return core.NewValidationErrorf("Terminal state %s should not have a default outcome", name)
	}

	for _, g := range i.AnswerGroups {
		if len(g.RuleSpecs) == 0 {
			return core.NewValidationErrorf("Each answer group of state %s should have at least one rule", name)
		}
		for _, spec := range g.RuleSpecs {
			if _, err := rules.BuildSpec(objType, spec); err != nil {
				return err
			}
		}
	}
	for _, out := range i.outcomes() {
		if _, ok := states[out.Dest]; !ok {
			return core.NewValidationErrorf("The destination %s is not a valid state.", out.Dest)
		}
	}
	return nil
}

// Exploration is the content of one versioned exploration.
type Exploration struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Category      string           `json:"category"`
	Objective     string           `json:"objective"`
	LanguageCode  string           `json:"language_code"`
	SkillTags     []string         `json:"skill_tags"`
	AuthorNotes   string           `json:"author_notes"`
	DefaultSkin   string           `json:"default_skin"`
	InitStateName string           `json:"init_state_name"`
	States        map[string]State `json:"states"`
}

// CreateDefault returns an exploration with a single initial state.
func CreateDefault(id, title, category string) Exploration {
	return Exploration{
		ID:            id,
		Title:         title,
		Category:      category,
		LanguageCode:  activity.DefaultLanguageCode,
		SkillTags:     []string{},
		DefaultSkin:   "conversation_v1",
		InitStateName: DefaultInitStateName,
		States:        map[string]State{DefaultInitStateName: NewState(DefaultInitStateName)},
	}
}

func (e Exploration) normalized() Exploration {
	if e.LanguageCode == "" {
		e.LanguageCode = activity.DefaultLanguageCode
	}
	if e.SkillTags == nil {
		e.SkillTags = []string{}
	}
	if e.States == nil {
		e.States = map[string]State{}
	}
	for name, s := range e.States {
		if s.Interaction.AnswerGroups == nil {
			s.Interaction.AnswerGroups = []AnswerGroup{}
			e.States[name] = s
		}
	}
	return e
}

// Validate checks the exploration before it is committed, failing on the first broken invariant.
func (e Exploration) Validate() error {
	if err := activity.RequireValidName(e.Title, "the exploration title"); err != nil {
		return err
	}
	if err := activity.RequireValidName(e.Category, "the exploration category"); err != nil {
		return err
	}
	if !activity.IsSupportedLanguage(e.LanguageCode) {
		return core.NewValidationErrorf("Invalid language_code: %s", e.LanguageCode)
	}
	if err := validateSkillTags(e.SkillTags); err != nil {
		return err
	}

	if len(e.States) == 0 {
		return core.NewValidationErrorf("This exploration has no states.")
	}
	names := e.StateNames()
	for _, name := range names {
		if err := activity.RequireValidName(name, "a state name"); err != nil {
			return err
		}
	}
	if _, ok := e.States[e.InitStateName]; !ok {
		return core.NewValidationErrorf(
			"There is no state in %v corresponding to the exploration's initial state name %s.", names, e.InitStateName)
	}
	for _, name := range names {
		if err := e.States[name].validate(name, e.States); err != nil {
			return err
		}
	}
	return nil
}

func validateSkillTags(tags []string) error {
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag == "" || tag != core.CleanString(tag, true) {
			return core.NewValidationErrorf("Skill tags should be non-empty, lowercase and trimmed; received %q", tag)
		}
		if _, dup := seen[tag]; dup {
			return core.NewValidationErrorf("Some skill tags duplicate each other: %s", strings.Join(tags, ", "))
		}
		seen[tag] = struct{}{}
	}
	return nil
}

// StateNames returns the state names in alphabetical order.
func (e Exploration) StateNames() []string {
	names := make([]string, 0, len(e.States))
	for name := range e.States {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckPublishable is stricter than Validate: learners must be able to play every state.
func (e Exploration) CheckPublishable() error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Objective == "" {
		return core.NewValidationErrorf("An objective must be specified (in the 'Settings' tab).")
	}
	terminal := false
	for _, name := range e.StateNames() {
		s := e.States[name]
		if s.Interaction.ID == "" {
			return core.NewValidationErrorf("No interaction specified for state %s.", name)
		}
		if !s.Interaction.Terminal() && s.Interaction.DefaultOutcome == nil {
			return core.NewValidationErrorf("State %s has no default outcome.", name)
		}
		terminal = terminal || s.Interaction.Terminal()
	}
	if !terminal {
		return core.NewValidationErrorf("This exploration has no terminal state.")
	}
	return nil
}

func (e *Exploration) AddState(name string) error {
	if _, exists := e.States[name]; exists {
		return core.NewValidationErrorf("Duplicate state name %s", name)
	}
	if e.States == nil {
		e.States = make(map[string]State)
	}
	e.States[name] = NewState(name)
	return nil
}

// RenameState renames a state and every destination and initial state pointing to it.
func (e *Exploration) RenameState(oldName, newName string) error {
	s, exists := e.States[oldName]
	if !exists {
		return core.NewValidationErrorf("State %s does not exist", oldName)
	}
	if oldName == newName {
		return nil
	}
	if _, taken := e.States[newName]; taken {
		return core.NewValidationErrorf("Duplicate state name: %s", newName)
	}
	delete(e.States, oldName)
	e.States[newName] = s
	if e.InitStateName == oldName {
		e.InitStateName = newName
	}
	e.retarget(oldName, func(string) string { return newName })
	return nil
}

// DeleteState removes a state. Outcomes that led to it now loop back to their own state.
func (e *Exploration) DeleteState(name string) error {
	if name == e.InitStateName {
		return core.NewValidationErrorf("Cannot delete initial state of an exploration.")
	}
	if _, exists := e.States[name]; !exists {
		return core.NewValidationErrorf("State %s does not exist", name)
	}
	delete(e.States, name)
	e.retarget(name, func(owner string) string { return owner })
	return nil
}

func (e *Exploration) retarget(dest string, to func(owner string) string) {
	for owner, s := range e.States {
		for _, out := range s.Interaction.outcomes() {
			if out.Dest == dest {
				out.Dest = to(owner)
			}
		}
		e.States[owner] = s
	}
}

func (e *Exploration) state(name string) (State, error) {
	s, ok := e.States[name]
	if !ok {
		return State{}, core.NewValidationErrorf("State %s does not exist", name)
	}
	return s, nil
}

// RuleString is the name of a rule as it shows in rule answer logs, e.g. "Equals({"x":5})".
func RuleString(spec rules.Spec) string {
	inputs := string(spec.Inputs)
	if compact, err := json.Marshal(spec.Inputs); err == nil {
		inputs = string(compact)
	}
	return fmt.Sprintf("%s(%s)", spec.RuleType, inputs)
}

// DefaultRuleString names the answers that matched no rule.
const DefaultRuleString = "Default"
