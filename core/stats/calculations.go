package stats

import (
	"sort"

	"github.com/trezcool/matembezi/core"
)

// Calculation aggregates the answers of a state into visualizations.
type Calculation interface {
	ID() string
	Name() string
	Description() string
	// AllowedInteractions lists the interactions whose answers the calculation understands.
	AllowedInteractions() []string
	Calculate(sa StateAnswers) (CalcOutput, error)
}

var calculations = map[string]Calculation{}

func registerCalculation(c Calculation) {
	if _, dup := calculations[c.ID()]; dup {
		panic("stats: duplicate calculation " + c.ID())
	}
	calculations[c.ID()] = c
}

func init() {
	registerCalculation(AnswerCounts{})
}

// GetCalculation returns the registered calculation with the given id.
func GetCalculation(id string) (Calculation, error) {
	c, ok := calculations[id]
	if !ok {
		return nil, core.NewValidationErrorf("Unknown calculation: %s", id)
	}
	return c, nil
}

// Calculations lists the registered calculations, sorted by id.
func Calculations() []Calculation {
	all := make([]Calculation, 0, len(calculations))
	for _, c := range calculations {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID() < all[j].ID() })
	return all
}

// CalculationsFor lists the calculations applicable to answers of an interaction.
func CalculationsFor(interactionID string) []Calculation {
	var applicable []Calculation
	for _, c := range Calculations() {
		if allows(c, interactionID) {
			applicable = append(applicable, c)
		}
	}
	return applicable
}

func allows(c Calculation, interactionID string) bool {
	for _, id := range c.AllowedInteractions() {
		if id == interactionID {
			return true
		}
	}
	return false
}

// AnswerCounts counts each distinct answer string.
type AnswerCounts struct{}

func (AnswerCounts) ID() string          { return "AnswerCounts" }
func (AnswerCounts) Name() string        { return "Answer counts" }
func (AnswerCounts) Description() string { return "Calculate answer counts for each answer option." }

func (AnswerCounts) AllowedInteractions() []string {
	return []string{"MultipleChoiceInput"}
}

// Calculate lists the answers in order of first submission.
// Answers recorded without an interaction id are counted regardless of the allow-list.
func (c AnswerCounts) Calculate(sa StateAnswers) (CalcOutput, error) {
	if sa.InteractionID != "" && !allows(c, sa.InteractionID) {
		return CalcOutput{}, core.NewValidationErrorf(
			"Calculation %s cannot be applied to answers of %s", c.ID(), sa.InteractionID)
	}

	index := make(map[string]int)
	data := make([]ValueCount, 0)
	for _, a := range sa.Answers {
		i, seen := index[a.AnswerString]
		if !seen {
			i = len(data)
			index[a.AnswerString] = i
			data = append(data, ValueCount{Value: a.AnswerString})
		}
		data[i].Count++
	}

	out := CalcOutput{
		Key:           sa.Key,
		CalculationID: c.ID(),
		Outputs: []Visualization{{Opts: ValuesAndCountsTable{
			Data:         data,
			Title:        "Answer counts",
			ColumnLabels: []string{"Answer", "Count"},
		}}},
	}
	return out, out.Validate()
}
