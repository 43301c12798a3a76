package adventure

import (
	"fmt"
	"sort"
	"strings"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
)

// Display options of destinations. Stored values must never change.
const DestDisplayOptionAlways = "always"

var AllowedDestDisplayOptions = []string{DestDisplayOptionAlways}

// dictSchemaVersion is the schema version of the serialized sub-objects of an adventure.
const dictSchemaVersion = 1

// EntryPoint is an activity learners may start the adventure with.
type EntryPoint struct {
	ActivityID    string        `json:"activity_id" yaml:"activity_id"`
	ActivityType  activity.Type `json:"activity_type" yaml:"activity_type"`
	SchemaVersion int           `json:"schema_version" yaml:"schema_version"`
}

func NewEntryPoint(t activity.Type, id string) EntryPoint {
	return EntryPoint{ActivityID: id, ActivityType: t, SchemaVersion: dictSchemaVersion}
}

func (ep EntryPoint) String() string {
	return fmt.Sprintf("(%s, %s)", ep.ActivityType, ep.ActivityID)
}

func (ep EntryPoint) Ref() activity.Ref {
	return activity.Ref{Type: ep.ActivityType, ID: ep.ActivityID}
}

func (ep EntryPoint) Validate() error {
	if err := validateActivityRef(ep.ActivityType, ep.ActivityID); err != nil {
		return err
	}
	return nil
}

// DestinationSpec is a destination suggested at the end of an activity, with the condition to offer it.
type DestinationSpec struct {
	ActivityID    string        `json:"activity_id" yaml:"activity_id"`
	ActivityType  activity.Type `json:"activity_type" yaml:"activity_type"`
	DisplayOption string        `json:"display_option" yaml:"display_option"`
	SchemaVersion int           `json:"schema_version" yaml:"schema_version"`
}

func NewDestinationSpec(t activity.Type, id, displayOption string) DestinationSpec {
	return DestinationSpec{
		ActivityID:    id,
		ActivityType:  t,
		DisplayOption: displayOption,
		SchemaVersion: dictSchemaVersion,
	}
}

func (ds DestinationSpec) String() string {
	return fmt.Sprintf("(%s, %s, %s)", ds.ActivityType, ds.ActivityID, ds.DisplayOption)
}

func (ds DestinationSpec) Validate() error {
	if err := validateActivityRef(ds.ActivityType, ds.ActivityID); err != nil {
		return err
	}
	for _, opt := range AllowedDestDisplayOptions {
		if ds.DisplayOption == opt {
			return nil
		}
	}
	return core.NewValidationErrorf("Unrecognized display option: %s", ds.DisplayOption)
}

// ActivitySpec describes one activity of an adventure: where learners may go once it is completed.
type ActivitySpec struct {
	DestinationSpecs []DestinationSpec `json:"destination_specs" yaml:"destination_specs"`
	SchemaVersion    int               `json:"schema_version" yaml:"schema_version"`
}

func NewActivitySpec(dests ...DestinationSpec) ActivitySpec {
	if dests == nil {
		dests = []DestinationSpec{}
	}
	return ActivitySpec{DestinationSpecs: dests, SchemaVersion: dictSchemaVersion}
}

func (as *ActivitySpec) UpdateDestinationSpecs(dests []DestinationSpec) {
	as.DestinationSpecs = dests
}

func (as ActivitySpec) Validate() error {
	for _, ds := range as.DestinationSpecs {
		if err := ds.Validate(); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(as.DestinationSpecs))
	for _, ds := range as.DestinationSpecs {
		seen[string(ds.ActivityType)+":"+ds.ActivityID] = struct{}{}
	}
	if len(seen) < len(as.DestinationSpecs) {
		return core.NewValidationErrorf(
			"Some destinations were duplicated. The full list of destination_specs supplied is %s",
			listString(as.DestinationSpecs),
		)
	}
	return nil
}

// Specification maps every activity of an adventure, by type and id, to its ActivitySpec.
type Specification struct {
	Adventures    map[string]ActivitySpec `json:"adventures" yaml:"adventures"`
	Explorations  map[string]ActivitySpec `json:"explorations" yaml:"explorations"`
	SchemaVersion int                     `json:"schema_version" yaml:"schema_version"`
}

func NewSpecification() Specification {
	return Specification{
		Adventures:    make(map[string]ActivitySpec),
		Explorations:  make(map[string]ActivitySpec),
		SchemaVersion: dictSchemaVersion,
	}
}

func (s Specification) specs(t activity.Type) (map[string]ActivitySpec, bool) {
	switch t {
	case activity.TypeExploration:
		return s.Explorations, true
	case activity.TypeAdventure:
		return s.Adventures, true
	}
	return nil, false
}

func (s *Specification) add(t activity.Type, id string) error {
	if s.Explorations == nil || s.Adventures == nil {
		empty := NewSpecification()
		if s.Explorations == nil {
			s.Explorations = empty.Explorations
		}
		if s.Adventures == nil {
			s.Adventures = empty.Adventures
		}
	}
	specs, ok := s.specs(t)
	if !ok {
		return core.NewValidationErrorf("Unrecognized activity type: %s", t)
	}
	if _, exists := specs[id]; exists {
		return core.NewValidationErrorf("Tried to add %s with id %s to adventure spec, when it already exists.", t, id)
	}
	specs[id] = NewActivitySpec()
	return nil
}

func (s *Specification) remove(t activity.Type, id string) error {
	specs, ok := s.specs(t)
	if !ok {
		return core.NewValidationErrorf("Unrecognized activity type: %s", t)
	}
	if _, exists := specs[id]; !exists {
		return core.NewValidationErrorf("Could not find %s id %s in adventure spec.", t, id)
	}
	delete(specs, id)
	return nil
}

func (s *Specification) AddExploration(id string) error    { return s.add(activity.TypeExploration, id) }
func (s *Specification) AddAdventure(id string) error      { return s.add(activity.TypeAdventure, id) }
func (s *Specification) DeleteExploration(id string) error { return s.remove(activity.TypeExploration, id) }
func (s *Specification) DeleteAdventure(id string) error   { return s.remove(activity.TypeAdventure, id) }

// Contains reports whether the specification includes the given activity.
func (s Specification) Contains(t activity.Type, id string) bool {
	specs, ok := s.specs(t)
	if !ok {
		return false
	}
	_, exists := specs[id]
	return exists
}

// Get returns the ActivitySpec of an activity.
func (s Specification) Get(t activity.Type, id string) (ActivitySpec, bool) {
	specs, _ := s.specs(t)
	as, ok := specs[id]
	return as, ok
}

// Refs returns every activity of the specification, sorted by type then id.
func (s Specification) Refs() []activity.Ref {
	refs := make([]activity.Ref, 0, len(s.Explorations)+len(s.Adventures))
	for _, t := range activity.Types {
		specs, _ := s.specs(t)
		for _, id := range sortedKeys(specs) {
			refs = append(refs, activity.Ref{Type: t, ID: id})
		}
	}
	return refs
}

func (s Specification) Validate() error {
	for _, t := range activity.Types {
		specs, _ := s.specs(t)
		for _, id := range sortedKeys(specs) {
			if id == "" {
				return core.NewValidationErrorf("Expected keys of %s_specs to be non-empty strings", t)
			}
			if err := specs[id].Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Adventure is a graph of explorations (and, some day, adventures) learners move through.
type Adventure struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Category      string        `json:"category"`
	Objective     string        `json:"objective"`
	LanguageCode  string        `json:"language_code"`
	Blurb         string        `json:"blurb"`
	EntryPoints   []EntryPoint  `json:"entry_points"`
	Specification Specification `json:"specification"`
}

// CreateDefault returns an empty adventure. An empty languageCode means the default language.
func CreateDefault(id, title, category, objective, languageCode string) Adventure {
	if languageCode == "" {
		languageCode = activity.DefaultLanguageCode
	}
	return Adventure{
		ID:            id,
		Title:         title,
		Category:      category,
		Objective:     objective,
		LanguageCode:  languageCode,
		EntryPoints:   []EntryPoint{},
		Specification: NewSpecification(),
	}
}

// Validate checks the adventure before it is committed, failing on the first broken invariant.
func (a Adventure) Validate() error {
	if err := activity.RequireValidName(a.Title, "the adventure title"); err != nil {
		return err
	}
	if err := activity.RequireValidName(a.Category, "the adventure category"); err != nil {
		return err
	}

	if !activity.IsSupportedLanguage(a.LanguageCode) {
		return core.NewValidationErrorf("Invalid language_code: %s", a.LanguageCode)
	}

	seen := make(map[string]struct{}, len(a.EntryPoints))
	for _, ep := range a.EntryPoints {
		seen[string(ep.ActivityType)+":"+ep.ActivityID] = struct{}{}
	}
	if len(seen) < len(a.EntryPoints) {
		return core.NewValidationErrorf(
			"Some entry points were duplicated. The full list of entry points supplied is %s",
			listString(a.EntryPoints),
		)
	}

	for _, ep := range a.EntryPoints {
		if err := ep.Validate(); err != nil {
			return err
		}
		if !a.Specification.Contains(ep.ActivityType, ep.ActivityID) {
			return core.NewValidationErrorf(
				"Could not find entry_point (%s, %s) in the specification for adventure %s",
				ep.ActivityType, ep.ActivityID, a.ID,
			)
		}
	}

	if err := a.Specification.Validate(); err != nil {
		return err
	}
	return a.validateNoNestedAdventures()
}

func (a Adventure) validateNoNestedAdventures() error {
	nested := len(a.Specification.Adventures) > 0
	for _, as := range a.Specification.Explorations {
		for _, ds := range as.DestinationSpecs {
			nested = nested || ds.ActivityType == activity.TypeAdventure
		}
	}
	if nested {
		return core.NewValidationErrorf("Adventures within an adventure are not currently supported.")
	}
	return nil
}

// AddEntryPoint does not check that the activity is in the specification; Validate does.
func (a *Adventure) AddEntryPoint(t activity.Type, id string) error {
	for _, ep := range a.EntryPoints {
		if ep.ActivityType == t && ep.ActivityID == id {
			return core.NewValidationErrorf("Entry point (%s, %s) already exists.", t, id)
		}
	}
	a.EntryPoints = append(a.EntryPoints, NewEntryPoint(t, id))
	return nil
}

// DeleteEntryPoint removes an entry point. A missing one is an error only if strict.
func (a *Adventure) DeleteEntryPoint(t activity.Type, id string, strict bool) error {
	kept := make([]EntryPoint, 0, len(a.EntryPoints))
	for _, ep := range a.EntryPoints {
		if ep.ActivityType != t || ep.ActivityID != id {
			kept = append(kept, ep)
		}
	}
	if strict && len(kept) == len(a.EntryPoints) {
		return core.NewValidationErrorf("Could not find entry point (%s, %s).", t, id)
	}
	a.EntryPoints = kept
	return nil
}

func (a *Adventure) AddActivity(t activity.Type, id string) error {
	return a.Specification.add(t, id)
}

// DeleteActivity removes an activity from the specification, and from the entry points if it is one.
func (a *Adventure) DeleteActivity(t activity.Type, id string) error {
	if err := a.Specification.remove(t, id); err != nil {
		return err
	}
	return a.DeleteEntryPoint(t, id, false)
}

func (a *Adventure) UpdateDestinationSpecs(t activity.Type, id string, dests []DestinationSpec) error {
	specs, ok := a.Specification.specs(t)
	if !ok {
		return core.NewValidationErrorf("Unrecognized activity type: %s", t)
	}
	as, exists := specs[id]
	if !exists {
		return core.NewValidationErrorf("Could not find %s id %s in adventure spec.", t, id)
	}
	as.UpdateDestinationSpecs(dests)
	specs[id] = as
	return nil
}

func (a Adventure) NumActivities() int {
	return len(a.Specification.Explorations) + len(a.Specification.Adventures)
}

func validateActivityRef(t activity.Type, id string) error {
	if !t.Valid() {
		return core.NewValidationErrorf("Unrecognized activity type: %s", t)
	}
	if id == "" {
		return core.NewValidationErrorf("Expected activity id to be a non-empty string")
	}
	return nil
}

func sortedKeys(m map[string]ActivitySpec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func listString[T fmt.Stringer](items []T) string {
	strs := make([]string, len(items))
	for i, item := range items {
		strs[i] = item.String()
	}
	return "[" + strings.Join(strs, ", ") + "]"
}
