package adventure

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
)

// CurrentSchemaVersion of the YAML representation. Backward-incompatible changes need a new
// version and a migration of the older files.
const CurrentSchemaVersion = 1

// yamlAdventure fixes the key order of exported files.
type yamlAdventure struct {
	Blurb         string        `yaml:"blurb"`
	Category      string        `yaml:"category"`
	EntryPoints   []EntryPoint  `yaml:"entry_points"`
	LanguageCode  string        `yaml:"language_code"`
	Objective     string        `yaml:"objective"`
	SchemaVersion int           `yaml:"schema_version"`
	Specification Specification `yaml:"specification"`
	Title         string        `yaml:"title"`
}

// ToYAML exports the adventure. The id is not part of the file.
func (a Adventure) ToYAML() ([]byte, error) {
	n := a.normalized()
	return yaml.Marshal(yamlAdventure{
		Blurb:         n.Blurb,
		Category:      n.Category,
		EntryPoints:   n.EntryPoints,
		LanguageCode:  n.LanguageCode,
		Objective:     n.Objective,
		SchemaVersion: CurrentSchemaVersion,
		Specification: n.Specification,
		Title:         n.Title,
	})
}

// normalized returns a copy with every sub-object at the current dict schema version.
func (a Adventure) normalized() Adventure {
	n := a
	n.EntryPoints = make([]EntryPoint, len(a.EntryPoints))
	for i, ep := range a.EntryPoints {
		n.EntryPoints[i] = NewEntryPoint(ep.ActivityType, ep.ActivityID)
	}
	n.Specification = NewSpecification()
	for _, ref := range a.Specification.Refs() {
		as, _ := a.Specification.Get(ref.Type, ref.ID)
		dests := make([]DestinationSpec, len(as.DestinationSpecs))
		for i, ds := range as.DestinationSpecs {
			dests[i] = NewDestinationSpec(ds.ActivityType, ds.ActivityID, ds.DisplayOption)
		}
		specs, _ := n.Specification.specs(ref.Type)
		specs[ref.ID] = NewActivitySpec(dests...)
	}
	return n
}

// FromYAML builds an adventure from an exported file. It does not validate the result:
// callers are expected to, and to make sure id is not already taken.
func FromYAML(id string, content []byte) (Adventure, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return Adventure{}, core.NewValidationErrorf(
			"Please ensure that you are uploading a YAML text file. The YAML parser returned the following error: %s", err,
		)
	}

	rawVersion, ok := doc["schema_version"]
	if !ok || rawVersion == nil {
		return Adventure{}, core.NewValidationErrorf("Invalid YAML file: no schema version specified.")
	}
	if version, ok := rawVersion.(int); !ok || version < 1 || version > CurrentSchemaVersion {
		return Adventure{}, core.NewValidationErrorf("Sorry, we can only process v1 YAML files at present.")
	}

	adv := Adventure{ID: id}
	fields := []struct {
		key  string
		dest *string
	}{
		{"title", &adv.Title},
		{"category", &adv.Category},
		{"objective", &adv.Objective},
		{"blurb", &adv.Blurb},
		{"language_code", &adv.LanguageCode},
	}
	for _, f := range fields {
		s, err := stringField(doc, f.key, f.key)
		if err != nil {
			return Adventure{}, err
		}
		*f.dest = s
	}

	rawEntryPoints, ok := doc["entry_points"].([]interface{})
	if !ok && doc["entry_points"] != nil {
		return Adventure{}, core.NewValidationErrorf("Expected entry_points to be a list, received %v", doc["entry_points"])
	}
	adv.EntryPoints = make([]EntryPoint, 0, len(rawEntryPoints))
	for _, raw := range rawEntryPoints {
		ep, err := entryPointFromDict(raw)
		if err != nil {
			return Adventure{}, err
		}
		adv.EntryPoints = append(adv.EntryPoints, ep)
	}

	spec, err := specificationFromDict(doc["specification"])
	if err != nil {
		return Adventure{}, err
	}
	adv.Specification = spec
	return adv, nil
}

func entryPointFromDict(raw interface{}) (EntryPoint, error) {
	dict, err := versionedDict(raw, "entry point")
	if err != nil {
		return EntryPoint{}, err
	}
	t, err := stringField(dict, "activity_type", "activity type")
	if err != nil {
		return EntryPoint{}, err
	}
	id, err := stringField(dict, "activity_id", "activity id")
	if err != nil {
		return EntryPoint{}, err
	}
	return NewEntryPoint(activity.Type(t), id), nil
}

func destinationSpecFromDict(raw interface{}) (DestinationSpec, error) {
	dict, err := versionedDict(raw, "destination")
	if err != nil {
		return DestinationSpec{}, err
	}
	t, err := stringField(dict, "activity_type", "activity type")
	if err != nil {
		return DestinationSpec{}, err
	}
	id, err := stringField(dict, "activity_id", "activity id")
	if err != nil {
		return DestinationSpec{}, err
	}
	opt, err := stringField(dict, "display_option", "display option")
	if err != nil {
		return DestinationSpec{}, err
	}
	return NewDestinationSpec(activity.Type(t), id, opt), nil
}

func activitySpecFromDict(raw interface{}) (ActivitySpec, error) {
	dict, err := versionedDict(raw, "activity")
	if err != nil {
		return ActivitySpec{}, err
	}
	rawDests, ok := dict["destination_specs"].([]interface{})
	if !ok && dict["destination_specs"] != nil {
		return ActivitySpec{}, core.NewValidationErrorf("Invalid destination_specs: %v", dict["destination_specs"])
	}
	dests := make([]DestinationSpec, 0, len(rawDests))
	for _, rd := range rawDests {
		ds, err := destinationSpecFromDict(rd)
		if err != nil {
			return ActivitySpec{}, err
		}
		dests = append(dests, ds)
	}
	return NewActivitySpec(dests...), nil
}

func specificationFromDict(raw interface{}) (Specification, error) {
	dict, err := versionedDict(raw, "adventure")
	if err != nil {
		return Specification{}, err
	}
	spec := NewSpecification()
	for _, t := range activity.Types {
		key := string(t) + "s"
		if dict[key] == nil {
			continue
		}
		activities, err := stringKeyed(dict[key], string(t))
		if err != nil {
			return Specification{}, err
		}
		specs, _ := spec.specs(t)
		for id, rawSpec := range activities {
			as, err := activitySpecFromDict(rawSpec)
			if err != nil {
				return Specification{}, err
			}
			specs[id] = as
		}
	}
	return spec, nil
}

// versionedDict checks that raw is a mapping at the current dict schema version.
func versionedDict(raw interface{}, what string) (map[string]interface{}, error) {
	dict, err := stringKeyed(raw, what)
	if err != nil {
		return nil, core.NewValidationErrorf("Invalid %s specification dict: %v", what, raw)
	}
	if v, ok := dict["schema_version"].(int); !ok || v != dictSchemaVersion {
		return nil, core.NewValidationErrorf("Invalid %s specification dict: %v", what, raw)
	}
	return dict, nil
}

func stringKeyed(raw interface{}, what string) (map[string]interface{}, error) {
	switch m := raw.(type) {
	case map[string]interface{}:
		return m, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, core.NewValidationErrorf("Expected keys of %s_specs to be strings, received %v", what, k)
			}
			out[ks] = v
		}
		return out, nil
	}
	return nil, core.NewValidationErrorf("Expected %s specs to be a dict, received %v", what, raw)
}

func stringField(dict map[string]interface{}, key, label string) (string, error) {
	raw, ok := dict[key]
	if !ok {
		return "", core.NewValidationErrorf("Invalid YAML file: %s is missing.", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", core.NewValidationErrorf("Expected %s to be a string, received %s", label, fmt.Sprint(raw))
	}
	return s, nil
}
