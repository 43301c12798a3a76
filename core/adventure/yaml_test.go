package adventure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
)

const sampleYAML = `blurb: Learn fractions
category: Mathematics
entry_points:
- activity_id: exp0
  activity_type: exploration
  schema_version: 1
language_code: en
objective: Add fractions
schema_version: 1
specification:
  adventures: {}
  explorations:
    exp0:
      destination_specs:
      - activity_id: exp1
        activity_type: exploration
        display_option: always
        schema_version: 1
      schema_version: 1
    exp1:
      destination_specs: []
      schema_version: 1
  schema_version: 1
title: Fractions
`

func TestAdventure_YAMLRoundTrip(t *testing.T) {
	a := validAdventure(t)
	a.Blurb = "A blurb"

	out, err := a.ToYAML()
	require.NoError(t, err)

	b, err := FromYAML("adv0", out)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NoError(t, b.Validate())

	again, err := b.ToYAML()
	require.NoError(t, err)
	assert.Equal(t, string(out), string(again))
}

func TestFromYAML(t *testing.T) {
	a, err := FromYAML("adv9", []byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "adv9", a.ID)
	assert.Equal(t, "Fractions", a.Title)
	assert.Equal(t, "Learn fractions", a.Blurb)
	assert.Equal(t, []EntryPoint{NewEntryPoint(exp, "exp0")}, a.EntryPoints)
	assert.Equal(t, 2, a.NumActivities())
	assert.NoError(t, a.Validate())
	assert.NoError(t, a.CheckPlayable())

	out, err := a.ToYAML()
	require.NoError(t, err)
	b, err := FromYAML("adv9", out)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "not yaml",
			content: "title: [unclosed",
			wantMsg: "Please ensure that you are uploading a YAML text file. The YAML parser returned the following error: ",
		},
		{
			name:    "no schema version",
			content: "title: Fractions\n",
			wantMsg: "Invalid YAML file: no schema version specified.",
		},
		{
			name:    "future schema version",
			content: "schema_version: 2\n",
			wantMsg: "Sorry, we can only process v1 YAML files at present.",
		},
		{
			name:    "title is not a string",
			content: "schema_version: 1\ntitle: [a, b]\n",
			wantMsg: "Expected title to be a string, received [a b]",
		},
		{
			name:    "missing key",
			content: "schema_version: 1\ntitle: T\ncategory: C\nobjective: O\nblurb: B\n",
			wantMsg: "Invalid YAML file: language_code is missing.",
		},
		{
			name: "entry point with other schema",
			content: "schema_version: 1\ntitle: T\ncategory: C\nobjective: O\nblurb: B\nlanguage_code: en\n" +
				"entry_points:\n- {activity_id: e, activity_type: exploration, schema_version: 3}\n",
			wantMsg: "Invalid entry point specification dict: ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromYAML("adv9", []byte(tt.content))
			require.Error(t, err)
			assert.True(t, core.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
