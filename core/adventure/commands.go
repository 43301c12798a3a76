package adventure

import (
	"encoding/json"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/versioned"
)

// Edit commands accepted by Adventure.ApplyCommand.
const (
	CmdEditProperty           = "edit_adventure_property"
	CmdAddActivity            = "add_activity"
	CmdDeleteActivity         = "delete_activity"
	CmdAddEntryPoint          = "add_entry_point"
	CmdDeleteEntryPoint       = "delete_entry_point"
	CmdUpdateDestinationSpecs = "update_destination_specs"
)

// Editable properties of an adventure.
const (
	PropertyTitle        = "title"
	PropertyCategory     = "category"
	PropertyObjective    = "objective"
	PropertyLanguageCode = "language_code"
	PropertyBlurb        = "blurb"
)

// ApplyCommand applies one edit command in place. It may leave the adventure invalid;
// the commit validates the result.
func (a *Adventure) ApplyCommand(cmd *versioned.Command) error {
	t := activity.Type(cmd.ActivityType)

	switch cmd.Cmd {
	case CmdEditProperty:
		return a.editProperty(cmd)
	case CmdAddActivity:
		return a.AddActivity(t, cmd.ActivityID)
	case CmdDeleteActivity:
		return a.DeleteActivity(t, cmd.ActivityID)
	case CmdAddEntryPoint:
		return a.AddEntryPoint(t, cmd.ActivityID)
	case CmdDeleteEntryPoint:
		return a.DeleteEntryPoint(t, cmd.ActivityID, true)
	case CmdUpdateDestinationSpecs:
		var dests []DestinationSpec
		if err := cmd.DecodeNewValue(&dests); err != nil {
			return err
		}
		for i := range dests {
			dests[i].SchemaVersion = dictSchemaVersion
		}
		return a.UpdateDestinationSpecs(t, cmd.ActivityID, dests)
	}
	return core.NewValidationErrorf("Invalid change_dict: %s", cmd.Cmd)
}

func (a *Adventure) editProperty(cmd *versioned.Command) error {
	var field *string
	switch cmd.PropertyName {
	case PropertyTitle:
		field = &a.Title
	case PropertyCategory:
		field = &a.Category
	case PropertyObjective:
		field = &a.Objective
	case PropertyLanguageCode:
		field = &a.LanguageCode
	case PropertyBlurb:
		field = &a.Blurb
	default:
		return core.NewValidationErrorf("Invalid adventure property: %s", cmd.PropertyName)
	}

	var value string
	if err := cmd.DecodeNewValue(&value); err != nil {
		return core.NewValidationErrorf("Expected %s to be a string, received %s", cmd.PropertyName, string(cmd.NewValue))
	}
	old, _ := json.Marshal(*field)
	cmd.OldValue = old
	*field = value
	return nil
}
