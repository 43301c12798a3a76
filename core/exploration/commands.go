package exploration

import (
	"encoding/json"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/versioned"
)

// Edit commands accepted by Exploration.ApplyCommand.
const (
	CmdEditProperty      = "edit_exploration_property"
	CmdAddState          = "add_state"
	CmdRenameState       = "rename_state"
	CmdDeleteState       = "delete_state"
	CmdEditStateProperty = "edit_state_property"
)

// Exploration properties.
const (
	PropertyTitle         = "title"
	PropertyCategory      = "category"
	PropertyObjective     = "objective"
	PropertyLanguageCode  = "language_code"
	PropertySkillTags     = "skill_tags"
	PropertyAuthorNotes   = "author_notes"
	PropertyDefaultSkin   = "default_skin"
	PropertyInitStateName = "init_state_name"
)

// State properties.
const (
	StatePropertyContent        = "content"
	StatePropertyInteractionID  = "interaction_id"
	StatePropertyAnswerGroups   = "answer_groups"
	StatePropertyDefaultOutcome = "default_outcome"
)

// ApplyCommand applies one edit command in place and records the replaced value in cmd.OldValue.
func (e *Exploration) ApplyCommand(cmd *versioned.Command) error {
	switch cmd.Cmd {
	case CmdEditProperty:
		return e.editProperty(cmd)
	case CmdAddState:
		return e.AddState(cmd.StateName)
	case CmdRenameState:
		return e.RenameState(cmd.OldStateName, cmd.NewStateName)
	case CmdDeleteState:
		return e.DeleteState(cmd.StateName)
	case CmdEditStateProperty:
		return e.editStateProperty(cmd)
	}
	return core.NewValidationErrorf("Invalid change_dict: %s", cmd.Cmd)
}

func (e *Exploration) editProperty(cmd *versioned.Command) error {
	if cmd.PropertyName == PropertySkillTags {
		var tags []string
		if err := cmd.DecodeNewValue(&tags); err != nil {
			return err
		}
		cmd.OldValue, _ = json.Marshal(e.SkillTags)
		e.SkillTags = tags
		return nil
	}

	var field *string
	switch cmd.PropertyName {
	case PropertyTitle:
		field = &e.Title
	case PropertyCategory:
		field = &e.Category
	case PropertyObjective:
		field = &e.Objective
	case PropertyLanguageCode:
		field = &e.LanguageCode
	case PropertyAuthorNotes:
		field = &e.AuthorNotes
	case PropertyDefaultSkin:
		field = &e.DefaultSkin
	case PropertyInitStateName:
		field = &e.InitStateName
	default:
		return core.NewValidationErrorf("Invalid exploration property: %s", cmd.PropertyName)
	}

	var value string
	if err := cmd.DecodeNewValue(&value); err != nil {
		return core.NewValidationErrorf("Expected %s to be a string, received %s", cmd.PropertyName, string(cmd.NewValue))
	}
	cmd.OldValue, _ = json.Marshal(*field)
	*field = value
	return nil
}

func (e *Exploration) editStateProperty(cmd *versioned.Command) error {
	s, err := e.state(cmd.StateName)
	if err != nil {
		return err
	}

	switch cmd.PropertyName {
	case StatePropertyContent:
		cmd.OldValue, _ = json.Marshal(s.Content)
		err = cmd.DecodeNewValue(&s.Content)
	case StatePropertyInteractionID:
		cmd.OldValue, _ = json.Marshal(s.Interaction.ID)
		err = cmd.DecodeNewValue(&s.Interaction.ID)
	case StatePropertyAnswerGroups:
		cmd.OldValue, _ = json.Marshal(s.Interaction.AnswerGroups)
		var groups []AnswerGroup
		if err = cmd.DecodeNewValue(&groups); err == nil {
			if groups == nil {
				groups = []AnswerGroup{}
			}
			s.Interaction.AnswerGroups = groups
		}
	case StatePropertyDefaultOutcome:
		cmd.OldValue, _ = json.Marshal(s.Interaction.DefaultOutcome)
		var out *Outcome
		if err = cmd.DecodeNewValue(&out); err == nil {
			s.Interaction.DefaultOutcome = out
		}
	default:
		return core.NewValidationErrorf("Invalid state property: %s", cmd.PropertyName)
	}
	if err != nil {
		return err
	}
	e.States[cmd.StateName] = s
	return nil
}
