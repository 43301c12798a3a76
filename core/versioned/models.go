package versioned

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("entity")
	ErrVersionNotFound   = core.NewNotFoundError("entity version")
	ErrVersionConflict   = errors.New("version conflict: entity was modified concurrently")
	ErrRevertNotAllowed  = errors.New("reverting is not allowed for this entity")
	ErrEntityDeleted     = errors.New("entity is deleted")
	errInvalidTargetVers = "invalid revert target version %d: current version is %d"
)

// CommitType is the kind of a commit.
type CommitType string

const (
	CommitCreate CommitType = "create"
	CommitEdit   CommitType = "edit"
	CommitRevert CommitType = "revert"
	CommitDelete CommitType = "delete"
)

const (
	CmdCreateNew     = "create_new"
	CmdRevertVersion = "AUTO_revert_version_number"
	CmdDelete        = "delete"
)

// Content is the payload carried by an entity's snapshots.
type Content interface {
	Validate() error
}

// Command is one structured change of a commit.
// Only the fields relevant to Cmd are set; NewValue/OldValue hold JSON encoded property values.
type Command struct {
	Cmd          string          `json:"cmd"`
	PropertyName string          `json:"property_name,omitempty"`
	OldValue     json.RawMessage `json:"old_value,omitempty"`
	NewValue     json.RawMessage `json:"new_value,omitempty"`

	ActivityType string `json:"activity_type,omitempty"`
	ActivityID   string `json:"activity_id,omitempty"`

	StateName    string `json:"state_name,omitempty"`
	OldStateName string `json:"old_state_name,omitempty"`
	NewStateName string `json:"new_state_name,omitempty"`

	AssigneeID string `json:"assignee_id,omitempty"`
	OldRole    string `json:"old_role,omitempty"`
	NewRole    string `json:"new_role,omitempty"`
	OldStatus  string `json:"old_status,omitempty"`
	NewStatus  string `json:"new_status,omitempty"`

	VersionNumber int `json:"version_number,omitempty"`
}

// PropertyCommand builds an "edit property" command, JSON encoding the values.
func PropertyCommand(cmd, property string, oldValue, newValue interface{}) (Command, error) {
	oldB, err := json.Marshal(oldValue)
	if err != nil {
		return Command{}, errors.Wrap(err, "encoding old value")
	}
	newB, err := json.Marshal(newValue)
	if err != nil {
		return Command{}, errors.Wrap(err, "encoding new value")
	}
	return Command{Cmd: cmd, PropertyName: property, OldValue: oldB, NewValue: newB}, nil
}

// DecodeNewValue unmarshals the command's new value into v.
func (c Command) DecodeNewValue(v interface{}) error {
	if len(c.NewValue) == 0 {
		return core.NewValidationErrorf("Command %s misses new_value", c.Cmd)
	}
	if err := json.Unmarshal(c.NewValue, v); err != nil {
		return core.NewValidationErrorf("Invalid new_value for %s: %v", c.PropertyName, err)
	}
	return nil
}

// Entity is the current state of a versioned aggregate.
type Entity[T Content] struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Content   T         `json:"content"`
}

// SnapshotMetadata describes the commit that produced a version.
type SnapshotMetadata struct {
	Version       int        `json:"version"`
	CommitterID   string     `json:"committer_id"`
	CommitType    CommitType `json:"commit_type"`
	CommitMessage string     `json:"commit_message"`
	Commands      []Command  `json:"commit_cmds"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Record is the stored form of an entity: its current pointer with serialized content.
type Record struct {
	ID        string
	Version   int
	Deleted   bool
	Content   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is the immutable serialized state of an entity at one version.
type Snapshot struct {
	ID       string
	Version  int
	Content  []byte
	Metadata SnapshotMetadata
}
