package activity

import (
	"fmt"

	"github.com/trezcool/matembezi/core"
)

// Type is the kind of an authorable activity.
type Type string

const (
	TypeExploration Type = "exploration"
	TypeAdventure   Type = "adventure"
)

var Types = []Type{TypeExploration, TypeAdventure}

func (t Type) Valid() bool {
	return t == TypeExploration || t == TypeAdventure
}

// SummaryPrefix is the prefix of the summary id of an activity of this type.
func (t Type) SummaryPrefix() string {
	switch t {
	case TypeExploration:
		return "e"
	case TypeAdventure:
		return "a"
	}
	panic(fmt.Sprintf("activity: unrecognized activity type: %s", string(t)))
}

// RightsKind is the versioned entity kind storing the rights of activities of this type.
func (t Type) RightsKind() string {
	return string(t) + "_rights"
}

func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", core.NewValidationErrorf("Unrecognized activity type: %s", s)
	}
	return t, nil
}

// Status is the publication status of an activity.
type Status string

const (
	StatusPrivate    Status = "private"
	StatusPublic     Status = "public"
	StatusPublicized Status = "publicized"
)

func (s Status) Valid() bool {
	return s == StatusPrivate || s == StatusPublic || s == StatusPublicized
}

// Role is a user's role on an activity.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleEditor || r == RoleViewer
}

// Ref identifies an activity.
type Ref struct {
	Type Type   `json:"activity_type"`
	ID   string `json:"activity_id"`
}

func (r Ref) String() string {
	return string(r.Type) + ":" + r.ID
}

// SummaryID returns the id of the activity summary projection: "{e|a}:{activity_id}".
func (r Ref) SummaryID() string {
	return r.Type.SummaryPrefix() + ":" + r.ID
}

const (
	CommitMessageExplorationDeleted = "Exploration deleted."
	CommitMessageAdventureDeleted   = "Adventure deleted."
)

// DeletedCommitMessage is the commit message used when an activity is soft-deleted.
func DeletedCommitMessage(t Type) string {
	if t == TypeAdventure {
		return CommitMessageAdventureDeleted
	}
	return CommitMessageExplorationDeleted
}
