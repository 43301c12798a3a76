package rights

import (
	"time"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
)

// RoleNone is the "old role" of a user who had no role before an assignment.
const RoleNone = "none"

// Actor is whoever performs a rights-sensitive operation. The zero Actor is a guest.
type Actor struct {
	ID      string
	IsAdmin bool
}

func (a Actor) LoggedIn() bool { return a.ID != "" }

// Rights are the access rules of one activity. They are versioned like the activity itself.
type Rights struct {
	OwnerIDs          []string        `json:"owner_ids"`
	EditorIDs         []string        `json:"editor_ids"`
	ViewerIDs         []string        `json:"viewer_ids"`
	CommunityOwned    bool            `json:"community_owned"`
	ViewableIfPrivate bool            `json:"viewable_if_private"`
	Status            activity.Status `json:"status"`
	ClonedFrom        string          `json:"cloned_from,omitempty"`
	FirstPublishedAt  *time.Time      `json:"first_published_at,omitempty"`
}

// New returns the rights of a freshly created activity: private, owned by ownerID.
func New(ownerID string) Rights {
	return Rights{
		OwnerIDs:  []string{ownerID},
		EditorIDs: []string{},
		ViewerIDs: []string{},
		Status:    activity.StatusPrivate,
	}
}

func (r Rights) Validate() error {
	if !r.Status.Valid() {
		return core.NewValidationErrorf("Invalid activity status: %s", r.Status)
	}
	if r.CommunityOwned {
		if len(r.OwnerIDs) > 0 || len(r.EditorIDs) > 0 || len(r.ViewerIDs) > 0 {
			return core.NewValidationErrorf("Community-owned activities should have no owners, editors or viewers specified.")
		}
		if r.Status == activity.StatusPrivate {
			return core.NewValidationErrorf("Community-owned activities cannot be private.")
		}
	}
	if r.Status != activity.StatusPrivate && len(r.ViewerIDs) > 0 {
		return core.NewValidationErrorf("Public activities should have no viewers specified.")
	}

	if id, ok := firstCommon(r.OwnerIDs, r.EditorIDs); ok {
		return core.NewValidationErrorf("A user cannot be both an owner and an editor: %s", id)
	}
	if id, ok := firstCommon(r.OwnerIDs, r.ViewerIDs); ok {
		return core.NewValidationErrorf("A user cannot be both an owner and a viewer: %s", id)
	}
	if id, ok := firstCommon(r.EditorIDs, r.ViewerIDs); ok {
		return core.NewValidationErrorf("A user cannot be both an editor and a viewer: %s", id)
	}
	return nil
}

func (r Rights) IsOwner(userID string) bool  { return contains(r.OwnerIDs, userID) }
func (r Rights) IsEditor(userID string) bool { return contains(r.EditorIDs, userID) }
func (r Rights) IsViewer(userID string) bool { return contains(r.ViewerIDs, userID) }

// IsMember reports whether userID holds any role on the activity.
func (r Rights) IsMember(userID string) bool {
	return r.IsOwner(userID) || r.IsEditor(userID) || r.IsViewer(userID)
}

func (r Rights) IsPrivate() bool { return r.Status == activity.StatusPrivate }

// RoleOf returns the role userID holds, RoleNone if any.
func (r Rights) RoleOf(userID string) string {
	switch {
	case r.IsOwner(userID):
		return string(activity.RoleOwner)
	case r.IsEditor(userID):
		return string(activity.RoleEditor)
	case r.IsViewer(userID):
		return string(activity.RoleViewer)
	}
	return RoleNone
}

func (r Rights) CanView(a Actor) bool {
	if !r.IsPrivate() || r.ViewableIfPrivate || a.IsAdmin {
		return true
	}
	return a.LoggedIn() && r.IsMember(a.ID)
}

func (r Rights) CanEdit(a Actor) bool {
	if !a.LoggedIn() {
		return false
	}
	return r.CommunityOwned || a.IsAdmin || r.IsOwner(a.ID) || r.IsEditor(a.ID)
}

func (r Rights) CanDelete(a Actor) bool {
	if !a.LoggedIn() {
		return false
	}
	if r.IsPrivate() {
		return a.IsAdmin || r.IsOwner(a.ID)
	}
	return a.IsAdmin
}

func (r Rights) CanModifyRoles(a Actor) bool {
	if !a.LoggedIn() {
		return false
	}
	if a.IsAdmin {
		return true
	}
	return !r.CommunityOwned && r.IsOwner(a.ID)
}

func (r Rights) CanPublish(a Actor) bool {
	if !a.LoggedIn() || r.ClonedFrom != "" || r.Status != activity.StatusPrivate {
		return false
	}
	return a.IsAdmin || r.IsOwner(a.ID)
}

func (r Rights) CanUnpublish(a Actor) bool {
	return a.IsAdmin && r.Status == activity.StatusPublic
}

func (r Rights) CanPublicize(a Actor) bool {
	return a.IsAdmin && r.Status == activity.StatusPublic
}

func (r Rights) CanUnpublicize(a Actor) bool {
	return a.IsAdmin && r.Status == activity.StatusPublicized
}

func (r Rights) CanReleaseOwnership(a Actor) bool {
	if !a.LoggedIn() || r.IsPrivate() || r.CommunityOwned {
		return false
	}
	return a.IsAdmin || r.IsOwner(a.ID)
}

func contains(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, i := range ids {
		if i != id {
			out = append(out, i)
		}
	}
	return out
}

func firstCommon(a, b []string) (string, bool) {
	for _, id := range a {
		if contains(b, id) {
			return id, true
		}
	}
	return "", false
}
