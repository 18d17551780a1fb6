// Package access holds the authorization predicates and the profile
// visibility filter. Every "owner or admin" style rule is expressed here once.
package access

import (
	"time"

	"github.com/iconic-app/iconic/internal/model"
)

// PrivateNickname replaces the handle in a redacted profile.
const PrivateNickname = "Private profile"

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   model.Role
	Iconic bool // result of model.User.Elevated when the actor was resolved
}

// ActorFor builds the Actor view of a stored user at now.
func ActorFor(u model.User, now time.Time) Actor {
	return Actor{UserID: u.ID, Role: u.Role, Iconic: u.Elevated(now)}
}

// IsAdmin reports whether the actor has the administrator role.
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// CanScan reports whether the actor may redeem check-in tokens.
func (a Actor) CanScan() bool {
	return a.Role == model.RoleAdmin || a.Role == model.RoleScanner
}

// Elevated reports whether the actor holds the ICONIC tier.
func (a Actor) Elevated() bool { return a.Iconic }

// OwnsEvent reports whether the actor may manage the event: owner or admin.
func OwnsEvent(a Actor, e model.Event) bool {
	return a.IsAdmin() || (a.UserID != "" && a.UserID == e.OwnerID)
}

// SelfOrAdmin reports whether the actor is userID or an administrator.
func SelfOrAdmin(a Actor, userID string) bool {
	return a.IsAdmin() || (a.UserID != "" && a.UserID == userID)
}

// CanJoin reports whether the user's tier admits them to the event. It uses
// the same predicate as ActorFor.
func CanJoin(u model.User, e model.Event, now time.Time) bool {
	return !e.IsExclusive || u.Elevated(now)
}

// Visible reports whether viewer may see subject's full profile.
// Administrators and the subject themself always can.
func Visible(subject model.User, viewer Actor) bool {
	return viewer.IsAdmin() ||
		viewer.UserID == subject.ID ||
		subject.ShowPublicProfile ||
		(subject.ShowProfileToIconics && viewer.Elevated())
}

// Project returns the projection of subject visible to viewer.
func Project(subject model.User, viewer Actor) model.Profile {
	if !Visible(subject, viewer) {
		return model.Profile{
			ID:       subject.ID,
			Nickname: PrivateNickname,
			IsIconic: subject.IsIconic,
		}
	}

	p := model.Profile{
		ID:       subject.ID,
		FullName: strPtr(subject.FullName),
		Nickname: subject.Nickname,
		IsIconic: subject.IsIconic,
	}
	if subject.Bio != "" {
		p.Bio = strPtr(subject.Bio)
	}
	if subject.ProfilePictureURL != "" {
		p.ProfilePictureURL = strPtr(subject.ProfilePictureURL)
	}
	return p
}

func strPtr(s string) *string { return &s }
