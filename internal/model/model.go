// Package model defines the core domain types for the ICONIC event platform.
package model

import "time"

// Role is the platform role attached to a user account.
type Role string

const (
	RoleUser    Role = "user"
	RoleIconic  Role = "iconic"
	RoleAdmin   Role = "admin"
	RoleScanner Role = "scanner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleIconic, RoleAdmin, RoleScanner:
		return true
	}
	return false
}

// User is a local account mirrored from the external identity provider.
type User struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	FullName             string     `json:"full_name"`
	Nickname             string     `json:"nickname"`
	Bio                  string     `json:"bio"`
	ProfilePictureURL    string     `json:"profile_picture_url"`
	Role                 Role       `json:"role"`
	IsIconic             bool       `json:"is_iconic"`
	IconicExpiresAt      *time.Time `json:"iconic_expires_at,omitempty"`
	ShowPublicProfile    bool       `json:"show_public_profile"`
	ShowProfileToIconics bool       `json:"show_profile_to_iconics"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Elevated reports whether the user holds the ICONIC tier at now: the
// iconic role, or an unexpired membership.
func (u *User) Elevated(now time.Time) bool {
	if u.Role == RoleIconic {
		return true
	}
	if !u.IsIconic {
		return false
	}
	return u.IconicExpiresAt == nil || now.Before(*u.IconicExpiresAt)
}

// Event is an RSVP-able event created by an owner.
type Event struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	Category         string     `json:"category"`
	IsExclusive      bool       `json:"is_exclusive"`
	IsPublic         bool       `json:"is_public"`
	MaxAttendees     int        `json:"max_attendees"`
	CurrentAttendees int        `json:"current_attendees"`
	StartAt          time.Time  `json:"start_at"`
	EndAt            *time.Time `json:"end_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Remaining returns the number of available seats.
func (e *Event) Remaining() int {
	return e.MaxAttendees - e.CurrentAttendees
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return e.CurrentAttendees >= e.MaxAttendees
}

// InProgress reports whether now falls inside the event's time bounds.
func (e *Event) InProgress(now time.Time) bool {
	if now.Before(e.StartAt) {
		return false
	}
	return e.EndAt == nil || !now.After(*e.EndAt)
}

// ParticipationStatus is the RSVP state of a participation.
type ParticipationStatus string

const (
	ParticipationConfirmed ParticipationStatus = "confirmed"
	ParticipationCancelled ParticipationStatus = "cancelled"
)

// Participation ties a user to an event.
type Participation struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	EventID     string              `json:"event_id"`
	Status      ParticipationStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty"`
}

// Confirmed reports whether the participation counts against capacity.
func (p *Participation) Confirmed() bool {
	return p.Status == ParticipationConfirmed
}

// CheckinStatus is the lifecycle state of a QR check-in token.
//
// CheckinPending is the only "not yet redeemed" state; expiry is derived from
// IssuedAt at redemption time and never stored.
type CheckinStatus string

const (
	CheckinPending    CheckinStatus = "pending"
	CheckinRedeemed   CheckinStatus = "redeemed"
	CheckinSuperseded CheckinStatus = "superseded"
)

// Checkin is one QR token lifecycle for a (user, event) pair.
type Checkin struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	EventID    string        `json:"event_id"`
	Token      string        `json:"qr_token"`
	Status     CheckinStatus `json:"status"`
	IssuedAt   time.Time     `json:"issued_at"`
	RedeemedAt *time.Time    `json:"redeemed_at,omitempty"`
	RedeemedBy *string       `json:"redeemed_by,omitempty"`
}

// Pending reports whether the token has not been redeemed or superseded.
func (c *Checkin) Pending() bool { return c.Status == CheckinPending }

// Redeemed reports whether the token has been scanned.
func (c *Checkin) Redeemed() bool { return c.Status == CheckinRedeemed }

// ExpiredAt reports whether a pending token is past the freshness window at now.
func (c *Checkin) ExpiredAt(now time.Time, freshness time.Duration) bool {
	return now.Sub(c.IssuedAt) >= freshness
}

// LiveEventStatus is the state of an in-event activity.
type LiveEventStatus string

const (
	LiveEventCreated LiveEventStatus = "created"
	LiveEventActive  LiveEventStatus = "active"
	LiveEventEnded   LiveEventStatus = "ended"
)

// LiveEvent is an in-event activity container (polls, matchmaking).
type LiveEvent struct {
	ID         string          `json:"id"`
	EventID    string          `json:"event_id"`
	Title      string          `json:"title"`
	RequireQR  bool            `json:"require_qr"`
	Status     LiveEventStatus `json:"status"`
	MatchRound int             `json:"match_round"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Active reports whether the live event is running.
func (l *LiveEvent) Active() bool { return l.Status == LiveEventActive }

// MatchGroup is one group of a matchmaking round.
type MatchGroup struct {
	ID          string    `json:"id"`
	LiveEventID string    `json:"live_event_id"`
	Round       int       `json:"round"`
	Number      int       `json:"group_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// MatchParticipant places one user into one group.
type MatchParticipant struct {
	GroupID string `json:"match_group_id"`
	UserID  string `json:"user_id"`
}

// Poll is a question asked during a live event.
type Poll struct {
	ID          string       `json:"id"`
	LiveEventID string       `json:"live_event_id"`
	Question    string       `json:"question"`
	DurationSec int          `json:"duration_sec"`
	Order       int          `json:"order"`
	Options     []PollOption `json:"options,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// PollOption is one answer choice.
type PollOption struct {
	ID     string `json:"id"`
	PollID string `json:"poll_id"`
	Text   string `json:"text"`
}

// PollVote records one user's answer.
type PollVote struct {
	PollID    string    `json:"poll_id"`
	OptionID  string    `json:"option_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is a message in the ICONIC members chat.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Payment is a membership transaction that has been credited. A transaction
// hash is credited at most once.
type Payment struct {
	TxHash        string    `json:"tx_hash"`
	UserID        string    `json:"user_id"`
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
}

// MaxUserPhotos caps the gallery size; positions run 1..MaxUserPhotos.
const MaxUserPhotos = 6

// UserPhoto is one image in a user's profile gallery.
type UserPhoto struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	URL       string    `json:"url"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}
