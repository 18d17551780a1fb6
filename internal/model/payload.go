package model

import "time"

// Profile is the projection of a user returned to other users.
// FullName and ProfilePictureURL are nil in the redacted projection.
type Profile struct {
	ID                string  `json:"id"`
	FullName          *string `json:"full_name,omitempty"`
	Nickname          string  `json:"nickname"`
	Bio               *string `json:"bio,omitempty"`
	IsIconic          bool    `json:"is_iconic"`
	ProfilePictureURL *string `json:"profile_picture_url"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Location     string     `json:"location"`
	Category     string     `json:"category"`
	IsExclusive  bool       `json:"is_exclusive"`
	IsPublic     bool       `json:"is_public"`
	MaxAttendees int        `json:"max_attendees"`
	StartAt      time.Time  `json:"start_at"`
	EndAt        *time.Time `json:"end_at,omitempty"`
}

// UpdateEventRequest carries the fields to change; nil means unchanged.
type UpdateEventRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Location     *string    `json:"location,omitempty"`
	Category     *string    `json:"category,omitempty"`
	IsExclusive  *bool      `json:"is_exclusive,omitempty"`
	IsPublic     *bool      `json:"is_public,omitempty"`
	MaxAttendees *int       `json:"max_attendees,omitempty"`
	StartAt      *time.Time `json:"start_at,omitempty"`
	EndAt        *time.Time `json:"end_at,omitempty"`
}

// EventView is an event annotated for the requesting user.
type EventView struct {
	Event
	IsParticipating bool   `json:"is_participating"`
	ParticipationID string `json:"participation_id,omitempty"`
	HasLiveEvents   bool   `json:"has_live_events"`
	InProgress      bool   `json:"in_progress"`
}

// JoinRequest is the payload for POST /event-participations.
type JoinRequest struct {
	EventID string `json:"event_id"`
}

// UpdateParticipationRequest is the payload for PATCH /event-participations/{id}.
type UpdateParticipationRequest struct {
	Status ParticipationStatus `json:"status"`
}

// GenerateCheckinRequest is the payload for POST /event-checkins/generate.
type GenerateCheckinRequest struct {
	EventID string `json:"event_id"`
}

// IssuedCheckin is returned to the attendee after generating a token.
type IssuedCheckin struct {
	Checkin
	ExpiresAt time.Time `json:"expires_at"`
	QRCodeURL string    `json:"qr_code_url"`
}

// ScanRequest is the payload for POST /event-checkins/scan.
type ScanRequest struct {
	Token string `json:"qr_token"`
}

// ScanResult is returned to the scanning agent.
type ScanResult struct {
	Checkin  Checkin `json:"checkin"`
	Attendee Profile `json:"attendee"`
}

// ManualCheckinRequest is the payload for POST /event-checkins/manual.
type ManualCheckinRequest struct {
	EventID string `json:"event_id"`
	Email   string `json:"email"`
}

// CreateLiveEventRequest is the payload for creating a live event.
type CreateLiveEventRequest struct {
	Title     string `json:"title"`
	RequireQR bool   `json:"require_qr"`
}

// StartMatchRequest is the payload for POST /live-events/{id}/match.
type StartMatchRequest struct {
	GroupSize int `json:"group_size"`
}

// MatchResult summarises a matchmaking run.
type MatchResult struct {
	Round      int `json:"round"`
	GroupCount int `json:"group_count"`
}

// MatchGroupView is one group of a round with its members.
type MatchGroupView struct {
	MatchGroup
	Members []Profile `json:"members"`
}

// WalletStatusRequest is the payload for POST /payment/check-status.
type WalletStatusRequest struct {
	WalletAddress string `json:"wallet_address"`
}

// WalletStatus reports on-chain membership for a wallet.
type WalletStatus struct {
	WalletAddress string `json:"wallet_address"`
	IsIconic      bool   `json:"is_iconic"`
}

// CheckedIn answers whether a user has a redeemed check-in.
type CheckedIn struct {
	CheckedIn bool `json:"checked_in"`
}

// CreatePollRequest is the payload for creating a poll.
type CreatePollRequest struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	DurationSec int      `json:"duration_sec"`
	Order       int      `json:"order"`
}

// VoteRequest is the payload for POST /polls/{id}/vote.
type VoteRequest struct {
	OptionID string `json:"option_id"`
}

// PollResults holds vote counts keyed by option.
type PollResults struct {
	PollID string            `json:"poll_id"`
	Counts []PollOptionCount `json:"counts"`
	Total  int               `json:"total"`
}

// PollOptionCount is the tally for one option.
type PollOptionCount struct {
	OptionID string `json:"option_id"`
	Text     string `json:"text"`
	Votes    int    `json:"votes"`
}

// UpdateProfileRequest carries profile fields to change; nil means unchanged.
type UpdateProfileRequest struct {
	FullName             *string `json:"full_name,omitempty"`
	Nickname             *string `json:"nickname,omitempty"`
	Bio                  *string `json:"bio,omitempty"`
	ProfilePictureURL    *string `json:"profile_picture_url,omitempty"`
	ShowPublicProfile    *bool   `json:"show_public_profile,omitempty"`
	ShowProfileToIconics *bool   `json:"show_profile_to_iconics,omitempty"`
}

// ConfirmPaymentRequest is the payload for POST /payment/confirm.
type ConfirmPaymentRequest struct {
	TxHash        string `json:"tx_hash"`
	WalletAddress string `json:"wallet_address"`
}

// PhotoRequest is the payload for POST /user-photos.
type PhotoRequest struct {
	URL string `json:"url"`
}

// UpdatePhotoRequest moves or replaces a gallery photo; nil means unchanged.
type UpdatePhotoRequest struct {
	URL      *string `json:"url,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// ScannedCheckin is a redeemed check-in joined with the attendee and the
// account that scanned it.
type ScannedCheckin struct {
	Checkin
	User    Profile  `json:"user"`
	Scanner *Profile `json:"scanner,omitempty"`
}

// ChatRequest is the payload for POST /iconic/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatEntry is a chat message joined with its author.
type ChatEntry struct {
	ChatMessage
	Nickname          string `json:"nickname"`
	FullName          string `json:"full_name"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// Ack is a plain acknowledgement body.
type Ack struct {
	Message string `json:"message"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the machine-readable code and advisory message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
