// Package repository is the persistence gateway for the ICONIC platform.
//
// All reads and writes go through Queries. A Store hands out Queries either
// for plain reads (View) or bound to a single atomic transaction (Tx); the
// capacity, check-in redemption and matchmaking writes always run under Tx
// or as one conditional statement.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/iconic-app/iconic/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness rule.
	ErrDuplicate = errors.New("duplicate row")

	// ErrNoCapacity is returned when a conditional attendee increment finds
	// the event full.
	ErrNoCapacity = errors.New("event has no remaining capacity")

	// ErrConditionFailed is returned when a conditional update matched no row.
	ErrConditionFailed = errors.New("conditional update matched no row")

	// ErrReadOnly is returned when a write is attempted inside View.
	ErrReadOnly = errors.New("write attempted in read-only view")
)

// Store owns the connection to the backing database.
type Store interface {
	// View runs fn with read-only Queries. Every write, and every ForUpdate
	// read, fails with ErrReadOnly on all implementations.
	View(ctx context.Context, fn func(Queries) error) error

	// Tx runs fn inside one transaction. Any error returned by fn rolls back
	// every write fn made.
	Tx(ctx context.Context, fn func(Queries) error) error

	Ping(ctx context.Context) error
	Close()
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	OwnerID    string
	PublicOnly bool
	IDs        []string
}

// ParticipationFilter narrows ListParticipations. Empty fields match all.
type ParticipationFilter struct {
	EventID string
	UserID  string
	Status  model.ParticipationStatus
}

// CheckinFilter narrows ListCheckins. Empty fields match all.
type CheckinFilter struct {
	EventID string
	UserID  string
	Status  model.CheckinStatus
}

// RedeemParams describes a conditional check-in redemption.
type RedeemParams struct {
	Token string
	By    string
	At    time.Time
	// IssuedAfter is the oldest issuance still inside the freshness window;
	// tokens issued at or before it are not redeemed.
	IssuedAfter time.Time
}

// Queries is the full set of gateway operations.
type Queries interface {
	// users
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	ListUsers(ctx context.Context, ids []string) ([]model.User, error)
	ListIconicUsers(ctx context.Context, now time.Time) ([]model.User, error)
	CreateUser(ctx context.Context, u model.User) error
	UpdateUser(ctx context.Context, u model.User) error

	// events
	CreateEvent(ctx context.Context, e model.Event) error
	GetEvent(ctx context.Context, id string) (model.Event, error)
	GetEventForUpdate(ctx context.Context, id string) (model.Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e model.Event) error
	DeleteEvent(ctx context.Context, id string) error
	IncrementAttendees(ctx context.Context, eventID string) error
	DecrementAttendees(ctx context.Context, eventID string) error

	// participations
	CreateParticipation(ctx context.Context, p model.Participation) error
	GetParticipation(ctx context.Context, id string) (model.Participation, error)
	GetParticipationForUpdate(ctx context.Context, id string) (model.Participation, error)
	FindParticipation(ctx context.Context, userID, eventID string) (model.Participation, error)
	UpdateParticipation(ctx context.Context, p model.Participation) error
	DeleteParticipation(ctx context.Context, id string) error
	ListParticipations(ctx context.Context, f ParticipationFilter) ([]model.Participation, error)

	// check-ins
	CreateCheckin(ctx context.Context, c model.Checkin) error
	GetCheckinByToken(ctx context.Context, token string) (model.Checkin, error)
	LatestCheckin(ctx context.Context, userID, eventID string, status model.CheckinStatus) (model.Checkin, error)
	RedeemCheckin(ctx context.Context, p RedeemParams) (model.Checkin, error)
	SupersedePendingCheckins(ctx context.Context, userID, eventID string) (int, error)
	ListCheckins(ctx context.Context, f CheckinFilter) ([]model.Checkin, error)
	DeleteCheckin(ctx context.Context, id string) error

	// live events
	CreateLiveEvent(ctx context.Context, l model.LiveEvent) error
	GetLiveEvent(ctx context.Context, id string) (model.LiveEvent, error)
	GetLiveEventForUpdate(ctx context.Context, id string) (model.LiveEvent, error)
	ListLiveEvents(ctx context.Context, eventID string) ([]model.LiveEvent, error)
	CountLiveEvents(ctx context.Context, eventIDs []string) (map[string]int, error)
	UpdateLiveEvent(ctx context.Context, l model.LiveEvent) error

	// matchmaking
	CreateMatchGroup(ctx context.Context, g model.MatchGroup) error
	CreateMatchParticipants(ctx context.Context, ps []model.MatchParticipant) error
	FindMatchGroupForUser(ctx context.Context, liveEventID string, round int, userID string) (model.MatchGroup, error)
	ListMatchGroups(ctx context.Context, liveEventID string, round int) ([]model.MatchGroup, error)
	ListMatchMembers(ctx context.Context, groupID string) ([]model.MatchParticipant, error)

	// polls
	CreatePoll(ctx context.Context, p model.Poll) error
	GetPoll(ctx context.Context, id string) (model.Poll, error)
	CreatePollVote(ctx context.Context, v model.PollVote) error
	CountPollVotes(ctx context.Context, pollID string) (map[string]int, error)

	// chat
	CreateChatMessage(ctx context.Context, m model.ChatMessage) error
	ListChatMessages(ctx context.Context, limit int) ([]model.ChatMessage, error)

	// payments
	ClaimWallet(ctx context.Context, wallet, userID string, at time.Time) (string, error)
	CreatePayment(ctx context.Context, p model.Payment) error

	// user photos
	CreateUserPhoto(ctx context.Context, p model.UserPhoto) error
	GetUserPhoto(ctx context.Context, id string) (model.UserPhoto, error)
	ListUserPhotos(ctx context.Context, userID string) ([]model.UserPhoto, error)
	UpdateUserPhoto(ctx context.Context, p model.UserPhoto) error
	DeleteUserPhoto(ctx context.Context, id string) error
}
