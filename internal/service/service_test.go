package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iconic-app/iconic/internal/access"
	"github.com/iconic-app/iconic/internal/apperr"
	"github.com/iconic-app/iconic/internal/matchmaking"
	"github.com/iconic-app/iconic/internal/model"
	"github.com/iconic-app/iconic/internal/repository"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store *repository.MemoryStore
	clock *clock

	events        *EventService
	participation *ParticipationService
	checkins      *CheckinService
	live          *LiveEventService
	match         *MatchmakingService
	polls         *PollService
	users         *UserService
	chat          *ChatService
	photos        *PhotoService
	oracle        *fakeOracle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	shuffler, err := matchmaking.NewShuffler(42)
	if err != nil {
		t.Fatalf("NewShuffler: %v", err)
	}
	f := &fixture{
		store:  repository.NewMemoryStore(),
		clock:  &clock{now: t0},
		oracle: &fakeOracle{configured: true},
	}
	opts := []Option{WithClock(f.clock.Now)}
	f.events = NewEventService(f.store, opts...)
	f.participation = NewParticipationService(f.store, opts...)
	f.checkins = NewCheckinService(f.store, CheckinConfig{Freshness: DefaultCheckinFreshness, Cooldown: DefaultCheckinCooldown}, opts...)
	f.live = NewLiveEventService(f.store, opts...)
	f.match = NewMatchmakingService(f.store, shuffler, opts...)
	f.polls = NewPollService(f.store, opts...)
	f.users = NewUserService(f.store, f.oracle, DefaultMembershipTTL, opts...)
	f.chat = NewChatService(f.store, shuffler, opts...)
	f.photos = NewPhotoService(f.store, opts...)
	return f
}

// user stores a user and returns its actor.
func (f *fixture) user(t *testing.T, id string, role model.Role, mods ...func(*model.User)) access.Actor {
	t.Helper()
	u := model.User{
		ID:                   id,
		Email:                id + "@example.com",
		FullName:             "Full " + id,
		Nickname:             id,
		Role:                 role,
		ShowProfileToIconics: true,
		CreatedAt:            f.clock.Now(),
	}
	for _, m := range mods {
		m(&u)
	}
	err := f.store.Tx(context.Background(), func(q repository.Queries) error {
		return q.CreateUser(context.Background(), u)
	})
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return access.ActorFor(u, f.clock.Now())
}

func (f *fixture) crowd(t *testing.T, n int) []access.Actor {
	t.Helper()
	out := make([]access.Actor, n)
	for i := range out {
		out[i] = f.user(t, fmt.Sprintf("u%02d", i), model.RoleUser)
	}
	return out
}

func iconicUntil(until time.Time) func(*model.User) {
	return func(u *model.User) {
		u.IsIconic = true
		u.IconicExpiresAt = &until
	}
}

func public(u *model.User) { u.ShowPublicProfile = true }

func (f *fixture) event(t *testing.T, owner access.Actor, capacity int, mods ...func(*model.CreateEventRequest)) model.Event {
	t.Helper()
	req := model.CreateEventRequest{
		Title:        "Launch night",
		Location:     "Hall A",
		IsPublic:     true,
		MaxAttendees: capacity,
		StartAt:      f.clock.Now(),
	}
	for _, m := range mods {
		m(&req)
	}
	e, err := f.events.Create(context.Background(), owner, req)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func (f *fixture) join(t *testing.T, actor access.Actor, eventID string) model.Participation {
	t.Helper()
	p, err := f.participation.Join(context.Background(), actor, eventID)
	if err != nil {
		t.Fatalf("join %s: %v", actor.UserID, err)
	}
	return p
}

func (f *fixture) getEvent(t *testing.T, id string) model.Event {
	t.Helper()
	var e model.Event
	err := f.store.View(context.Background(), func(q repository.Queries) error {
		var err error
		e, err = q.GetEvent(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	return e
}

func wantErr(t *testing.T, got error, want *apperr.Error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Fatalf("err=%v (code %q) want code %q", got, apperr.CodeOf(got), want.Code)
	}
}

func TestFailWrapsUnknownErrors(t *testing.T) {
	t.Parallel()

	if err := fail("op", nil); err != nil {
		t.Fatalf("fail(nil)=%v want nil", err)
	}
	if err := fail("op", ErrSoldOut); !errors.Is(err, ErrSoldOut) {
		t.Fatalf("domain error not passed through: %v", err)
	}
	boom := errors.New("boom")
	err := fail("op", boom)
	if apperr.KindOf(err) != apperr.KindInternal || !errors.Is(err, boom) {
		t.Fatalf("fail(boom)=%v kind %q", err, apperr.KindOf(err))
	}
	if err := notFound("op", repository.ErrNotFound, ErrEventNotFound); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("notFound mapped to %v", err)
	}
}

func TestTrimmed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		lo, hi int
		want   string
		ok     bool
	}{
		{"  hello ", 3, 10, "hello", true},
		{"hi", 3, 10, "", false},
		{"", 0, 10, "", true},
		{"ééé", 3, 3, "ééé", true},
		{"abcdef", 0, 5, "", false},
	}
	for _, tt := range tests {
		got, err := trimmed(tt.in, tt.lo, tt.hi, "field")
		if (err == nil) != tt.ok {
			t.Fatalf("trimmed(%q) err=%v want ok=%v", tt.in, err, tt.ok)
		}
		if got != tt.want {
			t.Fatalf("trimmed(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewTokenIsUnique(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for range 100 {
		tok, err := newToken()
		if err != nil {
			t.Fatalf("newToken: %v", err)
		}
		if len(tok) != 43 {
			t.Fatalf("token length %d want 43", len(tok))
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}
