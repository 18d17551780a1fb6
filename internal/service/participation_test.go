package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iconic-app/iconic/internal/access"
	"github.com/iconic-app/iconic/internal/model"
	"github.com/iconic-app/iconic/internal/repository"
)

func TestJoinConcurrentNeverOverfills(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	owner := f.user(t, "owner", model.RoleUser)
	ev := f.event(t, owner, 5)
	crowd := f.crowd(t, 30)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		soldOut int
	)
	for _, a := range crowd {
		wg.Add(1)
		go func(a access.Actor) {
			defer wg.Done()
			_, err := f.participation.Join(context.Background(), a, ev.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrSoldOut):
				soldOut++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(a)
	}
	wg.Wait()

	if ok != 5 || soldOut != 25 {
		t.Fatalf("ok=%d soldOut=%d want 5/25", ok, soldOut)
	}
	if got := f.getEvent(t, ev.ID).CurrentAttendees; got != 5 {
		t.Fatalf("current_attendees=%d want 5", got)
	}
}

func TestJoinSingleSeat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleUser)
	alice := f.user(t, "alice", model.RoleUser)
	bob := f.user(t, "bob", model.RoleUser)
	ev := f.event(t, owner, 1)

	p := f.join(t, alice, ev.ID)
	_, err := f.participation.Join(ctx, bob, ev.ID)
	wantErr(t, err, ErrSoldOut)

	if _, err := f.participation.Cancel(ctx, alice, p.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.join(t, bob, ev.ID)
	if got := f.getEvent(t, ev.ID).CurrentAttendees; got != 1 {
		t.Fatalf("current_attendees=%d want 1", got)
	}
}

func TestJoinCancelJoinReusesParticipation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleUser)
	alice := f.user(t, "alice", model.RoleUser)
	ev := f.event(t, owner, 3)

	first := f.join(t, alice, ev.ID)
	_, err := f.participation.Join(ctx, alice, ev.ID)
	wantErr(t, err, ErrAlreadyJoined)

	cancelled, err := f.participation.Cancel(ctx, alice, first.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.ParticipationCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("cancel result %+v", cancelled)
	}
	if got := f.getEvent(t, ev.ID).CurrentAttendees; got != 0 {
		t.Fatalf("after cancel current_attendees=%d want 0", got)
	}

	// A second cancel is acknowledged and leaves the counter alone.
	if _, err := f.participation.Cancel(ctx, alice, first.ID); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if got := f.getEvent(t, ev.ID).CurrentAttendees; got != 0 {
		t.Fatalf("after repeat cancel current_attendees=%d want 0", got)
	}

	again, err := f.participation.Rejoin(ctx, alice, first.ID)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if again.ID != first.ID || !again.Confirmed() || again.CancelledAt != nil {
		t.Fatalf("rejoin returned %+v want reactivated %s", again, first.ID)
	}
	if got := f.getEvent(t, ev.ID).CurrentAttendees; got != 1 {
		t.Fatalf("after rejoin current_attendees=%d want 1", got)
	}
}

func TestJoinExclusiveEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleUser)
	ev := f.event(t, owner, 10, func(r *model.CreateEventRequest) { r.IsExclusive = true })

	tests := []struct {
		name  string
		mods  []func(*model.User)
		allow bool
	}{
		{name: "regular", allow: false},
		{name: "iconic", mods: []func(*model.User){iconicUntil(t0.Add(time.Hour))}, allow: true},
		{name: "lapsed", mods: []func(*model.User){iconicUntil(t0.Add(-time.Second))}, allow: false},
	}
	for _, tt := range tests {
		a := f.user(t, tt.name, model.RoleUser, tt.mods...)
		_, err := f.participation.Join(ctx, a, ev.ID)
		if tt.allow && err != nil {
			t.Fatalf("%s: join err=%v", tt.name, err)
		}
		if !tt.allow {
			wantErr(t, err, ErrExclusive)
		}
	}
}

func TestJoinUnknownEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.user(t, "alice", model.RoleUser)
	_, err := f.participation.Join(context.Background(), alice, "missing")
	wantErr(t, err, ErrEventNotFound)
}

func TestCancelAuthorization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleUser)
	alice := f.user(t, "alice", model.RoleUser)
	bob := f.user(t, "bob", model.RoleUser)
	admin := f.user(t, "admin", model.RoleAdmin)
	ev := f.event(t, owner, 3)
	p := f.join(t, alice, ev.ID)

	_, err := f.participation.Cancel(ctx, bob, p.ID)
	wantErr(t, err, ErrForbidden)
	_, err = f.participation.Cancel(ctx, alice, "missing")
	wantErr(t, err, ErrParticipationNotFound)

	if _, err := f.participation.Cancel(ctx, admin, p.ID); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	_, err = f.participation.Rejoin(ctx, bob, p.ID)
	wantErr(t, err, ErrForbidden)
}

func TestRemoveReleasesSeat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleUser)
	alice := f.user(t, "alice", model.RoleUser)
	admin := f.user(t, "admin", model.RoleAdmin)
	ev := f.event(t, owner, 1)
	p := f.join(t, alice, ev.ID)

	wantErr(t, f.participation.Remove(ctx, owner, p.ID), ErrAdminOnly)
	if err := f.participation.Remove(ctx, admin, p.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := f.getEvent(t, ev.ID).CurrentAttendees; got != 0 {
		t.Fatalf("current_attendees=%d want 0", got)
	}
	_, err := f.participation.Get(ctx, admin, p.ID)
	wantErr(t, err, ErrParticipationNotFound)

	// The seat is free again, and a fresh row is created.
	again := f.join(t, alice, ev.ID)
	if again.ID == p.ID {
		t.Fatalf("removed participation id reused")
	}
}

func TestGetParticipationVisibility(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleUser)
	alice := f.user(t, "alice", model.RoleUser)
	bob := f.user(t, "bob", model.RoleUser)
	ev := f.event(t, owner, 3)
	p := f.join(t, alice, ev.ID)

	for _, a := range []access.Actor{alice, owner} {
		if _, err := f.participation.Get(ctx, a, p.ID); err != nil {
			t.Fatalf("%s get: %v", a.UserID, err)
		}
	}
	_, err := f.participation.Get(ctx, bob, p.ID)
	wantErr(t, err, ErrForbidden)
}

func TestConfirmedUsersProjectsProfiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleUser)
	alice := f.user(t, "alice", model.RoleUser, public)
	bob := f.user(t, "bob", model.RoleUser)
	carol := f.user(t, "carol", model.RoleUser)
	ev := f.event(t, owner, 5)
	f.join(t, alice, ev.ID)
	f.join(t, bob, ev.ID)

	_, err := f.participation.ConfirmedUsers(ctx, carol, ev.ID)
	wantErr(t, err, ErrNotConfirmed)

	got, err := f.participation.ConfirmedUsers(ctx, alice, ev.ID)
	if err != nil {
		t.Fatalf("confirmed users: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d profiles want 2", len(got))
	}
	for _, p := range got {
		switch p.ID {
		case alice.UserID:
			if p.FullName == nil || *p.FullName != "Full alice" {
				t.Fatalf("self profile redacted: %+v", p)
			}
		case bob.UserID:
			if p.Nickname != access.PrivateNickname || p.FullName != nil {
				t.Fatalf("bob profile not redacted for alice: %+v", p)
			}
		default:
			t.Fatalf("unexpected profile %s", p.ID)
		}
	}

	if _, err := f.participation.ConfirmedUsers(ctx, owner, ev.ID); err != nil {
		t.Fatalf("owner confirmed users: %v", err)
	}
}

// attendance reads the counter and the confirmed rows from one snapshot.
func (f *fixture) attendance(eventID string) (counter, confirmed int, err error) {
	ctx := context.Background()
	err = f.store.View(ctx, func(q repository.Queries) error {
		e, err := q.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		ps, err := q.ListParticipations(ctx, repository.ParticipationFilter{EventID: eventID, Status: model.ParticipationConfirmed})
		if err != nil {
			return err
		}
		counter, confirmed = e.CurrentAttendees, len(ps)
		return nil
	})
	return counter, confirmed, err
}

func (f *fixture) confirmedCount(t *testing.T, eventID string) (counter, confirmed int) {
	t.Helper()
	counter, confirmed, err := f.attendance(eventID)
	if err != nil {
		t.Fatalf("read attendance: %v", err)
	}
	return counter, confirmed
}

func TestJoinSameUserConcurrentIncrementsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	owner := f.user(t, "owner", model.RoleUser)
	alice := f.user(t, "alice", model.RoleUser)
	ev := f.event(t, owner, 10)

	const n = 20
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		joined int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.participation.Join(context.Background(), alice, ev.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadyJoined):
				joined++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || joined != n-1 {
		t.Fatalf("ok=%d already_joined=%d want 1/%d", ok, joined, n-1)
	}
	if counter, confirmed := f.confirmedCount(t, ev.ID); counter != 1 || confirmed != 1 {
		t.Fatalf("counter=%d confirmed=%d want 1/1", counter, confirmed)
	}
}

func TestCounterMatchesConfirmedUnderChurn(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	owner := f.user(t, "owner", model.RoleUser)
	ev := f.event(t, owner, 5)
	crowd := f.crowd(t, 20)
	ctx := context.Background()

	done := make(chan struct{})
	checked := make(chan int)
	go func() {
		samples := 0
		defer func() { checked <- samples }()
		for {
			counter, confirmed, err := f.attendance(ev.ID)
			if err != nil || counter != confirmed || counter > 5 {
				t.Errorf("counter=%d confirmed=%d max=5 err=%v", counter, confirmed, err)
				return
			}
			samples++
			select {
			case <-done:
				return
			default:
			}
		}
	}()

	var wg sync.WaitGroup
	for _, a := range crowd {
		wg.Add(1)
		go func(a access.Actor) {
			defer wg.Done()
			for range 5 {
				p, err := f.participation.Join(ctx, a, ev.ID)
				if errors.Is(err, ErrSoldOut) {
					continue
				}
				if err != nil {
					t.Errorf("join %s: %v", a.UserID, err)
					return
				}
				if _, err := f.participation.Cancel(ctx, a, p.ID); err != nil {
					t.Errorf("cancel %s: %v", a.UserID, err)
					return
				}
			}
		}(a)
	}
	wg.Wait()
	close(done)
	if samples := <-checked; samples == 0 {
		t.Fatal("invariant was never sampled")
	}

	if counter, confirmed := f.confirmedCount(t, ev.ID); counter != 0 || confirmed != 0 {
		t.Fatalf("after churn counter=%d confirmed=%d want 0/0", counter, confirmed)
	}
}
