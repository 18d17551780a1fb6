package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iconic-app/iconic/internal/database"
	"github.com/iconic-app/iconic/internal/model"
)

// newTestPostgres returns a store bound to a throwaway schema. It skips the
// test when ICONIC_TEST_DATABASE_URL is unset.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()

	url := os.Getenv("ICONIC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ICONIC_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	schema := "iconic_test_" + uuid.NewString()[:8]
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect schema pool: %v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})
	return NewPostgresStore(pool)
}

func TestPostgresConcurrentIncrementNeverOverfills(t *testing.T) {
	s := newTestPostgres(t)
	seed(t, s, 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Tx(ctx, func(q Queries) error {
				if _, err := q.GetEventForUpdate(ctx, "ev"); err != nil {
					return err
				}
				return q.IncrementAttendees(ctx, "ev")
			})
			switch {
			case err == nil:
				mu.Lock()
				ok++
				mu.Unlock()
			case !errors.Is(err, ErrNoCapacity):
				t.Errorf("worker %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 5 {
		t.Fatalf("successful increments=%d want 5", ok)
	}
	_ = s.View(ctx, func(q Queries) error {
		e, err := q.GetEvent(ctx, "ev")
		if err != nil || e.CurrentAttendees != 5 {
			t.Fatalf("event=%+v err=%v", e, err)
		}
		return nil
	})
}

func TestPostgresUniqueViolationsMapToDuplicate(t *testing.T) {
	s := newTestPostgres(t)
	seed(t, s, 5)
	ctx := context.Background()

	now := time.Now().UTC()
	create := func(id string) error {
		return s.Tx(ctx, func(q Queries) error {
			return q.CreateParticipation(ctx, model.Participation{ID: id, UserID: "alice", EventID: "ev", Status: model.ParticipationConfirmed, CreatedAt: now})
		})
	}
	if err := create("p1"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := create("p2"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second insert err=%v want ErrDuplicate", err)
	}
}

func TestPostgresRedeemIsSingleUse(t *testing.T) {
	s := newTestPostgres(t)
	seed(t, s, 5)
	ctx := context.Background()

	issued := time.Now().UTC().Truncate(time.Microsecond)
	err := s.Tx(ctx, func(q Queries) error {
		return q.CreateCheckin(ctx, model.Checkin{ID: "c1", UserID: "alice", EventID: "ev", Token: "tok", Status: model.CheckinPending, IssuedAt: issued})
	})
	if err != nil {
		t.Fatalf("create checkin: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Tx(ctx, func(q Queries) error {
				_, err := q.RedeemCheckin(ctx, RedeemParams{Token: "tok", By: "owner", At: issued.Add(time.Second), IssuedAfter: issued.Add(-time.Minute)})
				return err
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range results {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, ErrConditionFailed):
			t.Fatalf("redeem %d: %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("redeem winners=%d want 1", wins)
	}
}

func TestPostgresListEventsFilters(t *testing.T) {
	s := newTestPostgres(t)
	seed(t, s, 5)
	ctx := context.Background()

	err := s.Tx(ctx, func(q Queries) error {
		return q.CreateEvent(ctx, model.Event{ID: "ev2", OwnerID: "alice", Title: "Private", MaxAttendees: 2, StartAt: t0.Add(time.Hour), CreatedAt: t0})
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_ = s.View(ctx, func(q Queries) error {
		for _, tc := range []struct {
			f    EventFilter
			want int
		}{
			{EventFilter{}, 2},
			{EventFilter{OwnerID: "alice"}, 1},
			{EventFilter{IDs: []string{"ev"}}, 1},
			{EventFilter{IDs: []string{}}, 0},
		} {
			got, err := q.ListEvents(ctx, tc.f)
			if err != nil || len(got) != tc.want {
				t.Fatalf("ListEvents(%+v) len=%d err=%v want %d", tc.f, len(got), err, tc.want)
			}
		}
		return nil
	})
}

func TestPostgresSameUserConcurrentJoinIncrementsOnce(t *testing.T) {
	s := newTestPostgres(t)
	seed(t, s, 10)
	ctx := context.Background()
	now := time.Now().UTC()

	errJoined := errors.New("already joined")
	join := func() error {
		return s.Tx(ctx, func(q Queries) error {
			if _, err := q.GetEventForUpdate(ctx, "ev"); err != nil {
				return err
			}
			if p, err := q.FindParticipation(ctx, "alice", "ev"); err == nil && p.Confirmed() {
				return errJoined
			} else if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if err := q.IncrementAttendees(ctx, "ev"); err != nil {
				return err
			}
			return q.CreateParticipation(ctx, model.Participation{
				ID: uuid.NewString(), UserID: "alice", EventID: "ev",
				Status: model.ParticipationConfirmed, CreatedAt: now,
			})
		})
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := join()
			switch {
			case err == nil:
				mu.Lock()
				ok++
				mu.Unlock()
			case !errors.Is(err, errJoined) && !errors.Is(err, ErrDuplicate):
				t.Errorf("worker %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 1 {
		t.Fatalf("successful joins=%d want 1", ok)
	}
	err := s.View(ctx, func(q Queries) error {
		e, err := q.GetEvent(ctx, "ev")
		if err != nil {
			return err
		}
		ps, err := q.ListParticipations(ctx, ParticipationFilter{EventID: "ev", Status: model.ParticipationConfirmed})
		if err != nil {
			return err
		}
		if e.CurrentAttendees != 1 || len(ps) != 1 {
			t.Fatalf("counter=%d confirmed=%d want 1/1", e.CurrentAttendees, len(ps))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestPostgresViewIsReadOnly(t *testing.T) {
	s := newTestPostgres(t)
	seed(t, s, 5)
	ctx := context.Background()

	if err := s.View(ctx, func(q Queries) error { return q.IncrementAttendees(ctx, "ev") }); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("increment in View err=%v want ErrReadOnly", err)
	}
	if err := s.View(ctx, func(q Queries) error { _, err := q.GetEventForUpdate(ctx, "ev"); return err }); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("lock in View err=%v want ErrReadOnly", err)
	}
}

func TestPostgresConcurrentWalletClaimHasOneOwner(t *testing.T) {
	s := newTestPostgres(t)
	seed(t, s, 1)
	ctx := context.Background()
	const wallet = "0x1111111111111111111111111111111111111111"

	owners := make(chan string, 2)
	var wg sync.WaitGroup
	for _, id := range []string{"alice", "bob"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var owner string
			err := s.Tx(ctx, func(q Queries) error {
				var err error
				owner, err = q.ClaimWallet(ctx, wallet, id, time.Now().UTC())
				return err
			})
			if err != nil {
				t.Errorf("claim %s: %v", id, err)
			}
			owners <- owner
		}()
	}
	wg.Wait()
	close(owners)

	first := <-owners
	if second := <-owners; first != second || first == "" {
		t.Fatalf("owners %q and %q want one shared owner", first, second)
	}
}

func TestPostgresPaymentReplayIsDuplicate(t *testing.T) {
	s := newTestPostgres(t)
	seed(t, s, 1)
	ctx := context.Background()
	const wallet = "0x1111111111111111111111111111111111111111"

	pay := func() error {
		return s.Tx(ctx, func(q Queries) error {
			if _, err := q.ClaimWallet(ctx, wallet, "alice", time.Now().UTC()); err != nil {
				return err
			}
			return q.CreatePayment(ctx, model.Payment{TxHash: "0xaa", UserID: "alice", WalletAddress: wallet, CreatedAt: time.Now().UTC()})
		})
	}
	if err := pay(); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if err := pay(); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("replay err=%v want ErrDuplicate", err)
	}
}

func TestPostgresUserPhotoPositionConflict(t *testing.T) {
	s := newTestPostgres(t)
	seed(t, s, 1)
	ctx := context.Background()
	now := time.Now().UTC()

	err := s.Tx(ctx, func(q Queries) error {
		for i, id := range []string{"ph1", "ph2"} {
			if err := q.CreateUserPhoto(ctx, model.UserPhoto{ID: id, UserID: "alice", URL: "https://cdn.example.com/" + id, Position: i + 1, CreatedAt: now}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed photos: %v", err)
	}

	err = s.Tx(ctx, func(q Queries) error {
		return q.UpdateUserPhoto(ctx, model.UserPhoto{ID: "ph1", UserID: "alice", URL: "https://cdn.example.com/ph1", Position: 2})
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("move onto taken position err=%v want ErrDuplicate", err)
	}
	err = s.Tx(ctx, func(q Queries) error {
		return q.CreateUserPhoto(ctx, model.UserPhoto{ID: "ghost1", UserID: "ghost", URL: "https://cdn.example.com/x", Position: 1, CreatedAt: now})
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("photo for missing user err=%v want ErrNotFound", err)
	}
}
