package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iconic-app/iconic/internal/model"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func seed(t *testing.T, s Store, capacity int) {
	t.Helper()
	err := s.Tx(context.Background(), func(q Queries) error {
		ctx := context.Background()
		for _, id := range []string{"owner", "alice", "bob"} {
			if err := q.CreateUser(ctx, model.User{ID: id, Email: id + "@example.com", Role: model.RoleUser, CreatedAt: t0}); err != nil {
				return err
			}
		}
		return q.CreateEvent(ctx, model.Event{ID: "ev", OwnerID: "owner", Title: "Launch", MaxAttendees: capacity, StartAt: t0, CreatedAt: t0})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestMemoryTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 5)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Tx(ctx, func(q Queries) error {
		if err := q.IncrementAttendees(ctx, "ev"); err != nil {
			return err
		}
		if err := q.CreateParticipation(ctx, model.Participation{ID: "p1", UserID: "alice", EventID: "ev", Status: model.ParticipationConfirmed}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx err=%v want boom", err)
	}

	_ = s.View(ctx, func(q Queries) error {
		e, _ := q.GetEvent(ctx, "ev")
		if e.CurrentAttendees != 0 {
			t.Fatalf("counter leaked from rolled back tx: %d", e.CurrentAttendees)
		}
		if _, err := q.GetParticipation(ctx, "p1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("participation leaked from rolled back tx: %v", err)
		}
		return nil
	})
}

func TestMemoryViewIsReadOnly(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 5)
	ctx := context.Background()

	cases := []struct {
		name string
		fn   func(q Queries) error
	}{
		{name: "increment", fn: func(q Queries) error { return q.IncrementAttendees(ctx, "ev") }},
		{name: "lock event", fn: func(q Queries) error { _, err := q.GetEventForUpdate(ctx, "ev"); return err }},
		{name: "insert user", fn: func(q Queries) error {
			return q.CreateUser(ctx, model.User{ID: "carol", Email: "carol@example.com", CreatedAt: t0})
		}},
	}
	for _, tc := range cases {
		if err := s.View(ctx, tc.fn); !errors.Is(err, ErrReadOnly) {
			t.Fatalf("%s in View: err=%v want ErrReadOnly", tc.name, err)
		}
	}
}

func TestMemoryCapacityIsConditional(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 3)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Tx(ctx, func(q Queries) error { return q.IncrementAttendees(ctx, "ev") })
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else if !errors.Is(err, ErrNoCapacity) {
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 3 {
		t.Fatalf("successful increments=%d want 3", ok)
	}
	err := s.Tx(ctx, func(q Queries) error { return q.IncrementAttendees(ctx, "missing") })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing event err=%v want ErrNotFound", err)
	}
}

func TestMemoryDecrementFloorsAtZero(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 3)
	ctx := context.Background()

	err := s.Tx(ctx, func(q Queries) error { return q.DecrementAttendees(ctx, "ev") })
	if !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("decrement at zero err=%v want ErrConditionFailed", err)
	}
}

func TestMemoryParticipationUnique(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 3)
	ctx := context.Background()

	err := s.Tx(ctx, func(q Queries) error {
		if err := q.CreateParticipation(ctx, model.Participation{ID: "p1", UserID: "alice", EventID: "ev", Status: model.ParticipationConfirmed}); err != nil {
			return err
		}
		return q.CreateParticipation(ctx, model.Participation{ID: "p2", UserID: "alice", EventID: "ev", Status: model.ParticipationConfirmed})
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second (user,event) row err=%v want ErrDuplicate", err)
	}
}

func TestMemoryRedeemCheckin(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 3)
	ctx := context.Background()

	err := s.Tx(ctx, func(q Queries) error {
		for i, issued := range []time.Time{t0, t0.Add(-2 * time.Minute)} {
			c := model.Checkin{ID: fmt.Sprintf("c%d", i), UserID: "alice", EventID: "ev", Token: fmt.Sprintf("tok%d", i), Status: model.CheckinPending, IssuedAt: issued}
			if err := q.CreateCheckin(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	redeem := func(token string) (model.Checkin, error) {
		var out model.Checkin
		err := s.Tx(ctx, func(q Queries) error {
			var err error
			out, err = q.RedeemCheckin(ctx, RedeemParams{Token: token, By: "owner", At: t0.Add(time.Second), IssuedAfter: t0.Add(-time.Minute)})
			return err
		})
		return out, err
	}

	if _, err := redeem("tok1"); !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("stale token err=%v want ErrConditionFailed", err)
	}
	c, err := redeem("tok0")
	if err != nil {
		t.Fatalf("redeem fresh: %v", err)
	}
	if !c.Redeemed() || c.RedeemedAt == nil || *c.RedeemedBy != "owner" {
		t.Fatalf("redeemed row=%+v", c)
	}
	if _, err := redeem("tok0"); !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("second redeem err=%v want ErrConditionFailed", err)
	}
}

func TestMemorySupersedePending(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 3)
	ctx := context.Background()

	var n int
	err := s.Tx(ctx, func(q Queries) error {
		for i := 0; i < 3; i++ {
			c := model.Checkin{ID: fmt.Sprintf("c%d", i), UserID: "alice", EventID: "ev", Token: fmt.Sprintf("t%d", i), Status: model.CheckinPending, IssuedAt: t0.Add(time.Duration(i) * time.Second)}
			if err := q.CreateCheckin(ctx, c); err != nil {
				return err
			}
		}
		var err error
		n, err = q.SupersedePendingCheckins(ctx, "alice", "ev")
		return err
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if n != 3 {
		t.Fatalf("superseded=%d want 3", n)
	}
	_ = s.View(ctx, func(q Queries) error {
		if _, err := q.LatestCheckin(ctx, "alice", "ev", model.CheckinPending); !errors.Is(err, ErrNotFound) {
			t.Fatalf("pending row survived: %v", err)
		}
		latest, err := q.LatestCheckin(ctx, "alice", "ev", "")
		if err != nil || latest.ID != "c2" {
			t.Fatalf("latest=%+v err=%v want c2", latest, err)
		}
		return nil
	})
}

func TestMemoryDeleteEventCascades(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 3)
	ctx := context.Background()

	err := s.Tx(ctx, func(q Queries) error {
		if err := q.CreateParticipation(ctx, model.Participation{ID: "p1", UserID: "alice", EventID: "ev", Status: model.ParticipationConfirmed}); err != nil {
			return err
		}
		if err := q.CreateLiveEvent(ctx, model.LiveEvent{ID: "l1", EventID: "ev", Status: model.LiveEventCreated}); err != nil {
			return err
		}
		if err := q.CreateMatchGroup(ctx, model.MatchGroup{ID: "g1", LiveEventID: "l1", Round: 1, Number: 1}); err != nil {
			return err
		}
		if err := q.CreateMatchParticipants(ctx, []model.MatchParticipant{{GroupID: "g1", UserID: "alice"}}); err != nil {
			return err
		}
		return q.DeleteEvent(ctx, "ev")
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	_ = s.View(ctx, func(q Queries) error {
		if _, err := q.GetParticipation(ctx, "p1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("participation survived delete: %v", err)
		}
		if _, err := q.FindMatchGroupForUser(ctx, "l1", 1, "alice"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("match group survived delete: %v", err)
		}
		return nil
	})
}

func TestMemoryPollVotes(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 3)
	ctx := context.Background()

	err := s.Tx(ctx, func(q Queries) error {
		if err := q.CreateLiveEvent(ctx, model.LiveEvent{ID: "l1", EventID: "ev"}); err != nil {
			return err
		}
		if err := q.CreatePoll(ctx, model.Poll{ID: "p", LiveEventID: "l1", Question: "?", Options: []model.PollOption{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}}}); err != nil {
			return err
		}
		if err := q.CreatePollVote(ctx, model.PollVote{PollID: "p", OptionID: "a", UserID: "alice"}); err != nil {
			return err
		}
		return q.CreatePollVote(ctx, model.PollVote{PollID: "p", OptionID: "a", UserID: "bob"})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	err = s.Tx(ctx, func(q Queries) error {
		return q.CreatePollVote(ctx, model.PollVote{PollID: "p", OptionID: "b", UserID: "alice"})
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("repeat vote err=%v want ErrDuplicate", err)
	}

	_ = s.View(ctx, func(q Queries) error {
		counts, _ := q.CountPollVotes(ctx, "p")
		if counts["a"] != 2 || counts["b"] != 0 {
			t.Fatalf("counts=%v", counts)
		}
		p, _ := q.GetPoll(ctx, "p")
		if len(p.Options) != 2 || p.Options[1].PollID != "p" {
			t.Fatalf("poll options=%+v", p.Options)
		}
		return nil
	})
}

func TestMemoryChatKeepsNewest(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 3)
	ctx := context.Background()

	err := s.Tx(ctx, func(q Queries) error {
		for i := 0; i < 40; i++ {
			m := model.ChatMessage{ID: fmt.Sprintf("m%02d", i), UserID: "alice", Message: "hi", CreatedAt: t0.Add(time.Duration(i) * time.Second)}
			if err := q.CreateChatMessage(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	_ = s.View(ctx, func(q Queries) error {
		msgs, _ := q.ListChatMessages(ctx, 30)
		if len(msgs) != 30 || msgs[0].ID != "m10" || msgs[29].ID != "m39" {
			t.Fatalf("got %d msgs, first=%s last=%s", len(msgs), msgs[0].ID, msgs[len(msgs)-1].ID)
		}
		return nil
	})
}

func TestMemoryPaymentsAndWallets(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 1)
	ctx := context.Background()
	const wallet = "0x1111111111111111111111111111111111111111"

	err := s.Tx(ctx, func(q Queries) error {
		owner, err := q.ClaimWallet(ctx, wallet, "alice", t0)
		if err != nil || owner != "alice" {
			return fmt.Errorf("claim=%q err=%v", owner, err)
		}
		owner, err = q.ClaimWallet(ctx, wallet, "bob", t0)
		if err != nil || owner != "alice" {
			return fmt.Errorf("second claim=%q err=%v want alice", owner, err)
		}
		if _, err := q.ClaimWallet(ctx, "0x22", "ghost", t0); !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("claim for missing user err=%v", err)
		}
		return q.CreatePayment(ctx, model.Payment{TxHash: "0xaa", UserID: "alice", WalletAddress: wallet, CreatedAt: t0})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	err = s.Tx(ctx, func(q Queries) error {
		return q.CreatePayment(ctx, model.Payment{TxHash: "0xaa", UserID: "alice", WalletAddress: wallet, CreatedAt: t0})
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("replayed payment err=%v want ErrDuplicate", err)
	}
}

func TestMemoryUserPhotoPositionsAreUnique(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 1)
	ctx := context.Background()

	err := s.Tx(ctx, func(q Queries) error {
		for i, id := range []string{"ph1", "ph2"} {
			if err := q.CreateUserPhoto(ctx, model.UserPhoto{ID: id, UserID: "alice", URL: "https://cdn.example.com/" + id, Position: i + 1}); err != nil {
				return err
			}
		}
		return q.CreateUserPhoto(ctx, model.UserPhoto{ID: "bob1", UserID: "bob", Position: 1})
	})
	if err != nil {
		t.Fatalf("seed photos: %v", err)
	}

	tests := []struct {
		name string
		fn   func(q Queries) error
		want error
	}{
		{"create taken position", func(q Queries) error {
			return q.CreateUserPhoto(ctx, model.UserPhoto{ID: "ph3", UserID: "alice", Position: 2})
		}, ErrDuplicate},
		{"move onto taken position", func(q Queries) error {
			return q.UpdateUserPhoto(ctx, model.UserPhoto{ID: "ph1", UserID: "alice", Position: 2})
		}, ErrDuplicate},
		{"keep own position", func(q Queries) error {
			return q.UpdateUserPhoto(ctx, model.UserPhoto{ID: "ph1", UserID: "alice", URL: "https://cdn.example.com/new", Position: 1})
		}, nil},
		{"delete missing", func(q Queries) error { return q.DeleteUserPhoto(ctx, "nope") }, ErrNotFound},
	}
	for _, tt := range tests {
		if err := s.Tx(ctx, tt.fn); !errors.Is(err, tt.want) {
			t.Fatalf("%s: err=%v want %v", tt.name, err, tt.want)
		}
	}

	_ = s.View(ctx, func(q Queries) error {
		ps, err := q.ListUserPhotos(ctx, "alice")
		if err != nil || len(ps) != 2 || ps[0].ID != "ph1" || ps[1].ID != "ph2" {
			t.Fatalf("photos=%+v err=%v", ps, err)
		}
		if ps[0].URL != "https://cdn.example.com/new" {
			t.Fatalf("url=%q not updated", ps[0].URL)
		}
		return nil
	})
}

func TestMemoryDeleteCheckin(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seed(t, s, 1)
	ctx := context.Background()

	err := s.Tx(ctx, func(q Queries) error {
		if err := q.CreateCheckin(ctx, model.Checkin{ID: "c1", UserID: "alice", EventID: "ev", Token: "tok", Status: model.CheckinPending, IssuedAt: t0}); err != nil {
			return err
		}
		return q.DeleteCheckin(ctx, "c1")
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	err = s.Tx(ctx, func(q Queries) error { return q.DeleteCheckin(ctx, "c1") })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err=%v want ErrNotFound", err)
	}
}
