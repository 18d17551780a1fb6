package access

import (
	"testing"
	"time"

	"github.com/iconic-app/iconic/internal/model"
)

func TestProject(t *testing.T) {
	t.Parallel()

	subject := model.User{
		ID:                "u-subject",
		FullName:          "Ana Lima",
		Nickname:          "ana",
		ProfilePictureURL: "https://cdn.example.com/ana.png",
		IsIconic:          true,
	}

	cases := []struct {
		name     string
		public   bool
		toIconic bool
		viewer   Actor
		wantFull bool
	}{
		{name: "private to stranger", viewer: Actor{UserID: "u-other", Role: model.RoleUser}},
		{name: "public to stranger", public: true, viewer: Actor{UserID: "u-other", Role: model.RoleUser}, wantFull: true},
		{name: "iconic-only to plain user", toIconic: true, viewer: Actor{UserID: "u-other", Role: model.RoleUser}},
		{name: "iconic-only to iconic tier", toIconic: true, viewer: Actor{UserID: "u-other", Role: model.RoleUser, Iconic: true}, wantFull: true},
		{name: "iconic-only to iconic role", toIconic: true, viewer: ActorFor(model.User{ID: "u-other", Role: model.RoleIconic}, time.Now()), wantFull: true},
		{name: "admin sees private", viewer: Actor{UserID: "u-admin", Role: model.RoleAdmin}, wantFull: true},
		{name: "self sees private", viewer: Actor{UserID: "u-subject", Role: model.RoleUser}, wantFull: true},
		{name: "scanner gets redacted", viewer: Actor{UserID: "u-scan", Role: model.RoleScanner}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := subject
			s.ShowPublicProfile = tc.public
			s.ShowProfileToIconics = tc.toIconic

			got := Project(s, tc.viewer)
			if got.ID != s.ID || !got.IsIconic {
				t.Fatalf("id/tier badge must always be kept: %+v", got)
			}
			if tc.wantFull {
				if got.FullName == nil || *got.FullName != "Ana Lima" || got.Nickname != "ana" {
					t.Fatalf("expected full projection, got %+v", got)
				}
				if got.ProfilePictureURL == nil {
					t.Fatalf("expected avatar in full projection")
				}
				return
			}
			if got.FullName != nil || got.ProfilePictureURL != nil || got.Nickname != PrivateNickname {
				t.Fatalf("expected redacted projection, got %+v", got)
			}
		})
	}
}

func TestOwnsEvent(t *testing.T) {
	t.Parallel()

	ev := model.Event{ID: "e1", OwnerID: "owner"}
	if !OwnsEvent(Actor{UserID: "owner"}, ev) {
		t.Fatalf("owner must own event")
	}
	if !OwnsEvent(Actor{UserID: "x", Role: model.RoleAdmin}, ev) {
		t.Fatalf("admin must manage event")
	}
	if OwnsEvent(Actor{UserID: "x", Role: model.RoleScanner}, ev) {
		t.Fatalf("scanner must not manage event")
	}
	if OwnsEvent(Actor{}, model.Event{}) {
		t.Fatalf("empty actor must not match empty owner")
	}
}

func TestCanJoin(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	exclusive := model.Event{IsExclusive: true}
	open := model.Event{}

	if !CanJoin(model.User{}, open, now) {
		t.Fatalf("anyone may join an open event")
	}
	if CanJoin(model.User{}, exclusive, now) {
		t.Fatalf("plain user must not join exclusive event")
	}
	if !CanJoin(model.User{IsIconic: true, IconicExpiresAt: &future}, exclusive, now) {
		t.Fatalf("active iconic must join exclusive event")
	}
	if CanJoin(model.User{IsIconic: true, IconicExpiresAt: &past}, exclusive, now) {
		t.Fatalf("expired iconic must not join exclusive event")
	}
}

func TestTierPredicateAgreement(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	exclusive := model.Event{IsExclusive: true}

	cases := []struct {
		name string
		user model.User
		want bool
	}{
		{name: "plain user", user: model.User{Role: model.RoleUser}},
		{name: "iconic role without membership", user: model.User{Role: model.RoleIconic}, want: true},
		{name: "active membership", user: model.User{Role: model.RoleUser, IsIconic: true, IconicExpiresAt: &future}, want: true},
		{name: "expired membership", user: model.User{Role: model.RoleUser, IsIconic: true, IconicExpiresAt: &past}},
		{name: "admin without membership", user: model.User{Role: model.RoleAdmin}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			actor := ActorFor(tc.user, now)
			if actor.Elevated() != tc.want {
				t.Fatalf("Actor.Elevated = %v, want %v", actor.Elevated(), tc.want)
			}
			if CanJoin(tc.user, exclusive, now) != tc.want {
				t.Fatalf("CanJoin(exclusive) = %v, want %v", !tc.want, tc.want)
			}
		})
	}
}
