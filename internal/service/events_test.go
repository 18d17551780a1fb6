package service

import (
	"context"
	"testing"
	"time"

	"github.com/iconic-app/iconic/internal/apperr"
	"github.com/iconic-app/iconic/internal/model"
)

func TestCreateEventValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	owner := f.user(t, "owner", model.RoleUser)
	before := t0.Add(-time.Hour)

	tests := []struct {
		name string
		mod  func(*model.CreateEventRequest)
	}{
		{"short title", func(r *model.CreateEventRequest) { r.Title = "ab" }},
		{"zero capacity", func(r *model.CreateEventRequest) { r.MaxAttendees = 0 }},
		{"huge capacity", func(r *model.CreateEventRequest) { r.MaxAttendees = MaxEventCapacity + 1 }},
		{"no start", func(r *model.CreateEventRequest) { r.StartAt = time.Time{} }},
		{"end before start", func(r *model.CreateEventRequest) { r.EndAt = &before }},
	}
	for _, tt := range tests {
		req := model.CreateEventRequest{Title: "Launch", MaxAttendees: 10, StartAt: t0}
		tt.mod(&req)
		_, err := f.events.Create(context.Background(), owner, req)
		if apperr.KindOf(err) != apperr.KindBadRequest {
			t.Fatalf("%s: err=%v want bad request", tt.name, err)
		}
	}
}

func TestListEventsVisibility(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleUser)
	alice := f.user(t, "alice", model.RoleUser)
	iconic := f.user(t, "iconic", model.RoleUser, iconicUntil(t0.Add(time.Hour)))

	open := f.event(t, owner, 5)
	hidden := f.event(t, owner, 5, func(r *model.CreateEventRequest) { r.IsPublic = false })
	p := f.join(t, alice, open.ID)

	got, err := f.events.List(ctx, alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != open.ID {
		t.Fatalf("alice sees %+v", got)
	}
	if !got[0].IsParticipating || got[0].ParticipationID != p.ID || !got[0].InProgress {
		t.Fatalf("annotation %+v", got[0])
	}

	got, err = f.events.List(ctx, iconic)
	if err != nil || len(got) != 2 {
		t.Fatalf("iconic sees %d events err=%v", len(got), err)
	}

	_, err = f.events.Get(ctx, alice, hidden.ID)
	wantErr(t, err, ErrEventNotFound)
	if _, err := f.events.Get(ctx, owner, hidden.ID); err != nil {
		t.Fatalf("owner get hidden: %v", err)
	}

	owned, err := f.events.Owned(ctx, owner)
	if err != nil || len(owned) != 2 {
		t.Fatalf("owned=%d err=%v", len(owned), err)
	}
	mine, err := f.events.Participating(ctx, alice)
	if err != nil || len(mine) != 1 || mine[0].ID != open.ID {
		t.Fatalf("participating=%+v err=%v", mine, err)
	}
	none, err := f.events.Participating(ctx, iconic)
	if err != nil || len(none) != 0 {
		t.Fatalf("iconic participating=%+v err=%v", none, err)
	}
}

func TestGetEventHasLiveEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleUser)
	ev := f.event(t, owner, 5)

	v, err := f.events.Get(ctx, owner, ev.ID)
	if err != nil || v.HasLiveEvents {
		t.Fatalf("before: %+v err=%v", v, err)
	}
	if _, err := f.live.Create(ctx, owner, ev.ID, model.CreateLiveEventRequest{Title: "Quiz"}); err != nil {
		t.Fatalf("create live: %v", err)
	}
	v, err = f.events.Get(ctx, owner, ev.ID)
	if err != nil || !v.HasLiveEvents {
		t.Fatalf("after: %+v err=%v", v, err)
	}
}

func TestUpdateAndDeleteEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", model.RoleUser)
	admin := f.user(t, "admin", model.RoleAdmin)
	crowd := f.crowd(t, 3)
	ev := f.event(t, owner, 5)
	for _, a := range crowd {
		f.join(t, a, ev.ID)
	}

	two, four := 2, 4
	title := "Renamed launch"
	_, err := f.events.Update(ctx, crowd[0], ev.ID, model.UpdateEventRequest{Title: &title})
	wantErr(t, err, ErrNotOwner)
	_, err = f.events.Update(ctx, owner, ev.ID, model.UpdateEventRequest{MaxAttendees: &two})
	wantErr(t, err, ErrCapacityBelowAttendees)

	got, err := f.events.Update(ctx, owner, ev.ID, model.UpdateEventRequest{Title: &title, MaxAttendees: &four})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != title || got.MaxAttendees != 4 || got.CurrentAttendees != 3 {
		t.Fatalf("updated %+v", got)
	}

	wantErr(t, f.events.Delete(ctx, crowd[0], ev.ID), ErrNotOwner)
	if err := f.events.Delete(ctx, admin, ev.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = f.events.Get(ctx, owner, ev.ID)
	wantErr(t, err, ErrEventNotFound)
	wantErr(t, f.events.Delete(ctx, admin, ev.ID), ErrEventNotFound)
}
