package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iconic-app/iconic/internal/access"
	"github.com/iconic-app/iconic/internal/model"
	"github.com/iconic-app/iconic/internal/repository"
)

// MaxEventCapacity bounds max_attendees.
const MaxEventCapacity = 100_000

// EventService manages events and the per-viewer event listings.
type EventService struct {
	base
}

// NewEventService constructs an EventService.
func NewEventService(store repository.Store, opts ...Option) *EventService {
	return &EventService{base: newBase(store, opts)}
}

func validateEvent(e *model.Event) error {
	var err error
	if e.Title, err = trimmed(e.Title, 3, 120, "title"); err != nil {
		return err
	}
	if e.Description, err = trimmed(e.Description, 0, 5000, "description"); err != nil {
		return err
	}
	if e.Location, err = trimmed(e.Location, 0, 200, "location"); err != nil {
		return err
	}
	if e.Category, err = trimmed(e.Category, 0, 50, "category"); err != nil {
		return err
	}
	if e.MaxAttendees < 1 || e.MaxAttendees > MaxEventCapacity {
		return invalid("max_attendees must be between 1 and 100000")
	}
	if e.StartAt.IsZero() {
		return invalid("start_at is required")
	}
	if e.EndAt != nil && !e.EndAt.After(e.StartAt) {
		return invalid("end_at must be after start_at")
	}
	return nil
}

// Create stores a new event owned by the actor.
func (s *EventService) Create(ctx context.Context, actor access.Actor, req model.CreateEventRequest) (model.Event, error) {
	e := model.Event{
		ID:           newID(),
		OwnerID:      actor.UserID,
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		Category:     strings.ToLower(req.Category),
		IsExclusive:  req.IsExclusive,
		IsPublic:     req.IsPublic,
		MaxAttendees: req.MaxAttendees,
		StartAt:      req.StartAt.UTC(),
		CreatedAt:    s.now(),
	}
	if req.EndAt != nil {
		end := req.EndAt.UTC()
		e.EndAt = &end
	}
	if err := validateEvent(&e); err != nil {
		return model.Event{}, err
	}

	err := s.store.Tx(ctx, func(q repository.Queries) error {
		return fail("insert event", q.CreateEvent(ctx, e))
	})
	s.logOutcome("event.create", err, "event_id", e.ID, "owner_id", actor.UserID)
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

// List returns the events the actor may browse. Non-public events are only
// listed for ICONIC members and administrators.
func (s *EventService) List(ctx context.Context, actor access.Actor) ([]model.EventView, error) {
	return s.list(ctx, actor, repository.EventFilter{PublicOnly: !actor.Elevated() && !actor.IsAdmin()}, nil)
}

// Owned returns the events created by the actor.
func (s *EventService) Owned(ctx context.Context, actor access.Actor) ([]model.EventView, error) {
	return s.list(ctx, actor, repository.EventFilter{OwnerID: actor.UserID}, nil)
}

// Participating returns the events the actor holds a confirmed seat in.
func (s *EventService) Participating(ctx context.Context, actor access.Actor) ([]model.EventView, error) {
	return s.list(ctx, actor, repository.EventFilter{}, func(v model.EventView) bool { return v.IsParticipating })
}

func (s *EventService) list(ctx context.Context, actor access.Actor, f repository.EventFilter, keep func(model.EventView) bool) ([]model.EventView, error) {
	var out []model.EventView
	err := s.store.View(ctx, func(q repository.Queries) error {
		mine, err := q.ListParticipations(ctx, repository.ParticipationFilter{UserID: actor.UserID})
		if err != nil {
			return fail("list participations", err)
		}
		if keep != nil {
			f.IDs = make([]string, 0, len(mine))
			for _, p := range mine {
				f.IDs = append(f.IDs, p.EventID)
			}
		}
		events, err := q.ListEvents(ctx, f)
		if err != nil {
			return fail("list events", err)
		}
		out, err = s.annotate(ctx, q, events, mine)
		if err != nil || keep == nil {
			return err
		}
		kept := out[:0]
		for _, v := range out {
			if keep(v) {
				kept = append(kept, v)
			}
		}
		out = kept
		return nil
	})
	return out, err
}

func (s *EventService) annotate(ctx context.Context, q repository.Queries, events []model.Event, mine []model.Participation) ([]model.EventView, error) {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	live, err := q.CountLiveEvents(ctx, ids)
	if err != nil {
		return nil, fail("count live events", err)
	}
	byEvent := make(map[string]model.Participation, len(mine))
	for _, p := range mine {
		byEvent[p.EventID] = p
	}

	now := s.now()
	out := make([]model.EventView, len(events))
	for i, e := range events {
		v := model.EventView{
			Event:         e,
			HasLiveEvents: live[e.ID] > 0,
			InProgress:    e.InProgress(now),
		}
		if p, ok := byEvent[e.ID]; ok {
			v.ParticipationID = p.ID
			v.IsParticipating = p.Confirmed()
		}
		out[i] = v
	}
	return out, nil
}

// Get returns one event annotated for the actor. A non-public event is
// reported as not found to viewers who could not list it and hold no
// participation in it.
func (s *EventService) Get(ctx context.Context, actor access.Actor, id string) (model.EventView, error) {
	var out model.EventView
	err := s.store.View(ctx, func(q repository.Queries) error {
		e, err := q.GetEvent(ctx, id)
		if err != nil {
			return notFound("get event", err, ErrEventNotFound)
		}
		var mine []model.Participation
		p, err := q.FindParticipation(ctx, actor.UserID, id)
		switch {
		case err == nil:
			mine = append(mine, p)
		case !errors.Is(err, repository.ErrNotFound):
			return fail("find participation", err)
		}
		if !e.IsPublic && !actor.Elevated() && !access.OwnsEvent(actor, e) && len(mine) == 0 {
			return ErrEventNotFound
		}
		views, err := s.annotate(ctx, q, []model.Event{e}, mine)
		if err != nil {
			return err
		}
		out = views[0]
		return nil
	})
	return out, err
}

// Update applies the non-nil fields of req. Owner or administrator only.
// The capacity may not drop below the confirmed attendee count.
func (s *EventService) Update(ctx context.Context, actor access.Actor, id string, req model.UpdateEventRequest) (model.Event, error) {
	var out model.Event
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		e, err := q.GetEventForUpdate(ctx, id)
		if err != nil {
			return notFound("lock event", err, ErrEventNotFound)
		}
		if !access.OwnsEvent(actor, e) {
			return ErrNotOwner
		}
		applyEventUpdate(&e, req)
		if err := validateEvent(&e); err != nil {
			return err
		}
		if e.MaxAttendees < e.CurrentAttendees {
			return ErrCapacityBelowAttendees
		}
		if err := q.UpdateEvent(ctx, e); err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				return ErrCapacityBelowAttendees
			}
			return notFound("update event", err, ErrEventNotFound)
		}
		out = e
		return nil
	})
	s.logOutcome("event.update", err, "event_id", id, "user_id", actor.UserID)
	if err != nil {
		return model.Event{}, err
	}
	return out, nil
}

func applyEventUpdate(e *model.Event, req model.UpdateEventRequest) {
	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Location != nil {
		e.Location = *req.Location
	}
	if req.Category != nil {
		e.Category = strings.ToLower(*req.Category)
	}
	if req.IsExclusive != nil {
		e.IsExclusive = *req.IsExclusive
	}
	if req.IsPublic != nil {
		e.IsPublic = *req.IsPublic
	}
	if req.MaxAttendees != nil {
		e.MaxAttendees = *req.MaxAttendees
	}
	if req.StartAt != nil {
		e.StartAt = req.StartAt.UTC()
	}
	if req.EndAt != nil {
		end := req.EndAt.UTC()
		e.EndAt = &end
	}
}

// Delete removes an event and everything attached to it. Owner or
// administrator only.
func (s *EventService) Delete(ctx context.Context, actor access.Actor, id string) error {
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		e, err := q.GetEventForUpdate(ctx, id)
		if err != nil {
			return notFound("lock event", err, ErrEventNotFound)
		}
		if !access.OwnsEvent(actor, e) {
			return ErrNotOwner
		}
		return notFound("delete event", q.DeleteEvent(ctx, id), ErrEventNotFound)
	})
	s.logOutcome("event.delete", err, "event_id", id, "user_id", actor.UserID)
	return err
}
