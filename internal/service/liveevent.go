package service

import (
	"context"
	"errors"

	"github.com/iconic-app/iconic/internal/access"
	"github.com/iconic-app/iconic/internal/model"
	"github.com/iconic-app/iconic/internal/repository"
)

// LiveEventService manages in-event activities and their
// created → active → ended lifecycle.
type LiveEventService struct {
	base
}

// NewLiveEventService constructs a LiveEventService.
func NewLiveEventService(store repository.Store, opts ...Option) *LiveEventService {
	return &LiveEventService{base: newBase(store, opts)}
}

// Create adds a live event under eventID. Owner or administrator only.
func (s *LiveEventService) Create(ctx context.Context, actor access.Actor, eventID string, req model.CreateLiveEventRequest) (model.LiveEvent, error) {
	title, err := trimmed(req.Title, 1, 120, "title")
	if err != nil {
		return model.LiveEvent{}, err
	}

	var out model.LiveEvent
	err = s.store.Tx(ctx, func(q repository.Queries) error {
		event, err := q.GetEvent(ctx, eventID)
		if err != nil {
			return notFound("get event", err, ErrEventNotFound)
		}
		if !access.OwnsEvent(actor, event) {
			return ErrNotOwner
		}
		out = model.LiveEvent{
			ID:        newID(),
			EventID:   event.ID,
			Title:     title,
			RequireQR: req.RequireQR,
			Status:    model.LiveEventCreated,
			CreatedAt: s.now(),
		}
		return fail("insert live event", q.CreateLiveEvent(ctx, out))
	})
	if err != nil {
		return model.LiveEvent{}, err
	}
	s.log.Info("live_event.create", "live_event_id", out.ID, "event_id", eventID)
	return out, nil
}

// List returns the live events of eventID visible to actor.
func (s *LiveEventService) List(ctx context.Context, actor access.Actor, eventID string) ([]model.LiveEvent, error) {
	var out []model.LiveEvent
	err := s.store.View(ctx, func(q repository.Queries) error {
		event, err := q.GetEvent(ctx, eventID)
		if err != nil {
			return notFound("get event", err, ErrEventNotFound)
		}
		all, err := q.ListLiveEvents(ctx, eventID)
		if err != nil {
			return fail("list live events", err)
		}
		out = make([]model.LiveEvent, 0, len(all))
		for _, l := range all {
			ok, err := canAccessLive(ctx, q, actor, event, l)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}

// Get returns one live event if actor may see it.
func (s *LiveEventService) Get(ctx context.Context, actor access.Actor, id string) (model.LiveEvent, error) {
	var out model.LiveEvent
	err := s.store.View(ctx, func(q repository.Queries) error {
		l, event, err := loadLive(ctx, q, id, false)
		if err != nil {
			return err
		}
		ok, err := canAccessLive(ctx, q, actor, event, l)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}
		out = l
		return nil
	})
	return out, err
}

// Start moves a created live event to active.
func (s *LiveEventService) Start(ctx context.Context, actor access.Actor, id string) (model.LiveEvent, error) {
	return s.transition(ctx, actor, id, "live_event.start", func(l *model.LiveEvent) error {
		switch l.Status {
		case model.LiveEventActive:
			return ErrAlreadyActive
		case model.LiveEventEnded:
			return ErrAlreadyEnded
		}
		now := s.now()
		l.Status = model.LiveEventActive
		l.StartedAt = &now
		return nil
	})
}

// End moves an active live event to ended. Ended is terminal.
func (s *LiveEventService) End(ctx context.Context, actor access.Actor, id string) (model.LiveEvent, error) {
	return s.transition(ctx, actor, id, "live_event.end", func(l *model.LiveEvent) error {
		switch l.Status {
		case model.LiveEventEnded:
			return ErrAlreadyEnded
		case model.LiveEventCreated:
			return ErrNotActive
		}
		now := s.now()
		l.Status = model.LiveEventEnded
		l.EndedAt = &now
		return nil
	})
}

func (s *LiveEventService) transition(ctx context.Context, actor access.Actor, id, msg string, apply func(*model.LiveEvent) error) (model.LiveEvent, error) {
	var out model.LiveEvent
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		l, event, err := loadLive(ctx, q, id, true)
		if err != nil {
			return err
		}
		if !access.OwnsEvent(actor, event) {
			return ErrNotOwner
		}
		if err := apply(&l); err != nil {
			return err
		}
		if err := q.UpdateLiveEvent(ctx, l); err != nil {
			return notFound("update live event", err, ErrLiveEventNotFound)
		}
		out = l
		return nil
	})
	s.logOutcome(msg, err, "live_event_id", id, "user_id", actor.UserID)
	if err != nil {
		return model.LiveEvent{}, err
	}
	return out, nil
}

// loadLive fetches a live event and its parent event, optionally locking the
// live event row.
func loadLive(ctx context.Context, q repository.Queries, id string, lock bool) (model.LiveEvent, model.Event, error) {
	get := q.GetLiveEvent
	if lock {
		get = q.GetLiveEventForUpdate
	}
	l, err := get(ctx, id)
	if err != nil {
		return model.LiveEvent{}, model.Event{}, notFound("get live event", err, ErrLiveEventNotFound)
	}
	event, err := q.GetEvent(ctx, l.EventID)
	if err != nil {
		return model.LiveEvent{}, model.Event{}, notFound("get event", err, ErrEventNotFound)
	}
	return l, event, nil
}

// canAccessLive reports whether actor may take part in l: the owner and
// administrators always can; others need a confirmed participation, plus a
// redeemed check-in when the live event requires QR.
func canAccessLive(ctx context.Context, q repository.Queries, actor access.Actor, event model.Event, l model.LiveEvent) (bool, error) {
	if access.OwnsEvent(actor, event) {
		return true, nil
	}
	p, err := q.FindParticipation(ctx, actor.UserID, event.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fail("find participation", err)
	}
	if !p.Confirmed() {
		return false, nil
	}
	if !l.RequireQR {
		return true, nil
	}
	_, err = q.LatestCheckin(ctx, actor.UserID, event.ID, model.CheckinRedeemed)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fail("find redeemed checkin", err)
	}
	return true, nil
}
