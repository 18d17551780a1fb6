package service

import (
	"context"
	"errors"

	"github.com/iconic-app/iconic/internal/access"
	"github.com/iconic-app/iconic/internal/model"
	"github.com/iconic-app/iconic/internal/repository"
)

// ParticipationService enforces capacity and join/cancel semantics.
type ParticipationService struct {
	base
}

// NewParticipationService constructs a ParticipationService.
func NewParticipationService(store repository.Store, opts ...Option) *ParticipationService {
	return &ParticipationService{base: newBase(store, opts)}
}

// Join confirms the actor's participation in eventID.
//
// The event row is locked first, so concurrent joins for the same event are
// serialised. The seat is taken with a conditional increment, and the
// participation row is written in the same transaction: a cancelled row is
// reactivated instead of duplicated.
func (s *ParticipationService) Join(ctx context.Context, actor access.Actor, eventID string) (model.Participation, error) {
	var out model.Participation
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		now := s.now()

		event, err := q.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return notFound("lock event", err, ErrEventNotFound)
		}
		user, err := q.GetUser(ctx, actor.UserID)
		if err != nil {
			return notFound("get user", err, ErrUserNotFound)
		}
		if !access.CanJoin(user, event, now) {
			return ErrExclusive
		}

		existing, err := q.FindParticipation(ctx, user.ID, event.ID)
		found := err == nil
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fail("find participation", err)
		}
		if found && existing.Confirmed() {
			return ErrAlreadyJoined
		}

		if err := q.IncrementAttendees(ctx, event.ID); err != nil {
			if errors.Is(err, repository.ErrNoCapacity) {
				return ErrSoldOut
			}
			return notFound("increment attendees", err, ErrEventNotFound)
		}

		if found {
			existing.Status = model.ParticipationConfirmed
			existing.CancelledAt = nil
			if err := q.UpdateParticipation(ctx, existing); err != nil {
				return fail("reactivate participation", err)
			}
			out = existing
			return nil
		}

		out = model.Participation{
			ID:        newID(),
			UserID:    user.ID,
			EventID:   event.ID,
			Status:    model.ParticipationConfirmed,
			CreatedAt: now,
		}
		if err := q.CreateParticipation(ctx, out); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyJoined
			}
			return fail("insert participation", err)
		}
		return nil
	})

	s.metrics.Participation("join", resultOf(err))
	s.logOutcome("participation.join", err, "event_id", eventID, "user_id", actor.UserID)
	if err != nil {
		return model.Participation{}, err
	}
	return out, nil
}

// Rejoin reactivates the participation identified by id for its owner.
func (s *ParticipationService) Rejoin(ctx context.Context, actor access.Actor, id string) (model.Participation, error) {
	var p model.Participation
	err := s.store.View(ctx, func(q repository.Queries) error {
		var err error
		p, err = q.GetParticipation(ctx, id)
		return err
	})
	if err != nil {
		return model.Participation{}, notFound("get participation", err, ErrParticipationNotFound)
	}
	if p.UserID != actor.UserID {
		return model.Participation{}, ErrForbidden
	}
	return s.Join(ctx, actor, p.EventID)
}

// Cancel flips a confirmed participation to cancelled and releases its seat.
// Cancelling an already-cancelled participation is acknowledged without
// touching the counter. Only the participant or an administrator may cancel.
func (s *ParticipationService) Cancel(ctx context.Context, actor access.Actor, id string) (model.Participation, error) {
	var out model.Participation
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		current, err := q.GetParticipation(ctx, id)
		if err != nil {
			return notFound("get participation", err, ErrParticipationNotFound)
		}
		if !access.SelfOrAdmin(actor, current.UserID) {
			return ErrForbidden
		}

		// Lock order matches Join: event first, then participation.
		if _, err := q.GetEventForUpdate(ctx, current.EventID); err != nil {
			return notFound("lock event", err, ErrEventNotFound)
		}
		p, err := q.GetParticipationForUpdate(ctx, id)
		if err != nil {
			return notFound("lock participation", err, ErrParticipationNotFound)
		}
		if !p.Confirmed() {
			out = p
			return nil
		}

		if err := q.DecrementAttendees(ctx, p.EventID); err != nil {
			return fail("decrement attendees", err)
		}
		now := s.now()
		p.Status = model.ParticipationCancelled
		p.CancelledAt = &now
		if err := q.UpdateParticipation(ctx, p); err != nil {
			return fail("cancel participation", err)
		}
		out = p
		return nil
	})

	s.metrics.Participation("cancel", resultOf(err))
	s.logOutcome("participation.cancel", err, "participation_id", id, "user_id", actor.UserID)
	if err != nil {
		return model.Participation{}, err
	}
	return out, nil
}

// Remove hard-deletes a participation. Administrators only. A confirmed
// row releases its seat in the same transaction.
func (s *ParticipationService) Remove(ctx context.Context, actor access.Actor, id string) error {
	if !actor.IsAdmin() {
		return ErrAdminOnly
	}
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		current, err := q.GetParticipation(ctx, id)
		if err != nil {
			return notFound("get participation", err, ErrParticipationNotFound)
		}
		if _, err := q.GetEventForUpdate(ctx, current.EventID); err != nil {
			return notFound("lock event", err, ErrEventNotFound)
		}
		p, err := q.GetParticipationForUpdate(ctx, id)
		if err != nil {
			return notFound("lock participation", err, ErrParticipationNotFound)
		}
		if err := q.DeleteParticipation(ctx, p.ID); err != nil {
			return notFound("delete participation", err, ErrParticipationNotFound)
		}
		if p.Confirmed() {
			if err := q.DecrementAttendees(ctx, p.EventID); err != nil {
				return fail("decrement attendees", err)
			}
		}
		return nil
	})
	s.logOutcome("participation.remove", err, "participation_id", id, "user_id", actor.UserID)
	return err
}

// Get returns a participation to its participant, the event owner or an
// administrator.
func (s *ParticipationService) Get(ctx context.Context, actor access.Actor, id string) (model.Participation, error) {
	var out model.Participation
	err := s.store.View(ctx, func(q repository.Queries) error {
		p, err := q.GetParticipation(ctx, id)
		if err != nil {
			return notFound("get participation", err, ErrParticipationNotFound)
		}
		if !access.SelfOrAdmin(actor, p.UserID) {
			event, err := q.GetEvent(ctx, p.EventID)
			if err != nil {
				return notFound("get event", err, ErrEventNotFound)
			}
			if !access.OwnsEvent(actor, event) {
				return ErrForbidden
			}
		}
		out = p
		return nil
	})
	return out, err
}

// ConfirmedUsers lists the confirmed attendees of eventID through the
// visibility filter. The caller must be confirmed, the owner, or an
// administrator.
func (s *ParticipationService) ConfirmedUsers(ctx context.Context, actor access.Actor, eventID string) ([]model.Profile, error) {
	var out []model.Profile
	err := s.store.View(ctx, func(q repository.Queries) error {
		event, err := q.GetEvent(ctx, eventID)
		if err != nil {
			return notFound("get event", err, ErrEventNotFound)
		}

		ps, err := q.ListParticipations(ctx, repository.ParticipationFilter{EventID: eventID, Status: model.ParticipationConfirmed})
		if err != nil {
			return fail("list participations", err)
		}
		ids := make([]string, 0, len(ps))
		member := false
		for _, p := range ps {
			ids = append(ids, p.UserID)
			member = member || p.UserID == actor.UserID
		}
		if !member && !access.OwnsEvent(actor, event) {
			return ErrNotConfirmed
		}

		out, err = profiles(ctx, q, ids, actor)
		return err
	})
	return out, err
}

// profiles loads users by id and projects them for viewer, keeping ids order.
func profiles(ctx context.Context, q repository.Queries, ids []string, viewer access.Actor) ([]model.Profile, error) {
	users, err := q.ListUsers(ctx, ids)
	if err != nil {
		return nil, fail("list users", err)
	}
	byID := make(map[string]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]model.Profile, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, access.Project(u, viewer))
		}
	}
	return out, nil
}
