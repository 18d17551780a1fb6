package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/iconic-app/iconic/internal/access"
	"github.com/iconic-app/iconic/internal/model"
	"github.com/iconic-app/iconic/internal/repository"
)

const (
	minPollOptions = 2
	maxPollOptions = 10
)

// PollService runs polls inside live events.
type PollService struct {
	base
}

// NewPollService constructs a PollService.
func NewPollService(store repository.Store, opts ...Option) *PollService {
	return &PollService{base: newBase(store, opts)}
}

// Create adds a poll to liveEventID. Owner or administrator only.
func (s *PollService) Create(ctx context.Context, actor access.Actor, liveEventID string, req model.CreatePollRequest) (model.Poll, error) {
	question, err := trimmed(req.Question, 1, 500, "question")
	if err != nil {
		return model.Poll{}, err
	}
	if req.DurationSec < 0 {
		return model.Poll{}, invalid("duration_sec must not be negative")
	}
	texts := make([]string, 0, len(req.Options))
	for _, o := range req.Options {
		if o = strings.TrimSpace(o); o != "" {
			texts = append(texts, o)
		}
	}
	if len(texts) < minPollOptions || len(texts) > maxPollOptions {
		return model.Poll{}, invalid("a poll needs 2 to 10 non-empty options")
	}

	var out model.Poll
	err = s.store.Tx(ctx, func(q repository.Queries) error {
		l, event, err := loadLive(ctx, q, liveEventID, false)
		if err != nil {
			return err
		}
		if !access.OwnsEvent(actor, event) {
			return ErrNotOwner
		}
		if l.Status == model.LiveEventEnded {
			return ErrAlreadyEnded
		}
		out = model.Poll{
			ID:          newID(),
			LiveEventID: l.ID,
			Question:    question,
			DurationSec: req.DurationSec,
			Order:       req.Order,
			CreatedAt:   s.now(),
		}
		for _, t := range texts {
			out.Options = append(out.Options, model.PollOption{ID: newID(), PollID: out.ID, Text: t})
		}
		return fail("insert poll", q.CreatePoll(ctx, out))
	})
	s.logOutcome("poll.create", err, "live_event_id", liveEventID, "options", len(texts))
	if err != nil {
		return model.Poll{}, err
	}
	return out, nil
}

// Get returns a poll with its options to anyone who may access its live event.
func (s *PollService) Get(ctx context.Context, actor access.Actor, pollID string) (model.Poll, error) {
	var out model.Poll
	err := s.store.View(ctx, func(q repository.Queries) error {
		p, _, err := accessiblePoll(ctx, q, actor, pollID)
		out = p
		return err
	})
	return out, err
}

// Vote records the actor's single answer. The live event must be active and
// the option must belong to the poll.
func (s *PollService) Vote(ctx context.Context, actor access.Actor, pollID string, req model.VoteRequest) error {
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		p, l, err := accessiblePoll(ctx, q, actor, pollID)
		if err != nil {
			return err
		}
		if !l.Active() {
			return ErrNotActive
		}
		if !slices.ContainsFunc(p.Options, func(o model.PollOption) bool { return o.ID == req.OptionID }) {
			return ErrInvalidOption
		}
		err = q.CreatePollVote(ctx, model.PollVote{
			PollID:    p.ID,
			OptionID:  req.OptionID,
			UserID:    actor.UserID,
			CreatedAt: s.now(),
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrAlreadyVoted
		}
		return fail("insert vote", err)
	})
	s.logOutcome("poll.vote", err, "poll_id", pollID, "user_id", actor.UserID)
	return err
}

// Results tallies votes per option, in option order.
func (s *PollService) Results(ctx context.Context, actor access.Actor, pollID string) (model.PollResults, error) {
	var out model.PollResults
	err := s.store.View(ctx, func(q repository.Queries) error {
		p, _, err := accessiblePoll(ctx, q, actor, pollID)
		if err != nil {
			return err
		}
		counts, err := q.CountPollVotes(ctx, p.ID)
		if err != nil {
			return fail("count votes", err)
		}
		out = model.PollResults{PollID: p.ID, Counts: make([]model.PollOptionCount, 0, len(p.Options))}
		for _, o := range p.Options {
			n := counts[o.ID]
			out.Counts = append(out.Counts, model.PollOptionCount{OptionID: o.ID, Text: o.Text, Votes: n})
			out.Total += n
		}
		return nil
	})
	return out, err
}

// accessiblePoll loads a poll and its live event, checking that actor may
// take part in the live event.
func accessiblePoll(ctx context.Context, q repository.Queries, actor access.Actor, pollID string) (model.Poll, model.LiveEvent, error) {
	p, err := q.GetPoll(ctx, pollID)
	if err != nil {
		return model.Poll{}, model.LiveEvent{}, notFound("get poll", err, ErrPollNotFound)
	}
	l, event, err := loadLive(ctx, q, p.LiveEventID, false)
	if err != nil {
		return model.Poll{}, model.LiveEvent{}, err
	}
	ok, err := canAccessLive(ctx, q, actor, event, l)
	if err != nil {
		return model.Poll{}, model.LiveEvent{}, err
	}
	if !ok {
		return model.Poll{}, model.LiveEvent{}, ErrForbidden
	}
	return p, l, nil
}
