package service

import (
	"context"
	"errors"
	"slices"

	"github.com/iconic-app/iconic/internal/access"
	"github.com/iconic-app/iconic/internal/matchmaking"
	"github.com/iconic-app/iconic/internal/model"
	"github.com/iconic-app/iconic/internal/repository"
)

// MatchmakingService partitions a live event's eligible pool into random
// groups and answers "who is in my group".
type MatchmakingService struct {
	base
	shuffler *matchmaking.Shuffler
}

// NewMatchmakingService constructs a MatchmakingService around shuffler.
func NewMatchmakingService(store repository.Store, shuffler *matchmaking.Shuffler, opts ...Option) *MatchmakingService {
	return &MatchmakingService{base: newBase(store, opts), shuffler: shuffler}
}

// StartMatch runs one matchmaking round. The eligible pool is the set of
// users with a redeemed check-in when the live event requires QR, otherwise
// the confirmed participants. Groups, members, the round counter and the
// live event's active state are written in one transaction; a rejected run
// writes nothing.
func (s *MatchmakingService) StartMatch(ctx context.Context, actor access.Actor, liveEventID string, groupSize int) (model.MatchResult, error) {
	var out model.MatchResult
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		l, event, err := loadLive(ctx, q, liveEventID, true)
		if err != nil {
			return err
		}
		if !access.OwnsEvent(actor, event) {
			return ErrNotOwner
		}
		if groupSize < matchmaking.MinGroupSize {
			return ErrGroupSize
		}
		if l.Status == model.LiveEventEnded {
			return ErrAlreadyEnded
		}

		pool, err := eligiblePool(ctx, q, l)
		if err != nil {
			return err
		}
		groups, err := matchmaking.Plan(pool, groupSize, s.shuffler)
		switch {
		case errors.Is(err, matchmaking.ErrPoolTooSmall):
			return ErrPoolTooSmall
		case errors.Is(err, matchmaking.ErrGroupSize):
			return ErrGroupSize
		case err != nil:
			return fail("plan groups", err)
		}

		now := s.now()
		round := l.MatchRound + 1
		for i, members := range groups {
			g := model.MatchGroup{
				ID:          newID(),
				LiveEventID: l.ID,
				Round:       round,
				Number:      i + 1,
				CreatedAt:   now,
			}
			if err := q.CreateMatchGroup(ctx, g); err != nil {
				return fail("insert match group", err)
			}
			rows := make([]model.MatchParticipant, len(members))
			for j, uid := range members {
				rows[j] = model.MatchParticipant{GroupID: g.ID, UserID: uid}
			}
			if err := q.CreateMatchParticipants(ctx, rows); err != nil {
				return fail("insert match participants", err)
			}
		}

		l.MatchRound = round
		l.Status = model.LiveEventActive
		l.StartedAt = &now
		if err := q.UpdateLiveEvent(ctx, l); err != nil {
			return fail("update live event", err)
		}

		out = model.MatchResult{Round: round, GroupCount: len(groups)}
		return nil
	})

	s.metrics.MatchRun(resultOf(err), out.GroupCount)
	s.logOutcome("matchmaking.start", err,
		"live_event_id", liveEventID, "group_size", groupSize, "groups", out.GroupCount, "round", out.Round)
	if err != nil {
		return model.MatchResult{}, err
	}
	return out, nil
}

// eligiblePool returns the sorted, de-duplicated user ids eligible for l.
func eligiblePool(ctx context.Context, q repository.Queries, l model.LiveEvent) ([]string, error) {
	var ids []string
	if l.RequireQR {
		cs, err := q.ListCheckins(ctx, repository.CheckinFilter{EventID: l.EventID, Status: model.CheckinRedeemed})
		if err != nil {
			return nil, fail("list checkins", err)
		}
		for _, c := range cs {
			ids = append(ids, c.UserID)
		}
	} else {
		ps, err := q.ListParticipations(ctx, repository.ParticipationFilter{EventID: l.EventID, Status: model.ParticipationConfirmed})
		if err != nil {
			return nil, fail("list participations", err)
		}
		for _, p := range ps {
			ids = append(ids, p.UserID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// MyMatch returns the other members of the actor's group in the current
// round, through the visibility filter.
func (s *MatchmakingService) MyMatch(ctx context.Context, actor access.Actor, liveEventID string) ([]model.Profile, error) {
	var out []model.Profile
	err := s.store.View(ctx, func(q repository.Queries) error {
		l, err := q.GetLiveEvent(ctx, liveEventID)
		if err != nil {
			return notFound("get live event", err, ErrLiveEventNotFound)
		}
		if !l.Active() {
			return ErrNotActive
		}
		g, err := q.FindMatchGroupForUser(ctx, l.ID, l.MatchRound, actor.UserID)
		if err != nil {
			return notFound("find match group", err, ErrNotInGroup)
		}
		members, err := q.ListMatchMembers(ctx, g.ID)
		if err != nil {
			return fail("list match members", err)
		}
		others := make([]string, 0, len(members))
		for _, m := range members {
			if m.UserID != actor.UserID {
				others = append(others, m.UserID)
			}
		}
		out, err = profiles(ctx, q, others, actor)
		return err
	})
	return out, err
}

// Groups lists every group of the current round. Owner or administrator only.
func (s *MatchmakingService) Groups(ctx context.Context, actor access.Actor, liveEventID string) ([]model.MatchGroupView, error) {
	var out []model.MatchGroupView
	err := s.store.View(ctx, func(q repository.Queries) error {
		l, event, err := loadLive(ctx, q, liveEventID, false)
		if err != nil {
			return err
		}
		if !access.OwnsEvent(actor, event) {
			return ErrNotOwner
		}
		groups, err := q.ListMatchGroups(ctx, l.ID, l.MatchRound)
		if err != nil {
			return fail("list match groups", err)
		}
		out = make([]model.MatchGroupView, 0, len(groups))
		for _, g := range groups {
			members, err := q.ListMatchMembers(ctx, g.ID)
			if err != nil {
				return fail("list match members", err)
			}
			ids := make([]string, len(members))
			for i, m := range members {
				ids[i] = m.UserID
			}
			ps, err := profiles(ctx, q, ids, actor)
			if err != nil {
				return err
			}
			out = append(out, model.MatchGroupView{MatchGroup: g, Members: ps})
		}
		return nil
	})
	return out, err
}
