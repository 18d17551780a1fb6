package service

import (
	"context"
	"slices"

	"github.com/oklog/ulid/v2"

	"github.com/iconic-app/iconic/internal/access"
	"github.com/iconic-app/iconic/internal/matchmaking"
	"github.com/iconic-app/iconic/internal/model"
	"github.com/iconic-app/iconic/internal/repository"
)

// ChatHistory is the number of messages returned by List.
const ChatHistory = 30

// ChatService serves the ICONIC members area: the member directory and the
// shared chat room.
type ChatService struct {
	base
	shuffler *matchmaking.Shuffler
}

// NewChatService constructs a ChatService. shuffler orders the member list.
func NewChatService(store repository.Store, shuffler *matchmaking.Shuffler, opts ...Option) *ChatService {
	return &ChatService{base: newBase(store, opts), shuffler: shuffler}
}

func memberOnly(actor access.Actor) error {
	if actor.Elevated() || actor.IsAdmin() {
		return nil
	}
	return ErrNotIconic
}

// Members returns the ICONIC members in a fresh random order.
func (s *ChatService) Members(ctx context.Context, actor access.Actor) ([]model.Profile, error) {
	if err := memberOnly(actor); err != nil {
		return nil, err
	}
	var out []model.Profile
	err := s.store.View(ctx, func(q repository.Queries) error {
		users, err := q.ListIconicUsers(ctx, s.now())
		if err != nil {
			return fail("list iconic users", err)
		}
		ids := make([]string, len(users))
		byID := make(map[string]model.User, len(users))
		for i, u := range users {
			ids[i] = u.ID
			byID[u.ID] = u
		}
		s.shuffler.Shuffle(ids)
		out = make([]model.Profile, len(ids))
		for i, id := range ids {
			out[i] = access.Project(byID[id], actor)
		}
		return nil
	})
	return out, err
}

// List returns the latest ChatHistory messages, newest first.
func (s *ChatService) List(ctx context.Context, actor access.Actor) ([]model.ChatEntry, error) {
	if err := memberOnly(actor); err != nil {
		return nil, err
	}
	var out []model.ChatEntry
	err := s.store.View(ctx, func(q repository.Queries) error {
		msgs, err := q.ListChatMessages(ctx, ChatHistory)
		if err != nil {
			return fail("list chat messages", err)
		}
		ids := make([]string, 0, len(msgs))
		for _, m := range msgs {
			ids = append(ids, m.UserID)
		}
		slices.Sort(ids)
		users, err := q.ListUsers(ctx, slices.Compact(ids))
		if err != nil {
			return fail("list users", err)
		}
		authors := make(map[string]model.User, len(users))
		for _, u := range users {
			authors[u.ID] = u
		}

		out = make([]model.ChatEntry, 0, len(msgs))
		for _, m := range slices.Backward(msgs) {
			out = append(out, chatEntry(m, authors[m.UserID]))
		}
		return nil
	})
	return out, err
}

// Post appends a message from the actor.
func (s *ChatService) Post(ctx context.Context, actor access.Actor, req model.ChatRequest) (model.ChatEntry, error) {
	if err := memberOnly(actor); err != nil {
		return model.ChatEntry{}, err
	}
	text, err := trimmed(req.Message, 1, 1000, "message")
	if err != nil {
		return model.ChatEntry{}, err
	}

	var out model.ChatEntry
	err = s.store.Tx(ctx, func(q repository.Queries) error {
		author, err := q.GetUser(ctx, actor.UserID)
		if err != nil {
			return notFound("get user", err, ErrUserNotFound)
		}
		m := model.ChatMessage{
			ID:        ulid.Make().String(),
			UserID:    actor.UserID,
			Message:   text,
			CreatedAt: s.now(),
		}
		if err := q.CreateChatMessage(ctx, m); err != nil {
			return fail("insert chat message", err)
		}
		out = chatEntry(m, author)
		return nil
	})
	s.logOutcome("chat.post", err, "user_id", actor.UserID)
	if err != nil {
		return model.ChatEntry{}, err
	}
	return out, nil
}

func chatEntry(m model.ChatMessage, author model.User) model.ChatEntry {
	return model.ChatEntry{
		ChatMessage:       m,
		Nickname:          author.Nickname,
		FullName:          author.FullName,
		ProfilePictureURL: author.ProfilePictureURL,
	}
}
