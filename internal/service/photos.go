package service

import (
	"context"
	"errors"
	"net/url"

	"github.com/iconic-app/iconic/internal/access"
	"github.com/iconic-app/iconic/internal/apperr"
	"github.com/iconic-app/iconic/internal/model"
	"github.com/iconic-app/iconic/internal/repository"
)

// PhotoService manages the profile gallery: up to model.MaxUserPhotos images
// per user at distinct positions 1..model.MaxUserPhotos.
type PhotoService struct {
	base
}

// NewPhotoService constructs a PhotoService.
func NewPhotoService(store repository.Store, opts ...Option) *PhotoService {
	return &PhotoService{base: newBase(store, opts)}
}

func photoURL(raw string) (string, error) {
	s, err := trimmed(raw, 1, 2048, "url")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", invalid("url must be an absolute http(s) URL")
	}
	return s, nil
}

// List returns userID's gallery ordered by position. An empty userID means
// the actor. Galleries of hidden profiles come back empty.
func (s *PhotoService) List(ctx context.Context, actor access.Actor, userID string) ([]model.UserPhoto, error) {
	if userID == "" {
		userID = actor.UserID
	}
	var out []model.UserPhoto
	err := s.store.View(ctx, func(q repository.Queries) error {
		u, err := q.GetUser(ctx, userID)
		if err != nil {
			return notFound("get user", err, ErrUserNotFound)
		}
		if !access.Visible(u, actor) {
			return nil
		}
		out, err = q.ListUserPhotos(ctx, userID)
		if err != nil {
			return fail("list user photos", err)
		}
		return nil
	})
	return out, err
}

// Add appends a photo at the lowest free position.
func (s *PhotoService) Add(ctx context.Context, actor access.Actor, req model.PhotoRequest) (model.UserPhoto, error) {
	link, err := photoURL(req.URL)
	if err != nil {
		return model.UserPhoto{}, err
	}

	var out model.UserPhoto
	err = s.store.Tx(ctx, func(q repository.Queries) error {
		existing, err := q.ListUserPhotos(ctx, actor.UserID)
		if err != nil {
			return fail("list user photos", err)
		}
		if len(existing) >= model.MaxUserPhotos {
			return ErrPhotoLimit
		}
		out = model.UserPhoto{
			ID:        newID(),
			UserID:    actor.UserID,
			URL:       link,
			Position:  freePosition(existing),
			CreatedAt: s.now(),
		}
		return photoErr("insert user photo", q.CreateUserPhoto(ctx, out), ErrUserNotFound)
	})
	s.logOutcome("photo.add", err, "user_id", actor.UserID, "position", out.Position)
	if err != nil {
		return model.UserPhoto{}, err
	}
	return out, nil
}

// freePosition returns the lowest position no photo in ps occupies.
func freePosition(ps []model.UserPhoto) int {
	used := make(map[int]bool, len(ps))
	for _, p := range ps {
		used[p.Position] = true
	}
	for pos := 1; pos <= model.MaxUserPhotos; pos++ {
		if !used[pos] {
			return pos
		}
	}
	return model.MaxUserPhotos
}

// Update replaces the URL or moves the photo. Moving onto an occupied
// position fails with ErrPositionTaken.
func (s *PhotoService) Update(ctx context.Context, actor access.Actor, id string, req model.UpdatePhotoRequest) (model.UserPhoto, error) {
	if req.Position != nil && (*req.Position < 1 || *req.Position > model.MaxUserPhotos) {
		return model.UserPhoto{}, invalid("position must be between 1 and 6")
	}
	var link string
	if req.URL != nil {
		var err error
		if link, err = photoURL(*req.URL); err != nil {
			return model.UserPhoto{}, err
		}
	}

	var out model.UserPhoto
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		p, err := q.GetUserPhoto(ctx, id)
		if err != nil {
			return notFound("get user photo", err, ErrPhotoNotFound)
		}
		if p.UserID != actor.UserID {
			return ErrForbidden
		}
		if req.URL != nil {
			p.URL = link
		}
		if req.Position != nil {
			p.Position = *req.Position
		}
		out = p
		return photoErr("update user photo", q.UpdateUserPhoto(ctx, p), ErrPhotoNotFound)
	})
	s.logOutcome("photo.update", err, "user_id", actor.UserID, "photo_id", id)
	if err != nil {
		return model.UserPhoto{}, err
	}
	return out, nil
}

// Delete removes a photo and closes the gap so the remaining photos occupy
// positions 1..n in their previous order. Owners and administrators only.
func (s *PhotoService) Delete(ctx context.Context, actor access.Actor, id string) error {
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		p, err := q.GetUserPhoto(ctx, id)
		if err != nil {
			return notFound("get user photo", err, ErrPhotoNotFound)
		}
		if !access.SelfOrAdmin(actor, p.UserID) {
			return ErrForbidden
		}
		if err := q.DeleteUserPhoto(ctx, id); err != nil {
			return notFound("delete user photo", err, ErrPhotoNotFound)
		}
		rest, err := q.ListUserPhotos(ctx, p.UserID)
		if err != nil {
			return fail("list user photos", err)
		}
		// rest is ordered by position, so each move targets a slot already vacated.
		for i, r := range rest {
			if r.Position == i+1 {
				continue
			}
			r.Position = i + 1
			if err := q.UpdateUserPhoto(ctx, r); err != nil {
				return fail("compact user photos", err)
			}
		}
		return nil
	})
	s.logOutcome("photo.delete", err, "user_id", actor.UserID, "photo_id", id)
	return err
}

// photoErr maps a gallery write failure; a unique violation means the
// position was taken by a concurrent writer or a sibling photo.
func photoErr(op string, err error, missing *apperr.Error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrPositionTaken
	}
	return notFound(op, err, missing)
}
