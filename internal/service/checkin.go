package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/iconic-app/iconic/internal/access"
	"github.com/iconic-app/iconic/internal/model"
	"github.com/iconic-app/iconic/internal/repository"
)

// Default check-in windows.
const (
	DefaultCheckinFreshness = 60 * time.Second
	DefaultCheckinCooldown  = 15 * time.Second
)

const qrImageBase = "https://api.qrserver.com/v1/create-qr-code/"

// CheckinConfig holds the token time windows.
type CheckinConfig struct {
	// Freshness is how long a pending token stays redeemable.
	Freshness time.Duration
	// Cooldown is the minimum age of a pending token before it can be replaced.
	Cooldown time.Duration
}

// CheckinService issues and redeems single-use QR check-in tokens.
type CheckinService struct {
	base
	cfg CheckinConfig
}

// NewCheckinService constructs a CheckinService. Zero windows take the
// defaults.
func NewCheckinService(store repository.Store, cfg CheckinConfig, opts ...Option) *CheckinService {
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultCheckinFreshness
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = DefaultCheckinCooldown
	}
	return &CheckinService{base: newBase(store, opts), cfg: cfg}
}

// QRCodeURL returns an image URL encoding token.
func QRCodeURL(token string) string {
	return qrImageBase + "?data=" + url.QueryEscape(token) + "&size=200x200"
}

// Generate issues a new pending token for the actor at eventID. Older
// pending tokens for the same event are superseded in the same transaction,
// so at most one pending token exists per (user, event).
func (s *CheckinService) Generate(ctx context.Context, actor access.Actor, eventID string) (model.IssuedCheckin, error) {
	token, err := newToken()
	if err != nil {
		return model.IssuedCheckin{}, fail("generate token", err)
	}

	var out model.Checkin
	err = s.store.Tx(ctx, func(q repository.Queries) error {
		now := s.now()

		if _, err := q.GetEvent(ctx, eventID); err != nil {
			return notFound("get event", err, ErrEventNotFound)
		}
		p, err := q.FindParticipation(ctx, actor.UserID, eventID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fail("find participation", err)
		}
		if err != nil || !p.Confirmed() {
			return ErrNotConfirmed
		}

		if _, err := q.LatestCheckin(ctx, actor.UserID, eventID, model.CheckinRedeemed); err == nil {
			return ErrAlreadyCheckedIn
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fail("find redeemed checkin", err)
		}

		pending, err := q.LatestCheckin(ctx, actor.UserID, eventID, model.CheckinPending)
		switch {
		case err == nil:
			if now.Sub(pending.IssuedAt) < s.cfg.Cooldown {
				return ErrCooldown
			}
		case !errors.Is(err, repository.ErrNotFound):
			return fail("find pending checkin", err)
		}

		if _, err := q.SupersedePendingCheckins(ctx, actor.UserID, eventID); err != nil {
			return fail("supersede checkins", err)
		}

		out = model.Checkin{
			ID:       newID(),
			UserID:   actor.UserID,
			EventID:  eventID,
			Token:    token,
			Status:   model.CheckinPending,
			IssuedAt: now,
		}
		if err := q.CreateCheckin(ctx, out); err != nil {
			return fail("insert checkin", err)
		}
		return nil
	})

	s.metrics.Checkin("generate", resultOf(err))
	s.logOutcome("checkin.generate", err, "event_id", eventID, "user_id", actor.UserID)
	if err != nil {
		return model.IssuedCheckin{}, err
	}
	return model.IssuedCheckin{
		Checkin:   out,
		ExpiresAt: out.IssuedAt.Add(s.cfg.Freshness),
		QRCodeURL: QRCodeURL(out.Token),
	}, nil
}

// Redeem marks token as used by the scanning actor. The state change is a
// single conditional update on (token, pending, fresh); when it matches
// nothing the row is re-read to report why.
func (s *CheckinService) Redeem(ctx context.Context, actor access.Actor, token string) (model.ScanResult, error) {
	token = strings.TrimSpace(token)
	if !actor.CanScan() {
		return model.ScanResult{}, ErrNotScanner
	}
	if token == "" {
		return model.ScanResult{}, invalid("qr_token is required")
	}

	var out model.ScanResult
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		now := s.now()

		c, err := q.RedeemCheckin(ctx, repository.RedeemParams{
			Token:       token,
			By:          actor.UserID,
			At:          now,
			IssuedAfter: now.Add(-s.cfg.Freshness),
		})
		switch {
		case errors.Is(err, repository.ErrConditionFailed):
			return s.classifyRedeemMiss(ctx, q, token, now)
		case errors.Is(err, repository.ErrDuplicate):
			return ErrAlreadyCheckedIn
		case err != nil:
			return fail("redeem checkin", err)
		}

		attendee, err := q.GetUser(ctx, c.UserID)
		if err != nil {
			return notFound("get attendee", err, ErrUserNotFound)
		}
		out = model.ScanResult{Checkin: c, Attendee: access.Project(attendee, actor)}
		return nil
	})

	s.metrics.Checkin("redeem", resultOf(err))
	s.logOutcome("checkin.redeem", err, "scanner_id", actor.UserID, "event_id", out.Checkin.EventID)
	if err != nil {
		return model.ScanResult{}, err
	}
	return out, nil
}

func (s *CheckinService) classifyRedeemMiss(ctx context.Context, q repository.Queries, token string, now time.Time) error {
	c, err := q.GetCheckinByToken(ctx, token)
	if err != nil {
		return notFound("get checkin", err, ErrCheckinNotFound)
	}
	switch {
	case c.Redeemed():
		return ErrTokenRedeemed
	case c.Status == model.CheckinSuperseded:
		return ErrTokenSuperseded
	case c.ExpiredAt(now, s.cfg.Freshness):
		return ErrTokenExpired
	}
	return fail("redeem checkin", repository.ErrConditionFailed)
}

// IsCheckedIn reports whether userID has a redeemed check-in for eventID.
// Pending and expired tokens do not count.
func (s *CheckinService) IsCheckedIn(ctx context.Context, userID, eventID string) (bool, error) {
	var checked bool
	err := s.store.View(ctx, func(q repository.Queries) error {
		if _, err := q.GetEvent(ctx, eventID); err != nil {
			return notFound("get event", err, ErrEventNotFound)
		}
		_, err := q.LatestCheckin(ctx, userID, eventID, model.CheckinRedeemed)
		switch {
		case err == nil:
			checked = true
		case !errors.Is(err, repository.ErrNotFound):
			return fail("find redeemed checkin", err)
		}
		return nil
	})
	return checked, err
}

// CheckedInUsers lists attendees with a redeemed check-in. The caller must
// be checked in, the owner, or an administrator.
func (s *CheckinService) CheckedInUsers(ctx context.Context, actor access.Actor, eventID string) ([]model.Profile, error) {
	var out []model.Profile
	err := s.store.View(ctx, func(q repository.Queries) error {
		event, err := q.GetEvent(ctx, eventID)
		if err != nil {
			return notFound("get event", err, ErrEventNotFound)
		}
		cs, err := q.ListCheckins(ctx, repository.CheckinFilter{EventID: eventID, Status: model.CheckinRedeemed})
		if err != nil {
			return fail("list checkins", err)
		}
		ids := make([]string, 0, len(cs))
		member := false
		for _, c := range cs {
			ids = append(ids, c.UserID)
			member = member || c.UserID == actor.UserID
		}
		if !member && !access.OwnsEvent(actor, event) {
			return ErrForbidden
		}
		out, err = profiles(ctx, q, ids, actor)
		return err
	})
	return out, err
}

// Manual checks in the attendee with email at eventID without a token.
func (s *CheckinService) Manual(ctx context.Context, actor access.Actor, req model.ManualCheckinRequest) (model.Checkin, error) {
	if !actor.CanScan() {
		return model.Checkin{}, ErrNotScanner
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.EventID == "" {
		return model.Checkin{}, invalid("event_id and email are required")
	}

	var out model.Checkin
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		now := s.now()

		if _, err := q.GetEvent(ctx, req.EventID); err != nil {
			return notFound("get event", err, ErrEventNotFound)
		}
		user, err := q.GetUserByEmail(ctx, email)
		if err != nil {
			return notFound("get user", err, ErrUserNotFound)
		}
		p, err := q.FindParticipation(ctx, user.ID, req.EventID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fail("find participation", err)
		}
		if err != nil || !p.Confirmed() {
			return ErrNotConfirmed
		}
		if _, err := q.LatestCheckin(ctx, user.ID, req.EventID, model.CheckinRedeemed); err == nil {
			return ErrAlreadyCheckedIn
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fail("find redeemed checkin", err)
		}
		if _, err := q.SupersedePendingCheckins(ctx, user.ID, req.EventID); err != nil {
			return fail("supersede checkins", err)
		}

		token, err := newToken()
		if err != nil {
			return fail("generate token", err)
		}
		by := actor.UserID
		out = model.Checkin{
			ID:         newID(),
			UserID:     user.ID,
			EventID:    req.EventID,
			Token:      token,
			Status:     model.CheckinRedeemed,
			IssuedAt:   now,
			RedeemedAt: &now,
			RedeemedBy: &by,
		}
		if err := q.CreateCheckin(ctx, out); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyCheckedIn
			}
			return fail("insert checkin", err)
		}
		return nil
	})

	s.metrics.Checkin("manual", resultOf(err))
	s.logOutcome("checkin.manual", err, "event_id", req.EventID, "scanner_id", actor.UserID)
	if err != nil {
		return model.Checkin{}, err
	}
	return out, nil
}

// ListForEvent returns every check-in row for eventID, including pending and
// superseded tokens. Event owners, scanners and administrators only.
func (s *CheckinService) ListForEvent(ctx context.Context, actor access.Actor, eventID string) ([]model.Checkin, error) {
	var out []model.Checkin
	err := s.store.View(ctx, func(q repository.Queries) error {
		event, err := q.GetEvent(ctx, eventID)
		if err != nil {
			return notFound("get event", err, ErrEventNotFound)
		}
		if !access.OwnsEvent(actor, event) && !actor.CanScan() {
			return ErrNotOwner
		}
		out, err = q.ListCheckins(ctx, repository.CheckinFilter{EventID: eventID})
		if err != nil {
			return fail("list checkins", err)
		}
		return nil
	})
	return out, err
}

// Scanned returns the redeemed check-ins for eventID with the attendee and
// the scanning account. Manual check-ins name the staff member who made
// them. Scanners and administrators only.
func (s *CheckinService) Scanned(ctx context.Context, actor access.Actor, eventID string) ([]model.ScannedCheckin, error) {
	if !actor.CanScan() {
		return nil, ErrNotScanner
	}
	var out []model.ScannedCheckin
	err := s.store.View(ctx, func(q repository.Queries) error {
		if _, err := q.GetEvent(ctx, eventID); err != nil {
			return notFound("get event", err, ErrEventNotFound)
		}
		cs, err := q.ListCheckins(ctx, repository.CheckinFilter{EventID: eventID, Status: model.CheckinRedeemed})
		if err != nil {
			return fail("list checkins", err)
		}
		ids := make([]string, 0, 2*len(cs))
		for _, c := range cs {
			ids = append(ids, c.UserID)
			if c.RedeemedBy != nil {
				ids = append(ids, *c.RedeemedBy)
			}
		}
		users, err := q.ListUsers(ctx, ids)
		if err != nil {
			return fail("list users", err)
		}
		byID := make(map[string]model.User, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}

		out = make([]model.ScannedCheckin, 0, len(cs))
		for _, c := range cs {
			row := model.ScannedCheckin{Checkin: c, User: access.Project(byID[c.UserID], actor)}
			if c.RedeemedBy != nil {
				if u, ok := byID[*c.RedeemedBy]; ok {
					p := access.Project(u, actor)
					row.Scanner = &p
				}
			}
			out = append(out, row)
		}
		return nil
	})
	return out, err
}

// Delete removes a check-in row, letting the attendee check in again.
// Administrators only.
func (s *CheckinService) Delete(ctx context.Context, actor access.Actor, id string) error {
	if !actor.IsAdmin() {
		return ErrAdminOnly
	}
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		return notFound("delete checkin", q.DeleteCheckin(ctx, id), ErrCheckinRowNotFound)
	})
	s.logOutcome("checkin.delete", err, "checkin_id", id, "admin_id", actor.UserID)
	return err
}
