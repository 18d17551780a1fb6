package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iconic-app/iconic/internal/access"
	"github.com/iconic-app/iconic/internal/auth"
	"github.com/iconic-app/iconic/internal/chain"
	"github.com/iconic-app/iconic/internal/model"
	"github.com/iconic-app/iconic/internal/repository"
)

// DefaultMembershipTTL is how long a confirmed payment grants the ICONIC tier.
const DefaultMembershipTTL = 30 * 24 * time.Hour

// Oracle answers membership questions from the chain. *chain.Client
// satisfies it.
type Oracle interface {
	Configured() bool
	Receipt(ctx context.Context, txHash string) (*chain.Receipt, error)
	BecameIconic(r *chain.Receipt, wallet string) bool
	IsIconic(ctx context.Context, wallet string) (bool, error)
}

// UserService mirrors identity-provider accounts and manages roles, profiles
// and the ICONIC tier.
type UserService struct {
	base
	oracle Oracle
	ttl    time.Duration
}

// NewUserService constructs a UserService. A non-positive ttl takes
// DefaultMembershipTTL.
func NewUserService(store repository.Store, oracle Oracle, ttl time.Duration, opts ...Option) *UserService {
	if ttl <= 0 {
		ttl = DefaultMembershipTTL
	}
	return &UserService{base: newBase(store, opts), oracle: oracle, ttl: ttl}
}

// EnsureUser returns the local account for verified identity claims,
// creating it on first sight. The subject is the account id.
func (s *UserService) EnsureUser(ctx context.Context, c auth.Claims) (model.User, error) {
	var u model.User
	err := s.store.View(ctx, func(q repository.Queries) error {
		var err error
		u, err = q.GetUser(ctx, c.Subject)
		return err
	})
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fail("get user", err)
	}

	u = model.User{
		ID:                   c.Subject,
		Email:                c.Email,
		FullName:             c.Name,
		Nickname:             nicknameFrom(c.Email),
		ProfilePictureURL:    c.Picture,
		Role:                 model.RoleUser,
		ShowProfileToIconics: true,
		CreatedAt:            s.now(),
	}
	err = s.store.Tx(ctx, func(q repository.Queries) error {
		return q.CreateUser(ctx, u)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent first request, or the email is taken.
		err = s.store.View(ctx, func(q repository.Queries) error {
			var err error
			u, err = q.GetUser(ctx, c.Subject)
			return err
		})
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrEmailInUse
		}
	}
	if err != nil {
		return model.User{}, fail("create user", err)
	}
	s.log.Info("user.create", "user_id", u.ID)
	return u, nil
}

// Authenticate resolves claims to the Actor used by every other service.
func (s *UserService) Authenticate(ctx context.Context, c auth.Claims) (access.Actor, error) {
	u, err := s.EnsureUser(ctx, c)
	if err != nil {
		return access.Actor{}, err
	}
	return access.ActorFor(u, s.now()), nil
}

func nicknameFrom(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "user"
	}
	return local
}

// Me returns the actor's own account.
func (s *UserService) Me(ctx context.Context, actor access.Actor) (model.User, error) {
	var out model.User
	err := s.store.View(ctx, func(q repository.Queries) error {
		u, err := q.GetUser(ctx, actor.UserID)
		out = u
		return notFound("get user", err, ErrUserNotFound)
	})
	return out, err
}

// UpdateMe applies profile and privacy changes to the actor's account.
func (s *UserService) UpdateMe(ctx context.Context, actor access.Actor, req model.UpdateProfileRequest) (model.User, error) {
	var out model.User
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		u, err := q.GetUser(ctx, actor.UserID)
		if err != nil {
			return notFound("get user", err, ErrUserNotFound)
		}
		if req.Nickname != nil {
			if u.Nickname, err = trimmed(*req.Nickname, 1, 50, "nickname"); err != nil {
				return err
			}
		}
		if req.FullName != nil {
			if u.FullName, err = trimmed(*req.FullName, 0, 100, "full_name"); err != nil {
				return err
			}
		}
		if req.Bio != nil {
			if u.Bio, err = trimmed(*req.Bio, 0, 500, "bio"); err != nil {
				return err
			}
		}
		if req.ProfilePictureURL != nil {
			if u.ProfilePictureURL, err = trimmed(*req.ProfilePictureURL, 0, 2048, "profile_picture_url"); err != nil {
				return err
			}
		}
		if req.ShowPublicProfile != nil {
			u.ShowPublicProfile = *req.ShowPublicProfile
		}
		if req.ShowProfileToIconics != nil {
			u.ShowProfileToIconics = *req.ShowProfileToIconics
		}
		if err := q.UpdateUser(ctx, u); err != nil {
			return notFound("update user", err, ErrUserNotFound)
		}
		out = u
		return nil
	})
	s.logOutcome("user.update", err, "user_id", actor.UserID)
	if err != nil {
		return model.User{}, err
	}
	return out, nil
}

// Get returns another user's profile through the visibility filter.
func (s *UserService) Get(ctx context.Context, actor access.Actor, id string) (model.Profile, error) {
	var out model.Profile
	err := s.store.View(ctx, func(q repository.Queries) error {
		u, err := q.GetUser(ctx, id)
		if err != nil {
			return notFound("get user", err, ErrUserNotFound)
		}
		out = access.Project(u, actor)
		return nil
	})
	return out, err
}

// SetScanner promotes (on) or demotes a user to or from the scanner role.
// Administrators only; administrator accounts cannot be changed.
func (s *UserService) SetScanner(ctx context.Context, actor access.Actor, id string, on bool) (model.User, error) {
	if !actor.IsAdmin() {
		return model.User{}, ErrAdminOnly
	}
	var out model.User
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		u, err := q.GetUser(ctx, id)
		if err != nil {
			return notFound("get user", err, ErrUserNotFound)
		}
		if u.Role == model.RoleAdmin {
			return ErrRoleLocked
		}
		switch {
		case on:
			u.Role = model.RoleScanner
		case u.Role == model.RoleScanner:
			u.Role = model.RoleUser
		}
		out = u
		return notFound("update user", q.UpdateUser(ctx, u), ErrUserNotFound)
	})
	s.logOutcome("user.scanner", err, "target_id", id, "scanner", on, "admin_id", actor.UserID)
	if err != nil {
		return model.User{}, err
	}
	return out, nil
}

// GrantIconic gives a user the ICONIC tier for one membership period without
// a payment. Administrators only.
func (s *UserService) GrantIconic(ctx context.Context, actor access.Actor, id string) (model.User, error) {
	if !actor.IsAdmin() {
		return model.User{}, ErrAdminOnly
	}
	out, err := s.extendMembership(ctx, id, nil)
	s.logOutcome("user.grant_iconic", err, "target_id", id, "admin_id", actor.UserID)
	return out, err
}

// ConfirmPayment verifies an on-chain membership purchase and upgrades the
// actor. The receipt must have succeeded and carry a UserBecameIconic log
// for wallet emitted by the membership contract. Each transaction is credited
// once, and a wallet stays bound to the first account that paid with it.
func (s *UserService) ConfirmPayment(ctx context.Context, actor access.Actor, req model.ConfirmPaymentRequest) (model.User, error) {
	hash := strings.ToLower(strings.TrimSpace(req.TxHash))
	wallet := strings.ToLower(strings.TrimSpace(req.WalletAddress))
	if !chain.ValidTxHash(hash) {
		return model.User{}, invalid("tx_hash must be a 0x-prefixed 32-byte hex string")
	}
	if !chain.ValidAddress(wallet) {
		return model.User{}, invalid("wallet_address must be a 0x-prefixed 20-byte hex string")
	}

	out, err := s.confirmPayment(ctx, actor, hash, wallet)
	s.logOutcome("payment.confirm", err, "user_id", actor.UserID, "tx_hash", hash)
	return out, err
}

func (s *UserService) confirmPayment(ctx context.Context, actor access.Actor, hash, wallet string) (model.User, error) {
	if s.oracle == nil || !s.oracle.Configured() {
		return model.User{}, ErrPaymentUnavailable
	}
	r, err := s.oracle.Receipt(ctx, hash)
	if err != nil {
		return model.User{}, fail("fetch receipt", err)
	}
	if !chain.Succeeded(r) {
		return model.User{}, ErrPaymentFailed
	}
	if !s.oracle.BecameIconic(r, wallet) {
		return model.User{}, ErrPaymentEventMissing
	}
	return s.extendMembership(ctx, actor.UserID, &model.Payment{
		TxHash:        hash,
		UserID:        actor.UserID,
		WalletAddress: wallet,
		CreatedAt:     s.now(),
	})
}

// extendMembership sets the ICONIC tier on id, stacking the TTL on top of an
// unexpired membership. A non-nil pay is recorded in the same transaction.
func (s *UserService) extendMembership(ctx context.Context, id string, pay *model.Payment) (model.User, error) {
	var out model.User
	err := s.store.Tx(ctx, func(q repository.Queries) error {
		u, err := q.GetUser(ctx, id)
		if err != nil {
			return notFound("get user", err, ErrUserNotFound)
		}
		if pay != nil {
			if err := recordPayment(ctx, q, *pay); err != nil {
				return err
			}
		}
		from := s.now()
		if u.IsIconic && u.IconicExpiresAt != nil && u.IconicExpiresAt.After(from) {
			from = *u.IconicExpiresAt
		}
		expires := from.Add(s.ttl)
		u.IsIconic = true
		u.IconicExpiresAt = &expires
		if err := q.UpdateUser(ctx, u); err != nil {
			return notFound("update user", err, ErrUserNotFound)
		}
		out = u
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return out, nil
}

func recordPayment(ctx context.Context, q repository.Queries, p model.Payment) error {
	owner, err := q.ClaimWallet(ctx, p.WalletAddress, p.UserID, p.CreatedAt)
	if err != nil {
		return notFound("claim wallet", err, ErrUserNotFound)
	}
	if owner != p.UserID {
		return ErrWalletInUse
	}
	err = q.CreatePayment(ctx, p)
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrPaymentAlreadyUsed
	}
	return notFound("insert payment", err, ErrUserNotFound)
}

// CheckStatus asks the membership contract whether wallet is ICONIC.
func (s *UserService) CheckStatus(ctx context.Context, req model.WalletStatusRequest) (model.WalletStatus, error) {
	wallet := strings.TrimSpace(req.WalletAddress)
	if !chain.ValidAddress(wallet) {
		return model.WalletStatus{}, invalid("wallet_address must be a 0x-prefixed 20-byte hex string")
	}
	if s.oracle == nil || !s.oracle.Configured() {
		return model.WalletStatus{}, ErrPaymentUnavailable
	}
	ok, err := s.oracle.IsIconic(ctx, wallet)
	if err != nil {
		return model.WalletStatus{}, fail("query membership", err)
	}
	return model.WalletStatus{WalletAddress: wallet, IsIconic: ok}, nil
}
