// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
//
// Every multi-step rule that must not race (joins, cancels, check-in
// redemption, matchmaking) runs inside a single repository.Store transaction.
package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iconic-app/iconic/internal/apperr"
	"github.com/iconic-app/iconic/internal/logging"
	"github.com/iconic-app/iconic/internal/metrics"
	"github.com/iconic-app/iconic/internal/repository"
)

// Option configures the ambient dependencies shared by every service.
type Option func(*base)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *base) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMetrics sets the metrics sink. A nil sink records nothing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

type base struct {
	store   repository.Store
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Metrics
}

func newBase(store repository.Store, opts []Option) base {
	b := base{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func newID() string { return uuid.NewString() }

// newToken returns 32 random bytes, base64url encoded.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// fail passes domain errors through and wraps anything else as Internal.
func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(op, err)
}

// notFound maps repository.ErrNotFound to domain, everything else to fail.
func notFound(op string, err error, domain *apperr.Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain
	}
	return fail(op, err)
}

func invalid(msg string) error {
	return apperr.BadRequest("invalid_input", msg)
}

func resultOf(err error) string {
	switch apperr.KindOf(err) {
	case "":
		return metrics.ResultOK
	case apperr.KindInternal, apperr.KindUnavailable:
		return metrics.ResultError
	default:
		return metrics.ResultRejected
	}
}

// logOutcome logs business rejections at debug and failures at error.
func (b *base) logOutcome(msg string, err error, attrs ...any) {
	switch apperr.KindOf(err) {
	case "":
		b.log.Info(msg, attrs...)
	case apperr.KindInternal, apperr.KindUnavailable:
		b.log.Error(msg, append(attrs, "err", err)...)
	default:
		b.log.Debug(msg, append(attrs, "code", apperr.CodeOf(err))...)
	}
}

func runeLen(s string) int { return len([]rune(s)) }

func trimmed(s string, lo, hi int, field string) (string, error) {
	s = strings.TrimSpace(s)
	if n := runeLen(s); n < lo || n > hi {
		if lo > 0 {
			return "", invalid(fmt.Sprintf("%s must be %d to %d characters", field, lo, hi))
		}
		return "", invalid(fmt.Sprintf("%s must be at most %d characters", field, hi))
	}
	return s, nil
}
