package service

import "github.com/iconic-app/iconic/internal/apperr"

// Domain errors. Handlers map these through apperr.Kind; callers compare
// with errors.Is.
var (
	ErrEventNotFound         = apperr.NotFound("event_not_found", "event not found")
	ErrUserNotFound          = apperr.NotFound("user_not_found", "user not found")
	ErrParticipationNotFound = apperr.NotFound("participation_not_found", "participation not found")
	ErrCheckinNotFound       = apperr.NotFound("token_not_found", "check-in token not found")
	ErrLiveEventNotFound     = apperr.NotFound("live_event_not_found", "live event not found")
	ErrPhotoNotFound         = apperr.NotFound("photo_not_found", "photo not found")
	ErrCheckinRowNotFound    = apperr.NotFound("checkin_not_found", "check-in not found")
	ErrPollNotFound          = apperr.NotFound("poll_not_found", "poll not found")
	ErrNotInGroup            = apperr.NotFound("not_in_group", "you are not in a group for this round")

	ErrForbidden       = apperr.Forbidden("forbidden", "not allowed")
	ErrNotOwner        = apperr.Forbidden("not_owner", "only the event owner or an administrator may do this")
	ErrAdminOnly       = apperr.Forbidden("admin_only", "administrator role required")
	ErrExclusive       = apperr.Forbidden("exclusive_event", "this event is reserved for ICONIC members")
	ErrSoldOut         = apperr.Forbidden("sold_out", "event is sold out")
	ErrNotConfirmed    = apperr.Forbidden("not_confirmed", "a confirmed participation is required")
	ErrNotScanner      = apperr.Forbidden("not_scanner", "scanner or administrator role required")
	ErrTokenExpired    = apperr.Forbidden("token_expired", "check-in token has expired")
	ErrTokenSuperseded = apperr.Forbidden("token_superseded", "check-in token was replaced by a newer one")
	ErrNotIconic       = apperr.Forbidden("iconic_only", "ICONIC membership required")

	ErrAlreadyJoined          = apperr.Conflict("already_joined", "already joined this event")
	ErrAlreadyCheckedIn       = apperr.Conflict("already_checked_in", "already checked in to this event")
	ErrCooldown               = apperr.Conflict("cooldown", "wait before generating a new check-in token")
	ErrTokenRedeemed          = apperr.Conflict("token_redeemed", "check-in token already used")
	ErrAlreadyActive          = apperr.Conflict("already_active", "live event is already active")
	ErrAlreadyEnded           = apperr.Conflict("already_ended", "live event has ended")
	ErrNotActive              = apperr.Conflict("not_active", "live event is not active")
	ErrPoolTooSmall           = apperr.Conflict("pool_too_small", "not enough eligible participants for the group size")
	ErrAlreadyVoted           = apperr.Conflict("already_voted", "already voted in this poll")
	ErrCapacityBelowAttendees = apperr.Conflict("capacity_below_attendees", "max_attendees cannot be lower than current attendees")
	ErrPaymentEventMissing    = apperr.Conflict("payment_event_missing", "transaction did not make this wallet ICONIC")
	ErrPaymentAlreadyUsed     = apperr.Conflict("payment_already_used", "transaction has already been credited")
	ErrWalletInUse            = apperr.Conflict("wallet_in_use", "wallet is bound to another account")
	ErrPhotoLimit             = apperr.Conflict("photo_limit", "a profile holds at most 6 photos")
	ErrPositionTaken          = apperr.Conflict("position_taken", "another photo already uses this position")
	ErrRoleLocked             = apperr.Conflict("role_locked", "administrator roles cannot be changed here")
	ErrEmailInUse             = apperr.Conflict("email_in_use", "email belongs to another account")

	ErrGroupSize     = apperr.BadRequest("invalid_group_size", "group_size must be at least 2")
	ErrInvalidOption = apperr.BadRequest("invalid_option", "option does not belong to this poll")
	ErrPaymentFailed = apperr.BadRequest("payment_failed", "transaction not found or failed")

	ErrPaymentUnavailable = apperr.Unavailable("payment_unavailable", "payment confirmation is not configured")
)
