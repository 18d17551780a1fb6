package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iconic-app/iconic/internal/database"
	"github.com/iconic-app/iconic/internal/model"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// View runs fn inside a READ ONLY transaction, so writes fail with
// ErrReadOnly as they do in MemoryStore.
func (s *PostgresStore) View(ctx context.Context, fn func(Queries) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	return fn(&pgQueries{db: tx})
}

// Tx runs fn inside a single READ COMMITTED transaction. Row locks taken with
// the ForUpdate reads are held until fn returns.
func (s *PostgresStore) Tx(ctx context.Context, fn func(Queries) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&pgQueries{db: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ping checks database reachability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return database.Ping(ctx, s.db, 2*time.Second)
}

// Close releases the pool.
func (s *PostgresStore) Close() { s.db.Close() }

type pgQueries struct {
	db dbtx
}

// mapErr translates driver errors into the package's sentinels.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case "25006": // read_only_sql_transaction
			return fmt.Errorf("%s: %w", op, ErrReadOnly)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func expectOne(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ── users ───────────────────────────────────────────────────────────────────

const userCols = `id, email, full_name, nickname, bio, profile_picture_url, role,
	is_iconic, iconic_expires_at, show_public_profile, show_profile_to_iconics, created_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Nickname, &u.Bio, &u.ProfilePictureURL, &u.Role,
		&u.IsIconic, &u.IconicExpiresAt, &u.ShowPublicProfile, &u.ShowProfileToIconics, &u.CreatedAt)
	return u, err
}

func (q *pgQueries) GetUser(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	return u, mapErr("get user", err)
}

func (q *pgQueries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email))
	return u, mapErr("get user by email", err)
}

func (q *pgQueries) ListUsers(ctx context.Context, ids []string) ([]model.User, error) {
	rows, err := q.db.Query(ctx, `SELECT `+userCols+` FROM users WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, mapErr("list users", err)
	}
	return collect(rows, scanUser, "scan user")
}

func (q *pgQueries) ListIconicUsers(ctx context.Context, now time.Time) ([]model.User, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+userCols+` FROM users
		 WHERE role = 'iconic' OR (is_iconic AND (iconic_expires_at IS NULL OR iconic_expires_at > $1))
		 ORDER BY created_at`, now)
	if err != nil {
		return nil, mapErr("list iconic users", err)
	}
	return collect(rows, scanUser, "scan user")
}

func (q *pgQueries) CreateUser(ctx context.Context, u model.User) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO users (`+userCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Email, u.FullName, u.Nickname, u.Bio, u.ProfilePictureURL, u.Role,
		u.IsIconic, u.IconicExpiresAt, u.ShowPublicProfile, u.ShowProfileToIconics, u.CreatedAt)
	return mapErr("insert user", err)
}

func (q *pgQueries) UpdateUser(ctx context.Context, u model.User) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE users SET email = $2, full_name = $3, nickname = $4, bio = $5, profile_picture_url = $6,
		 role = $7, is_iconic = $8, iconic_expires_at = $9, show_public_profile = $10,
		 show_profile_to_iconics = $11
		 WHERE id = $1`,
		u.ID, u.Email, u.FullName, u.Nickname, u.Bio, u.ProfilePictureURL,
		u.Role, u.IsIconic, u.IconicExpiresAt, u.ShowPublicProfile, u.ShowProfileToIconics)
	return expectOne("update user", tag, err)
}

// ── events ──────────────────────────────────────────────────────────────────

const eventCols = `id, owner_id, title, description, location, category, is_exclusive, is_public,
	max_attendees, current_attendees, start_at, end_at, created_at`

func scanEvent(row pgx.Row) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.Location, &e.Category,
		&e.IsExclusive, &e.IsPublic, &e.MaxAttendees, &e.CurrentAttendees, &e.StartAt, &e.EndAt, &e.CreatedAt)
	return e, err
}

func (q *pgQueries) CreateEvent(ctx context.Context, e model.Event) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO events (`+eventCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.OwnerID, e.Title, e.Description, e.Location, e.Category, e.IsExclusive, e.IsPublic,
		e.MaxAttendees, e.CurrentAttendees, e.StartAt, e.EndAt, e.CreatedAt)
	return mapErr("insert event", err)
}

func (q *pgQueries) GetEvent(ctx context.Context, id string) (model.Event, error) {
	e, err := scanEvent(q.db.QueryRow(ctx, `SELECT `+eventCols+` FROM events WHERE id = $1`, id))
	return e, mapErr("get event", err)
}

// GetEventForUpdate locks the event row for the rest of the transaction.
func (q *pgQueries) GetEventForUpdate(ctx context.Context, id string) (model.Event, error) {
	e, err := scanEvent(q.db.QueryRow(ctx, `SELECT `+eventCols+` FROM events WHERE id = $1 FOR UPDATE`, id))
	return e, mapErr("lock event", err)
}

func (q *pgQueries) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error) {
	sql := `SELECT ` + eventCols + ` FROM events WHERE TRUE`
	var args []any
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		sql += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if f.PublicOnly {
		sql += " AND is_public"
	}
	if f.IDs != nil {
		args = append(args, f.IDs)
		sql += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}
	sql += " ORDER BY start_at, id"

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr("list events", err)
	}
	return collect(rows, scanEvent, "scan event")
}

func (q *pgQueries) UpdateEvent(ctx context.Context, e model.Event) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE events SET title = $2, description = $3, location = $4, category = $5,
		 is_exclusive = $6, is_public = $7, max_attendees = $8, start_at = $9, end_at = $10
		 WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Location, e.Category, e.IsExclusive, e.IsPublic,
		e.MaxAttendees, e.StartAt, e.EndAt)
	return expectOne("update event", tag, err)
}

func (q *pgQueries) DeleteEvent(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return expectOne("delete event", tag, err)
}

// IncrementAttendees takes one seat if any remain. The check and the write
// are a single statement, so concurrent callers can never overfill.
func (q *pgQueries) IncrementAttendees(ctx context.Context, eventID string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE events SET current_attendees = current_attendees + 1
		 WHERE id = $1 AND current_attendees < max_attendees`, eventID)
	if err != nil {
		return mapErr("increment attendees", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return q.classifyCounterMiss(ctx, eventID, ErrNoCapacity)
}

// DecrementAttendees releases one seat, never going below zero.
func (q *pgQueries) DecrementAttendees(ctx context.Context, eventID string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE events SET current_attendees = current_attendees - 1
		 WHERE id = $1 AND current_attendees > 0`, eventID)
	if err != nil {
		return mapErr("decrement attendees", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return q.classifyCounterMiss(ctx, eventID, ErrConditionFailed)
}

func (q *pgQueries) classifyCounterMiss(ctx context.Context, eventID string, miss error) error {
	var exists bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
		return mapErr("classify counter update", err)
	}
	if !exists {
		return ErrNotFound
	}
	return miss
}

// ── participations ──────────────────────────────────────────────────────────

const participationCols = `id, user_id, event_id, status, created_at, cancelled_at`

func scanParticipation(row pgx.Row) (model.Participation, error) {
	var p model.Participation
	err := row.Scan(&p.ID, &p.UserID, &p.EventID, &p.Status, &p.CreatedAt, &p.CancelledAt)
	return p, err
}

func (q *pgQueries) CreateParticipation(ctx context.Context, p model.Participation) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO event_participations (`+participationCols+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.UserID, p.EventID, p.Status, p.CreatedAt, p.CancelledAt)
	return mapErr("insert participation", err)
}

func (q *pgQueries) GetParticipation(ctx context.Context, id string) (model.Participation, error) {
	p, err := scanParticipation(q.db.QueryRow(ctx,
		`SELECT `+participationCols+` FROM event_participations WHERE id = $1`, id))
	return p, mapErr("get participation", err)
}

func (q *pgQueries) GetParticipationForUpdate(ctx context.Context, id string) (model.Participation, error) {
	p, err := scanParticipation(q.db.QueryRow(ctx,
		`SELECT `+participationCols+` FROM event_participations WHERE id = $1 FOR UPDATE`, id))
	return p, mapErr("lock participation", err)
}

// FindParticipation returns the (user, event) row and locks it when called
// inside a transaction.
func (q *pgQueries) FindParticipation(ctx context.Context, userID, eventID string) (model.Participation, error) {
	sql := `SELECT ` + participationCols + ` FROM event_participations WHERE user_id = $1 AND event_id = $2`
	if _, ok := q.db.(pgx.Tx); ok {
		sql += " FOR UPDATE"
	}
	p, err := scanParticipation(q.db.QueryRow(ctx, sql, userID, eventID))
	return p, mapErr("find participation", err)
}

func (q *pgQueries) UpdateParticipation(ctx context.Context, p model.Participation) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE event_participations SET status = $2, cancelled_at = $3 WHERE id = $1`,
		p.ID, p.Status, p.CancelledAt)
	return expectOne("update participation", tag, err)
}

func (q *pgQueries) DeleteParticipation(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM event_participations WHERE id = $1`, id)
	return expectOne("delete participation", tag, err)
}

func (q *pgQueries) ListParticipations(ctx context.Context, f ParticipationFilter) ([]model.Participation, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+participationCols+` FROM event_participations
		 WHERE ($1 = '' OR event_id = $1) AND ($2 = '' OR user_id = $2) AND ($3 = '' OR status = $3)
		 ORDER BY created_at, id`,
		f.EventID, f.UserID, string(f.Status))
	if err != nil {
		return nil, mapErr("list participations", err)
	}
	return collect(rows, scanParticipation, "scan participation")
}

// ── check-ins ───────────────────────────────────────────────────────────────

const checkinCols = `id, user_id, event_id, qr_token, status, issued_at, redeemed_at, redeemed_by`

func scanCheckin(row pgx.Row) (model.Checkin, error) {
	var c model.Checkin
	err := row.Scan(&c.ID, &c.UserID, &c.EventID, &c.Token, &c.Status, &c.IssuedAt, &c.RedeemedAt, &c.RedeemedBy)
	return c, err
}

func (q *pgQueries) CreateCheckin(ctx context.Context, c model.Checkin) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO event_checkins (`+checkinCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.EventID, c.Token, c.Status, c.IssuedAt, c.RedeemedAt, c.RedeemedBy)
	return mapErr("insert checkin", err)
}

func (q *pgQueries) GetCheckinByToken(ctx context.Context, token string) (model.Checkin, error) {
	c, err := scanCheckin(q.db.QueryRow(ctx, `SELECT `+checkinCols+` FROM event_checkins WHERE qr_token = $1`, token))
	return c, mapErr("get checkin", err)
}

// LatestCheckin returns the most recently issued row for (user, event) with
// the given status, or any status when status is empty.
func (q *pgQueries) LatestCheckin(ctx context.Context, userID, eventID string, status model.CheckinStatus) (model.Checkin, error) {
	c, err := scanCheckin(q.db.QueryRow(ctx,
		`SELECT `+checkinCols+` FROM event_checkins
		 WHERE user_id = $1 AND event_id = $2 AND ($3 = '' OR status = $3)
		 ORDER BY issued_at DESC, id DESC LIMIT 1`,
		userID, eventID, string(status)))
	return c, mapErr("latest checkin", err)
}

// RedeemCheckin flips a fresh pending token to redeemed in one statement.
// ErrConditionFailed means the token exists in some other state or is stale;
// the caller re-reads to classify.
func (q *pgQueries) RedeemCheckin(ctx context.Context, p RedeemParams) (model.Checkin, error) {
	c, err := scanCheckin(q.db.QueryRow(ctx,
		`UPDATE event_checkins SET status = 'redeemed', redeemed_at = $2, redeemed_by = $3
		 WHERE qr_token = $1 AND status = 'pending' AND issued_at > $4
		 RETURNING `+checkinCols,
		p.Token, p.At, p.By, p.IssuedAfter))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Checkin{}, ErrConditionFailed
	}
	return c, mapErr("redeem checkin", err)
}

func (q *pgQueries) SupersedePendingCheckins(ctx context.Context, userID, eventID string) (int, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE event_checkins SET status = 'superseded'
		 WHERE user_id = $1 AND event_id = $2 AND status = 'pending'`, userID, eventID)
	if err != nil {
		return 0, mapErr("supersede checkins", err)
	}
	return int(tag.RowsAffected()), nil
}

func (q *pgQueries) ListCheckins(ctx context.Context, f CheckinFilter) ([]model.Checkin, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+checkinCols+` FROM event_checkins
		 WHERE ($1 = '' OR event_id = $1) AND ($2 = '' OR user_id = $2) AND ($3 = '' OR status = $3)
		 ORDER BY issued_at, id`,
		f.EventID, f.UserID, string(f.Status))
	if err != nil {
		return nil, mapErr("list checkins", err)
	}
	return collect(rows, scanCheckin, "scan checkin")
}

func (q *pgQueries) DeleteCheckin(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM event_checkins WHERE id = $1`, id)
	return expectOne("delete checkin", tag, err)
}

// ── live events ─────────────────────────────────────────────────────────────

const liveEventCols = `id, event_id, title, require_qr, status, match_round, started_at, ended_at, created_at`

func scanLiveEvent(row pgx.Row) (model.LiveEvent, error) {
	var l model.LiveEvent
	err := row.Scan(&l.ID, &l.EventID, &l.Title, &l.RequireQR, &l.Status, &l.MatchRound,
		&l.StartedAt, &l.EndedAt, &l.CreatedAt)
	return l, err
}

func (q *pgQueries) CreateLiveEvent(ctx context.Context, l model.LiveEvent) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO live_events (`+liveEventCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.EventID, l.Title, l.RequireQR, l.Status, l.MatchRound, l.StartedAt, l.EndedAt, l.CreatedAt)
	return mapErr("insert live event", err)
}

func (q *pgQueries) GetLiveEvent(ctx context.Context, id string) (model.LiveEvent, error) {
	l, err := scanLiveEvent(q.db.QueryRow(ctx, `SELECT `+liveEventCols+` FROM live_events WHERE id = $1`, id))
	return l, mapErr("get live event", err)
}

func (q *pgQueries) GetLiveEventForUpdate(ctx context.Context, id string) (model.LiveEvent, error) {
	l, err := scanLiveEvent(q.db.QueryRow(ctx, `SELECT `+liveEventCols+` FROM live_events WHERE id = $1 FOR UPDATE`, id))
	return l, mapErr("lock live event", err)
}

func (q *pgQueries) ListLiveEvents(ctx context.Context, eventID string) ([]model.LiveEvent, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+liveEventCols+` FROM live_events WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, mapErr("list live events", err)
	}
	return collect(rows, scanLiveEvent, "scan live event")
}

func (q *pgQueries) CountLiveEvents(ctx context.Context, eventIDs []string) (map[string]int, error) {
	rows, err := q.db.Query(ctx,
		`SELECT event_id, count(*) FROM live_events WHERE event_id = ANY($1) GROUP BY event_id`, eventIDs)
	if err != nil {
		return nil, mapErr("count live events", err)
	}
	defer rows.Close()

	out := make(map[string]int, len(eventIDs))
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan live event count: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (q *pgQueries) UpdateLiveEvent(ctx context.Context, l model.LiveEvent) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE live_events SET title = $2, require_qr = $3, status = $4, match_round = $5,
		 started_at = $6, ended_at = $7
		 WHERE id = $1`,
		l.ID, l.Title, l.RequireQR, l.Status, l.MatchRound, l.StartedAt, l.EndedAt)
	return expectOne("update live event", tag, err)
}

// ── matchmaking ─────────────────────────────────────────────────────────────

func scanMatchGroup(row pgx.Row) (model.MatchGroup, error) {
	var g model.MatchGroup
	err := row.Scan(&g.ID, &g.LiveEventID, &g.Round, &g.Number, &g.CreatedAt)
	return g, err
}

func (q *pgQueries) CreateMatchGroup(ctx context.Context, g model.MatchGroup) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO live_match_groups (id, live_event_id, round, group_number, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.LiveEventID, g.Round, g.Number, g.CreatedAt)
	return mapErr("insert match group", err)
}

// CreateMatchParticipants inserts group membership in one round trip.
func (q *pgQueries) CreateMatchParticipants(ctx context.Context, ps []model.MatchParticipant) error {
	if len(ps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range ps {
		batch.Queue(`INSERT INTO live_match_participants (match_group_id, user_id) VALUES ($1, $2)`, p.GroupID, p.UserID)
	}
	br := q.db.SendBatch(ctx, batch)
	defer br.Close()
	for range ps {
		if _, err := br.Exec(); err != nil {
			return mapErr("insert match participant", err)
		}
	}
	return nil
}

func (q *pgQueries) FindMatchGroupForUser(ctx context.Context, liveEventID string, round int, userID string) (model.MatchGroup, error) {
	g, err := scanMatchGroup(q.db.QueryRow(ctx,
		`SELECT g.id, g.live_event_id, g.round, g.group_number, g.created_at
		 FROM live_match_groups g
		 JOIN live_match_participants p ON p.match_group_id = g.id
		 WHERE g.live_event_id = $1 AND g.round = $2 AND p.user_id = $3`,
		liveEventID, round, userID))
	return g, mapErr("find match group", err)
}

func (q *pgQueries) ListMatchGroups(ctx context.Context, liveEventID string, round int) ([]model.MatchGroup, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, live_event_id, round, group_number, created_at FROM live_match_groups
		 WHERE live_event_id = $1 AND round = $2 ORDER BY group_number`, liveEventID, round)
	if err != nil {
		return nil, mapErr("list match groups", err)
	}
	return collect(rows, scanMatchGroup, "scan match group")
}

func (q *pgQueries) ListMatchMembers(ctx context.Context, groupID string) ([]model.MatchParticipant, error) {
	rows, err := q.db.Query(ctx,
		`SELECT match_group_id, user_id FROM live_match_participants WHERE match_group_id = $1 ORDER BY user_id`, groupID)
	if err != nil {
		return nil, mapErr("list match members", err)
	}
	return collect(rows, func(row pgx.Row) (model.MatchParticipant, error) {
		var p model.MatchParticipant
		err := row.Scan(&p.GroupID, &p.UserID)
		return p, err
	}, "scan match member")
}

// ── polls ───────────────────────────────────────────────────────────────────

func (q *pgQueries) CreatePoll(ctx context.Context, p model.Poll) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO live_polls (id, live_event_id, question, duration_sec, poll_order, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.LiveEventID, p.Question, p.DurationSec, p.Order, p.CreatedAt)
	if err != nil {
		return mapErr("insert poll", err)
	}
	for i, o := range p.Options {
		if _, err := q.db.Exec(ctx,
			`INSERT INTO live_poll_options (id, poll_id, text, position) VALUES ($1, $2, $3, $4)`,
			o.ID, p.ID, o.Text, i); err != nil {
			return mapErr("insert poll option", err)
		}
	}
	return nil
}

func (q *pgQueries) GetPoll(ctx context.Context, id string) (model.Poll, error) {
	var p model.Poll
	err := q.db.QueryRow(ctx,
		`SELECT id, live_event_id, question, duration_sec, poll_order, created_at FROM live_polls WHERE id = $1`, id,
	).Scan(&p.ID, &p.LiveEventID, &p.Question, &p.DurationSec, &p.Order, &p.CreatedAt)
	if err != nil {
		return model.Poll{}, mapErr("get poll", err)
	}

	rows, err := q.db.Query(ctx,
		`SELECT id, poll_id, text FROM live_poll_options WHERE poll_id = $1 ORDER BY position`, id)
	if err != nil {
		return model.Poll{}, mapErr("list poll options", err)
	}
	p.Options, err = collect(rows, func(row pgx.Row) (model.PollOption, error) {
		var o model.PollOption
		err := row.Scan(&o.ID, &o.PollID, &o.Text)
		return o, err
	}, "scan poll option")
	return p, err
}

func (q *pgQueries) CreatePollVote(ctx context.Context, v model.PollVote) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO live_poll_votes (poll_id, option_id, user_id, created_at) VALUES ($1, $2, $3, $4)`,
		v.PollID, v.OptionID, v.UserID, v.CreatedAt)
	return mapErr("insert poll vote", err)
}

func (q *pgQueries) CountPollVotes(ctx context.Context, pollID string) (map[string]int, error) {
	rows, err := q.db.Query(ctx,
		`SELECT option_id, count(*) FROM live_poll_votes WHERE poll_id = $1 GROUP BY option_id`, pollID)
	if err != nil {
		return nil, mapErr("count poll votes", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan vote count: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

// ── chat ────────────────────────────────────────────────────────────────────

func (q *pgQueries) CreateChatMessage(ctx context.Context, m model.ChatMessage) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO iconic_chat_messages (id, user_id, message, created_at) VALUES ($1, $2, $3, $4)`,
		m.ID, m.UserID, m.Message, m.CreatedAt)
	return mapErr("insert chat message", err)
}

// ListChatMessages returns the newest limit messages, oldest first.
func (q *pgQueries) ListChatMessages(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, user_id, message, created_at FROM (
		   SELECT id, user_id, message, created_at FROM iconic_chat_messages
		   ORDER BY created_at DESC, id DESC LIMIT $1
		 ) recent ORDER BY created_at, id`, limit)
	if err != nil {
		return nil, mapErr("list chat messages", err)
	}
	return collect(rows, func(row pgx.Row) (model.ChatMessage, error) {
		var m model.ChatMessage
		err := row.Scan(&m.ID, &m.UserID, &m.Message, &m.CreatedAt)
		return m, err
	}, "scan chat message")
}

// ── payments ────────────────────────────────────────────────────────────────

// ClaimWallet binds wallet to userID unless it is already bound, and returns
// the owning user id. A concurrent claim blocks on the primary key until the
// other transaction finishes.
func (q *pgQueries) ClaimWallet(ctx context.Context, wallet, userID string, at time.Time) (string, error) {
	_, err := q.db.Exec(ctx,
		`INSERT INTO iconic_wallets (wallet_address, user_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (wallet_address) DO NOTHING`,
		wallet, userID, at)
	if err != nil {
		return "", mapErr("claim wallet", err)
	}
	var owner string
	err = q.db.QueryRow(ctx, `SELECT user_id FROM iconic_wallets WHERE wallet_address = $1`, wallet).Scan(&owner)
	return owner, mapErr("get wallet owner", err)
}

func (q *pgQueries) CreatePayment(ctx context.Context, p model.Payment) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO iconic_payments (tx_hash, user_id, wallet_address, created_at) VALUES ($1, $2, $3, $4)`,
		p.TxHash, p.UserID, p.WalletAddress, p.CreatedAt)
	return mapErr("insert payment", err)
}

// ── user photos ─────────────────────────────────────────────────────────────

const photoCols = `id, user_id, url, position, created_at`

func scanPhoto(row pgx.Row) (model.UserPhoto, error) {
	var p model.UserPhoto
	err := row.Scan(&p.ID, &p.UserID, &p.URL, &p.Position, &p.CreatedAt)
	return p, err
}

func (q *pgQueries) CreateUserPhoto(ctx context.Context, p model.UserPhoto) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO user_photos (`+photoCols+`) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.UserID, p.URL, p.Position, p.CreatedAt)
	return mapErr("insert user photo", err)
}

func (q *pgQueries) GetUserPhoto(ctx context.Context, id string) (model.UserPhoto, error) {
	p, err := scanPhoto(q.db.QueryRow(ctx, `SELECT `+photoCols+` FROM user_photos WHERE id = $1`, id))
	return p, mapErr("get user photo", err)
}

func (q *pgQueries) ListUserPhotos(ctx context.Context, userID string) ([]model.UserPhoto, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+photoCols+` FROM user_photos WHERE user_id = $1 ORDER BY position, id`, userID)
	if err != nil {
		return nil, mapErr("list user photos", err)
	}
	return collect(rows, scanPhoto, "scan user photo")
}

func (q *pgQueries) UpdateUserPhoto(ctx context.Context, p model.UserPhoto) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE user_photos SET url = $2, position = $3 WHERE id = $1`, p.ID, p.URL, p.Position)
	return expectOne("update user photo", tag, err)
}

func (q *pgQueries) DeleteUserPhoto(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM user_photos WHERE id = $1`, id)
	return expectOne("delete user photo", tag, err)
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error), op string) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
