package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iconic-app/iconic/internal/model"
)

// MemoryStore implements Store in process memory. Writers are serialised by
// a single lock and work on a copy of the state that is swapped in only when
// the transaction succeeds, so a failed Tx leaves no trace.
type MemoryStore struct {
	mu sync.RWMutex
	st *memState
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newMemState()}
}

// View runs fn under the read lock. Writes return ErrReadOnly.
func (s *MemoryStore) View(ctx context.Context, fn func(Queries) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memQueries{st: s.st, readOnly: true})
}

// Tx runs fn on a private copy and commits it when fn returns nil.
func (s *MemoryStore) Tx(ctx context.Context, fn func(Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&memQueries{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() {}

type memState struct {
	users          map[string]model.User
	events         map[string]model.Event
	participations map[string]model.Participation
	checkins       map[string]model.Checkin
	liveEvents     map[string]model.LiveEvent
	groups         map[string]model.MatchGroup
	members        []model.MatchParticipant
	polls          map[string]model.Poll
	votes          map[string]map[string]model.PollVote // poll id -> user id
	chat           []model.ChatMessage
	wallets        map[string]string // wallet -> user id
	payments       map[string]model.Payment
	photos         map[string]model.UserPhoto
}

func newMemState() *memState {
	return &memState{
		users:          map[string]model.User{},
		events:         map[string]model.Event{},
		participations: map[string]model.Participation{},
		checkins:       map[string]model.Checkin{},
		liveEvents:     map[string]model.LiveEvent{},
		groups:         map[string]model.MatchGroup{},
		polls:          map[string]model.Poll{},
		votes:          map[string]map[string]model.PollVote{},
		wallets:        map[string]string{},
		payments:       map[string]model.Payment{},
		photos:         map[string]model.UserPhoto{},
	}
}

// clone copies every table. Row values are treated as immutable, so a
// shallow copy of each map is enough.
func (m *memState) clone() *memState {
	votes := make(map[string]map[string]model.PollVote, len(m.votes))
	for k, v := range m.votes {
		votes[k] = maps.Clone(v)
	}
	return &memState{
		users:          maps.Clone(m.users),
		events:         maps.Clone(m.events),
		participations: maps.Clone(m.participations),
		checkins:       maps.Clone(m.checkins),
		liveEvents:     maps.Clone(m.liveEvents),
		groups:         maps.Clone(m.groups),
		members:        slices.Clone(m.members),
		polls:          maps.Clone(m.polls),
		votes:          votes,
		chat:           slices.Clone(m.chat),
		wallets:        maps.Clone(m.wallets),
		payments:       maps.Clone(m.payments),
		photos:         maps.Clone(m.photos),
	}
}

type memQueries struct {
	st       *memState
	readOnly bool
}

func (q *memQueries) write() error {
	if q.readOnly {
		return ErrReadOnly
	}
	return nil
}

func sortedValues[K comparable, V any](m map[K]V, keep func(V) bool, less func(a, b V) int) []V {
	var out []V
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, less)
	return out
}

// ── users ───────────────────────────────────────────────────────────────────

func (q *memQueries) GetUser(_ context.Context, id string) (model.User, error) {
	u, ok := q.st.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (q *memQueries) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range q.st.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (q *memQueries) ListUsers(_ context.Context, ids []string) ([]model.User, error) {
	var out []model.User
	for _, id := range ids {
		if u, ok := q.st.users[id]; ok && !slices.ContainsFunc(out, func(x model.User) bool { return x.ID == id }) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b model.User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (q *memQueries) ListIconicUsers(_ context.Context, now time.Time) ([]model.User, error) {
	return sortedValues(q.st.users,
		func(u model.User) bool { return u.Elevated(now) },
		func(a, b model.User) int { return a.CreatedAt.Compare(b.CreatedAt) }), nil
}

func (q *memQueries) CreateUser(ctx context.Context, u model.User) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.users[u.ID]; ok {
		return ErrDuplicate
	}
	if _, err := q.GetUserByEmail(ctx, u.Email); err == nil {
		return ErrDuplicate
	}
	q.st.users[u.ID] = u
	return nil
}

func (q *memQueries) UpdateUser(_ context.Context, u model.User) error {
	if err := q.write(); err != nil {
		return err
	}
	old, ok := q.st.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	u.CreatedAt = old.CreatedAt
	q.st.users[u.ID] = u
	return nil
}

// ── events ──────────────────────────────────────────────────────────────────

func (q *memQueries) CreateEvent(_ context.Context, e model.Event) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.events[e.ID]; ok {
		return ErrDuplicate
	}
	q.st.events[e.ID] = e
	return nil
}

func (q *memQueries) GetEvent(_ context.Context, id string) (model.Event, error) {
	e, ok := q.st.events[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return e, nil
}

// GetEventForUpdate is GetEvent; the store lock already serialises writers.
func (q *memQueries) GetEventForUpdate(ctx context.Context, id string) (model.Event, error) {
	if err := q.write(); err != nil {
		return model.Event{}, err
	}
	return q.GetEvent(ctx, id)
}

func (q *memQueries) ListEvents(_ context.Context, f EventFilter) ([]model.Event, error) {
	return sortedValues(q.st.events,
		func(e model.Event) bool {
			if f.OwnerID != "" && e.OwnerID != f.OwnerID {
				return false
			}
			if f.PublicOnly && !e.IsPublic {
				return false
			}
			return f.IDs == nil || slices.Contains(f.IDs, e.ID)
		},
		func(a, b model.Event) int {
			return cmp.Or(a.StartAt.Compare(b.StartAt), cmp.Compare(a.ID, b.ID))
		}), nil
}

func (q *memQueries) UpdateEvent(_ context.Context, e model.Event) error {
	if err := q.write(); err != nil {
		return err
	}
	old, ok := q.st.events[e.ID]
	if !ok {
		return ErrNotFound
	}
	e.OwnerID, e.CurrentAttendees, e.CreatedAt = old.OwnerID, old.CurrentAttendees, old.CreatedAt
	if e.CurrentAttendees > e.MaxAttendees {
		return ErrConditionFailed
	}
	q.st.events[e.ID] = e
	return nil
}

func (q *memQueries) DeleteEvent(_ context.Context, id string) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.events[id]; !ok {
		return ErrNotFound
	}
	delete(q.st.events, id)
	maps.DeleteFunc(q.st.participations, func(_ string, p model.Participation) bool { return p.EventID == id })
	maps.DeleteFunc(q.st.checkins, func(_ string, c model.Checkin) bool { return c.EventID == id })
	for lid, l := range q.st.liveEvents {
		if l.EventID == id {
			q.deleteLiveEvent(lid)
		}
	}
	return nil
}

func (q *memQueries) deleteLiveEvent(id string) {
	delete(q.st.liveEvents, id)
	for gid, g := range q.st.groups {
		if g.LiveEventID == id {
			delete(q.st.groups, gid)
			q.st.members = slices.DeleteFunc(q.st.members, func(m model.MatchParticipant) bool { return m.GroupID == gid })
		}
	}
	for pid, p := range q.st.polls {
		if p.LiveEventID == id {
			delete(q.st.polls, pid)
			delete(q.st.votes, pid)
		}
	}
}

func (q *memQueries) IncrementAttendees(_ context.Context, eventID string) error {
	if err := q.write(); err != nil {
		return err
	}
	e, ok := q.st.events[eventID]
	if !ok {
		return ErrNotFound
	}
	if e.CurrentAttendees >= e.MaxAttendees {
		return ErrNoCapacity
	}
	e.CurrentAttendees++
	q.st.events[eventID] = e
	return nil
}

func (q *memQueries) DecrementAttendees(_ context.Context, eventID string) error {
	if err := q.write(); err != nil {
		return err
	}
	e, ok := q.st.events[eventID]
	if !ok {
		return ErrNotFound
	}
	if e.CurrentAttendees <= 0 {
		return ErrConditionFailed
	}
	e.CurrentAttendees--
	q.st.events[eventID] = e
	return nil
}

// ── participations ──────────────────────────────────────────────────────────

func (q *memQueries) CreateParticipation(_ context.Context, p model.Participation) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.participations[p.ID]; ok {
		return ErrDuplicate
	}
	for _, x := range q.st.participations {
		if x.UserID == p.UserID && x.EventID == p.EventID {
			return ErrDuplicate
		}
	}
	q.st.participations[p.ID] = p
	return nil
}

func (q *memQueries) GetParticipation(_ context.Context, id string) (model.Participation, error) {
	p, ok := q.st.participations[id]
	if !ok {
		return model.Participation{}, ErrNotFound
	}
	return p, nil
}

func (q *memQueries) GetParticipationForUpdate(ctx context.Context, id string) (model.Participation, error) {
	if err := q.write(); err != nil {
		return model.Participation{}, err
	}
	return q.GetParticipation(ctx, id)
}

func (q *memQueries) FindParticipation(_ context.Context, userID, eventID string) (model.Participation, error) {
	for _, p := range q.st.participations {
		if p.UserID == userID && p.EventID == eventID {
			return p, nil
		}
	}
	return model.Participation{}, ErrNotFound
}

func (q *memQueries) UpdateParticipation(_ context.Context, p model.Participation) error {
	if err := q.write(); err != nil {
		return err
	}
	old, ok := q.st.participations[p.ID]
	if !ok {
		return ErrNotFound
	}
	old.Status, old.CancelledAt = p.Status, p.CancelledAt
	q.st.participations[p.ID] = old
	return nil
}

func (q *memQueries) DeleteParticipation(_ context.Context, id string) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.participations[id]; !ok {
		return ErrNotFound
	}
	delete(q.st.participations, id)
	return nil
}

func (q *memQueries) ListParticipations(_ context.Context, f ParticipationFilter) ([]model.Participation, error) {
	return sortedValues(q.st.participations,
		func(p model.Participation) bool {
			return (f.EventID == "" || p.EventID == f.EventID) &&
				(f.UserID == "" || p.UserID == f.UserID) &&
				(f.Status == "" || p.Status == f.Status)
		},
		func(a, b model.Participation) int {
			return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
		}), nil
}

// ── check-ins ───────────────────────────────────────────────────────────────

func (q *memQueries) CreateCheckin(_ context.Context, c model.Checkin) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.checkins[c.ID]; ok {
		return ErrDuplicate
	}
	for _, x := range q.st.checkins {
		if x.Token == c.Token {
			return ErrDuplicate
		}
		if c.Redeemed() && x.Redeemed() && x.UserID == c.UserID && x.EventID == c.EventID {
			return ErrDuplicate
		}
	}
	q.st.checkins[c.ID] = c
	return nil
}

func (q *memQueries) GetCheckinByToken(_ context.Context, token string) (model.Checkin, error) {
	for _, c := range q.st.checkins {
		if c.Token == token {
			return c, nil
		}
	}
	return model.Checkin{}, ErrNotFound
}

func (q *memQueries) LatestCheckin(_ context.Context, userID, eventID string, status model.CheckinStatus) (model.Checkin, error) {
	var (
		best  model.Checkin
		found bool
	)
	for _, c := range q.st.checkins {
		if c.UserID != userID || c.EventID != eventID || (status != "" && c.Status != status) {
			continue
		}
		if !found || c.IssuedAt.After(best.IssuedAt) || (c.IssuedAt.Equal(best.IssuedAt) && c.ID > best.ID) {
			best, found = c, true
		}
	}
	if !found {
		return model.Checkin{}, ErrNotFound
	}
	return best, nil
}

func (q *memQueries) RedeemCheckin(ctx context.Context, p RedeemParams) (model.Checkin, error) {
	if err := q.write(); err != nil {
		return model.Checkin{}, err
	}
	c, err := q.GetCheckinByToken(ctx, p.Token)
	if err != nil || !c.Pending() || !c.IssuedAt.After(p.IssuedAfter) {
		return model.Checkin{}, ErrConditionFailed
	}
	if _, err := q.LatestCheckin(ctx, c.UserID, c.EventID, model.CheckinRedeemed); err == nil {
		return model.Checkin{}, ErrDuplicate
	}
	at, by := p.At, p.By
	c.Status, c.RedeemedAt, c.RedeemedBy = model.CheckinRedeemed, &at, &by
	q.st.checkins[c.ID] = c
	return c, nil
}

func (q *memQueries) SupersedePendingCheckins(_ context.Context, userID, eventID string) (int, error) {
	if err := q.write(); err != nil {
		return 0, err
	}
	n := 0
	for id, c := range q.st.checkins {
		if c.UserID == userID && c.EventID == eventID && c.Pending() {
			c.Status = model.CheckinSuperseded
			q.st.checkins[id] = c
			n++
		}
	}
	return n, nil
}

func (q *memQueries) ListCheckins(_ context.Context, f CheckinFilter) ([]model.Checkin, error) {
	return sortedValues(q.st.checkins,
		func(c model.Checkin) bool {
			return (f.EventID == "" || c.EventID == f.EventID) &&
				(f.UserID == "" || c.UserID == f.UserID) &&
				(f.Status == "" || c.Status == f.Status)
		},
		func(a, b model.Checkin) int {
			return cmp.Or(a.IssuedAt.Compare(b.IssuedAt), cmp.Compare(a.ID, b.ID))
		}), nil
}

func (q *memQueries) DeleteCheckin(_ context.Context, id string) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.checkins[id]; !ok {
		return ErrNotFound
	}
	delete(q.st.checkins, id)
	return nil
}

// ── live events ─────────────────────────────────────────────────────────────

func (q *memQueries) CreateLiveEvent(_ context.Context, l model.LiveEvent) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.liveEvents[l.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := q.st.events[l.EventID]; !ok {
		return ErrNotFound
	}
	q.st.liveEvents[l.ID] = l
	return nil
}

func (q *memQueries) GetLiveEvent(_ context.Context, id string) (model.LiveEvent, error) {
	l, ok := q.st.liveEvents[id]
	if !ok {
		return model.LiveEvent{}, ErrNotFound
	}
	return l, nil
}

func (q *memQueries) GetLiveEventForUpdate(ctx context.Context, id string) (model.LiveEvent, error) {
	if err := q.write(); err != nil {
		return model.LiveEvent{}, err
	}
	return q.GetLiveEvent(ctx, id)
}

func (q *memQueries) ListLiveEvents(_ context.Context, eventID string) ([]model.LiveEvent, error) {
	return sortedValues(q.st.liveEvents,
		func(l model.LiveEvent) bool { return l.EventID == eventID },
		func(a, b model.LiveEvent) int {
			return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
		}), nil
}

func (q *memQueries) CountLiveEvents(_ context.Context, eventIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(eventIDs))
	for _, l := range q.st.liveEvents {
		if slices.Contains(eventIDs, l.EventID) {
			out[l.EventID]++
		}
	}
	return out, nil
}

func (q *memQueries) UpdateLiveEvent(_ context.Context, l model.LiveEvent) error {
	if err := q.write(); err != nil {
		return err
	}
	old, ok := q.st.liveEvents[l.ID]
	if !ok {
		return ErrNotFound
	}
	l.EventID, l.CreatedAt = old.EventID, old.CreatedAt
	q.st.liveEvents[l.ID] = l
	return nil
}

// ── matchmaking ─────────────────────────────────────────────────────────────

func (q *memQueries) CreateMatchGroup(_ context.Context, g model.MatchGroup) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.groups[g.ID]; ok {
		return ErrDuplicate
	}
	for _, x := range q.st.groups {
		if x.LiveEventID == g.LiveEventID && x.Round == g.Round && x.Number == g.Number {
			return ErrDuplicate
		}
	}
	q.st.groups[g.ID] = g
	return nil
}

func (q *memQueries) CreateMatchParticipants(_ context.Context, ps []model.MatchParticipant) error {
	if err := q.write(); err != nil {
		return err
	}
	for _, p := range ps {
		if _, ok := q.st.groups[p.GroupID]; !ok {
			return ErrNotFound
		}
		if slices.Contains(q.st.members, p) {
			return ErrDuplicate
		}
		q.st.members = append(q.st.members, p)
	}
	return nil
}

func (q *memQueries) FindMatchGroupForUser(_ context.Context, liveEventID string, round int, userID string) (model.MatchGroup, error) {
	for _, m := range q.st.members {
		if m.UserID != userID {
			continue
		}
		g := q.st.groups[m.GroupID]
		if g.LiveEventID == liveEventID && g.Round == round {
			return g, nil
		}
	}
	return model.MatchGroup{}, ErrNotFound
}

func (q *memQueries) ListMatchGroups(_ context.Context, liveEventID string, round int) ([]model.MatchGroup, error) {
	return sortedValues(q.st.groups,
		func(g model.MatchGroup) bool { return g.LiveEventID == liveEventID && g.Round == round },
		func(a, b model.MatchGroup) int { return cmp.Compare(a.Number, b.Number) }), nil
}

func (q *memQueries) ListMatchMembers(_ context.Context, groupID string) ([]model.MatchParticipant, error) {
	var out []model.MatchParticipant
	for _, m := range q.st.members {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b model.MatchParticipant) int { return cmp.Compare(a.UserID, b.UserID) })
	return out, nil
}

// ── polls ───────────────────────────────────────────────────────────────────

func (q *memQueries) CreatePoll(_ context.Context, p model.Poll) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.polls[p.ID]; ok {
		return ErrDuplicate
	}
	p.Options = slices.Clone(p.Options)
	for i := range p.Options {
		p.Options[i].PollID = p.ID
	}
	q.st.polls[p.ID] = p
	return nil
}

func (q *memQueries) GetPoll(_ context.Context, id string) (model.Poll, error) {
	p, ok := q.st.polls[id]
	if !ok {
		return model.Poll{}, ErrNotFound
	}
	p.Options = slices.Clone(p.Options)
	return p, nil
}

func (q *memQueries) CreatePollVote(_ context.Context, v model.PollVote) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.polls[v.PollID]; !ok {
		return ErrNotFound
	}
	byUser := q.st.votes[v.PollID]
	if byUser == nil {
		byUser = map[string]model.PollVote{}
		q.st.votes[v.PollID] = byUser
	}
	if _, ok := byUser[v.UserID]; ok {
		return ErrDuplicate
	}
	byUser[v.UserID] = v
	return nil
}

func (q *memQueries) CountPollVotes(_ context.Context, pollID string) (map[string]int, error) {
	out := map[string]int{}
	for _, v := range q.st.votes[pollID] {
		out[v.OptionID]++
	}
	return out, nil
}

// ── chat ────────────────────────────────────────────────────────────────────

func (q *memQueries) CreateChatMessage(_ context.Context, m model.ChatMessage) error {
	if err := q.write(); err != nil {
		return err
	}
	q.st.chat = append(q.st.chat, m)
	return nil
}

func (q *memQueries) ListChatMessages(_ context.Context, limit int) ([]model.ChatMessage, error) {
	msgs := slices.Clone(q.st.chat)
	slices.SortStableFunc(msgs, func(a, b model.ChatMessage) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// ── payments ────────────────────────────────────────────────────────────────

// ClaimWallet binds wallet to userID unless it is already bound, and returns
// the owning user id.
func (q *memQueries) ClaimWallet(_ context.Context, wallet, userID string, _ time.Time) (string, error) {
	if err := q.write(); err != nil {
		return "", err
	}
	if owner, ok := q.st.wallets[wallet]; ok {
		return owner, nil
	}
	if _, ok := q.st.users[userID]; !ok {
		return "", ErrNotFound
	}
	q.st.wallets[wallet] = userID
	return userID, nil
}

func (q *memQueries) CreatePayment(_ context.Context, p model.Payment) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.payments[p.TxHash]; ok {
		return ErrDuplicate
	}
	if _, ok := q.st.wallets[p.WalletAddress]; !ok {
		return ErrNotFound
	}
	q.st.payments[p.TxHash] = p
	return nil
}

// ── user photos ─────────────────────────────────────────────────────────────

func (q *memQueries) photoAt(userID string, position int, except string) bool {
	for _, p := range q.st.photos {
		if p.UserID == userID && p.Position == position && p.ID != except {
			return true
		}
	}
	return false
}

func (q *memQueries) CreateUserPhoto(_ context.Context, p model.UserPhoto) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.photos[p.ID]; ok || q.photoAt(p.UserID, p.Position, "") {
		return ErrDuplicate
	}
	if _, ok := q.st.users[p.UserID]; !ok {
		return ErrNotFound
	}
	q.st.photos[p.ID] = p
	return nil
}

func (q *memQueries) GetUserPhoto(_ context.Context, id string) (model.UserPhoto, error) {
	p, ok := q.st.photos[id]
	if !ok {
		return model.UserPhoto{}, ErrNotFound
	}
	return p, nil
}

func (q *memQueries) ListUserPhotos(_ context.Context, userID string) ([]model.UserPhoto, error) {
	return sortedValues(q.st.photos,
		func(p model.UserPhoto) bool { return p.UserID == userID },
		func(a, b model.UserPhoto) int {
			return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
		}), nil
}

func (q *memQueries) UpdateUserPhoto(_ context.Context, p model.UserPhoto) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.photos[p.ID]; !ok {
		return ErrNotFound
	}
	if q.photoAt(p.UserID, p.Position, p.ID) {
		return ErrDuplicate
	}
	q.st.photos[p.ID] = p
	return nil
}

func (q *memQueries) DeleteUserPhoto(_ context.Context, id string) error {
	if err := q.write(); err != nil {
		return err
	}
	if _, ok := q.st.photos[id]; !ok {
		return ErrNotFound
	}
	delete(q.st.photos, id)
	return nil
}
