package account

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/crmcore/internal/apperr"
	"github.com/nikhilbhutani/crmcore/internal/models"
)

// MemoryStore is an in-process Store for local development and tests.
// Transactions run serially against a copy of the data that replaces
// the live copy only on success.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData

	// failOn makes the named operation return the error once.
	failOn map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData(), failOn: map[string]error{}}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) failNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = err
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&memQueries{data: work, failOn: s.failOn, now: time.Now}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemoryStore) run(fn func(q *memQueries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memQueries{data: s.data, failOn: s.failOn, now: time.Now})
}

func (s *MemoryStore) UserByID(ctx context.Context, id uuid.UUID) (u *models.User, err error) {
	err = s.run(func(q *memQueries) error { u, err = q.UserByID(ctx, id); return err })
	return u, err
}

func (s *MemoryStore) UserByEmail(ctx context.Context, email string) (u *models.User, err error) {
	err = s.run(func(q *memQueries) error { u, err = q.UserByEmail(ctx, email); return err })
	return u, err
}

func (s *MemoryStore) TenantByID(ctx context.Context, id uuid.UUID) (t *models.Tenant, err error) {
	err = s.run(func(q *memQueries) error { t, err = q.TenantByID(ctx, id); return err })
	return t, err
}

func (s *MemoryStore) SubscriptionByTenant(ctx context.Context, tenantID uuid.UUID) (sub *models.Subscription, err error) {
	err = s.run(func(q *memQueries) error { sub, err = q.SubscriptionByTenant(ctx, tenantID); return err })
	return sub, err
}

func (s *MemoryStore) CountUsers(ctx context.Context, tenantID uuid.UUID) (n int, err error) {
	err = s.run(func(q *memQueries) error { n, err = q.CountUsers(ctx, tenantID); return err })
	return n, err
}

func (s *MemoryStore) InsertTenant(ctx context.Context, t *models.Tenant) error {
	return s.run(func(q *memQueries) error { return q.InsertTenant(ctx, t) })
}

func (s *MemoryStore) InsertUser(ctx context.Context, u *models.User) error {
	return s.run(func(q *memQueries) error { return q.InsertUser(ctx, u) })
}

func (s *MemoryStore) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	return s.run(func(q *memQueries) error { return q.UpsertSubscription(ctx, sub) })
}

func (s *MemoryStore) UpdatePassword(ctx context.Context, userID uuid.UUID, hash string, mustReset bool, at time.Time) (u *models.User, err error) {
	err = s.run(func(q *memQueries) error { u, err = q.UpdatePassword(ctx, userID, hash, mustReset, at); return err })
	return u, err
}

func (s *MemoryStore) InsertResetToken(ctx context.Context, t *models.PasswordResetToken) error {
	return s.run(func(q *memQueries) error { return q.InsertResetToken(ctx, t) })
}

func (s *MemoryStore) ResetTokenByHash(ctx context.Context, hash string) (t *models.PasswordResetToken, err error) {
	err = s.run(func(q *memQueries) error { t, err = q.ResetTokenByHash(ctx, hash); return err })
	return t, err
}

func (s *MemoryStore) ConsumeResetTokens(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return s.run(func(q *memQueries) error { return q.ConsumeResetTokens(ctx, userID, at) })
}

// counts reports stored row totals; tests use it to check rollbacks.
func (s *MemoryStore) counts() (tenants, users, subscriptions, tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.tenants), len(s.data.users), len(s.data.subscriptions), len(s.data.tokens)
}

type memData struct {
	tenants       map[uuid.UUID]models.Tenant
	users         map[uuid.UUID]models.User
	emails        map[string]uuid.UUID
	subscriptions map[uuid.UUID]models.Subscription // by tenant id
	tokens        map[string]models.PasswordResetToken
}

func newMemData() *memData {
	return &memData{
		tenants:       map[uuid.UUID]models.Tenant{},
		users:         map[uuid.UUID]models.User{},
		emails:        map[string]uuid.UUID{},
		subscriptions: map[uuid.UUID]models.Subscription{},
		tokens:        map[string]models.PasswordResetToken{},
	}
}

func (d *memData) clone() *memData {
	return &memData{
		tenants:       maps.Clone(d.tenants),
		users:         maps.Clone(d.users),
		emails:        maps.Clone(d.emails),
		subscriptions: maps.Clone(d.subscriptions),
		tokens:        maps.Clone(d.tokens),
	}
}

type memQueries struct {
	data   *memData
	failOn map[string]error
	now    func() time.Time
}

func (q *memQueries) fail(op string) error {
	if err, ok := q.failOn[op]; ok {
		delete(q.failOn, op)
		return err
	}
	return nil
}

func (q *memQueries) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := q.data.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	return &u, nil
}

func (q *memQueries) UserByEmail(_ context.Context, email string) (*models.User, error) {
	id, ok := q.data.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, fmt.Errorf("user by email: %w", apperr.ErrNotFound)
	}
	u := q.data.users[id]
	return &u, nil
}

func (q *memQueries) TenantByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, ok := q.data.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", id, apperr.ErrNotFound)
	}
	return &t, nil
}

func (q *memQueries) SubscriptionByTenant(_ context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	s, ok := q.data.subscriptions[tenantID]
	if !ok {
		return nil, fmt.Errorf("subscription for tenant %s: %w", tenantID, apperr.ErrNotFound)
	}
	return &s, nil
}

func (q *memQueries) CountUsers(_ context.Context, tenantID uuid.UUID) (int, error) {
	n := 0
	for _, u := range q.data.users {
		if u.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (q *memQueries) InsertTenant(_ context.Context, t *models.Tenant) error {
	if err := q.fail("InsertTenant"); err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	now := q.now()
	t.CreatedAt, t.UpdatedAt = now, now
	q.data.tenants[t.ID] = *t
	return nil
}

func (q *memQueries) InsertUser(_ context.Context, u *models.User) error {
	if err := q.fail("InsertUser"); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if _, ok := q.data.tenants[u.TenantID]; !ok {
		return fmt.Errorf("insert user: tenant %s does not exist", u.TenantID)
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, taken := q.data.emails[u.Email]; taken {
		return apperr.New(apperr.ErrConflict, "email_exists")
	}
	now := q.now()
	u.CreatedAt, u.UpdatedAt = now, now
	q.data.users[u.ID] = *u
	q.data.emails[u.Email] = u.ID
	return nil
}

func (q *memQueries) UpsertSubscription(_ context.Context, s *models.Subscription) error {
	if err := q.fail("UpsertSubscription"); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	if _, ok := q.data.tenants[s.TenantID]; !ok {
		return fmt.Errorf("upsert subscription: tenant %s does not exist", s.TenantID)
	}
	now := q.now()
	if prev, ok := q.data.subscriptions[s.TenantID]; ok {
		s.ID, s.CreatedAt = prev.ID, prev.CreatedAt
	} else {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	q.data.subscriptions[s.TenantID] = *s
	return nil
}

func (q *memQueries) UpdatePassword(_ context.Context, userID uuid.UUID, hash string, mustReset bool, at time.Time) (*models.User, error) {
	if err := q.fail("UpdatePassword"); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	u, ok := q.data.users[userID]
	if !ok {
		return nil, fmt.Errorf("update password for %s: %w", userID, apperr.ErrNotFound)
	}
	u.PasswordHash = hash
	u.MustResetPassword = mustReset
	u.UpdatedAt = at
	q.data.users[userID] = u
	return &u, nil
}

func (q *memQueries) InsertResetToken(_ context.Context, t *models.PasswordResetToken) error {
	if err := q.fail("InsertResetToken"); err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	t.CreatedAt = q.now()
	q.data.tokens[t.TokenHash] = *t
	return nil
}

func (q *memQueries) ResetTokenByHash(_ context.Context, hash string) (*models.PasswordResetToken, error) {
	t, ok := q.data.tokens[hash]
	if !ok {
		return nil, fmt.Errorf("reset token: %w", apperr.ErrNotFound)
	}
	return &t, nil
}

func (q *memQueries) ConsumeResetTokens(_ context.Context, userID uuid.UUID, at time.Time) error {
	for h, t := range q.data.tokens {
		if t.UserID == userID && t.UsedAt == nil {
			used := at
			t.UsedAt = &used
			q.data.tokens[h] = t
		}
	}
	return nil
}
