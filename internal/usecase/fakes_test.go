package usecase

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/infra/security"
	"github.com/fares7elsadek/Readly/internal/repository"
)

type memoryIdentityRepository struct {
	mu         sync.Mutex
	byID       map[string]domain.Identity
	getCalls   int
	lookupErr  error
	createErrs []error
}

func newMemoryIdentityRepository() *memoryIdentityRepository {
	return &memoryIdentityRepository{byID: map[string]domain.Identity{}}
}

func (r *memoryIdentityRepository) Create(_ context.Context, identity domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		return err
	}
	for _, existing := range r.byID {
		if strings.EqualFold(existing.Email, identity.Email) {
			return repository.ErrConflict
		}
	}
	r.byID[identity.ID] = identity
	return nil
}

func (r *memoryIdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	identity, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &identity, nil
}

func (r *memoryIdentityRepository) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	for _, identity := range r.byID {
		if identity.Email == email {
			found := identity
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryIdentityRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *memoryIdentityRepository) UpdateFlags(_ context.Context, id string, enabled, locked bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	identity.Enabled = enabled
	identity.Locked = locked
	identity.UpdatedAt = at
	r.byID[id] = identity
	return nil
}

func (r *memoryIdentityRepository) put(identity domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[identity.ID] = identity
}

func (r *memoryIdentityRepository) get(id string) domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

// memoryTokenRepository mirrors the conditional update semantics of the SQL store.
type memoryTokenRepository struct {
	mu         sync.Mutex
	byHash     map[string]domain.SingleUseToken
	createErrs []error
	creates    int
}

func newMemoryTokenRepository() *memoryTokenRepository {
	return &memoryTokenRepository{byHash: map[string]domain.SingleUseToken{}}
}

func (r *memoryTokenRepository) Create(_ context.Context, token domain.SingleUseToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		return err
	}
	if _, exists := r.byHash[token.ValueHash]; exists {
		return repository.ErrConflict
	}
	r.byHash[token.ValueHash] = token
	return nil
}

func (r *memoryTokenRepository) GetByHash(_ context.Context, hash string) (*domain.SingleUseToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.byHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &token, nil
}

func (r *memoryTokenRepository) MarkConsumed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, token := range r.byHash {
		if token.ID != id {
			continue
		}
		if !token.MarkConsumed(at) {
			return repository.ErrNotFound
		}
		r.byHash[hash] = token
		return nil
	}
	return repository.ErrNotFound
}

func (r *memoryTokenRepository) ExpireOutstanding(_ context.Context, identityID string, kind domain.TokenKind, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for hash, token := range r.byHash {
		if token.IdentityID == identityID && token.Kind == kind && token.ConsumedAt == nil && token.ExpiresAt.After(at) {
			token.ExpiresAt = at
			r.byHash[hash] = token
			count++
		}
	}
	return count, nil
}

func (r *memoryTokenRepository) put(token domain.SingleUseToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[token.ValueHash] = token
}

type memoryUnitOfWork struct {
	stores port.Stores
	runs   int
}

func (u *memoryUnitOfWork) RunInTx(_ context.Context, fn func(port.Stores) error) error {
	u.runs++
	return fn(u.stores)
}

type sequenceGenerator struct {
	mu     sync.Mutex
	values []string
}

func (g *sequenceGenerator) NewToken() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	value := g.values[0]
	if len(g.values) > 1 {
		g.values = g.values[1:]
	}
	return value, nil
}

type dispatchedMail struct {
	IdentityID string
	To         string
	RawToken   string
	ExpiresAt  time.Time
}

type recordingDispatcher struct {
	mu    sync.Mutex
	mails []dispatchedMail
}

func (d *recordingDispatcher) DispatchVerification(_ context.Context, identityID, to, rawToken string, expiresAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mails = append(d.mails, dispatchedMail{identityID, to, rawToken, expiresAt})
}

func (d *recordingDispatcher) last(t *testing.T) dispatchedMail {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.mails) == 0 {
		t.Fatal("expected a dispatched verification mail")
	}
	return d.mails[len(d.mails)-1]
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counts: map[string]int{}}
}

func (m *countingMetrics) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
}

func (m *countingMetrics) get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func (m *countingMetrics) ObserveLogin(outcome string)        { m.inc("login:" + outcome) }
func (m *countingMetrics) ObserveTokenIssued(kind string)     { m.inc("issued:" + kind) }
func (m *countingMetrics) ObserveVerification(outcome string) { m.inc("verification:" + outcome) }
func (m *countingMetrics) ObserveMailDispatch(outcome string) { m.inc("mail:" + outcome) }

// testHasher uses the smallest Argon2 parameters the hasher accepts.
func testHasher(t *testing.T) *security.PasswordHasher {
	t.Helper()
	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	return hasher
}

func testSigner(t *testing.T, now func() time.Time) *security.HMACSigner {
	t.Helper()
	secret := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	opts := []security.SignerOption{}
	if now != nil {
		opts = append(opts, security.WithSignerClock(now))
	}
	signer, err := security.NewHMACSigner(secret, security.DefaultIssuer, opts...)
	if err != nil {
		t.Fatalf("NewHMACSigner: %v", err)
	}
	return signer
}
