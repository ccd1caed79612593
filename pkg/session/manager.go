package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paisatax/taxgraph/internal/logging"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultLockTTL bounds how long a distributed lock is held if the holder dies.
const DefaultLockTTL = 30 * time.Second

// ErrSessionExists is returned by Create when the key is already taken.
var ErrSessionExists = errors.New("session already exists")

var tracer = otel.Tracer("taxgraph.session")

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes compute passes against stored sessions.
// Every read-modify-write of a session runs under a per-key lock; locks are
// reference counted and dropped when no caller holds them.
type Manager struct {
	store  ports.StateStore
	engine ports.Engine

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Session Manager over store, computing with engine.
func NewManager(store ports.StateStore, engine ports.Engine, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		engine:  engine,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Create initializes a new session and persists it at revision 1.
// An empty SessionKey is replaced with a random UUID.
func (m *Manager) Create(ctx context.Context, params domain.SessionParams) (*domain.Session, *domain.Result, error) {
	if params.SessionKey == "" {
		params.SessionKey = uuid.NewString()
	}
	key := params.SessionKey

	ctx, span := tracer.Start(ctx, "session.Create",
		trace.WithAttributes(
			attribute.String("session.key", key),
			attribute.Int("session.tax_year", params.TaxYear),
			attribute.String("session.filing_status", string(params.FilingStatus)),
		),
	)
	defer span.End()

	var (
		sess *domain.Session
		res  *domain.Result
	)
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, key)
		switch {
		case err == nil:
			return fmt.Errorf("create %q: %w", key, ErrSessionExists)
		case !errors.Is(err, domain.ErrSessionNotFound):
			return fmt.Errorf("create %q: check existing: %w", key, err)
		}

		res, err = m.engine.InitializeSession(params)
		if err != nil {
			return err
		}
		sess = &domain.Session{
			Params:    params,
			State:     res.State,
			Revision:  1,
			UpdatedAt: m.now(),
		}
		if err := m.store.Save(ctx, key, sess); err != nil {
			return fmt.Errorf("create %q: save: %w", key, err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, nil, err
	}

	span.SetAttributes(attribute.Int("session.nodes", res.State.Len()))
	m.logger.Info("session created",
		"session_key", key,
		"tax_year", params.TaxYear,
		"filing_status", params.FilingStatus,
		"nodes", res.State.Len(),
	)
	return sess, res, nil
}

// Apply processes event against the stored session and saves the result.
// A rejected event returns a *domain.EventError and leaves the stored
// session untouched.
func (m *Manager) Apply(ctx context.Context, key string, event domain.InputEvent) (*domain.Session, *domain.Result, error) {
	ctx, span := tracer.Start(ctx, "session.Apply",
		trace.WithAttributes(
			attribute.String("session.key", key),
			attribute.String("event.node_id", event.InstanceID),
			attribute.String("event.source", string(event.Source)),
		),
	)
	defer span.End()

	var (
		sess *domain.Session
		res  *domain.Result
	)
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		prior, err := m.store.Load(ctx, key)
		if err != nil {
			return err
		}

		res, err = m.engine.Process(event, prior.State, prior.Params)
		if err != nil {
			return err
		}
		sess = &domain.Session{
			Params:    prior.Params,
			State:     res.State,
			Revision:  prior.Revision + 1,
			UpdatedAt: m.now(),
		}
		if err := m.store.Save(ctx, key, sess); err != nil {
			return fmt.Errorf("apply to %q: save: %w", key, err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, nil, err
	}

	span.SetAttributes(
		attribute.Int("session.revision", sess.Revision),
		attribute.Int("trace.visited", len(res.Frame.VisitOrder)),
		attribute.Int("trace.changes", len(res.Frame.Changes)),
	)
	return sess, res, nil
}

// ClearOverride hands nodeID back to the graph in the stored session.
func (m *Manager) ClearOverride(ctx context.Context, key, nodeID string) (*domain.Session, *domain.Result, error) {
	return m.Apply(ctx, key, domain.InputEvent{
		InstanceID: nodeID,
		Source:     domain.SourceClearOverride,
	})
}

// Validate checks event against the stored session without applying it.
func (m *Manager) Validate(ctx context.Context, key string, event domain.InputEvent) (domain.ValidationResult, error) {
	sess, err := m.Load(ctx, key)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if event.Source == "" {
		event.Source = domain.SourcePreparer
	}
	return m.engine.Validate(event, sess.State), nil
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, key string) (*domain.Session, error) {
	var sess *domain.Session
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		sess, err = m.store.Load(ctx, key)
		return err
	})
	return sess, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.Delete(ctx, key)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
