package credential

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Option configures a Store.
type Option func(*Store)

// WithKeys overrides the storage keys used for the access and refresh halves.
func WithKeys(accessKey, refreshKey string) Option {
	return func(s *Store) {
		if accessKey != "" {
			s.accessKey = accessKey
		}
		if refreshKey != "" {
			s.refreshKey = refreshKey
		}
	}
}

// WithLogger sets the logger used for the degradation warning.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDegradeHook registers fn to be called once when the store falls back to
// in-memory-only operation.
func WithDegradeHook(fn func(error)) Option {
	return func(s *Store) {
		s.onDegrade = fn
	}
}

// Store holds the current credential pair and mirrors it to a Storage.
//
// Reads never perform I/O. Writes are serialized; the in-memory pair is
// swapped only after the persistent write returned, in a single step.
type Store struct {
	storage    Storage
	accessKey  string
	refreshKey string
	logger     *slog.Logger
	onDegrade  func(error)

	writeMu  sync.Mutex
	mu       sync.RWMutex
	pair     Pair
	degraded atomic.Bool
}

// NewStore returns a Store backed by storage. A nil storage yields an
// in-memory-only store.
func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage:    storage,
		accessKey:  DefaultAccessKey,
		refreshKey: DefaultRefreshKey,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted pair into memory and returns it. Absent keys yield
// empty halves. On a storage error the store degrades and the current
// in-memory pair is returned unchanged.
func (s *Store) Load(ctx context.Context) Pair {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.persistent() {
		access, _, err := s.storage.Get(ctx, s.accessKey)
		if err != nil {
			s.degrade(err)
			return s.Pair()
		}
		refresh, _, err := s.storage.Get(ctx, s.refreshKey)
		if err != nil {
			s.degrade(err)
			return s.Pair()
		}
		s.swap(Pair{Access: access, Refresh: refresh})
	}
	return s.Pair()
}

// Set replaces both halves. The persistent copy is written before Set
// returns; storage failures degrade the store instead of failing the call.
func (s *Store) Set(ctx context.Context, access, refresh string) error {
	if access == "" || refresh == "" {
		return ErrEmptyCredential
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.persistent() {
		if err := s.persist(ctx, access, refresh); err != nil {
			s.degrade(err)
		}
	}
	s.swap(Pair{Access: access, Refresh: refresh})
	return nil
}

// Clear removes both halves from memory and persistent storage.
func (s *Store) Clear(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.persistent() {
		if err := s.storage.Remove(ctx, s.accessKey, s.refreshKey); err != nil {
			s.degrade(err)
		}
	}
	s.swap(Pair{})
}

// Pair returns a copy of the current pair.
func (s *Store) Pair() Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

// Access returns the current access credential, or "".
func (s *Store) Access() string {
	return s.Pair().Access
}

// Refresh returns the current refresh credential, or "".
func (s *Store) Refresh() string {
	return s.Pair().Refresh
}

// IsAuthenticated reports whether an access credential is held.
func (s *Store) IsAuthenticated() bool {
	return s.Pair().Authenticated()
}

// Degraded reports whether the store runs in-memory-only.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

func (s *Store) persistent() bool {
	return s.storage != nil && !s.degraded.Load()
}

func (s *Store) persist(ctx context.Context, access, refresh string) error {
	if batch, ok := s.storage.(BatchStorage); ok {
		return batch.SetMany(ctx, map[string]string{
			s.accessKey:  access,
			s.refreshKey: refresh,
		})
	}
	if err := s.storage.Set(ctx, s.accessKey, access); err != nil {
		return err
	}
	return s.storage.Set(ctx, s.refreshKey, refresh)
}

func (s *Store) swap(p Pair) {
	s.mu.Lock()
	s.pair = p
	s.mu.Unlock()
}

func (s *Store) degrade(err error) {
	if !s.degraded.CompareAndSwap(false, true) {
		return
	}
	s.logger.Warn("credential: persistent storage unavailable, continuing in memory only",
		slog.String("error", err.Error()),
	)
	if s.onDegrade != nil {
		s.onDegrade(err)
	}
}
