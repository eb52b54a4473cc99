package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrImportBusy is returned while another call holds the import.
var ErrImportBusy = errors.New("import is being processed")

// PendingImport is a suspended import awaiting directives.
type PendingImport struct {
	ID          string    `json:"id"`
	SessionID   int64     `json:"session_id"`
	IterationID int64     `json:"iteration_id"`
	CreatedAt   time.Time `json:"created_at"`
	State       State     `json:"state"`
}

// PendingStore keeps suspended imports until they are resolved or cancelled. Entries
// never expire on their own.
type PendingStore interface {
	Save(ctx context.Context, p *PendingImport) error
	Load(ctx context.Context, id string) (*PendingImport, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	// Lock grants exclusive use of one import; the returned func releases it.
	Lock(ctx context.Context, id string) (func() error, error)
}

const (
	pendingIndexKey = "import:pending"
	lockTTL         = 30 * time.Second
)

func pendingKey(id string) string { return fmt.Sprintf("import:pending:%s", id) }
func lockKey(id string) string    { return fmt.Sprintf("import:lock:%s", id) }

// RedisPendingStore stores each pending import as JSON plus a membership set used
// for counting.
type RedisPendingStore struct {
	redis  *redis.Client
	logger zerolog.Logger
}

func NewRedisPendingStore(client *redis.Client, logger zerolog.Logger) *RedisPendingStore {
	return &RedisPendingStore{
		redis:  client,
		logger: logger.With().Str("component", "pending_store").Logger(),
	}
}

func (s *RedisPendingStore) Save(ctx context.Context, p *PendingImport) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending import: %w", err)
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, pendingKey(p.ID), data, 0)
		pipe.SAdd(ctx, pendingIndexKey, p.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store pending import: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Load(ctx context.Context, id string) (*PendingImport, error) {
	data, err := s.redis.Get(ctx, pendingKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrImportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending import: %w", err)
	}

	var p PendingImport
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal pending import: %w", err)
	}
	return &p, nil
}

func (s *RedisPendingStore) Delete(ctx context.Context, id string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, pendingKey(id))
		pipe.SRem(ctx, pendingIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete pending import: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Count(ctx context.Context) (int64, error) {
	n, err := s.redis.SCard(ctx, pendingIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count pending imports: %w", err)
	}
	return n, nil
}

// Lock acquires a short-lived distributed lock. It expires after 30s if never released.
func (s *RedisPendingStore) Lock(ctx context.Context, id string) (func() error, error) {
	key := lockKey(id)
	lockValue := uuid.New().String()

	acquired, err := s.redis.SetNX(ctx, key, lockValue, lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return nil, ErrImportBusy
	}

	unlock := func() error {
		// only delete our own lock
		script := `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			else
				return 0
			end
		`
		return s.redis.Eval(context.Background(), script, []string{key}, lockValue).Err()
	}

	return unlock, nil
}

// MemoryPendingStore keeps pending imports in process. Used when Redis is not
// configured, and in tests.
type MemoryPendingStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	locked  map[string]bool
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{
		entries: make(map[string][]byte),
		locked:  make(map[string]bool),
	}
}

// Save stores a JSON copy so callers cannot mutate stored state.
func (s *MemoryPendingStore) Save(_ context.Context, p *PendingImport) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending import: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[p.ID] = data
	return nil
}

func (s *MemoryPendingStore) Load(_ context.Context, id string) (*PendingImport, error) {
	s.mu.Lock()
	data, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrImportNotFound
	}
	var p PendingImport
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal pending import: %w", err)
	}
	return &p, nil
}

func (s *MemoryPendingStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryPendingStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}

func (s *MemoryPendingStore) Lock(_ context.Context, id string) (func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[id] {
		return nil, ErrImportBusy
	}
	s.locked[id] = true
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.locked, id)
		return nil
	}, nil
}
