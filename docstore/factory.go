package docstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore"
)

// StoreType represents the type of document store.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeMongo    StoreType = "mongo"
	StoreTypeSupabase StoreType = "supabase"
)

// Constructor builds a Store from its configuration.
type Constructor func(cfg StoreConfig) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[StoreType]Constructor{}
)

// Register makes a store type available to NewStore. Backend packages call it
// from init, so importing a backend is enough to enable it.
func Register(storeType StoreType, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[storeType]; dup {
		panic("docstore: Register called twice for " + string(storeType))
	}
	registry[storeType] = ctor
}

// NewStore creates a new Store based on the given type.
// "memory" is always available; "mongo" and "supabase" require importing
// their packages.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := StoreConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	if storeType == StoreTypeMemory {
		return NewMemoryStore(), nil
	}

	registryMu.RLock()
	ctor, ok := registry[storeType]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", quizstore.ErrInvalidStoreType, storeType)
	}
	return ctor(cfg)
}

// MemoryStore implements Store in memory, for tests and single-process runs.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int
	docs   []Document
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// CreateQuestion implements Store.
func (s *MemoryStore) CreateQuestion(ctx context.Context, q quizstore.Question) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insert(q), nil
}

// CreateQuestionsBulk implements Store.
func (s *MemoryStore) CreateQuestionsBulk(ctx context.Context, questions []quizstore.Question) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, s.insert(q))
	}
	return ids, nil
}

func (s *MemoryStore) insert(q quizstore.Question) string {
	s.nextID++
	doc := NewDocument(q, s.now())
	doc.ID = strconv.Itoa(s.nextID)
	s.docs = append(s.docs, doc)
	return doc.ID
}

// GetQuestions implements Store.
func (s *MemoryStore) GetQuestions(ctx context.Context, limit, offset int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.docs) {
		return []Document{}, nil
	}
	end := len(s.docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]Document, end-offset)
	copy(out, s.docs[offset:end])
	return out, nil
}

// UpdateDifficulty implements Store.
func (s *MemoryStore) UpdateDifficulty(ctx context.Context, question string, difficulty quizstore.Difficulty) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.docs {
		if s.docs[i].Question == question {
			s.docs[i].Difficulty = difficulty
			s.docs[i].UpdatedAt = s.now().UTC()
			n++
		}
	}
	return n, nil
}

// Health implements Store.
func (s *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// Types lists the store types NewStore accepts.
func Types() []StoreType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := []StoreType{StoreTypeMemory}
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Compile-time check that MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
