package database

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore keeps each user's latest record in an LRU in front of the
// underlying store. Records are immutable, so an insert only has to drop
// the user's entry. A per-user generation keeps a lookup that raced an
// insert from caching the record the insert superseded.
type CachedStore struct {
	next   Store
	latest *lru.Cache[int64, HealthRecord]

	mu  sync.Mutex
	gen map[int64]uint64
}

var _ Store = (*CachedStore)(nil)

func NewCachedStore(next Store, size int) (*CachedStore, error) {
	cache, err := lru.New[int64, HealthRecord](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{next: next, latest: cache, gen: make(map[int64]uint64)}, nil
}

func (s *CachedStore) InsertHealthRecord(ctx context.Context, arg InsertHealthRecordParams) (HealthRecord, error) {
	r, err := s.next.InsertHealthRecord(ctx, arg)
	if err != nil {
		return r, err
	}
	s.mu.Lock()
	s.gen[arg.UserID]++
	s.latest.Remove(arg.UserID)
	s.mu.Unlock()
	return r, nil
}

func (s *CachedStore) generation(userID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[userID]
}

// LatestHealthRecord serves hits from the cache. Users without data are
// not cached, so their first insert is visible immediately.
func (s *CachedStore) LatestHealthRecord(ctx context.Context, userID int64) (*HealthRecord, error) {
	if r, ok := s.latest.Get(userID); ok {
		return &r, nil
	}
	gen := s.generation(userID)
	r, err := s.next.LatestHealthRecord(ctx, userID)
	if err != nil || r == nil {
		return r, err
	}

	s.mu.Lock()
	if s.gen[userID] == gen {
		s.latest.Add(userID, *r)
	}
	s.mu.Unlock()
	return r, nil
}

func (s *CachedStore) ListHealthRecords(ctx context.Context, arg ListHealthRecordsParams) ([]HealthRecord, error) {
	return s.next.ListHealthRecords(ctx, arg)
}

// Len reports the number of cached users.
func (s *CachedStore) Len() int {
	return s.latest.Len()
}
