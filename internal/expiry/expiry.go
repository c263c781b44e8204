// Package expiry implements the TTL and tombstone machinery (component C5):
// an expiration index mapping keys to an absolute epoch deadline, a
// tombstone set recording keys explicitly deleted by the user, and a
// sweeper that periodically evicts expired keys while respecting
// tombstones so a racing background sweep never re-reports a key the user
// already removed.
package expiry

import (
	"sync"
	"time"

	"github.com/jimsnab/go-lane"
)

// Deleter is whatever the sweeper evicts expired keys from: the keyspace
// directory plus each value-family store. engine.Database implements it.
type Deleter interface {
	DeleteKey(key string) bool
}

// Index tracks absolute-epoch expiration deadlines and a tombstone set of
// keys the user has explicitly deleted since the last ClearTombstones.
type Index struct {
	mu         sync.Mutex
	deadlines  map[string]int64 // key -> absolute unix epoch seconds
	tombstones map[string]struct{}
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		deadlines:  make(map[string]int64),
		tombstones: make(map[string]struct{}),
	}
}

// SetExpireAt records that key expires at the given absolute unix epoch
// seconds.
func (idx *Index) SetExpireAt(key string, epoch int64) {
	idx.mu.Lock()
	idx.deadlines[key] = epoch
	idx.mu.Unlock()
}

// TTL returns the absolute epoch deadline for key, per the original
// server's (preserved) behavior of returning the deadline itself rather
// than seconds remaining.
func (idx *Index) TTL(key string) (int64, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	epoch, ok := idx.deadlines[key]
	return epoch, ok
}

// Persist clears any expiration deadline for key, making it permanent.
func (idx *Index) Persist(key string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, existed := idx.deadlines[key]
	delete(idx.deadlines, key)
	return existed
}

// MarkTombstone records that key was explicitly deleted by the user, so the
// next sweep tick does not issue a second, spurious delete for it.
func (idx *Index) MarkTombstone(key string) {
	idx.mu.Lock()
	idx.tombstones[key] = struct{}{}
	delete(idx.deadlines, key)
	idx.mu.Unlock()
}

// ClearTombstones drops every recorded tombstone. Called every 2 seconds by
// the scheduler.
func (idx *Index) ClearTombstones() int {
	idx.mu.Lock()
	n := len(idx.tombstones)
	idx.tombstones = make(map[string]struct{})
	idx.mu.Unlock()
	return n
}

// Sweep evicts every key whose deadline has passed as of now, skipping keys
// present in the tombstone set, and deletes them from del. It returns the
// number of keys evicted.
func (idx *Index) Sweep(now time.Time, del Deleter, l lane.Lane) int {
	nowEpoch := now.Unix()

	idx.mu.Lock()
	var expired []string
	for key, deadline := range idx.deadlines {
		if deadline > nowEpoch {
			continue
		}
		if _, tombstoned := idx.tombstones[key]; tombstoned {
			continue
		}
		expired = append(expired, key)
	}
	for _, key := range expired {
		delete(idx.deadlines, key)
	}
	idx.mu.Unlock()

	evicted := 0
	for _, key := range expired {
		if del.DeleteKey(key) {
			evicted++
		} else if l != nil {
			l.Tracef("expiry sweep: key %q already gone", key)
		}
	}
	return evicted
}

// Size returns the number of keys with a tracked expiration deadline.
func (idx *Index) Size() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.deadlines)
}
