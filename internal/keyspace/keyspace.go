// Package keyspace is the single directory of key ownership shared by the
// KV, JSON, and GEO stores (components C2-C4). Every key belongs to at most
// one value family at a time; claiming a key for one family while it is
// already claimed by another is rejected rather than silently overwritten.
package keyspace

import (
	"github.com/escanordb/escanor/internal/shardmap"
)

// Family identifies which store owns a key.
type Family int

const (
	// None means the key is not present in any store.
	None Family = iota
	KV
	JSON
	Geo
)

func (f Family) String() string {
	switch f {
	case KV:
		return "kv"
	case JSON:
		return "json"
	case Geo:
		return "geo"
	default:
		return "none"
	}
}

// Directory tracks which family owns each key. It does not hold the values
// themselves; each store keeps its own shardmap and consults Directory
// before inserting or removing a key.
type Directory struct {
	owners *shardmap.Map[Family]
}

// New creates an empty Directory.
func New() *Directory {
	return &Directory{owners: shardmap.New[Family]()}
}

// Lookup reports which family owns key, if any.
func (d *Directory) Lookup(key string) (Family, bool) {
	f, ok := d.owners.Get(key)
	if !ok {
		return None, false
	}
	return f, true
}

// Claim registers key as owned by family. If the key is already owned by a
// different family, Claim fails and reports that family so the caller can
// produce a WRONGTYPE-style error; claiming a key already owned by the same
// family is a no-op success (covers overwrite-in-place operations like SET).
func (d *Directory) Claim(key string, family Family) (ok bool, owner Family) {
	result, _ := d.owners.Update(key, func(cur Family, existed bool) (Family, bool) {
		if existed && cur != family {
			return cur, false
		}
		return family, true
	})
	if result != family {
		return false, result
	}
	return true, family
}

// Takeover forcibly reassigns key to family regardless of any existing
// owner. It exists only for the snapshot loader (§10.5): a snapshot taken
// while two stores briefly disagreed about a key can be replayed without the
// strict single-writer rejection that applies to live user commands.
func (d *Directory) Takeover(key string, family Family) {
	d.owners.Set(key, family)
}

// Release removes key from the directory entirely. Callers must also remove
// the value from the owning store.
func (d *Directory) Release(key string) (Family, bool) {
	return d.owners.Delete(key)
}

// Contains reports whether key is owned by any family.
func (d *Directory) Contains(key string) bool {
	return d.owners.Contains(key)
}

// Size returns the total number of claimed keys.
func (d *Directory) Size() int {
	return d.owners.Len()
}

// Keys returns every claimed key, regardless of family.
func (d *Directory) Keys() []string {
	return d.owners.Keys()
}

// Clear removes every key from the directory and returns the count removed.
func (d *Directory) Clear() int {
	return d.owners.Clear()
}
