// Package engine wires together the keyspace directory and the three value
// stores into one Database handle, replacing the original server's
// process-wide lazy_static singletons. A Database is an explicit value:
// constructed once at process start and passed into every command handler,
// so nothing in this module reaches for global mutable state.
package engine

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jimsnab/go-lane"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/escanordb/escanor/internal/config"
	"github.com/escanordb/escanor/internal/expiry"
	"github.com/escanordb/escanor/internal/geo"
	"github.com/escanordb/escanor/internal/jsonstore"
	"github.com/escanordb/escanor/internal/keyspace"
	"github.com/escanordb/escanor/internal/kv"
	"github.com/escanordb/escanor/internal/metrics"
	"github.com/escanordb/escanor/internal/snapshot"
)

// AuthState tracks whether the current connection has authenticated,
// mirroring the original server's per-connection auth flag plus its single
// configured server key.
type AuthState struct {
	mu            sync.Mutex
	required      bool
	serverKey     string
	authenticated bool
}

// NewAuthState creates an AuthState requiring serverKey when required is
// true.
func NewAuthState(required bool, serverKey string) *AuthState {
	return &AuthState{required: required, serverKey: serverKey}
}

// ErrAuthFailed is returned by Authenticate when the supplied key is wrong.
var ErrAuthFailed = authError("ERR auth failed")

type authError string

func (e authError) Error() string { return string(e) }

// Authenticate checks clientKey against the configured server key. If auth
// is not required at all, it always succeeds regardless of clientKey.
func (a *AuthState) Authenticate(clientKey string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.required {
		a.authenticated = true
		return nil
	}
	if clientKey != a.serverKey {
		a.authenticated = false
		return ErrAuthFailed
	}
	a.authenticated = true
	return nil
}

// Authorized reports whether the connection may proceed: either auth is not
// required, or it has already succeeded.
func (a *AuthState) Authorized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.required || a.authenticated
}

// Database is the complete set of owned stores for one running engine.
type Database struct {
	Dir  *keyspace.Directory
	KV   *kv.Store
	JSON *jsonstore.Store
	Geo  *geo.Store

	Expiry   *expiry.Index
	Snapshot *snapshot.Engine
	Metrics  *metrics.Collectors

	lane lane.Lane

	mutationsMu sync.Mutex
	mutations   uint64
}

// New constructs a Database from cfg, using l for logging, fs as the
// filesystem snapshots are written to, and collectors (which may be nil) for
// metrics.
func New(cfg *config.Config, fs afero.Fs, l lane.Lane, collectors *metrics.Collectors) *Database {
	dir := keyspace.New()
	return &Database{
		Dir:      dir,
		KV:       kv.New(dir),
		JSON:     jsonstore.New(dir),
		Geo:      geo.New(dir),
		Expiry:   expiry.New(),
		Snapshot: snapshot.New(fs, cfg.Database.SnapshotPath),
		Metrics:  collectors,
		lane:     l,
	}
}

// CountMutation increments the mutation counter by n and, if metrics are
// enabled, the MutationsTotal counter for family/command.
func (d *Database) CountMutation(family, command string, n uint64) {
	d.mutationsMu.Lock()
	d.mutations += n
	d.mutationsMu.Unlock()
	if d.Metrics != nil {
		d.Metrics.MutationsTotal.WithLabelValues(family, command).Add(float64(n))
	}
}

// MutationCount returns the total number of mutations applied since start.
// It is never reset; FLUSHDB adds the number of keys it removed.
func (d *Database) MutationCount() uint64 {
	d.mutationsMu.Lock()
	defer d.mutationsMu.Unlock()
	return d.mutations
}

// DBSize returns the total number of keys across every family.
func (d *Database) DBSize() int {
	return d.Dir.Size()
}

// DeleteKey removes key from whichever family owns it. A KV-family deletion
// is also marked as a tombstone, so a racing expiry sweep does not
// re-report the key as still live — matching the original server, where
// only the KV store's DEL feeds the tombstone set. It implements
// expiry.Deleter.
func (d *Database) DeleteKey(key string) bool {
	family, ok := d.Dir.Lookup(key)
	if !ok {
		return false
	}
	var existed bool
	switch family {
	case keyspace.KV:
		existed = d.KV.Del(key)
		if existed {
			d.Expiry.MarkTombstone(key)
		}
	case keyspace.JSON:
		existed = d.JSON.Del(key)
	case keyspace.Geo:
		existed = d.Geo.Del(key)
	}
	return existed
}

// FlushDB clears every store, the keyspace directory, the expiration
// deadlines of the keys it removes, and the tombstone set, and returns the
// total number of keys removed.
func (d *Database) FlushDB() int {
	for _, key := range d.Dir.Keys() {
		d.Expiry.Persist(key)
	}
	d.Expiry.ClearTombstones()
	n := d.KV.Clear() + d.JSON.Clear() + d.Geo.Clear()
	d.Dir.Clear()
	d.CountMutation("all", "FLUSHDB", uint64(n))
	return n
}

// ExportState implements snapshot.Source: it builds the on-disk envelope
// from the three live stores.
func (d *Database) ExportState() snapshot.State {
	state := snapshot.State{
		KV:          make(map[string]snapshot.KVEntry),
		JSON:        make(map[string][]byte),
		Geo:         make(map[string][]snapshot.GeoPoint),
		Expirations: make(map[string]int64),
	}
	for _, key := range d.Dir.Keys() {
		family, _ := d.Dir.Lookup(key)
		switch family {
		case keyspace.KV:
			if v, ok := d.KV.Get(key); ok {
				state.KV[key] = snapshot.KVEntry{Kind: int64(v.Kind), Str: v.Str, Int: v.Int}
			}
		case keyspace.JSON:
			if v, ok := d.JSON.Get(key, ""); ok {
				if raw, err := json.Marshal(v); err == nil {
					state.JSON[key] = raw
				}
			}
		case keyspace.Geo:
			state.Geo[key] = lo.Map(d.Geo.Members(key), func(p geo.Point, _ int) snapshot.GeoPoint {
				return snapshot.GeoPoint{Member: p.Member, Lon: p.Lon, Lat: p.Lat}
			})
		}
		if epoch, ok := d.Expiry.TTL(key); ok {
			state.Expirations[key] = epoch
		}
	}
	return state
}

// ImportState implements snapshot.Source: it replaces the live stores'
// contents with what the snapshot describes. Keys are claimed via the
// keyspace directory's takeover path (§10.5): a loaded snapshot may contain
// a key whose family briefly disagreed with another store at save time, and
// the loader must not strict-reject that the way a live user command would.
func (d *Database) ImportState(state snapshot.State) {
	d.Dir.Clear()
	d.KV.Clear()
	d.JSON.Clear()
	d.Geo.Clear()

	for key, entry := range state.KV {
		d.Dir.Takeover(key, keyspace.KV)
		_ = d.KV.SetValue(key, kv.Value{Kind: kv.Kind(entry.Kind), Str: entry.Str, Int: entry.Int})
	}
	for key, raw := range state.JSON {
		d.Dir.Takeover(key, keyspace.JSON)
		_ = d.JSON.SetRaw(key, raw)
	}
	for key, points := range state.Geo {
		d.Dir.Takeover(key, keyspace.Geo)
		for _, p := range points {
			_ = d.Geo.Add(key, geo.Point{Member: p.Member, Lon: p.Lon, Lat: p.Lat})
		}
	}
	for key, epoch := range state.Expirations {
		d.Expiry.SetExpireAt(key, epoch)
	}
}

// Now returns the current wall-clock time; it is the clock the process
// passes to the expiry sweep and to snapshot saves.
func Now() time.Time { return time.Now() }
