package handlers

import (
	"time"

	"github.com/escanordb/escanor/internal/engine"
	"github.com/escanordb/escanor/internal/glob"
	"github.com/escanordb/escanor/internal/keyspace"
)

func unixTime(seconds int64) time.Time { return time.Unix(seconds, 0) }

// MiscHandlers covers the commands that span every value family: KEYS,
// EXPIRE/EXPIREAT/TTL/PERSIST, AUTH, FLUSHDB, and SAVE/BGSAVE/LASTSAVE.
type MiscHandlers struct {
	db   *engine.Database
	auth *engine.AuthState
}

// NewMiscHandlers builds handlers backed by db and auth.
func NewMiscHandlers(db *engine.Database, auth *engine.AuthState) *MiscHandlers {
	return &MiscHandlers{db: db, auth: auth}
}

// Keys implements KEYS pattern.
func (h *MiscHandlers) Keys(pattern string) Reply {
	p, err := glob.Compile(pattern)
	if err != nil {
		return Err("ERR invalid pattern")
	}
	var matches []Reply
	for _, key := range h.db.Dir.Keys() {
		if p.Match(key) {
			matches = append(matches, BulkString(key))
		}
	}
	return ArrayOf(matches...)
}

// Expire implements EXPIRE key seconds. Per the original server's
// (preserved) behavior, this always replies 0 rather than Redis's
// 1-on-success/0-on-missing-key convention.
func (h *MiscHandlers) Expire(key string, seconds int64, now int64) Reply {
	if h.db.Dir.Contains(key) {
		h.db.Expiry.SetExpireAt(key, now+seconds)
	}
	return Int(0)
}

// ExpireAt implements EXPIREAT key epoch, also always replying 0.
func (h *MiscHandlers) ExpireAt(key string, epoch int64) Reply {
	if h.db.Dir.Contains(key) {
		h.db.Expiry.SetExpireAt(key, epoch)
	}
	return Int(0)
}

// TTL implements TTL key: the absolute expiration epoch, not seconds
// remaining — preserved from the original server. Non-KV keys and keys
// with no expiry both reply -1.
func (h *MiscHandlers) TTL(key string) Reply {
	if family, ok := h.db.Dir.Lookup(key); !ok || family != keyspace.KV {
		return Int(-1)
	}
	epoch, ok := h.db.Expiry.TTL(key)
	if !ok {
		return Int(-1)
	}
	return Int(epoch)
}

// Persist implements PERSIST key.
func (h *MiscHandlers) Persist(key string) Reply {
	return Int(boolToInt(h.db.Expiry.Persist(key)))
}

// Auth implements AUTH key.
func (h *MiscHandlers) Auth(key string) Reply {
	if err := h.auth.Authenticate(key); err != nil {
		return ErrFrom(err)
	}
	return Simple("OK")
}

// FlushDB implements FLUSHDB.
func (h *MiscHandlers) FlushDB() Reply {
	h.db.FlushDB()
	return Simple("OK")
}

// Save implements SAVE, a synchronous snapshot write.
func (h *MiscHandlers) Save(now int64) Reply {
	if err := h.db.Snapshot.Save(h.db.ExportState(), unixTime(now)); err != nil {
		return Err("ERR internal error")
	}
	return Simple("OK")
}

// BGSave implements BGSAVE.
func (h *MiscHandlers) BGSave(now int64) Reply {
	if err := h.db.Snapshot.BGSave(nil, h.db, unixTime(now)); err != nil {
		return ErrFrom(err)
	}
	return Simple("Background saving started")
}

// LastSave implements LASTSAVE.
func (h *MiscHandlers) LastSave() Reply {
	t, ok := h.db.Snapshot.LastSave()
	if !ok {
		return Int(0)
	}
	return Int(t.Unix())
}
