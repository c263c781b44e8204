package handlers

import (
	"strconv"

	"github.com/escanordb/escanor/internal/engine"
	"github.com/escanordb/escanor/internal/kv"
)

// KVHandlers adapts internal/kv's Store onto Reply-returning methods,
// bumping the database's mutation counter on every write.
type KVHandlers struct {
	db *engine.Database
}

// NewKVHandlers builds handlers backed by db.
func NewKVHandlers(db *engine.Database) *KVHandlers {
	return &KVHandlers{db: db}
}

// Set implements SET key value.
func (h *KVHandlers) Set(key, value string) Reply {
	if err := h.db.KV.Set(key, value); err != nil {
		return ErrFrom(err)
	}
	h.db.CountMutation("kv", "SET", 1)
	return Simple("OK")
}

// Get implements GET key: KEY_NOT_FOUND is a command error, not a nil
// reply, matching the original server. A key owned by another family
// replies WRONGTYPE; an Int value replies as an integer, a String as a bulk
// string.
func (h *KVHandlers) Get(key string) Reply {
	v, ok := h.db.KV.Get(key)
	if !ok {
		if h.db.Dir.Contains(key) {
			return Err(string(kv.ErrWrongType))
		}
		return Err(string(kv.ErrKeyNotFound))
	}
	if v.Kind == kv.KindInt {
		return Int(v.Int)
	}
	return BulkString(v.String())
}

// GetSet implements GETSET key value: an absent prior value replies with
// an empty string, not nil.
func (h *KVHandlers) GetSet(key, value string) Reply {
	prev, existed, err := h.db.KV.GetSet(key, value)
	if err != nil {
		return ErrFrom(err)
	}
	h.db.CountMutation("kv", "GETSET", 1)
	if !existed {
		return BulkString("")
	}
	return BulkString(prev.String())
}

// Del implements DEL key: a successful delete also tombstones the key so a
// racing expiry sweep does not re-report it as still live. A key owned by
// another family replies WRONGTYPE.
func (h *KVHandlers) Del(key string) Reply {
	existed := h.db.KV.Del(key)
	if !existed && h.db.Dir.Contains(key) {
		return Err(string(kv.ErrWrongType))
	}
	if existed {
		h.db.Expiry.MarkTombstone(key)
		h.db.CountMutation("kv", "DEL", 1)
	}
	return Int(boolToInt(existed))
}

// Exists implements EXISTS key...: the count of the given keys present in
// the KV store specifically (not JSON or GEO).
func (h *KVHandlers) Exists(keys ...string) Reply {
	var n int64
	for _, key := range keys {
		if h.db.KV.Exists(key) {
			n++
		}
	}
	return Int(n)
}

// IncrBy implements INCRBY key delta: an absent key, or one that previously
// held an Int, replies as an integer; a key that held a numeric string
// replies as a bulk string of the digits, matching the original server's
// rule of preserving the prior representation in the reply as well as the
// store.
func (h *KVHandlers) IncrBy(key string, delta int64) Reply {
	v, err := h.db.KV.IncrBy(key, delta)
	if err != nil {
		return ErrFrom(err)
	}
	h.db.CountMutation("kv", "INCRBY", 1)
	if v.Kind == kv.KindInt {
		return Int(v.Int)
	}
	return BulkString(v.Str)
}

// RandomKey implements RANDOMKEY.
func (h *KVHandlers) RandomKey() Reply {
	return BulkString(h.db.KV.RandomKey())
}

// DBSize implements DBSIZE.
func (h *KVHandlers) DBSize() Reply {
	return Int(int64(h.db.DBSize()))
}

// Info implements INFO: a short human-readable summary, mirroring the
// original server's plain-text status block.
func (h *KVHandlers) Info() Reply {
	return BulkString("keys:" + strconv.Itoa(h.db.DBSize()) + " mutations:" + strconv.FormatUint(h.db.MutationCount(), 10))
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
