package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/escanordb/escanor/internal/engine"
)

// JSONHandlers adapts internal/jsonstore onto Reply-returning methods.
type JSONHandlers struct {
	db *engine.Database
}

// NewJSONHandlers builds handlers backed by db.
func NewJSONHandlers(db *engine.Database) *JSONHandlers {
	return &JSONHandlers{db: db}
}

// SetRaw implements JSET.RAW key json.
func (h *JSONHandlers) SetRaw(key string, raw []byte) Reply {
	if err := h.db.JSON.SetRaw(key, raw); err != nil {
		return ErrFrom(err)
	}
	h.db.CountMutation("json", "JSET.RAW", 1)
	return Simple("OK")
}

// PathValue is one (path, raw-JSON-value) pair for a multi-path JSET.
type PathValue struct {
	Path string
	Raw  []byte
}

// Set implements JSET key (path, value).... Every pair is applied in
// order even if an earlier one fails; only the reply reports failure, not
// a rollback — matching the original server's documented limitation.
func (h *JSONHandlers) Set(key string, pairs ...PathValue) Reply {
	anyFailed := false
	for _, pv := range pairs {
		if err := h.db.JSON.Set(key, pv.Path, pv.Raw); err != nil {
			anyFailed = true
			continue
		}
		h.db.CountMutation("json", "JSET", 1)
	}
	if anyFailed {
		return Err("Error Saving values")
	}
	return Simple("OK")
}

// Merge implements JMERGE key json.
func (h *JSONHandlers) Merge(key string, raw []byte) Reply {
	if err := h.db.JSON.Merge(key, raw); err != nil {
		return ErrFrom(err)
	}
	h.db.CountMutation("json", "JMERGE", 1)
	return Simple("OK")
}

// Get implements JGET key [path]: an absent key replies with an empty
// string; an existing key with a missing path replies with serialized
// null, matching the original server rather than surfacing either case as
// an error. A string found at a path replies unquoted; every other value
// replies as serialized JSON.
func (h *JSONHandlers) Get(key, path string) Reply {
	if !h.db.JSON.Exists(key) {
		return BulkString("")
	}
	v, ok := h.db.JSON.Get(key, path)
	if !ok {
		return BulkString("null")
	}
	if s, isString := v.(string); isString && path != "" {
		return BulkString(s)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Err("ERR invalid json")
	}
	return Bulk(raw)
}

// Path implements JPATH key expr: evaluation errors reply with an empty
// string rather than a command error.
func (h *JSONHandlers) Path(key, template string) Reply {
	raw, err := h.db.JSON.Path(key, template)
	if err != nil {
		return BulkString("")
	}
	return Bulk(raw)
}

// Del implements JDEL key.
func (h *JSONHandlers) Del(key string) Reply {
	existed := h.db.JSON.Del(key)
	if existed {
		h.db.CountMutation("json", "JDEL", 1)
	}
	return Int(boolToInt(existed))
}

// Rem implements JREM key path...: replies with the number of paths that
// were actually removed.
func (h *JSONHandlers) Rem(key string, paths ...string) Reply {
	var removed int64
	for _, path := range paths {
		if h.db.JSON.Rem(key, path) {
			removed++
			h.db.CountMutation("json", "JREM", 1)
		}
	}
	return Int(removed)
}

// IncrBy implements JINCRBY key path delta.
func (h *JSONHandlers) IncrBy(key, path string, delta int64) Reply {
	result, err := h.db.JSON.IncrBy(key, path, delta)
	if err != nil {
		return ErrFrom(err)
	}
	h.db.CountMutation("json", "JINCRBY", 1)
	return BulkString(strconv.FormatFloat(result, 'f', -1, 64))
}

// IncrByFloat implements JINCRBYFLOAT key path delta.
func (h *JSONHandlers) IncrByFloat(key, path string, delta float64) Reply {
	result, err := h.db.JSON.IncrByFloat(key, path, delta)
	if err != nil {
		return ErrFrom(err)
	}
	h.db.CountMutation("json", "JINCRBYFLOAT", 1)
	return BulkString(strconv.FormatFloat(result, 'f', -1, 64))
}
