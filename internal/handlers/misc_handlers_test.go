package handlers

import (
	"testing"

	"github.com/escanordb/escanor/internal/engine"
)

func TestKeysMatchesGlob(t *testing.T) {
	db := newTestDB()
	NewKVHandlers(db).Set("user:1", "a")
	NewKVHandlers(db).Set("user:2", "b")
	NewKVHandlers(db).Set("order:1", "c")

	h := NewMiscHandlers(db, engine.NewAuthState(false, ""))
	r := h.Keys("user:*")
	if r.Kind != KindArray || len(r.Array) != 2 {
		t.Fatalf("got %+v", r)
	}
}

func TestKeysInvalidPattern(t *testing.T) {
	h := NewMiscHandlers(newTestDB(), engine.NewAuthState(false, ""))
	r := h.Keys("[abc")
	if r.Kind != KindError || r.Err != "ERR invalid pattern" {
		t.Fatalf("got %+v", r)
	}
}

func TestExpireAlwaysRepliesZero(t *testing.T) {
	db := newTestDB()
	NewKVHandlers(db).Set("a", "1")
	h := NewMiscHandlers(db, engine.NewAuthState(false, ""))
	r := h.Expire("a", 60, 1000)
	if r.Kind != KindInteger || r.Integer != 0 {
		t.Fatalf("got %+v", r)
	}
	ttl := h.TTL("a")
	if ttl.Kind != KindInteger || ttl.Integer != 1060 {
		t.Fatalf("got %+v", ttl)
	}
}

func TestAuthRejectsWrongKey(t *testing.T) {
	db := newTestDB()
	h := NewMiscHandlers(db, engine.NewAuthState(true, "s3cr3t"))
	if r := h.Auth("wrong"); r.Kind != KindError {
		t.Fatalf("got %+v", r)
	}
	if r := h.Auth("s3cr3t"); r.Kind != KindSimple || r.Simple != "OK" {
		t.Fatalf("got %+v", r)
	}
}

func TestFlushDBClearsKeys(t *testing.T) {
	db := newTestDB()
	NewKVHandlers(db).Set("a", "1")
	h := NewMiscHandlers(db, engine.NewAuthState(false, ""))
	if r := h.FlushDB(); r.Kind != KindSimple {
		t.Fatalf("got %+v", r)
	}
	if db.DBSize() != 0 {
		t.Fatalf("want 0 keys, got %d", db.DBSize())
	}
}

func TestSaveAndLastSave(t *testing.T) {
	db := newTestDB()
	NewKVHandlers(db).Set("a", "1")
	h := NewMiscHandlers(db, engine.NewAuthState(false, ""))
	if r := h.Save(1700000000); r.Kind != KindSimple {
		t.Fatalf("got %+v", r)
	}
	r := h.LastSave()
	if r.Kind != KindInteger || r.Integer != 1700000000 {
		t.Fatalf("got %+v", r)
	}
}
