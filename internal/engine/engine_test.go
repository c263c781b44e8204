package engine

import (
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/escanordb/escanor/internal/config"
)

func newTestDatabase() *Database {
	cfg := config.Default()
	return New(cfg, afero.NewMemMapFs(), nil, nil)
}

func TestFlushDBClearsEverything(t *testing.T) {
	d := newTestDatabase()
	if err := d.KV.Set("a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := d.JSON.SetRaw("doc", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("SetRaw: %v", err)
	}
	if d.DBSize() != 2 {
		t.Fatalf("want 2 keys, got %d", d.DBSize())
	}
	n := d.FlushDB()
	if n != 2 {
		t.Fatalf("want 2 removed, got %d", n)
	}
	if d.DBSize() != 0 {
		t.Fatalf("want 0 keys after flush, got %d", d.DBSize())
	}
}

func TestExportImportStateRoundTrips(t *testing.T) {
	d := newTestDatabase()
	if err := d.KV.Set("str", "hello"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := d.KV.IncrBy("num", 42); err != nil {
		t.Fatalf("IncrBy: %v", err)
	}
	if err := d.JSON.SetRaw("doc", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("SetRaw: %v", err)
	}
	d.Expiry.SetExpireAt("str", 9999)

	state := d.ExportState()

	d2 := newTestDatabase()
	d2.ImportState(state)

	v, ok := d2.KV.Get("str")
	if !ok || v.Str != "hello" {
		t.Fatalf("got %+v ok=%v", v, ok)
	}
	n, ok := d2.KV.Get("num")
	if !ok || n.Int != 42 {
		t.Fatalf("got %+v ok=%v", n, ok)
	}
	doc, ok := d2.JSON.Get("doc", "a")
	if !ok || doc.(float64) != 1 {
		t.Fatalf("got %+v ok=%v", doc, ok)
	}
	if epoch, ok := d2.Expiry.TTL("str"); !ok || epoch != 9999 {
		t.Fatalf("got epoch=%d ok=%v", epoch, ok)
	}
}

func TestDeleteKeyDispatchesByFamily(t *testing.T) {
	d := newTestDatabase()
	_ = d.JSON.SetRaw("doc", []byte(`{}`))
	if !d.DeleteKey("doc") {
		t.Fatal("expected DeleteKey to succeed")
	}
	if _, ok := d.JSON.Get("doc", ""); ok {
		t.Fatal("expected doc to be gone")
	}
}

func TestAuthStateRequiresCorrectKey(t *testing.T) {
	a := NewAuthState(true, "s3cr3t")
	if a.Authorized() {
		t.Fatal("expected unauthorized before AUTH")
	}
	if err := a.Authenticate("wrong"); err != ErrAuthFailed {
		t.Fatalf("want ErrAuthFailed, got %v", err)
	}
	if err := a.Authenticate("s3cr3t"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !a.Authorized() {
		t.Fatal("expected authorized after correct AUTH")
	}
}

func TestAuthStateNotRequired(t *testing.T) {
	a := NewAuthState(false, "")
	if !a.Authorized() {
		t.Fatal("expected always-authorized when auth is not required")
	}
}

func TestAuthenticateAlwaysSucceedsWhenNotRequired(t *testing.T) {
	a := NewAuthState(false, "s3cr3t")
	if err := a.Authenticate("anything"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !a.Authorized() {
		t.Fatal("expected authorized")
	}
}

func TestBGSaveThenLoadThroughDatabase(t *testing.T) {
	d := newTestDatabase()
	if err := d.KV.Set("a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := d.Snapshot.BGSave(nil, d, time.Unix(1, 0)); err != nil {
		t.Fatalf("BGSave: %v", err)
	}
	d.Snapshot.Wait()

	loaded, err := d.Snapshot.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil || loaded.KV["a"].Str != "1" {
		t.Fatalf("got %+v", loaded)
	}
}
