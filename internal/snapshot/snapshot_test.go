package snapshot

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(fs, "/data/dump.dat")

	state := State{
		KV:          map[string]KVEntry{"a": {Kind: 0, Str: "hello"}},
		JSON:        map[string][]byte{"doc": []byte(`{"x":1}`)},
		Geo:         map[string][]GeoPoint{"places": {{Member: "sf", Lon: -122.4, Lat: 37.8}}},
		Expirations: map[string]int64{"a": 1234},
	}

	now := time.Unix(1700000000, 0)
	if err := e.Save(state, now); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := e.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a loaded state")
	}
	if loaded.KV["a"].Str != "hello" {
		t.Fatalf("got %+v", loaded.KV["a"])
	}
	if loaded.SavedAtUnix != now.Unix() {
		t.Fatalf("want saved_at %d, got %d", now.Unix(), loaded.SavedAtUnix)
	}

	lastSave, ok := e.LastSave()
	if !ok || !lastSave.Equal(now) {
		t.Fatalf("got lastSave=%v ok=%v", lastSave, ok)
	}
}

func TestLoadWithNoFileReturnsNil(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(fs, "/data/missing.dat")
	state, err := e.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state, got %+v", state)
	}
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(fs, "/data/dump.dat")
	if err := e.Save(State{}, time.Unix(1, 0)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := afero.ReadDir(fs, "/data")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "dump.dat" {
		t.Fatalf("expected only dump.dat to remain, got %+v", entries)
	}
}

type fakeSource struct{ state State }

func (f *fakeSource) ExportState() State  { return f.state }
func (f *fakeSource) ImportState(s State) { f.state = s }

func TestBGSaveRejectsConcurrentSave(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(fs, "/data/dump.dat")
	e.inProgress.Store(true)

	src := &fakeSource{state: State{}}
	if err := e.BGSave(nil, src, time.Unix(1, 0)); err != ErrSaveInProgress {
		t.Fatalf("want ErrSaveInProgress, got %v", err)
	}
}

func TestBGSaveCompletesAndIsWaitable(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(fs, "/data/dump.dat")
	src := &fakeSource{state: State{KV: map[string]KVEntry{"a": {Str: "x"}}}}

	if err := e.BGSave(nil, src, time.Unix(1, 0)); err != nil {
		t.Fatalf("BGSave: %v", err)
	}
	e.Wait()

	loaded, err := e.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil || loaded.KV["a"].Str != "x" {
		t.Fatalf("got %+v", loaded)
	}
}

func TestBGSaveReportsCompletionToOnDone(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(fs, "/data/dump.dat")
	src := &fakeSource{state: State{}}

	done := make(chan error, 1)
	if err := e.BGSave(nil, src, time.Unix(1, 0), func(err error) { done <- err }); err != nil {
		t.Fatalf("BGSave: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("onDone reported error: %v", err)
	}
}

func TestBGSaveReportsFailureToOnDone(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	e := New(fs, "/data/dump.dat")
	src := &fakeSource{state: State{}}

	done := make(chan error, 1)
	if err := e.BGSave(nil, src, time.Unix(1, 0), func(err error) { done <- err }); err != nil {
		t.Fatalf("BGSave: %v", err)
	}
	if err := <-done; err == nil {
		t.Fatal("expected onDone to report the write failure")
	}
}
