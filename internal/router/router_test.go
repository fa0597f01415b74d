package router

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/olivier-w/mailbox/internal/registry"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func testRegistry() *registry.Registry {
	r := registry.New()
	r.Build([]registry.Message{{ID: "1"}, {ID: "2"}, {ID: "3"}})
	return r
}

func TestEncodeThenDecodeRoundTrips(t *testing.T) {
	loc := NewMemoryLocation("")
	rt := New(loc, testRegistry())

	if err := rt.Encode("2"); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	id, ok := rt.Current()
	if !ok || id != "2" {
		t.Fatalf("expected current id 2, got %q (ok=%v)", id, ok)
	}
}

func TestDecode(t *testing.T) {
	rt := New(NewMemoryLocation(""), testRegistry())
	tests := []struct {
		fragment string
		want     string
		ok       bool
	}{
		{"#3", "3", true},
		{"1", "1", true},
		{"", "", false},
		{"#", "", false},
		{"#99", "", false},
	}
	for _, tt := range tests {
		got, ok := rt.Decode(tt.fragment)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Decode(%q) = %q, %v; want %q, %v", tt.fragment, got, ok, tt.want, tt.ok)
		}
	}
}

func TestResolveShortCircuitsCurrentSelection(t *testing.T) {
	rt := New(NewMemoryLocation(""), testRegistry())
	if _, ok := rt.Resolve("#1", "1"); ok {
		t.Fatal("expected fragment equal to selection to resolve to nothing")
	}
	if id, ok := rt.Resolve("#2", "1"); !ok || id != "2" {
		t.Fatalf("expected 2, got %q (ok=%v)", id, ok)
	}
	if id, ok := rt.Resolve("#2", ""); !ok || id != "2" {
		t.Fatalf("expected 2 with no selection, got %q (ok=%v)", id, ok)
	}
}

func TestMemoryLocationNotifiesOnChangeOnly(t *testing.T) {
	loc := NewMemoryLocation("#1")
	var got []string
	unsubscribe := New(loc, testRegistry()).Watch(func(f string) { got = append(got, f) })

	loc.SetFragment("1")
	loc.SetFragment("#2")
	loc.SetFragment("2")
	if len(got) != 1 || got[0] != "2" {
		t.Fatalf("expected one notification for 2, got %v", got)
	}

	unsubscribe()
	loc.SetFragment("3")
	if len(got) != 1 {
		t.Fatalf("expected no notification after unsubscribe, got %v", got)
	}
}

type plainLocation struct{ fragment string }

func (p *plainLocation) Fragment() string           { return p.fragment }
func (p *plainLocation) SetFragment(f string) error { p.fragment = f; return nil }

func TestWatchWithoutNotifierIsNoop(t *testing.T) {
	unsubscribe := New(&plainLocation{}, testRegistry()).Watch(func(string) {
		t.Fatal("unexpected notification")
	})
	if unsubscribe == nil {
		t.Fatal("expected non-nil unsubscribe")
	}
	unsubscribe()
}

func TestFileLocationPersistsFragment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "fragment")
	loc, err := OpenFileLocation(path)
	if err != nil {
		t.Fatalf("OpenFileLocation returned error: %v", err)
	}
	if loc.Fragment() != "" {
		t.Fatalf("expected empty fragment for missing file, got %q", loc.Fragment())
	}
	if err := loc.SetFragment("#2"); err != nil {
		t.Fatalf("SetFragment returned error: %v", err)
	}
	loc.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading fragment file: %v", err)
	}
	if strings.TrimSpace(string(data)) != "2" {
		t.Fatalf("expected file to hold 2, got %q", data)
	}

	reopened, err := OpenFileLocation(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()
	if reopened.Fragment() != "2" {
		t.Fatalf("expected persisted fragment 2, got %q", reopened.Fragment())
	}
}

func TestFileLocationReportsExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fragment")
	loc, err := OpenFileLocation(path)
	if err != nil {
		t.Fatalf("OpenFileLocation returned error: %v", err)
	}
	defer loc.Close()

	if err := os.WriteFile(path, []byte("#3\n"), 0o644); err != nil {
		t.Fatalf("writing fragment file: %v", err)
	}

	select {
	case f := <-loc.Changes():
		if f != "3" {
			t.Fatalf("expected external change to 3, got %q", f)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for external change")
	}
	if loc.Fragment() != "3" {
		t.Fatalf("expected fragment 3, got %q", loc.Fragment())
	}
}
