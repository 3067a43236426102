package sessions

import (
	"errors"
	"testing"
	"time"

	"github.com/ibsar/voicedialog/pkg/dialog"
)

type fakeDriver struct{ loc string }

func (f *fakeDriver) PushTranscript(string, bool) {}
func (f *fakeDriver) PushKey(string) {}
func (f *fakeDriver) NotifyLocation(loc string) { f.loc = loc }
func (f *fakeDriver) Snapshot() dialog.Snapshot { return dialog.Snapshot{Location: f.loc} }

func TestStoreAddGetRemove(t *testing.T) {
	s := NewStore(time.Minute)
	s.Add("a", &fakeDriver{loc: "/bank"}, nil)

	e, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := e.Driver.Snapshot().Location; got != "/bank" {
		t.Errorf("Location = %q, want %q", got, "/bank")
	}

	s.Remove("a")
	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove error = %v, want ErrNotFound", err)
	}
}

func TestStoreListOrdered(t *testing.T) {
	s := NewStore(time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		at := base.Add(time.Duration(i) * time.Second)
		s.now = func() time.Time { return at }
		s.Add(id, &fakeDriver{}, nil)
	}
	list := s.List()
	if len(list) != 3 || list[0].ID != "c" || list[2].ID != "b" {
		t.Errorf("List order = %v", []string{list[0].ID, list[1].ID, list[2].ID})
	}
}

func TestStoreReap(t *testing.T) {
	s := NewStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	cancelled := false
	s.Add("idle", &fakeDriver{}, func() { cancelled = true })
	s.Add("busy", &fakeDriver{}, nil)

	now = now.Add(2 * time.Minute)
	s.Touch("busy")

	if n := s.Reap(); n != 1 {
		t.Errorf("Reap() = %d, want 1", n)
	}
	if !cancelled {
		t.Error("idle connection was not cancelled")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if _, err := s.Get("busy"); err != nil {
		t.Errorf("busy connection reaped: %v", err)
	}
}
