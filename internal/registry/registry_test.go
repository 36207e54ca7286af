package registry

import (
	"testing"

	"flowbus/internal/recorder"
)

type noopKind struct{}

func (noopKind) StreamType() string                                     { return "test.noop" }
func (noopKind) Apply(state any, _ recorder.TimedEvent) any             { return state }

func newTestRecorder(path string) *recorder.Recorder {
	return recorder.New(path, "test.noop", noopKind{}, nil, recorder.Options{})
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	rec := newTestRecorder("demo.one")
	desc := Description{Path: "demo.one", Info: "demo.one - test.noop", StreamType: "test.noop"}

	if err := r.Register("demo.one", desc, rec); err != nil {
		t.Fatalf("register: %v", err)
	}

	entry, ok := r.Lookup("demo.one")
	if !ok {
		t.Fatalf("expected entry to be found")
	}
	if entry.Description.Info != desc.Info {
		t.Fatalf("unexpected description: %+v", entry.Description)
	}
}

func TestRegisterDuplicatePathConflicts(t *testing.T) {
	r := New()
	recA := newTestRecorder("demo.dup")
	recB := newTestRecorder("demo.dup")
	desc := Description{Path: "demo.dup", StreamType: "test.noop"}

	if err := r.Register("demo.dup", desc, recA); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register("demo.dup", desc, recB)
	if err == nil {
		t.Fatalf("expected conflict error on duplicate path")
	}
	if _, ok := err.(*ConflictError); !ok {
		t.Fatalf("expected *ConflictError, got %T", err)
	}
}

func TestUnregisterRemovesEntry(t *testing.T) {
	r := New()
	rec := newTestRecorder("demo.gone")
	if err := r.Register("demo.gone", Description{Path: "demo.gone"}, rec); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Unregister("demo.gone")
	if _, ok := r.Lookup("demo.gone"); ok {
		t.Fatalf("expected entry to be removed")
	}
}

func TestCatalogListsAllRegisteredDescriptions(t *testing.T) {
	r := New()
	r.Register("a", Description{Path: "a"}, newTestRecorder("a"))
	r.Register("b", Description{Path: "b"}, newTestRecorder("b"))

	catalog := r.Catalog()
	if len(catalog) != 2 {
		t.Fatalf("expected 2 catalog entries, got %d", len(catalog))
	}
}

func TestDeclaredEmitsOnRegister(t *testing.T) {
	r := New()
	rec := newTestRecorder("demo.declared")
	desc := Description{Path: "demo.declared", StreamType: "test.noop"}

	if err := r.Register("demo.declared", desc, rec); err != nil {
		t.Fatalf("register: %v", err)
	}

	select {
	case got := <-r.Declared():
		if got.Path != desc.Path {
			t.Fatalf("unexpected declared description: %+v", got)
		}
	default:
		t.Fatalf("expected a declared notification")
	}
}

func TestResetDefaultClearsSingleton(t *testing.T) {
	t.Cleanup(ResetDefault)

	rec := newTestRecorder("demo.singleton")
	if err := Default().Register("demo.singleton", Description{Path: "demo.singleton"}, rec); err != nil {
		t.Fatalf("register: %v", err)
	}
	ResetDefault()
	if _, ok := Default().Lookup("demo.singleton"); ok {
		t.Fatalf("expected singleton to be cleared after reset")
	}
}
