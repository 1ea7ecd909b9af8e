package storage

import "testing"

func TestNewStoreKinds(t *testing.T) {
	store, err := NewStore("memory", "")
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	store, err = NewStore(DefaultStoreKind(), t.TempDir())
	if err != nil {
		t.Fatalf("new default store: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Fatalf("expected file store by default, got %T", store)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close unsupported: %v", err)
	}
	TagRunIfSupported(store, "run-1")
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "")
	if err == nil {
		t.Fatal("expected unsupported store error")
	}
}
