package credential

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFileStorageRoundTripAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")

	first := NewStore(NewFileStorage(path))
	if err := first.Set(ctx, "A1", "R1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	second := NewStore(NewFileStorage(path))
	if got := second.Load(ctx); got != (Pair{Access: "A1", Refresh: "R1"}) {
		t.Fatalf("unexpected pair: %+v", got)
	}

	second.Clear(ctx)
	third := NewStore(NewFileStorage(path))
	if got := third.Load(ctx); !got.Empty() {
		t.Fatalf("expected empty pair after clear, got %+v", got)
	}
}

func TestFileStorageFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not enforced on windows")
	}
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")
	fs := NewFileStorage(path)
	if err := fs.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}
}

func TestFileStorageCorruptDocumentDegradesStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewStore(NewFileStorage(path))
	if p := s.Load(ctx); !p.Empty() {
		t.Fatalf("expected empty pair, got %+v", p)
	}
	if !s.Degraded() {
		t.Fatal("expected degraded store on corrupt file")
	}
}

func TestFileStorageRemoveMissingKey(t *testing.T) {
	fs := NewFileStorage(filepath.Join(t.TempDir(), "credentials.json"))
	if err := fs.Remove(context.Background(), "absent"); err != nil {
		t.Fatalf("remove absent key: %v", err)
	}
	if _, err := os.Stat(fs.Path()); !os.IsNotExist(err) {
		t.Fatalf("remove of absent key must not create the file, stat err=%v", err)
	}
}
