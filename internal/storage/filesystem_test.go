package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWorkspaceLifecycle(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	ws, err := store.NewWorkspace("abc")
	if err != nil {
		t.Fatalf("NewWorkspace error: %v", err)
	}
	if want := filepath.Join(store.BasePath(), "temp_abc"); ws.Dir != want {
		t.Fatalf("Dir mismatch: got %q want %q", ws.Dir, want)
	}
	if got := ws.Key("seg_0.mp4"); got != "temp_abc/seg_0.mp4" {
		t.Fatalf("Key mismatch: got %q", got)
	}
	p, err := ws.Write(context.Background(), "frame_0.jpg", []byte("jpg"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if p != ws.Path("frame_0.jpg") {
		t.Fatalf("Write path mismatch: got %q want %q", p, ws.Path("frame_0.jpg"))
	}
	if err := ws.Remove(); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Fatalf("expected workspace removed, stat err = %v", err)
	}
}

func TestNewWorkspaceRequiresSession(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if _, err := store.NewWorkspace(" "); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestWriteRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	for _, key := range []string{"../escape.mp4", "..", " "} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
	key, err := store.Write(context.Background(), "/nested/./a.mp4", []byte("x"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if key != "nested/a.mp4" {
		t.Fatalf("key mismatch: got %q", key)
	}
}

func TestFinalKeyAndPublicURL(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	key := store.FinalKey("sora")
	if !strings.HasPrefix(key, "sora_complete_") || !strings.HasSuffix(key, ".mp4") {
		t.Fatalf("unexpected final key %q", key)
	}
	if key == store.FinalKey("sora") {
		t.Fatal("final keys must be unique")
	}
	got := PublicURL("https://example.com/", "sora_complete_1.mp4")
	if want := "https://example.com/generated/sora_complete_1.mp4"; got != want {
		t.Fatalf("PublicURL mismatch: got %q want %q", got, want)
	}
}
