package sink

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// exerciseSink runs the contract shared by every sink variant.
func exerciseSink(t *testing.T, s Sink) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.ReadBytes(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("read missing: got %v, want ErrNotFound", err)
	}

	record := []byte{0x56, 0x4c, 0x54, 0x31, 0x00, 0xff, 0x7e}
	if err := s.WriteBytes(ctx, "session-1", record); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := s.ReadBytes(ctx, "session-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, record) {
		t.Errorf("read = %x, want %x", got, record)
	}

	// Overwrite replaces the whole record.
	replacement := []byte("replacement record")
	if err := s.WriteBytes(ctx, "session-1", replacement); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = s.ReadBytes(ctx, "session-1")
	if err != nil {
		t.Fatalf("read after overwrite: %v", err)
	}
	if !bytes.Equal(got, replacement) {
		t.Errorf("read after overwrite = %q, want %q", got, replacement)
	}

	// Keys are independent.
	if _, err := s.ReadBytes(ctx, "session-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("read other key: got %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx, "session-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.ReadBytes(ctx, "session-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("read deleted: got %v, want ErrNotFound", err)
	}

	// Deleting a missing key is fine.
	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("delete missing: %v", err)
	}
}

func TestMemorySink(t *testing.T) {
	exerciseSink(t, NewMemorySink())
}

func TestMemorySinkIsolatesBuffers(t *testing.T) {
	s := NewMemorySink()
	ctx := context.Background()

	src := []byte("original")
	if err := s.WriteBytes(ctx, "k", src); err != nil {
		t.Fatalf("write: %v", err)
	}
	src[0] = 'X' // caller mutates its buffer after the write

	got, err := s.ReadBytes(ctx, "k")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("stored record shares caller buffer: got %q", got)
	}

	got[0] = 'Y' // caller mutates the returned buffer
	again, _ := s.ReadBytes(ctx, "k")
	if string(again) != "original" {
		t.Errorf("stored record shares returned buffer: got %q", again)
	}
}

func TestFileSink(t *testing.T) {
	s, err := NewFileSink(filepath.Join(t.TempDir(), "vault_data"), zap.NewNop())
	if err != nil {
		t.Fatalf("new file sink: %v", err)
	}
	exerciseSink(t, s)
}

func TestFileSinkHashedNames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault_data")
	s, err := NewFileSink(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("new file sink: %v", err)
	}
	ctx := context.Background()

	// Keys with path-hostile characters must still map to safe filenames.
	key := "../../etc/passwd: weird/key"
	if err := s.WriteBytes(ctx, key, []byte("data")); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasSuffix(name, ".mem") || len(name) != 64+len(".mem") {
		t.Errorf("filename %q is not a sha256 hex digest with .mem suffix", name)
	}
	if strings.ContainsAny(name, "/\\:") {
		t.Errorf("filename %q contains unsafe characters", name)
	}
}

func TestNewFileSinkRejectsEmptyDir(t *testing.T) {
	if _, err := NewFileSink("", zap.NewNop()); err == nil {
		t.Error("expected error for empty dir")
	}
}
