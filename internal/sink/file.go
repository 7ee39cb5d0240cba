package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileSink stores one record per file in a vault directory. Filenames are
// the SHA-256 of the key, so arbitrary session IDs map to safe names.
type FileSink struct {
	dir    string
	logger *zap.Logger
}

// NewFileSink creates the vault directory if needed.
func NewFileSink(dir string, logger *zap.Logger) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("sink: empty vault directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create vault dir %s: %w", dir, err)
	}
	return &FileSink{dir: dir, logger: logger}, nil
}

func (s *FileSink) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".mem")
}

func (s *FileSink) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	return data, nil
}

func (s *FileSink) WriteBytes(ctx context.Context, key string, data []byte) error {
	path := s.path(key)
	// Write to a temp file first so a crash never leaves a half-written record.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit record: %w", err)
	}
	s.logger.Debug("record written", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

func (s *FileSink) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
