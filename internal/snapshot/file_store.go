// Package snapshot provides a file-backed model snapshot store.
//
// The state is written to a temporary file and renamed into place, followed
// by a SHA-256 checksum file. Load verifies the checksum when one exists.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Format is the on-disk encoding of a snapshot.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const (
	// BaseName is the snapshot file name without extension.
	BaseName       = "model"
	checksumSuffix = ".checksum"
	tempSuffix     = ".tmp"
)

// ErrChecksumMismatch is returned when the snapshot does not match its checksum file.
var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

// ParseFormat accepts "json", "yaml" or "yml" (any case).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported snapshot format %q (use json or yaml)", s)
	}
}

// FileStore keeps the model state in a single file under dir.
// Use afero.NewOsFs() for real files or afero.NewMemMapFs() in tests.
type FileStore struct {
	fs     afero.Fs
	dir    string
	format Format
}

// NewFileStore returns a store writing <dir>/model.<format>.
func NewFileStore(fs afero.Fs, dir string, format Format) *FileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if format == "" {
		format = FormatJSON
	}
	return &FileStore{fs: fs, dir: dir, format: format}
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, BaseName+"."+string(s.format))
}

// Location describes where snapshots are kept.
func (s *FileStore) Location() string {
	return "file:" + s.Path()
}

// Load reads and verifies the snapshot. A missing file yields estimate.ErrNoSnapshot.
func (s *FileStore) Load(ctx context.Context) (*estimate.ModelState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path()

	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, estimate.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	expected, err := afero.ReadFile(s.fs, path+checksumSuffix)
	switch {
	case err == nil:
		if actual := checksum(data); strings.TrimSpace(string(expected)) != actual {
			return nil, fmt.Errorf("%w: %s expected %s, got %s", ErrChecksumMismatch, path, strings.TrimSpace(string(expected)), actual)
		}
	case errors.Is(err, os.ErrNotExist):
		// Hand-edited or restored snapshots may come without a checksum.
	default:
		return nil, fmt.Errorf("read checksum for %s: %w", path, err)
	}

	var st estimate.ModelState
	switch s.format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &st)
	default:
		err = json.Unmarshal(data, &st)
	}
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("validate snapshot %s: %w", path, err)
	}
	return &st, nil
}

// Save writes the state atomically (temp file + rename), then its checksum.
func (s *FileStore) Save(ctx context.Context, st *estimate.ModelState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := st.Validate(); err != nil {
		return fmt.Errorf("refuse to save snapshot: %w", err)
	}

	data, err := Encode(st, s.format)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory %s: %w", s.dir, err)
	}

	path := s.Path()
	if err := s.writeAtomic(path, data); err != nil {
		return err
	}
	if err := s.writeAtomic(path+checksumSuffix, []byte(checksum(data))); err != nil {
		return fmt.Errorf("snapshot %s written but checksum update failed: %w", path, err)
	}
	return nil
}

// Encode renders a state in the given format.
func Encode(st *estimate.ModelState, format Format) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(st)
	default:
		data, err = json.MarshalIndent(st, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("encode snapshot as %s: %w", format, err)
	}
	return data, nil
}

func (s *FileStore) writeAtomic(path string, data []byte) error {
	tmp := path + tempSuffix
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
