// Package archive keeps audit copies of uploaded statement files on the
// local filesystem. Every accepted upload is stored verbatim so a disputed
// import can be replayed against the original bytes.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileInfo describes one archived upload.
type FileInfo struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Path       string    `json:"path"`
	ArchivedAt time.Time `json:"archivedAt"`
}

// Archive stores and retrieves raw upload files.
type Archive interface {
	// Save stores one uploaded file and returns its metadata.
	Save(filename string, data []byte) (*FileInfo, error)
	// Open returns the archived bytes for an upload.
	Open(id uuid.UUID) (io.ReadCloser, error)
	// List returns all archived uploads, newest first.
	List() ([]*FileInfo, error)
}

// LocalArchive implements Archive on a local directory. Metadata lives in a
// .meta subdirectory, one JSON document per file.
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates the archive directory if needed.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(filepath.Join(basePath, ".meta"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

// Save stores one uploaded file under a UUID-prefixed name.
func (a *LocalArchive) Save(filename string, data []byte) (*FileInfo, error) {
	id := uuid.New()

	stored := fmt.Sprintf("%s_%s", id.String()[:8], sanitizeFilename(filename))
	path := filepath.Join(a.basePath, stored)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write archive file: %w", err)
	}

	info := &FileInfo{
		ID:         id,
		Name:       filename,
		Size:       int64(len(data)),
		Path:       stored,
		ArchivedAt: time.Now().UTC(),
	}
	if err := a.saveMetadata(info); err != nil {
		os.Remove(path)
		return nil, err
	}
	return info, nil
}

// Open returns the archived bytes for an upload.
func (a *LocalArchive) Open(id uuid.UUID) (io.ReadCloser, error) {
	info, err := a.readMetadata(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(a.basePath, info.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open archived file: %w", err)
	}
	return f, nil
}

// List returns all archived uploads, newest first.
func (a *LocalArchive) List() ([]*FileInfo, error) {
	entries, err := os.ReadDir(filepath.Join(a.basePath, ".meta"))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive metadata: %w", err)
	}

	infos := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		info, err := a.readMetadata(id)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ArchivedAt.After(infos[j].ArchivedAt)
	})
	return infos, nil
}

func (a *LocalArchive) metaPath(id uuid.UUID) string {
	return filepath.Join(a.basePath, ".meta", id.String()+".json")
}

func (a *LocalArchive) saveMetadata(info *FileInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal archive metadata: %w", err)
	}
	if err := os.WriteFile(a.metaPath(info.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive metadata: %w", err)
	}
	return nil
}

func (a *LocalArchive) readMetadata(id uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(a.metaPath(id))
	if err != nil {
		return nil, fmt.Errorf("archived file not found: %w", err)
	}
	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse archive metadata: %w", err)
	}
	return &info, nil
}

// sanitizeFilename strips path separators and control characters so an
// upload name can never escape the archive directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "upload"
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "upload"
	}
	return sb.String()
}
