package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
)

// FileStore keeps the checkpoint in a small YAML document on local disk.
type FileStore struct {
	path string
}

// NewFileStore creates a store at path, creating its parent directory.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path reports where the checkpoint lives.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the checkpoint. Missing or malformed files wrap crawler.ErrConfig.
func (s *FileStore) Load(_ context.Context) (crawler.Checkpoint, error) {
	// #nosec G304 -- the checkpoint path comes from operator configuration.
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return crawler.Checkpoint{}, fmt.Errorf("%w: %s does not exist", crawler.ErrConfig, s.path)
		}
		return crawler.Checkpoint{}, fmt.Errorf("read checkpoint %s: %w", s.path, err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return crawler.Checkpoint{}, fmt.Errorf("%w: parse %s: %v", crawler.ErrConfig, s.path, err)
	}
	if doc.Info == nil || doc.Info.LastRegionIndex == nil || doc.Info.LastListingIndex == nil {
		return crawler.Checkpoint{}, fmt.Errorf("%w: %s is missing last_region_index or last_listing_index", crawler.ErrConfig, s.path)
	}
	cp := crawler.Checkpoint{
		LastRegionIndex:  *doc.Info.LastRegionIndex,
		LastListingIndex: *doc.Info.LastListingIndex,
		LastRegion:       doc.Info.LastRegion,
		LastListing:      doc.Info.LastListing,
		UpdatedAt:        doc.Info.UpdatedAt,
	}
	if err := Validate(cp); err != nil {
		return crawler.Checkpoint{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return cp, nil
}

// Save writes to a temporary file, syncs it and renames it over the old one,
// so readers never observe a partial checkpoint.
func (s *FileStore) Save(_ context.Context, cp crawler.Checkpoint) error {
	if err := Validate(cp); err != nil {
		return err
	}
	region, listing := cp.LastRegionIndex, cp.LastListingIndex
	data, err := yaml.Marshal(fileDocument{Info: &fileInfo{
		LastRegionIndex:  &region,
		LastListingIndex: &listing,
		LastRegion:       cp.LastRegion,
		LastListing:      cp.LastListing,
		UpdatedAt:        cp.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	syncDir(dir)
	return nil
}

// syncDir flushes the rename on filesystems that support directory fsync.
func syncDir(dir string) {
	// #nosec G304 -- dir is the configured checkpoint directory.
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Validate rejects cursors that cannot have been produced by a crawl.
func Validate(cp crawler.Checkpoint) error {
	if cp.LastRegionIndex < 0 || cp.LastListingIndex < 0 {
		return fmt.Errorf("%w: negative checkpoint index (%d, %d)", crawler.ErrConfig, cp.LastRegionIndex, cp.LastListingIndex)
	}
	return nil
}

type fileDocument struct {
	Info *fileInfo `yaml:"info"`
}

type fileInfo struct {
	LastRegionIndex  *int      `yaml:"last_region_index"`
	LastListingIndex *int      `yaml:"last_listing_index"`
	LastRegion       string    `yaml:"last_region,omitempty"`
	LastListing      string    `yaml:"last_listing,omitempty"`
	UpdatedAt        time.Time `yaml:"updated_at,omitempty"`
}
