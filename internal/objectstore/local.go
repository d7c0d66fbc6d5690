package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"tams/internal/models"
)

const defaultStagingDirName = ".staging"

// Options configures a LocalStore.
type Options struct {
	Root        string
	StagingDir  string
	MaxFileSize int64
	PublicURL   string
	Logger      *slog.Logger
}

// LocalStore keeps objects under root/<ab>/<cd>/<id>. Writes land in the
// staging directory first and are renamed into place once durable, so the
// canonical path never holds a partial file. Staging must live on the same
// filesystem as root.
type LocalStore struct {
	root      string
	staging   string
	maxSize   int64
	publicURL string
	logger    *slog.Logger
	now       func() time.Time
}

var _ ObjectStore = (*LocalStore)(nil)

// NewLocal creates the root and staging directories if needed.
func NewLocal(opts Options) (*LocalStore, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, fmt.Errorf("object store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	staging := strings.TrimSpace(opts.StagingDir)
	if staging == "" {
		staging = filepath.Join(abs, defaultStagingDirName)
	}
	staging, err = filepath.Abs(staging)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{
		root:      abs,
		staging:   staging,
		maxSize:   opts.MaxFileSize,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// MaxFileSize returns the configured upload limit; 0 means unlimited.
func (s *LocalStore) MaxFileSize() int64 {
	return s.maxSize
}

// Allocate validates ids when given, otherwise generates count fresh ones,
// and returns an upload descriptor for each.
func (s *LocalStore) Allocate(ctx context.Context, count int, ids []string) ([]models.StorageObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if len(ids) > 0 {
		for _, id := range ids {
			if err := ValidateID(id); err != nil {
				return nil, err
			}
		}
	} else {
		if count <= 0 {
			count = 1
		}
		ids = make([]string, 0, count)
		for i := 0; i < count; i++ {
			ids = append(ids, GenerateID(now))
		}
	}

	out := make([]models.StorageObject, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.StorageObject{
			ObjectID:  id,
			PutURL:    s.objectURL(id) + "/upload",
			ExpiresAt: now.Add(PutURLTTL),
		})
	}
	return out, nil
}

// Put streams r into staging, flushes it, and renames it into its shard.
// An existing object with the same id is replaced atomically.
func (s *LocalStore) Put(ctx context.Context, id string, r io.Reader) (int64, error) {
	if err := ValidateID(id); err != nil {
		return 0, err
	}
	if r == nil {
		return 0, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.staging, "put-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		cleanup()
		return 0, err
	}
	if s.maxSize > 0 && n > s.maxSize {
		cleanup()
		return 0, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxSize)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, err
	}

	dst := s.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	return n, nil
}

// Open returns a reader for the object's bytes.
func (s *LocalStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.pathFor(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return f, nil
}

// Get reads the whole object into memory.
func (s *LocalStore) Get(ctx context.Context, id string) ([]byte, error) {
	rc, err := s.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Delete removes an object. Missing objects are ignored.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.pathFor(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Metadata reports size and a best-effort MIME type. The type comes from the
// id's extension, falling back to content sniffing.
func (s *LocalStore) Metadata(ctx context.Context, id string) (Metadata, error) {
	if err := ValidateID(id); err != nil {
		return Metadata{}, err
	}
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}
	path := s.pathFor(id)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Metadata{}, err
	}

	meta := Metadata{Size: info.Size(), ModTime: info.ModTime().UTC()}
	if ext := filepath.Ext(id); ext != "" {
		meta.MIMEType = mime.TypeByExtension(ext)
	}
	if meta.MIMEType == "" && info.Size() > 0 {
		if detected, err := mimetype.DetectFile(path); err == nil {
			meta.MIMEType = detected.String()
		}
	}
	return meta, nil
}

// DownloadURLs returns one unlabeled descriptor plus one per label.
func (s *LocalStore) DownloadURLs(ctx context.Context, id string, labels []string) ([]models.GetURL, error) {
	if _, err := s.Metadata(ctx, id); err != nil {
		return nil, err
	}
	base := s.objectURL(id) + "/download"
	expires := s.now().UTC().Add(GetURLTTL)

	out := make([]models.GetURL, 0, len(labels)+1)
	out = append(out, models.GetURL{URL: base, ExpiresAt: expires})
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		out = append(out, models.GetURL{
			URL:       base + "?label=" + url.QueryEscape(label),
			Label:     label,
			ExpiresAt: expires,
		})
	}
	return out, nil
}

// CleanupExpiredStaging removes staged entries older than retention. A failed
// removal is logged and counted; the scan carries on.
func (s *LocalStore) CleanupExpiredStaging(ctx context.Context, retention time.Duration) (CleanupResult, error) {
	var result CleanupResult
	entries, err := os.ReadDir(s.staging)
	if err != nil {
		return result, err
	}
	cutoff := s.now().Add(-retention)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("stat staging entry", "name", entry.Name(), "error", err)
				result.Failed++
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.staging, entry.Name())); err != nil {
			s.logger.Warn("remove staging entry", "name", entry.Name(), "error", err)
			result.Failed++
			continue
		}
		result.Removed++
	}
	if result.Removed > 0 || result.Failed > 0 {
		s.logger.Info("staging cleanup", "removed", result.Removed, "failed", result.Failed)
	}
	return result, nil
}

// List walks the tree and returns every object id.
func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.walk(ctx, func(id string, _ fs.FileInfo) {
		ids = append(ids, id)
	})
	return ids, err
}

// Stats walks the tree; it is O(objects) and meant for out-of-band use.
func (s *LocalStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.walk(ctx, func(_ string, info fs.FileInfo) {
		stats.ObjectCount++
		stats.TotalBytes += info.Size()
	})
	return stats, err
}

func (s *LocalStore) walk(ctx context.Context, fn func(id string, info fs.FileInfo)) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path == s.staging {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		fn(d.Name(), info)
		return nil
	})
}

func (s *LocalStore) pathFor(id string) string {
	return filepath.Join(s.root, filepath.FromSlash(shardDir(id)), id)
}

func (s *LocalStore) objectURL(id string) string {
	return s.publicURL + "/objects/" + url.PathEscape(id)
}
