package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/adapter"
)

var _ adapter.ArtifactStore = (*FileStore)(nil)

// FileStore persists artifacts onto the local filesystem under
// owners/<owner>/<uuid><ext>.
type FileStore struct {
	basePath string
	signer   *URLSigner
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string, signer *URLSigner) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if signer == nil {
		return nil, errors.New("storage: url signer is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, signer: signer}, nil
}

func (s *FileStore) Put(ctx context.Context, ownerID string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ownerID == "" || len(data) == 0 {
		return "", domain.ErrInvalidArgument
	}
	mime, _ := model.DetectImageType(data)
	key := model.OwnerRefPrefix(ownerID) + uuid.NewString() + model.ImageExtension(mime)

	full, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	// write then rename so readers never see a partial file
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("storage: commit file: %w", err)
	}
	return key, nil
}

func (s *FileStore) Get(ctx context.Context, ref string) (adapter.Image, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Image{}, err
	}
	full, err := s.path(ref)
	if err != nil {
		return adapter.Image{}, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return adapter.Image{}, domain.ErrNotFound
		}
		return adapter.Image{}, fmt.Errorf("storage: read file: %w", err)
	}
	mime, _ := model.DetectImageType(data)
	return adapter.Image{Data: data, MIMEType: mime}, nil
}

func (s *FileStore) Exists(ctx context.Context, ref string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := s.path(ref)
	if err != nil {
		return false, nil
	}
	fi, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}

func (s *FileStore) Delete(ctx context.Context, ref string) error {
	full, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

func (s *FileStore) SignedGet(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	if _, err := sanitizeKey(ref); err != nil {
		return "", err
	}
	return s.signer.Sign(ref, ttl)
}

func (s *FileStore) path(ref string) (string, error) {
	clean, err := sanitizeKey(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: storage key %q", domain.ErrInvalidReference, key)
	}
	return cleaned, nil
}
