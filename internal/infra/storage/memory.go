package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/adapter"
)

var _ adapter.ArtifactStore = (*MemoryStore)(nil)

// MemoryStore keeps artifacts in a map. Safe for concurrent access; used by tests.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	signer *URLSigner
}

func NewMemoryStore(signer *URLSigner) *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte), signer: signer}
}

func (s *MemoryStore) Put(ctx context.Context, ownerID string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ownerID == "" || len(data) == 0 {
		return "", domain.ErrInvalidArgument
	}
	mime, _ := model.DetectImageType(data)
	ref := model.OwnerRefPrefix(ownerID) + uuid.NewString() + model.ImageExtension(mime)
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.blobs[ref] = cp
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryStore) Get(ctx context.Context, ref string) (adapter.Image, error) {
	s.mu.RLock()
	data, ok := s.blobs[ref]
	s.mu.RUnlock()
	if !ok {
		return adapter.Image{}, domain.ErrNotFound
	}
	mime, _ := model.DetectImageType(data)
	return adapter.Image{Data: data, MIMEType: mime}, nil
}

func (s *MemoryStore) Exists(ctx context.Context, ref string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[ref]
	return ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
	return nil
}

func (s *MemoryStore) SignedGet(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	return s.signer.Sign(ref, ttl)
}

// Len reports the number of stored artifacts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
