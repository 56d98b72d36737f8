package adapter

import (
	"context"
	"time"
)

// ArtifactStore keeps binary images behind opaque references.
type ArtifactStore interface {
	// Put stores data under a fresh reference scoped to ownerID.
	Put(ctx context.Context, ownerID string, data []byte) (string, error)
	Get(ctx context.Context, ref string) (Image, error)
	Exists(ctx context.Context, ref string) (bool, error)
	Delete(ctx context.Context, ref string) error
	// SignedGet returns a retrieval URL that stops working after ttl.
	SignedGet(ctx context.Context, ref string, ttl time.Duration) (string, error)
}
