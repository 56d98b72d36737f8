//go:build !integration

package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR fake png body")

func newStore(t *testing.T) (*FileStore, *URLSigner) {
	t.Helper()
	signer := NewURLSigner("0123456789abcdef-test", "http://localhost:8080")
	fs, err := NewFileStore(t.TempDir(), signer)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return fs, signer
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should put and get an owner-scoped image", func(t *testing.T) {
		fs, _ := newStore(t)
		ref, err := fs.Put(ctx, "owner-1", pngBytes)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if !model.RefOwnedBy(ref, "owner-1") || !strings.HasSuffix(ref, ".png") {
			t.Errorf("unexpected ref %q", ref)
		}
		img, err := fs.Get(ctx, ref)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if img.MIMEType != "image/png" || string(img.Data) != string(pngBytes) {
			t.Errorf("unexpected image: %s (%d bytes)", img.MIMEType, len(img.Data))
		}
		if ok, _ := fs.Exists(ctx, ref); !ok {
			t.Error("expected artifact to exist")
		}
	})

	t.Run("should report missing and deleted artifacts", func(t *testing.T) {
		fs, _ := newStore(t)
		ref, _ := fs.Put(ctx, "owner-1", pngBytes)
		if err := fs.Delete(ctx, ref); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if ok, _ := fs.Exists(ctx, ref); ok {
			t.Error("expected artifact to be gone")
		}
		if _, err := fs.Get(ctx, ref); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := fs.Delete(ctx, ref); err != nil {
			t.Errorf("deleting twice should be a no-op, got %v", err)
		}
	})

	t.Run("should refuse keys escaping the root", func(t *testing.T) {
		fs, _ := newStore(t)
		for _, ref := range []string{"../etc/passwd", "owners/../../x", ".."} {
			if _, err := fs.Get(ctx, ref); !errors.Is(err, domain.ErrInvalidReference) {
				t.Errorf("%q: expected ErrInvalidReference, got %v", ref, err)
			}
		}
	})

	t.Run("should sign distinct urls that verify back to the ref", func(t *testing.T) {
		fs, signer := newStore(t)
		ref, _ := fs.Put(ctx, "owner-1", pngBytes)

		u1, err := fs.SignedGet(ctx, ref, time.Minute)
		if err != nil {
			t.Fatalf("SignedGet: %v", err)
		}
		u2, _ := fs.SignedGet(ctx, ref, time.Minute)
		if u1 == u2 {
			t.Error("expected a fresh handle per call")
		}
		parsed, err := url.Parse(u1)
		if err != nil {
			t.Fatalf("parse url: %v", err)
		}
		if parsed.Path != "/v1/artifacts" {
			t.Errorf("unexpected path %q", parsed.Path)
		}
		got, err := signer.Verify(parsed.Query().Get("token"))
		if err != nil || got != ref {
			t.Errorf("Verify: ref=%q err=%v", got, err)
		}
	})

	t.Run("should reject expired and foreign tokens", func(t *testing.T) {
		_, signer := newStore(t)
		u, _ := signer.Sign("owners/o/x.png", -time.Minute)
		parsed, _ := url.Parse(u)
		if _, err := signer.Verify(parsed.Query().Get("token")); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
		}

		other := NewURLSigner("another-secret-0123456789", "http://x")
		u, _ = other.Sign("owners/o/x.png", time.Minute)
		parsed, _ = url.Parse(u)
		if _, err := signer.Verify(parsed.Query().Get("token")); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken for foreign token, got %v", err)
		}
	})
}
