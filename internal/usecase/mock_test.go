//go:build !integration

package usecase_test

import (
	"io"
	"net/url"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"virtual-tryon/internal/infra/storage"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR person")
	jpegBytes = []byte("\xFF\xD8\xFF\xE0\x00\x10JFIF garment")
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

var testSigner = storage.NewURLSigner("0123456789abcdef-test", "http://test")

func newTestArtifacts() *storage.MemoryStore {
	return storage.NewMemoryStore(testSigner)
}

// signedRef resolves a retrieval URL back to the artifact reference it grants.
func signedRef(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url %q: %v", raw, err)
	}
	ref, err := testSigner.Verify(u.Query().Get("token"))
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	return ref
}

// mockEnqueuer records hand-offs; Full simulates a saturated worker queue.
type mockEnqueuer struct {
	mu   sync.Mutex
	IDs  []string
	Full bool
}

func (m *mockEnqueuer) Enqueue(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Full {
		return false
	}
	m.IDs = append(m.IDs, jobID)
	return true
}
