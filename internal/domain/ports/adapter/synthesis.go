package adapter

import (
	"context"

	"virtual-tryon/internal/domain/model"
)

// Image is an in-memory image with its sniffed MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// SynthesisRequest is the provider-neutral try-on request.
type SynthesisRequest struct {
	JobID   string
	Person  Image
	Garment Image
	Style   model.Style
}

// SynthesisResult is the single image a provider returns.
type SynthesisResult struct {
	Image    Image
	Provider string
	Model    string
}

// SynthesisGateway is the port for image-synthesis providers. One implementation
// per provider; the executor never branches on provider names.
type SynthesisGateway interface {
	Name() string
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
}
