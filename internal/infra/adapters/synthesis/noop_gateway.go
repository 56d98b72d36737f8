package synthesis

import (
	"context"
	"time"

	"virtual-tryon/internal/domain/ports/adapter"
)

var _ adapter.SynthesisGateway = (*NoopGateway)(nil)

// NoopGateway returns the person image unchanged after Delay. Dev mode only.
type NoopGateway struct {
	Delay time.Duration
}

func NewNoopGateway(delay time.Duration) *NoopGateway {
	return &NoopGateway{Delay: delay}
}

func (n *NoopGateway) Name() string { return "noop" }

func (n *NoopGateway) Synthesize(ctx context.Context, req adapter.SynthesisRequest) (*adapter.SynthesisResult, error) {
	select {
	case <-time.After(n.Delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out := make([]byte, len(req.Person.Data))
	copy(out, req.Person.Data)
	return &adapter.SynthesisResult{
		Image:    adapter.Image{Data: out, MIMEType: req.Person.MIMEType},
		Provider: n.Name(),
		Model:    "noop",
	}, nil
}
