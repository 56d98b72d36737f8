package synthesis

import (
	"context"

	"virtual-tryon/internal/domain/ports/adapter"
	"virtual-tryon/internal/infra/metrics"
)

// Compile-time check
var _ adapter.SynthesisGateway = (*limitedGateway)(nil)

type limitedGateway struct {
	inner adapter.SynthesisGateway
	sem   chan struct{}
}

// NewLimitedGateway caps concurrent provider calls at maxConcurrent. Waiting for a
// slot honours ctx, so a call that times out in the queue never reaches the provider.
func NewLimitedGateway(inner adapter.SynthesisGateway, maxConcurrent int) adapter.SynthesisGateway {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedGateway{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedGateway) Name() string { return l.inner.Name() }

func (l *limitedGateway) Synthesize(ctx context.Context, req adapter.SynthesisRequest) (*adapter.SynthesisResult, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	metrics.AddSynthesisInFlight(1)
	defer func() {
		<-l.sem
		metrics.AddSynthesisInFlight(-1)
	}()
	return l.inner.Synthesize(ctx, req)
}
