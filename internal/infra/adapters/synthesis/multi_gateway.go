// File: internal/infra/adapters/synthesis/multi_gateway.go
package synthesis

import (
	"context"
	"errors"
	"sort"
	"strings"

	"virtual-tryon/internal/domain/ports/adapter"
)

var _ adapter.SynthesisGateway = (*MultiGateway)(nil)

// MultiGateway is a registry of provider gateways keyed by name. Requests go to
// the default provider; if it is not registered, to the first one by name.
type MultiGateway struct {
	defaultProvider string
	byProvider      map[string]adapter.SynthesisGateway
}

func NewMultiGateway(defaultProvider string, gateways ...adapter.SynthesisGateway) *MultiGateway {
	m := &MultiGateway{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      make(map[string]adapter.SynthesisGateway, len(gateways)),
	}
	for _, g := range gateways {
		if g != nil {
			m.byProvider[strings.ToLower(g.Name())] = g
		}
	}
	return m
}

// Providers lists the registered provider names in sorted order.
func (m *MultiGateway) Providers() []string {
	out := make([]string, 0, len(m.byProvider))
	for name := range m.byProvider {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (m *MultiGateway) pick() adapter.SynthesisGateway {
	if g := m.byProvider[m.defaultProvider]; g != nil {
		return g
	}
	// last resort: first available
	if names := m.Providers(); len(names) > 0 {
		return m.byProvider[names[0]]
	}
	return nil
}

// Name reports the provider that will serve the next request.
func (m *MultiGateway) Name() string {
	if g := m.pick(); g != nil {
		return g.Name()
	}
	return "none"
}

func (m *MultiGateway) Synthesize(ctx context.Context, req adapter.SynthesisRequest) (*adapter.SynthesisResult, error) {
	g := m.pick()
	if g == nil {
		return nil, errors.New("no synthesis provider configured")
	}
	return g.Synthesize(ctx, req)
}
