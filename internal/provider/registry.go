package provider

import (
	"errors"
	"fmt"
)

// Registry holds the providers resolved at startup. The transcriber slice is
// the failover chain in priority order; extraction and embedding each have at
// most one provider. The registry is immutable after construction and safe
// for concurrent use.
type Registry struct {
	transcribers []Transcriber
	extractor    Extractor
	embedder     Embedder
}

// NewRegistry creates a Registry from the given providers. At least one
// transcriber is required; extractor and embedder may be nil, in which case
// requesting them returns a CapabilityError.
func NewRegistry(transcribers []Transcriber, extractor Extractor, embedder Embedder) (*Registry, error) {
	if len(transcribers) == 0 {
		return nil, &CapabilityError{Capability: CapabilityTranscription}
	}

	seen := make(map[string]struct{}, len(transcribers))
	for _, t := range transcribers {
		if t == nil {
			return nil, errors.New("nil transcriber in provider chain")
		}
		if _, dup := seen[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate provider name %q", t.Name())
		}
		seen[t.Name()] = struct{}{}
	}

	chain := make([]Transcriber, len(transcribers))
	copy(chain, transcribers)

	return &Registry{
		transcribers: chain,
		extractor:    extractor,
		embedder:     embedder,
	}, nil
}

// Transcribers returns the transcription failover chain in priority order.
// The returned slice is a copy; callers may not mutate the registry through it.
func (r *Registry) Transcribers() []Transcriber {
	chain := make([]Transcriber, len(r.transcribers))
	copy(chain, r.transcribers)
	return chain
}

// Extractor returns the extraction provider.
// Returns a CapabilityError when none is configured.
func (r *Registry) Extractor() (Extractor, error) {
	if r.extractor == nil {
		return nil, &CapabilityError{Capability: CapabilityExtraction}
	}
	return r.extractor, nil
}

// Embedder returns the embedding provider.
// Returns a CapabilityError when none is configured.
func (r *Registry) Embedder() (Embedder, error) {
	if r.embedder == nil {
		return nil, &CapabilityError{Capability: CapabilityEmbedding}
	}
	return r.embedder, nil
}

// Capabilities returns the capabilities the named provider supports, or nil
// if the registry does not know the name.
func (r *Registry) Capabilities(name string) []Capability {
	var caps []Capability
	for _, t := range r.transcribers {
		if t.Name() == name {
			caps = append(caps, CapabilityTranscription)
			break
		}
	}
	if r.extractor != nil && r.extractor.Name() == name {
		caps = append(caps, CapabilityExtraction)
	}
	if r.embedder != nil && r.embedder.Name() == name {
		caps = append(caps, CapabilityEmbedding)
	}
	return caps
}
