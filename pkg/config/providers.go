package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dasmlab/pagetrans/pkg/translate"
)

var (
	ErrMissingProviderID = errors.New("provider id is required")
	ErrDuplicateProvider = errors.New("duplicate provider id")
	ErrUnknownDefault    = errors.New("default provider is not defined")
)

// ProvidersFile is the YAML schema of the provider registry.
//
//	default: openai
//	providers:
//	  - id: openai
//	    type: generic-chat
//	    api_key: ${OPENAI_API_KEY}
type ProvidersFile struct {
	// Default is the provider id used when a request names none.
	Default   string                     `yaml:"default,omitempty"`
	Providers []translate.ProviderConfig `yaml:"providers"`
}

// Registry is a validated, read-only set of providers.
type Registry struct {
	providers map[string]translate.ProviderConfig
	order     []string
	defaultID string
}

// LoadProviders reads and validates the registry file at path.
func LoadProviders(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	reg, err := ParseProviders(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return reg, nil
}

// ParseProviders decodes a registry document. ${VAR} references in api_key
// are expanded from the environment.
func ParseProviders(data []byte) (*Registry, error) {
	var pf ProvidersFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, err
	}
	for i := range pf.Providers {
		pf.Providers[i].APIKey = os.ExpandEnv(pf.Providers[i].APIKey)
	}
	return NewRegistry(pf.Providers, pf.Default)
}

// NewRegistry validates providers and indexes them by id. An empty
// defaultID selects the first provider.
func NewRegistry(providers []translate.ProviderConfig, defaultID string) (*Registry, error) {
	reg := &Registry{
		providers: make(map[string]translate.ProviderConfig, len(providers)),
		order:     make([]string, 0, len(providers)),
	}

	for i, p := range providers {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("provider #%d: %w", i+1, ErrMissingProviderID)
		}
		if _, exists := reg.providers[id]; exists {
			return nil, fmt.Errorf("%w %q", ErrDuplicateProvider, id)
		}
		p.ID = id
		normalized, err := p.Normalize()
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", id, err)
		}
		if err := normalized.Validate(); err != nil {
			return nil, err
		}
		reg.providers[id] = normalized
		reg.order = append(reg.order, id)
	}

	switch {
	case defaultID != "":
		if _, ok := reg.providers[defaultID]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDefault, defaultID)
		}
		reg.defaultID = defaultID
	case len(reg.order) > 0:
		reg.defaultID = reg.order[0]
	}

	return reg, nil
}

// Lookup returns the provider with the given id.
func (r *Registry) Lookup(id string) (translate.ProviderConfig, bool) {
	if r == nil {
		return translate.ProviderConfig{}, false
	}
	p, ok := r.providers[id]
	return p, ok
}

// Default returns the default provider, if the registry has any.
func (r *Registry) Default() (translate.ProviderConfig, bool) {
	if r == nil || r.defaultID == "" {
		return translate.ProviderConfig{}, false
	}
	return r.Lookup(r.defaultID)
}

// DefaultID returns the id of the default provider.
func (r *Registry) DefaultID() string {
	if r == nil {
		return ""
	}
	return r.defaultID
}

// List returns all providers in file order with credentials redacted.
func (r *Registry) List() []translate.ProviderConfig {
	if r == nil {
		return nil
	}
	out := make([]translate.ProviderConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id].Redacted())
	}
	return out
}

// IDs returns the provider ids in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	return ids
}

// Len returns the number of providers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
