package parser

import (
	"fmt"
	"sort"
	"sync"

	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// Registry is a name->Parser table; each binary builds one with NewRegistry
// at startup and shares it across the process. Unlike the teacher's
// implicit init()-registration patterns, every entry here is registered
// explicitly by the caller that wires the binary together (spec.md §9).
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds p under its own Name(). Registering a duplicate name is an
// error.
func (r *Registry) Register(p Parser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, exists := r.parsers[name]; exists {
		return apperrors.Validation(fmt.Sprintf("parser %q already registered", name)).WithCode("E_PARSER_DUPLICATE")
	}
	r.parsers[name] = p
	return nil
}

// Get looks up a parser by name. It returns nil (no error) when the name is
// unknown, matching spec.md §4.2's "lookup returns null for unknown names";
// callers that need an instantiation error should use MustGet.
func (r *Registry) Get(name string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parsers[name]
}

// MustGet looks up a parser by name, returning a ParserError naming every
// registered parser when name is unknown.
func (r *Registry) MustGet(name string) (Parser, error) {
	p := r.Get(name)
	if p != nil {
		return p, nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.parsers))
	for n := range r.parsers {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return nil, apperrors.Parser(fmt.Sprintf("unknown parser %q, available: %v", name, names)).WithCode("E_PARSER_UNKNOWN")
}

// Names lists every registered parser name, sorted, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.parsers))
	for n := range r.parsers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
