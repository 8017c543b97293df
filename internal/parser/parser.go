// Package parser extracts normalized text from resume documents.
// Two interchangeable backends exist so parsing itself can be A/B
// tested: a baseline plain-text extractor and a layout-aware service
// client that preserves document structure as markdown.
package parser

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/resumelab/ragsweep/pkg/models"
)

// Parser defines the interface for document parsing backends.
type Parser interface {
	// Parse extracts normalized text and optional layout metadata from
	// the raw document bytes.
	Parse(ctx context.Context, r io.Reader, filename string) (*ParseResult, error)

	// Name returns the backend tag ("baseline", "layout").
	Name() string
}

// ParseResult contains the output of a parsing operation.
type ParseResult struct {
	// Content is the extracted, normalized text.
	Content string

	// Layout contains structural regions when the backend reports them.
	Layout []models.LayoutSpan
}

// Registry maps backend tags to parser implementations, selected at
// construction time by the variant descriptor.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser under its backend tag.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[strings.ToLower(p.Name())] = p
}

// Get returns the parser for a backend tag.
func (r *Registry) Get(backend string) (Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[strings.ToLower(backend)]
	if !ok {
		return nil, fmt.Errorf("unknown parser backend %q (have %s)", backend, r.tags())
	}
	return p, nil
}

func (r *Registry) tags() string {
	tags := make([]string, 0, len(r.parsers))
	for tag := range r.parsers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return strings.Join(tags, ", ")
}
