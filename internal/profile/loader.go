// Package profile loads the user profile from a YAML file on disk.
// The profile is optional; a missing file is not an error.
package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/yeehaa123/personal-brain-sub002/internal/relevance"
	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

// DefaultFileName is the profile file looked up inside the data directory.
const DefaultFileName = "profile.yaml"

// Loader reads and caches the user profile. An optional embedder attaches
// an embedding to the loaded profile so relevance scoring can use semantic
// similarity instead of keyword fallback.
type Loader struct {
	path     string
	embedder relevance.Embedder

	mu      sync.Mutex
	cached  *types.Profile
	loaded  bool
}

// NewLoader creates a profile loader for the given file path. The embedder
// may be nil.
func NewLoader(path string, embedder relevance.Embedder) *Loader {
	return &Loader{path: path, embedder: embedder}
}

// NewLoaderForDataDir creates a loader that reads profile.yaml from dataDir.
func NewLoaderForDataDir(dataDir string, embedder relevance.Embedder) *Loader {
	return NewLoader(filepath.Join(dataDir, DefaultFileName), embedder)
}

// Get returns the loaded profile, reading it from disk on first call.
// A missing file yields (nil, nil). Parse errors are returned so callers
// can decide whether to degrade.
func (l *Loader) Get(ctx context.Context) (*types.Profile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.cached, nil
	}

	profile, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	l.cached = profile
	l.loaded = true
	return profile, nil
}

// Reload discards the cache so the next Get re-reads the file.
func (l *Loader) Reload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
	l.loaded = false
}

func (l *Loader) load(ctx context.Context) (*types.Profile, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		log.Debug().Str("path", l.path).Msg("no profile file, continuing without profile")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var profile types.Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	if profile.FullName == "" {
		return nil, fmt.Errorf("profile missing full_name")
	}

	if l.embedder != nil {
		embedding, err := l.embedder.Embed(ctx, ProfileText(&profile))
		if err != nil {
			log.Warn().Err(err).Msg("profile embedding failed, relevance will use keyword fallback")
		} else {
			profile.Embedding = embedding
		}
	}

	return &profile, nil
}

// ProfileText flattens a profile into plain text for embedding.
func ProfileText(p *types.Profile) string {
	var b strings.Builder

	b.WriteString(p.FullName)
	if p.Headline != "" {
		b.WriteString("\n" + p.Headline)
	}
	if p.Occupation != "" {
		b.WriteString("\n" + p.Occupation)
	}
	if p.Summary != "" {
		b.WriteString("\n" + p.Summary)
	}
	for _, exp := range p.Experience {
		b.WriteString(fmt.Sprintf("\n%s at %s. %s", exp.Title, exp.Organization, exp.Description))
	}
	for _, edu := range p.Education {
		b.WriteString(fmt.Sprintf("\n%s, %s", edu.Degree, edu.School))
	}
	for _, proj := range p.Projects {
		b.WriteString(fmt.Sprintf("\n%s: %s", proj.Name, proj.Description))
	}

	return b.String()
}
