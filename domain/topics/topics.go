// Package topics collapses free-form LLM topic strings onto a fixed civic
// taxonomy. The taxonomy ships embedded; the reverse synonym map is built
// once at construction and frozen.
package topics

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.uber.org/fx"

	"github.com/engagic/engagic/pkg/logger"
)

//go:embed taxonomy.json
var taxonomyJSON []byte

var Module = fx.Module("topics",
	fx.Provide(NewNormalizer),
)

type taxonomyEntry struct {
	Canonical   string   `json:"canonical"`
	DisplayName string   `json:"display_name"`
	Synonyms    []string `json:"synonyms"`
}

type taxonomyFile struct {
	Taxonomy       map[string]taxonomyEntry `json:"taxonomy"`
	PromptExamples []string                 `json:"prompt_examples"`
}

// Normalizer maps free-form topics to canonical taxonomy keys
type Normalizer struct {
	reverse  map[string]string // lowercase synonym -> canonical
	synonyms []string          // sorted for the substring fallback scan
	display  map[string]string
	examples []string
	log      *slog.Logger
}

// NewNormalizer builds a normalizer from the embedded taxonomy
func NewNormalizer(log *slog.Logger) (*Normalizer, error) {
	var file taxonomyFile
	if err := json.Unmarshal(taxonomyJSON, &file); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}

	n := &Normalizer{
		reverse:  make(map[string]string),
		display:  make(map[string]string),
		examples: file.PromptExamples,
		log:      log.With(logger.Scope("topics")),
	}
	for key, entry := range file.Taxonomy {
		canonical := entry.Canonical
		if canonical == "" {
			canonical = key
		}
		n.reverse[strings.ToLower(canonical)] = canonical
		n.display[canonical] = entry.DisplayName
		for _, syn := range entry.Synonyms {
			n.reverse[strings.ToLower(syn)] = canonical
		}
	}
	for syn := range n.reverse {
		n.synonyms = append(n.synonyms, syn)
	}
	sort.Strings(n.synonyms)
	return n, nil
}

// Normalize maps each topic to its canonical form: exact reverse-map hit,
// then substring containment either way, else the lowercased original kept
// as-is (and logged as a taxonomy candidate). Output is de-duplicated and
// sorted alphabetically.
func (n *Normalizer) Normalize(raw []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, topic := range raw {
		t := strings.ToLower(strings.TrimSpace(topic))
		if t == "" {
			continue
		}
		canonical := n.normalizeOne(t)
		if !seen[canonical] {
			seen[canonical] = true
			out = append(out, canonical)
		}
	}
	sort.Strings(out)
	return out
}

func (n *Normalizer) normalizeOne(t string) string {
	if canonical, ok := n.reverse[t]; ok {
		return canonical
	}
	for _, syn := range n.synonyms {
		if strings.Contains(t, syn) || strings.Contains(syn, t) {
			return n.reverse[syn]
		}
	}
	n.log.Debug("unknown topic candidate", slog.String("topic", t))
	return t
}

// DisplayName returns the human-readable name for a canonical topic, or
// the key itself for off-taxonomy topics.
func (n *Normalizer) DisplayName(canonical string) string {
	if name, ok := n.display[canonical]; ok && name != "" {
		return name
	}
	return canonical
}

// PromptExamples returns the example topics advertised to the LLM prompt
func (n *Normalizer) PromptExamples() []string {
	return n.examples
}
