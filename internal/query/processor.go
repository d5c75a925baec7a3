// Package query normalizes and expands raw user queries into the variant
// set the retriever searches with.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultMaxVariants caps the total number of query variants produced,
// including the normalized original.
const DefaultMaxVariants = 5

// ErrEmptyQuery rejects queries with no searchable content. Callers surface
// it synchronously; an empty result set is a different, non-error outcome.
var ErrEmptyQuery = errors.New("query is empty")

// DefaultAcronyms expand cloud and compliance shorthand. Expansions are
// appended, never substituted, so both forms stay searchable.
var DefaultAcronyms = map[string]string{
	"s3":  "simple storage service",
	"ec2": "elastic compute cloud",
	"iam": "identity and access management",
	"rds": "relational database service",
	"vpc": "virtual private cloud",
	"kms": "key management service",
	"ebs": "elastic block store",
	"sns": "simple notification service",
	"sqs": "simple queue service",
	"mfa": "multi-factor authentication",
	"pci": "payment card industry",
	"phi": "protected health information",
	"pii": "personally identifiable information",
}

// DefaultSynonyms map domain terms to alternative corpus phrasings.
var DefaultSynonyms = map[string][]string{
	"encryption":   {"encrypt", "encrypted"},
	"security":     {"protection"},
	"logging":      {"audit logging", "audit trail"},
	"tagging":      {"labeling"},
	"policy":       {"requirement", "rule"},
	"compliance":   {"conformance"},
	"data privacy": {"information protection"},
}

// Config controls the processor. Boolean steps are enabled by default and
// individually toggleable; nil tables select the defaults.
type Config struct {
	DisableNormalization    bool                `yaml:"disable_normalization"`
	DisableAcronymExpansion bool                `yaml:"disable_acronym_expansion"`
	DisableSynonymExpansion bool                `yaml:"disable_synonym_expansion"`
	MaxVariants             int                 `yaml:"max_variants"`
	Acronyms                map[string]string   `yaml:"acronyms"`
	Synonyms                map[string][]string `yaml:"synonyms"`
}

// Processor expands one raw query into an ordered variant list.
type Processor struct {
	cfg Config
	// Sorted key lists make expansion order independent of map iteration.
	acronymKeys []string
	synonymKeys []string
}

// New creates a Processor, filling unset config fields with defaults.
func New(cfg Config) *Processor {
	if cfg.MaxVariants <= 0 {
		cfg.MaxVariants = DefaultMaxVariants
	}
	if cfg.Acronyms == nil {
		cfg.Acronyms = DefaultAcronyms
	}
	if cfg.Synonyms == nil {
		cfg.Synonyms = DefaultSynonyms
	}

	p := &Processor{cfg: cfg}
	for k := range cfg.Acronyms {
		p.acronymKeys = append(p.acronymKeys, k)
	}
	sort.Strings(p.acronymKeys)
	for k := range cfg.Synonyms {
		p.synonymKeys = append(p.synonymKeys, k)
	}
	sort.Strings(p.synonymKeys)
	return p
}

// Process turns a raw query into at least one search string: the normalized
// original first, then acronym expansions, then synonym variants, in table
// order, capped at MaxVariants. An empty or unprocessable query is an error.
func (p *Processor) Process(raw string) ([]string, error) {
	base := raw
	if !p.cfg.DisableNormalization {
		base = Normalize(raw)
	} else {
		base = strings.TrimSpace(base)
	}
	if base == "" {
		return nil, fmt.Errorf("process %q: %w", raw, ErrEmptyQuery)
	}

	variants := []string{base}
	seen := map[string]bool{base: true}
	add := func(v string) {
		if len(variants) >= p.cfg.MaxVariants || v == "" || seen[v] {
			return
		}
		seen[v] = true
		variants = append(variants, v)
	}

	if !p.cfg.DisableAcronymExpansion {
		for _, acr := range p.acronymKeys {
			if containsTerm(base, acr) {
				// Append the full form so both spellings match the corpus.
				add(base + " " + p.cfg.Acronyms[acr])
			}
		}
	}

	if !p.cfg.DisableSynonymExpansion {
		for _, term := range p.synonymKeys {
			if !containsTerm(base, term) {
				continue
			}
			for _, syn := range p.cfg.Synonyms[term] {
				add(replaceTerm(base, term, syn))
			}
		}
	}

	return variants, nil
}

// Normalize lowercases, strips stray punctuation and collapses whitespace.
// Hyphens and alphanumerics survive untouched, so acronyms and identifiers
// like "pci-dss" or "imdsv2" are not corrupted.
func Normalize(raw string) string {
	lowered := strings.ToLower(raw)
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
		return !alnum
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f != "" {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}

// containsTerm reports whether term occurs in text on word boundaries.
func containsTerm(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || text[start-1] == ' '
		afterOK := end == len(text) || text[end] == ' '
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

// replaceTerm substitutes the first word-boundary occurrence of term.
func replaceTerm(text, term, replacement string) string {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return text
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || text[start-1] == ' '
		afterOK := end == len(text) || text[end] == ' '
		if beforeOK && afterOK {
			return text[:start] + replacement + text[end:]
		}
		idx = start + 1
	}
}
