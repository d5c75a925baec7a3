// Package metadata derives structured attributes from policy chunks: section
// titles, policy identifiers, compliance-standard tags and ranked keywords.
package metadata

import (
	"regexp"
	"sort"
	"strings"

	"github.com/policyrag/mcp-server/internal/chunking"
	"github.com/policyrag/mcp-server/internal/corpus"
)

// DefaultPolicyIDPattern matches policy identifiers like AWS-POL-EC2-014.
const DefaultPolicyIDPattern = `AWS-POL-[A-Z0-9-]+`

// DefaultMaxKeywords caps the keywords extracted per chunk.
const DefaultMaxKeywords = 10

// DefaultStandards is the compliance-standard vocabulary recognized out of
// the box. Matching is case-insensitive and tolerant of space/hyphen
// variants ("PCI DSS" matches "PCI-DSS", "SOC 2" matches "SOC2").
var DefaultStandards = []string{
	"SOC2", "PCI-DSS", "HIPAA", "GDPR", "ISO 27001", "NIST 800-53", "FedRAMP", "CCPA",
}

// defaultStopWords mirrors the usual tiny English stop list; injectable via
// Config for tests.
var defaultStopWords = []string{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to",
	"for", "of", "as", "by", "is", "it", "be", "with", "from", "that",
	"are", "must", "all", "any", "this", "not", "will", "may", "shall",
}

// Metadata is attached to exactly one chunk. Every field is best-effort:
// a pattern that does not match leaves the field empty.
type Metadata struct {
	SectionTitle string   `json:"section_title,omitempty"`
	PolicyID     string   `json:"policy_id,omitempty"`
	Standards    []string `json:"standards,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// HasStandard reports whether the chunk is tagged with the given standard,
// ignoring case and space/hyphen differences.
func (m Metadata) HasStandard(standard string) bool {
	want := canonicalStandard(standard)
	for _, s := range m.Standards {
		if canonicalStandard(s) == want {
			return true
		}
	}
	return false
}

// Config carries the injected lookup tables. Zero values select defaults.
type Config struct {
	PolicyIDPattern string   `yaml:"policy_id_pattern"`
	Standards       []string `yaml:"standards"`
	MaxKeywords     int      `yaml:"max_keywords"`
	StopWords       []string `yaml:"stop_words"`
}

// Extractor derives Metadata from chunk text and document context.
type Extractor struct {
	policyID    *regexp.Regexp
	standards   []string
	maxKeywords int
	stopWords   map[string]bool
}

// New compiles the extractor tables. An invalid policy-ID pattern is an
// error; everything else falls back to defaults.
func New(cfg Config) (*Extractor, error) {
	pattern := cfg.PolicyIDPattern
	if pattern == "" {
		pattern = DefaultPolicyIDPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	standards := cfg.Standards
	if standards == nil {
		standards = DefaultStandards
	}

	maxKeywords := cfg.MaxKeywords
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}

	stopList := cfg.StopWords
	if stopList == nil {
		stopList = defaultStopWords
	}
	stopWords := make(map[string]bool, len(stopList))
	for _, w := range stopList {
		stopWords[strings.ToLower(w)] = true
	}

	return &Extractor{
		policyID:    re,
		standards:   standards,
		maxKeywords: maxKeywords,
		stopWords:   stopWords,
	}, nil
}

// Extract derives metadata for a chunk. The document provides context for
// the section title: the nearest heading line at or before the chunk's start.
func (e *Extractor) Extract(chunk chunking.Chunk, doc corpus.Document) Metadata {
	return Metadata{
		SectionTitle: e.sectionTitle(chunk, doc),
		PolicyID:     e.policyID.FindString(chunk.Text),
		Standards:    e.matchStandards(chunk.Text),
		Keywords:     e.ExtractKeywords(chunk.Text),
	}
}

// sectionTitle finds the heading governing the chunk. Headings inside the
// chunk win over earlier ones in the document.
func (e *Extractor) sectionTitle(chunk chunking.Chunk, doc corpus.Document) string {
	if title := firstHeading(chunk.Text); title != "" {
		return title
	}
	if chunk.StartOffset > len(doc.Text) {
		return ""
	}
	return lastHeading(doc.Text[:chunk.StartOffset])
}

func firstHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if title := headingText(line); title != "" {
			return title
		}
	}
	return ""
}

func lastHeading(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if title := headingText(lines[i]); title != "" {
			return title
		}
	}
	return ""
}

func headingText(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return ""
	}
	return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
}

// matchStandards scans for vocabulary entries, case-insensitively, treating
// spaces and hyphens as interchangeable. Result order follows the vocabulary
// so tagging is deterministic.
func (e *Extractor) matchStandards(text string) []string {
	haystack := canonicalStandard(text)
	var found []string
	for _, std := range e.standards {
		if strings.Contains(haystack, canonicalStandard(std)) {
			found = append(found, std)
		}
	}
	return found
}

// letterDigitGap matches the separator between a name and its version number
// ("soc 2", "iso 27001") so both halves canonicalize to one token.
var letterDigitGap = regexp.MustCompile(`([a-z]) ([0-9])`)

func canonicalStandard(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.Join(strings.Fields(s), " ")
	return letterDigitGap.ReplaceAllString(s, "$1$2")
}

// ExtractKeywords returns the most frequent non-stop-word terms of the text,
// most frequent first, ties broken by first appearance. Terms are
// lowercased, deduplicated and capped at the configured maximum.
func (e *Extractor) ExtractKeywords(text string) []string {
	type stat struct {
		count int
		first int
	}
	counts := make(map[string]*stat)
	order := 0

	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-')
		})
		word = strings.Trim(word, "-")
		if len(word) <= 2 || e.stopWords[word] {
			continue
		}
		if s, ok := counts[word]; ok {
			s.count++
		} else {
			counts[word] = &stat{count: 1, first: order}
		}
		order++
	}

	keywords := make([]string, 0, len(counts))
	for w := range counts {
		keywords = append(keywords, w)
	}
	sort.Slice(keywords, func(i, j int) bool {
		a, b := counts[keywords[i]], counts[keywords[j]]
		if a.count != b.count {
			return a.count > b.count
		}
		return a.first < b.first
	})

	if len(keywords) > e.maxKeywords {
		keywords = keywords[:e.maxKeywords]
	}
	return keywords
}
