package metadata_test

import (
	"strings"
	"testing"

	"github.com/policyrag/mcp-server/internal/chunking"
	"github.com/policyrag/mcp-server/internal/corpus"
	"github.com/policyrag/mcp-server/internal/metadata"
)

func newExtractor(t *testing.T, cfg metadata.Config) *metadata.Extractor {
	t.Helper()
	e, err := metadata.New(cfg)
	if err != nil {
		t.Fatalf("metadata.New() error = %v", err)
	}
	return e
}

func chunkOf(doc corpus.Document, start, end int) chunking.Chunk {
	return chunking.Chunk{
		ID:          chunking.ChunkID(doc.ID, 0),
		DocumentID:  doc.ID,
		Text:        doc.Text[start:end],
		StartOffset: start,
		EndOffset:   end,
	}
}

func TestExtractPolicyID(t *testing.T) {
	e := newExtractor(t, metadata.Config{})

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "standard policy id",
			text: "Violations of AWS-POL-EC2-014 must be remediated promptly.",
			want: "AWS-POL-EC2-014",
		},
		{
			name: "no policy id",
			text: "Violations must be remediated promptly.",
			want: "",
		},
		{
			name: "first of several",
			text: "AWS-POL-S3-001 supersedes AWS-POL-S3-000.",
			want: "AWS-POL-S3-001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, _ := corpus.NewDocument("d", tt.text, "d.md")
			got := e.Extract(chunkOf(doc, 0, len(tt.text)), doc)
			if got.PolicyID != tt.want {
				t.Errorf("PolicyID = %q, want %q", got.PolicyID, tt.want)
			}
		})
	}
}

func TestExtractPolicyIDCustomPattern(t *testing.T) {
	e := newExtractor(t, metadata.Config{PolicyIDPattern: `SEC-[0-9]{4}`})
	doc, _ := corpus.NewDocument("d", "Refer to SEC-0042 for details.", "d.md")
	got := e.Extract(chunkOf(doc, 0, len(doc.Text)), doc)
	if got.PolicyID != "SEC-0042" {
		t.Errorf("PolicyID = %q, want SEC-0042", got.PolicyID)
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	if _, err := metadata.New(metadata.Config{PolicyIDPattern: `AWS-POL-[`}); err == nil {
		t.Error("metadata.New() should reject an invalid pattern")
	}
}

func TestExtractStandards(t *testing.T) {
	e := newExtractor(t, metadata.Config{})

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "exact tags",
			text: "This control satisfies PCI-DSS and HIPAA requirements.",
			want: []string{"PCI-DSS", "HIPAA"},
		},
		{
			name: "case and separator variants",
			text: "Required for pci dss and Soc2 audits under iso 27001.",
			want: []string{"SOC2", "PCI-DSS", "ISO 27001"},
		},
		{
			name: "spaced version numbers",
			text: "Audited annually under SOC 2 Type II and ISO27001.",
			want: []string{"SOC2", "ISO 27001"},
		},
		{
			name: "no standards",
			text: "General operational guidance.",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, _ := corpus.NewDocument("d", tt.text, "d.md")
			got := e.Extract(chunkOf(doc, 0, len(tt.text)), doc)
			if len(got.Standards) != len(tt.want) {
				t.Fatalf("Standards = %v, want %v", got.Standards, tt.want)
			}
			for i := range tt.want {
				if got.Standards[i] != tt.want[i] {
					t.Errorf("Standards[%d] = %q, want %q", i, got.Standards[i], tt.want[i])
				}
			}
		})
	}
}

func TestHasStandard(t *testing.T) {
	m := metadata.Metadata{Standards: []string{"PCI-DSS", "ISO 27001", "SOC2"}}
	if !m.HasStandard("pci dss") {
		t.Error("HasStandard should ignore case and separators")
	}
	if !m.HasStandard("SOC 2") {
		t.Error("HasStandard should match spaced version numbers")
	}
	if m.HasStandard("HIPAA") {
		t.Error("HasStandard matched a missing standard")
	}
}

func TestSectionTitle(t *testing.T) {
	text := "# Data Protection\nBuckets must be private.\n\n## Encryption at Rest\nUse KMS keys everywhere. Rotate annually."
	doc, _ := corpus.NewDocument("d", text, "d.md")
	e := newExtractor(t, metadata.Config{})

	t.Run("heading inside chunk wins", func(t *testing.T) {
		got := e.Extract(chunkOf(doc, 0, len(text)), doc)
		if got.SectionTitle != "Data Protection" {
			t.Errorf("SectionTitle = %q, want Data Protection", got.SectionTitle)
		}
	})

	t.Run("heading from preceding context", func(t *testing.T) {
		start := strings.Index(text, "Use KMS")
		got := e.Extract(chunkOf(doc, start, len(text)), doc)
		if got.SectionTitle != "Encryption at Rest" {
			t.Errorf("SectionTitle = %q, want Encryption at Rest", got.SectionTitle)
		}
	})

	t.Run("no heading leaves field empty", func(t *testing.T) {
		plain, _ := corpus.NewDocument("p", "No headings anywhere here.", "p.md")
		got := e.Extract(chunkOf(plain, 0, len(plain.Text)), plain)
		if got.SectionTitle != "" {
			t.Errorf("SectionTitle = %q, want empty", got.SectionTitle)
		}
	})
}

func TestExtractKeywords(t *testing.T) {
	e := newExtractor(t, metadata.Config{})

	t.Run("frequency ranked and deduplicated", func(t *testing.T) {
		text := "Encryption encryption encryption protects data. Data must use encryption keys. Keys matter."
		keywords := e.ExtractKeywords(text)
		if len(keywords) == 0 {
			t.Fatal("no keywords extracted")
		}
		if keywords[0] != "encryption" {
			t.Errorf("top keyword = %q, want encryption", keywords[0])
		}
		seen := map[string]bool{}
		for _, kw := range keywords {
			if seen[kw] {
				t.Errorf("duplicate keyword %q", kw)
			}
			seen[kw] = true
		}
	})

	t.Run("stop words filtered", func(t *testing.T) {
		keywords := e.ExtractKeywords("The policy is in the scope of the audit for the year.")
		for _, kw := range keywords {
			if kw == "the" || kw == "for" || kw == "of" {
				t.Errorf("stop word %q leaked into keywords", kw)
			}
		}
	})

	t.Run("cap respected", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 40; i++ {
			b.WriteString(strings.Repeat(string(rune('a'+i%26)), 4))
			b.WriteString(" term")
			b.WriteString(strings.Repeat(string(rune('a'+i%26)), 3))
			b.WriteString(" ")
		}
		keywords := e.ExtractKeywords(b.String())
		if len(keywords) > metadata.DefaultMaxKeywords {
			t.Errorf("got %d keywords, cap is %d", len(keywords), metadata.DefaultMaxKeywords)
		}
	})

	t.Run("custom cap", func(t *testing.T) {
		small := newExtractor(t, metadata.Config{MaxKeywords: 3})
		keywords := small.ExtractKeywords("alpha beta gamma delta epsilon zeta alpha beta gamma")
		if len(keywords) != 3 {
			t.Errorf("got %d keywords, want 3", len(keywords))
		}
	})
}

func TestExtractBestEffort(t *testing.T) {
	e := newExtractor(t, metadata.Config{})
	doc, _ := corpus.NewDocument("d", "zz", "d.md")
	got := e.Extract(chunkOf(doc, 0, 2), doc)
	if got.PolicyID != "" || got.SectionTitle != "" || len(got.Standards) != 0 || len(got.Keywords) != 0 {
		t.Errorf("expected empty metadata, got %+v", got)
	}
}
