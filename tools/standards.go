package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Standard describes one compliance standard the extractor can tag.
type Standard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Authority   string `json:"authority"`
	Category    string `json:"category"`
	Description string `json:"description"`
	DocsURL     string `json:"docs_url,omitempty"`
}

// StandardsCatalog represents the complete standards catalog
type StandardsCatalog struct {
	Standards   []Standard `json:"standards"`
	Version     string     `json:"version"`
	LastUpdated string     `json:"last_updated"`
}

var standardsCatalog *StandardsCatalog

// LoadStandardsCatalog loads the compliance standards catalog.
// Tries embedded data first (standalone binary), then filesystem (development).
func LoadStandardsCatalog() error {
	catalogData, err := defaultDataProvider.ReadFile("data/standards/catalog.json")
	if err != nil {
		catalogPath := filepath.Join("data", "standards", "catalog.json")
		catalogData, err = os.ReadFile(catalogPath)
		if err != nil {
			return fmt.Errorf("failed to read standards catalog (embedded or filesystem): %w", err)
		}
	}

	var catalog StandardsCatalog
	if err := json.Unmarshal(catalogData, &catalog); err != nil {
		return fmt.Errorf("failed to parse standards catalog: %w", err)
	}
	standardsCatalog = &catalog
	return nil
}

// ListComplianceStandardsInput defines input for list_compliance_standards tool
type ListComplianceStandardsInput struct {
	Category string `json:"category,omitempty" jsonschema:"Only return standards in this category (e.g. privacy, security, healthcare)"`
}

// ListComplianceStandardsOutput defines output for list_compliance_standards tool
type ListComplianceStandardsOutput struct {
	Standards []Standard `json:"standards"`
	Count     int        `json:"count"`
}

// ListComplianceStandards returns the standards the metadata extractor
// recognizes, so clients know which filter values are meaningful.
func ListComplianceStandards(ctx context.Context, req *mcp.CallToolRequest, input ListComplianceStandardsInput) (*mcp.CallToolResult, ListComplianceStandardsOutput, error) {
	if standardsCatalog == nil {
		if err := LoadStandardsCatalog(); err != nil {
			return nil, ListComplianceStandardsOutput{}, fmt.Errorf("failed to load standards catalog: %w", err)
		}
	}

	standards := make([]Standard, 0, len(standardsCatalog.Standards))
	for _, std := range standardsCatalog.Standards {
		if input.Category != "" && !strings.EqualFold(std.Category, input.Category) {
			continue
		}
		standards = append(standards, std)
	}

	output := ListComplianceStandardsOutput{
		Standards: standards,
		Count:     len(standards),
	}
	return nil, output, nil
}

// RegisterStandardsTools registers the standards catalog tool
func RegisterStandardsTools(server *mcp.Server) error {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_compliance_standards",
			Description: "List the compliance standards recognized by the policy metadata extractor (SOC2, PCI-DSS, HIPAA, GDPR, ...), optionally filtered by category. Use these values in the standards filter of search_compliance_policies.",
		},
		ListComplianceStandards,
	)
	return nil
}
