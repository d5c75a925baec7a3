package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/policyrag/mcp-server/internal/config"
	"github.com/policyrag/mcp-server/tools"
)

const (
	version     = "0.3.1"
	serverName  = "policyrag-mcp-server"
	description = "MCP server for compliance policy retrieval"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serverName, version)
		os.Exit(0)
	}

	// Set up logging to stderr (MCP uses stdout for protocol)
	log.SetOutput(os.Stderr)
	log.Printf("%s v%s starting...", serverName, version)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create MCP server
	server := createMCPServer()

	// Register all tools
	if err := registerTools(server, cfg); err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}

	log.Printf("✓ Server ready and waiting for connections")

	// Set up cleanup on shutdown
	defer func() {
		if err := tools.ClosePolicySearch(); err != nil {
			log.Printf("Error closing policy search: %v", err)
		}
	}()

	// Run server with stdio transport
	ctx := context.Background()
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// loadConfig reads the configuration file, or the defaults when none is given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		log.Printf("No config file given, using defaults (corpus: %s)", cfg.CorpusDir)
		return &cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.Printf("✓ Configuration loaded from %s", path)
	return cfg, nil
}

// createMCPServer initializes the MCP server
func createMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		nil, // Default options
	)

	log.Printf("Server initialized: %s v%s", serverName, version)
	return server
}

// registerTools registers all MCP tools
func registerTools(server *mcp.Server, cfg *config.Config) error {
	toolCount := 0

	// Corpus search tools (3 tools)
	if err := tools.RegisterPolicySearchTools(server, cfg); err != nil {
		return fmt.Errorf("failed to register policy search tools: %w", err)
	}
	toolCount += 3

	// Standards catalog tool (1 tool)
	if err := tools.RegisterStandardsTools(server); err != nil {
		return fmt.Errorf("failed to register standards tools: %w", err)
	}
	toolCount++

	log.Printf("✓ All tools registered: %d tools (search + reindex + stats + standards)", toolCount)
	return nil
}
