// Package mcp provides the tool definitions and dispatcher for runic's
// tool-protocol surface. The transport (JSON-RPC server, stdio framing) is
// external; this package only defines the tools and maps tool calls onto
// the symbol store.
package mcp

import (
	"encoding/json"
)

// Tool is one callable tool: a name, an LLM-facing description, and a JSON
// schema for its arguments.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// GetToolDefinitions returns all tool definitions with JSON schemas.
// Tools use verb naming, minimal required parameters, and smart defaults.
func GetToolDefinitions() []Tool {
	return []Tool{
		getDefineTool(),
		getRecallTool(),
		getDiscoverTool(),
		getLinkTool(),
		getForgetTool(),
		getRenameTool(),
		getDomainsTool(),
	}
}

// getDefineTool returns the define tool definition
func getDefineTool() Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"domain": map[string]interface{}{
				"type":        "string",
				"description": "Domain to store the symbol in. Use 'profile' or 'session' for caller-private storage.",
			},
			"id": map[string]interface{}{
				"type":        "string",
				"description": "Symbol id, unique across the accessible symbol space. Auto-generated if omitted.",
			},
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Display name. This is the main text used for semantic search.",
			},
			"kind": map[string]interface{}{
				"type":        "string",
				"description": "Symbol kind.",
				"enum":        []string{"pattern", "persona", "lattice", "data"},
				"default":     "pattern",
			},
			"tag": map[string]interface{}{
				"type":        "string",
				"description": "Free-text classification tag.",
			},
			"links": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":            map[string]interface{}{"type": "string"},
						"link_type":     map[string]interface{}{"type": "string", "default": "relates_to"},
						"bidirectional": map[string]interface{}{"type": "boolean", "default": false},
					},
					"required": []string{"id"},
				},
				"description": "Typed references to other symbols. Bidirectional links get a reciprocal back-link on the target.",
			},
		},
		"required": []string{"domain", "name"},
	}

	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: "define",
		Description: `Store a symbol (knowledge unit) in a domain. Returns the stored symbol with its id.
Link targets must already exist. Re-defining an existing id overwrites it in place.

Examples:
- define(domain="root", name="Retry with backoff", kind="pattern", tag="resilience")
- define(domain="profile", name="prefers dark mode")
- define(domain="root", id="cqrs", name="CQRS", links=[{"id":"event-sourcing","bidirectional":true}])`,
		InputSchema: schemaJSON,
	}
}

// getRecallTool returns the recall tool definition
func getRecallTool() Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id": map[string]interface{}{
				"type":        "string",
				"description": "Symbol id to retrieve.",
			},
		},
		"required": []string{"id"},
	}

	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: "recall",
		Description: `Retrieve one symbol by id, scanning every domain you can access.
Bumps the symbol's access time and activation count. For semantic "find similar" use discover.

Examples:
- recall(id="cqrs")`,
		InputSchema: schemaJSON,
	}
}

// getDiscoverTool returns the discover tool definition
func getDiscoverTool() Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Natural language query. Searches by MEANING. Omit for a purely structured search.",
			},
			"domains": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Restrict to these domains. Default: every accessible domain.",
			},
			"metadata": map[string]interface{}{
				"type":                 "object",
				"description":          "Field filters, e.g. {\"symbol_tag\": \"core\"} or {\"kind\": [\"pattern\", \"data\"]}.",
				"additionalProperties": true,
			},
			"since": map[string]interface{}{
				"type":        "string",
				"format":      "date-time",
				"description": "Only symbols created at or after this time (RFC3339).",
			},
			"between": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string", "format": "date-time"},
				"description": "Inclusive [from, to] creation-time window (RFC3339 pair).",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of results.",
				"default":     10,
				"minimum":     1,
				"maximum":     100,
			},
		},
		"required": []string{},
	}

	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: "discover",
		Description: `Hybrid search over the symbol graph: semantic similarity when a query is given,
structured filtering otherwise. At least one of query, metadata, since, or between is required.

Examples:
- discover(query="connection pooling")
- discover(metadata={"symbol_tag": "core"}, limit=5)
- discover(query="auth", between=["2026-08-01T00:00:00Z", "2026-08-07T00:00:00Z"])`,
		InputSchema: schemaJSON,
	}
}

// getLinkTool returns the link tool definition
func getLinkTool() Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"domain": map[string]interface{}{
				"type":        "string",
				"description": "Domain holding the source symbol.",
			},
			"from": map[string]interface{}{
				"type":        "string",
				"description": "Source symbol id.",
			},
			"to": map[string]interface{}{
				"type":        "string",
				"description": "Target symbol id. Must exist.",
			},
			"link_type": map[string]interface{}{
				"type":        "string",
				"description": "Relationship type.",
				"default":     "relates_to",
			},
			"bidirectional": map[string]interface{}{
				"type":        "boolean",
				"description": "Also create the reciprocal link on the target.",
				"default":     false,
			},
		},
		"required": []string{"domain", "from", "to"},
	}

	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: "link",
		Description: `Add a typed link from one symbol to another. Bidirectional links are mirrored
onto the target automatically.

Examples:
- link(domain="root", from="cqrs", to="event-sourcing", bidirectional=true)
- link(domain="root", from="cache", to="redis", link_type="uses")`,
		InputSchema: schemaJSON,
	}
}

// getForgetTool returns the forget tool definition
func getForgetTool() Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"domain": map[string]interface{}{
				"type":        "string",
				"description": "Domain holding the symbol.",
			},
			"id": map[string]interface{}{
				"type":        "string",
				"description": "Symbol id to remove.",
			},
		},
		"required": []string{"domain", "id"},
	}

	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: "forget",
		Description: `Remove a symbol. Every accessible symbol that linked to it is cleaned up, its
semantic-index entry and time-bucket entry are deleted. Removing an absent id is not an error.

Examples:
- forget(domain="root", id="obsolete-pattern")`,
		InputSchema: schemaJSON,
	}
}

// getRenameTool returns the rename tool definition
func getRenameTool() Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"domain": map[string]interface{}{
				"type":        "string",
				"description": "Domain to rewrite.",
			},
			"from": map[string]interface{}{
				"type":        "string",
				"description": "Current symbol id.",
			},
			"to": map[string]interface{}{
				"type":        "string",
				"description": "New symbol id.",
			},
		},
		"required": []string{"domain", "from", "to"},
	}

	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: "rename",
		Description: `Rename a symbol id within a domain: the symbol itself and every in-domain link
to it are rewritten, and its index entries follow.

Examples:
- rename(domain="root", from="old-name", to="new-name")`,
		InputSchema: schemaJSON,
	}
}

// getDomainsTool returns the domains tool definition
func getDomainsTool() Tool {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []string{},
	}

	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: "domains",
		Description: `List every domain you can access: the shared global domains plus your private
profile and session domains.

Examples:
- domains()`,
		InputSchema: schemaJSON,
	}
}

// ToolName constants for type-safe tool references
const (
	ToolDefine   = "define"
	ToolRecall   = "recall"
	ToolDiscover = "discover"
	ToolLink     = "link"
	ToolForget   = "forget"
	ToolRename   = "rename"
	ToolDomains  = "domains"
)

// AllTools returns all tool names
func AllTools() []string {
	return []string{
		ToolDefine,
		ToolRecall,
		ToolDiscover,
		ToolLink,
		ToolForget,
		ToolRename,
		ToolDomains,
	}
}

// IsValidTool checks if a tool name is valid
func IsValidTool(name string) bool {
	for _, t := range AllTools() {
		if t == name {
			return true
		}
	}
	return false
}
