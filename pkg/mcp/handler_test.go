package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/runic/pkg/kv"
	"github.com/orneryd/runic/pkg/symbol"
	"github.com/orneryd/runic/pkg/vector"
)

func newTestHandler(t *testing.T, caller string, admin bool) (*Handler, *symbol.Store) {
	t.Helper()
	store := symbol.New(kv.NewMemoryStore(), vector.NewMemoryIndex(vector.NewHashEmbedder(64)))
	return NewHandler(store, caller, admin), store
}

func call(t *testing.T, h *Handler, tool, args string) interface{} {
	t.Helper()
	out, err := h.Call(context.Background(), tool, json.RawMessage(args))
	require.NoError(t, err)
	return out
}

func TestToolDefinitionsAreWellFormed(t *testing.T) {
	tools := GetToolDefinitions()
	require.Len(t, tools, len(AllTools()))

	seen := map[string]bool{}
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.True(t, IsValidTool(tool.Name), "tool %s should be valid", tool.Name)
		assert.False(t, seen[tool.Name], "duplicate tool %s", tool.Name)
		seen[tool.Name] = true

		var schema map[string]interface{}
		require.NoError(t, json.Unmarshal(tool.InputSchema, &schema), "schema for %s", tool.Name)
		assert.Equal(t, "object", schema["type"])
	}

	assert.False(t, IsValidTool("drop_tables"))
}

func TestHandlerRejectsUnknownTool(t *testing.T) {
	h, _ := newTestHandler(t, "", true)
	_, err := h.Call(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestDefineAndRecall(t *testing.T) {
	h, _ := newTestHandler(t, "", true)
	ctx := context.Background()

	_, err := h.store.CreateDomain(ctx, symbol.Domain{ID: "root"}, symbol.WriteOptions{Admin: true})
	require.NoError(t, err)

	out := call(t, h, ToolDefine, `{"domain":"root","id":"cqrs","name":"CQRS","kind":"pattern","tag":"arch"}`)
	sym, ok := out.(*symbol.Symbol)
	require.True(t, ok)
	assert.Equal(t, "cqrs", sym.ID)
	assert.Equal(t, symbol.KindPattern, sym.Kind)

	out = call(t, h, ToolRecall, `{"id":"cqrs"}`)
	sym, ok = out.(*symbol.Symbol)
	require.True(t, ok)
	assert.Equal(t, "CQRS", sym.Name)
}

func TestRecallMissingSymbol(t *testing.T) {
	h, _ := newTestHandler(t, "", true)
	_, err := h.Call(context.Background(), ToolRecall, json.RawMessage(`{"id":"ghost"}`))
	require.Error(t, err)
	assert.True(t, symbol.IsNotFound(err))
}

func TestDefineValidatesRequiredArgs(t *testing.T) {
	h, _ := newTestHandler(t, "", true)
	_, err := h.Call(context.Background(), ToolDefine, json.RawMessage(`{"name":"orphan"}`))
	require.Error(t, err)

	_, err = h.Call(context.Background(), ToolDefine, json.RawMessage(`not json`))
	require.Error(t, err)
}

func TestLinkMirrorsBidirectional(t *testing.T) {
	h, store := newTestHandler(t, "", true)
	ctx := context.Background()

	_, err := store.CreateDomain(ctx, symbol.Domain{ID: "root"}, symbol.WriteOptions{Admin: true})
	require.NoError(t, err)
	call(t, h, ToolDefine, `{"domain":"root","id":"a","name":"Alpha"}`)
	call(t, h, ToolDefine, `{"domain":"root","id":"b","name":"Beta"}`)

	out := call(t, h, ToolLink, `{"domain":"root","from":"a","to":"b","bidirectional":true}`)
	sym := out.(*symbol.Symbol)
	require.True(t, sym.HasLinkTo("b", symbol.LinkRelatesTo, true))

	back, err := store.FindByID(ctx, "b", symbol.ReadOptions{})
	require.NoError(t, err)
	require.NotNil(t, back)
	assert.True(t, back.HasLinkTo("a", symbol.LinkRelatesTo, true))
}

func TestLinkToMissingTargetFails(t *testing.T) {
	h, store := newTestHandler(t, "", true)
	ctx := context.Background()

	_, err := store.CreateDomain(ctx, symbol.Domain{ID: "root"}, symbol.WriteOptions{Admin: true})
	require.NoError(t, err)
	call(t, h, ToolDefine, `{"domain":"root","id":"a","name":"Alpha"}`)

	_, err = h.Call(ctx, ToolLink, json.RawMessage(`{"domain":"root","from":"a","to":"ghost"}`))
	require.Error(t, err)
	assert.True(t, symbol.IsValidation(err))
}

func TestDiscoverStructuredAndSemantic(t *testing.T) {
	h, store := newTestHandler(t, "", true)
	ctx := context.Background()

	_, err := store.CreateDomain(ctx, symbol.Domain{ID: "root"}, symbol.WriteOptions{Admin: true})
	require.NoError(t, err)
	call(t, h, ToolDefine, `{"domain":"root","id":"pool","name":"connection pooling","tag":"db"}`)
	call(t, h, ToolDefine, `{"domain":"root","id":"tls","name":"certificate rotation","tag":"security"}`)

	out := call(t, h, ToolDiscover, `{"metadata":{"symbol_tag":"db"}}`)
	results := out.([]symbol.Result)
	require.Len(t, results, 1)
	assert.Equal(t, "pool", results[0].ID)

	out = call(t, h, ToolDiscover, `{"query":"connection pooling","limit":1}`)
	results = out.([]symbol.Result)
	require.Len(t, results, 1)
	assert.Equal(t, "pool", results[0].ID)
}

func TestDiscoverRejectsUnconstrained(t *testing.T) {
	h, _ := newTestHandler(t, "", true)
	_, err := h.Call(context.Background(), ToolDiscover, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, symbol.IsValidation(err))
}

func TestDiscoverRejectsBadTimestamps(t *testing.T) {
	h, _ := newTestHandler(t, "", true)
	ctx := context.Background()

	_, err := h.Call(ctx, ToolDiscover, json.RawMessage(`{"since":"yesterday"}`))
	require.Error(t, err)

	_, err = h.Call(ctx, ToolDiscover, json.RawMessage(`{"between":["2026-08-01T00:00:00Z"]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly two")
}

func TestForgetReportsRemoval(t *testing.T) {
	h, store := newTestHandler(t, "", true)
	ctx := context.Background()

	_, err := store.CreateDomain(ctx, symbol.Domain{ID: "root"}, symbol.WriteOptions{Admin: true})
	require.NoError(t, err)
	call(t, h, ToolDefine, `{"domain":"root","id":"x","name":"Ex"}`)

	out := call(t, h, ToolForget, `{"domain":"root","id":"x"}`)
	assert.Equal(t, map[string]interface{}{"removed": true}, out)

	out = call(t, h, ToolForget, `{"domain":"root","id":"x"}`)
	assert.Equal(t, map[string]interface{}{"removed": false}, out)
}

func TestRenameTool(t *testing.T) {
	h, store := newTestHandler(t, "", true)
	ctx := context.Background()

	_, err := store.CreateDomain(ctx, symbol.Domain{ID: "root"}, symbol.WriteOptions{Admin: true})
	require.NoError(t, err)
	call(t, h, ToolDefine, `{"domain":"root","id":"old","name":"Old"}`)

	out := call(t, h, ToolRename, `{"domain":"root","from":"old","to":"new"}`)
	assert.Equal(t, map[string]interface{}{"renamed": true, "from": "old", "to": "new"}, out)

	sym, err := store.FindByID(ctx, "new", symbol.ReadOptions{})
	require.NoError(t, err)
	require.NotNil(t, sym)
}

func TestDomainsToolScopesToCaller(t *testing.T) {
	h, store := newTestHandler(t, "alice", false)
	ctx := context.Background()

	_, err := store.CreateDomain(ctx, symbol.Domain{ID: "shared"}, symbol.WriteOptions{Admin: true})
	require.NoError(t, err)
	call(t, h, ToolDefine, `{"domain":"profile","name":"prefers tabs"}`)

	out := call(t, h, ToolDomains, `{}`)
	list := out.([]map[string]interface{})

	ids := make([]string, 0, len(list))
	for _, d := range list {
		ids = append(ids, d["id"].(string))
	}
	assert.Contains(t, ids, "shared")
	assert.Contains(t, ids, symbol.DomainProfile)

	other := NewHandler(store, "bob", false)
	out, err = other.Call(ctx, ToolDomains, json.RawMessage(`{}`))
	require.NoError(t, err)
	for _, d := range out.([]map[string]interface{}) {
		assert.NotEqual(t, symbol.DomainSession, d["id"])
	}
}

func TestNonAdminCannotWriteGlobal(t *testing.T) {
	h, store := newTestHandler(t, "alice", false)
	ctx := context.Background()

	_, err := store.CreateDomain(ctx, symbol.Domain{ID: "shared"}, symbol.WriteOptions{Admin: true})
	require.NoError(t, err)

	_, err = h.Call(ctx, ToolDefine, json.RawMessage(`{"domain":"shared","name":"sneaky"}`))
	require.Error(t, err)
	var adminErr *symbol.AdminRequiredError
	assert.ErrorAs(t, err, &adminErr)
}
