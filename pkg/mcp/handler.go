package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/orneryd/runic/pkg/symbol"
)

// Handler dispatches tool calls onto a symbol store. One Handler serves one
// caller; the transport creates a Handler per authenticated session.
type Handler struct {
	store  *symbol.Store
	caller string
	admin  bool
}

// NewHandler creates a handler bound to a caller identity. An empty caller
// uses the shared default scope. Admin callers may write global domains.
func NewHandler(store *symbol.Store, caller string, admin bool) *Handler {
	return &Handler{store: store, caller: caller, admin: admin}
}

// Call executes one tool by name. The result is JSON-serializable; tool-level
// failures (unknown tool, bad arguments, store errors) come back as errors for
// the transport to wrap.
func (h *Handler) Call(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if !IsValidTool(name) {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case ToolDefine:
		return h.define(ctx, args)
	case ToolRecall:
		return h.recall(ctx, args)
	case ToolDiscover:
		return h.discover(ctx, args)
	case ToolLink:
		return h.link(ctx, args)
	case ToolForget:
		return h.forget(ctx, args)
	case ToolRename:
		return h.rename(ctx, args)
	case ToolDomains:
		return h.domains(ctx)
	}
	return nil, fmt.Errorf("unknown tool: %s", name)
}

type defineArgs struct {
	Domain string `json:"domain"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Tag    string `json:"tag"`
	Links  []struct {
		ID            string `json:"id"`
		LinkType      string `json:"link_type"`
		Bidirectional bool   `json:"bidirectional"`
	} `json:"links"`
}

func (h *Handler) define(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a defineArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid define arguments: %w", err)
	}
	if a.Domain == "" || a.Name == "" {
		return nil, fmt.Errorf("define requires domain and name")
	}

	sym := symbol.Symbol{
		ID:   a.ID,
		Name: a.Name,
		Kind: symbol.KindFromString(a.Kind),
		Tag:  a.Tag,
	}
	for _, l := range a.Links {
		sym.Links = append(sym.Links, symbol.Link{
			ID:            l.ID,
			LinkType:      l.LinkType,
			Bidirectional: l.Bidirectional,
		})
	}

	return h.store.AddSymbol(ctx, a.Domain, sym, symbol.AddOptions{
		Caller: h.caller,
		Admin:  h.admin,
	})
}

type recallArgs struct {
	ID string `json:"id"`
}

func (h *Handler) recall(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a recallArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid recall arguments: %w", err)
	}
	if a.ID == "" {
		return nil, fmt.Errorf("recall requires id")
	}
	sym, err := h.store.FindByID(ctx, a.ID, symbol.ReadOptions{Caller: h.caller})
	if err != nil {
		return nil, err
	}
	if sym == nil {
		return nil, &symbol.NotFoundError{Symbol: a.ID}
	}
	return sym, nil
}

type discoverArgs struct {
	Query    string                 `json:"query"`
	Domains  []string               `json:"domains"`
	Metadata map[string]interface{} `json:"metadata"`
	Since    string                 `json:"since"`
	Between  []string               `json:"between"`
	Limit    int                    `json:"limit"`
}

func (h *Handler) discover(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a discoverArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid discover arguments: %w", err)
	}

	opts := symbol.SearchOptions{
		Query:    a.Query,
		Domains:  a.Domains,
		Metadata: a.Metadata,
		Limit:    a.Limit,
		Caller:   h.caller,
	}
	if a.Since != "" {
		t, err := time.Parse(time.RFC3339, a.Since)
		if err != nil {
			return nil, fmt.Errorf("invalid since timestamp: %w", err)
		}
		opts.Since = &t
	}
	if len(a.Between) > 0 {
		if len(a.Between) != 2 {
			return nil, fmt.Errorf("between requires exactly two timestamps")
		}
		from, err := time.Parse(time.RFC3339, a.Between[0])
		if err != nil {
			return nil, fmt.Errorf("invalid between[0] timestamp: %w", err)
		}
		to, err := time.Parse(time.RFC3339, a.Between[1])
		if err != nil {
			return nil, fmt.Errorf("invalid between[1] timestamp: %w", err)
		}
		opts.Between = &[2]time.Time{from, to}
	}

	results, err := h.store.Search(ctx, opts)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []symbol.Result{}
	}
	return results, nil
}

type linkArgs struct {
	Domain        string `json:"domain"`
	From          string `json:"from"`
	To            string `json:"to"`
	LinkType      string `json:"link_type"`
	Bidirectional bool   `json:"bidirectional"`
}

func (h *Handler) link(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a linkArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid link arguments: %w", err)
	}
	if a.Domain == "" || a.From == "" || a.To == "" {
		return nil, fmt.Errorf("link requires domain, from, and to")
	}

	d, err := h.store.GetDomain(ctx, a.Domain, symbol.ReadOptions{Caller: h.caller})
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &symbol.NotFoundError{Domain: a.Domain}
	}
	var src *symbol.Symbol
	for i := range d.Symbols {
		if d.Symbols[i].ID == a.From {
			src = d.Symbols[i].Clone()
			break
		}
	}
	if src == nil {
		return nil, &symbol.NotFoundError{Domain: a.Domain, Symbol: a.From}
	}

	// Re-adding an existing symbol skips target validation, so check here.
	target, err := h.store.FindByID(ctx, a.To, symbol.ReadOptions{Caller: h.caller})
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &symbol.ValidationError{Missing: []string{a.To}}
	}

	linkType := a.LinkType
	if linkType == "" {
		linkType = symbol.LinkRelatesTo
	}
	if !src.HasLinkTo(a.To, linkType, a.Bidirectional) {
		src.Links = append(src.Links, symbol.Link{
			ID:            a.To,
			LinkType:      linkType,
			Bidirectional: a.Bidirectional,
		})
	}

	// Re-adding validates the target and mirrors bidirectional links.
	return h.store.AddSymbol(ctx, a.Domain, *src, symbol.AddOptions{
		Caller: h.caller,
		Admin:  h.admin,
	})
}

type forgetArgs struct {
	Domain string `json:"domain"`
	ID     string `json:"id"`
}

func (h *Handler) forget(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a forgetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid forget arguments: %w", err)
	}
	if a.Domain == "" || a.ID == "" {
		return nil, fmt.Errorf("forget requires domain and id")
	}
	removed, err := h.store.RemoveSymbol(ctx, a.Domain, a.ID, symbol.WriteOptions{
		Caller: h.caller,
		Admin:  h.admin,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"removed": removed}, nil
}

type renameArgs struct {
	Domain string `json:"domain"`
	From   string `json:"from"`
	To     string `json:"to"`
}

func (h *Handler) rename(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a renameArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid rename arguments: %w", err)
	}
	if err := h.store.PropagateRename(ctx, a.Domain, a.From, a.To, symbol.WriteOptions{
		Caller: h.caller,
		Admin:  h.admin,
	}); err != nil {
		return nil, err
	}
	return map[string]interface{}{"renamed": true, "from": a.From, "to": a.To}, nil
}

func (h *Handler) domains(ctx context.Context) (interface{}, error) {
	domains, err := h.store.ListDomains(ctx, symbol.ReadOptions{Caller: h.caller})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(domains))
	for _, d := range domains {
		out = append(out, map[string]interface{}{
			"id":       d.ID,
			"name":     d.Name,
			"enabled":  d.Enabled,
			"readonly": d.ReadOnly,
			"symbols":  len(d.Symbols),
		})
	}
	return out, nil
}
