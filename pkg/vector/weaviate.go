package vector

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// Default Weaviate class for symbol documents.
const DefaultClassName = "RunicSymbol"

// WeaviateOptions configures a WeaviateIndex.
type WeaviateOptions struct {
	// URL of the Weaviate server, e.g. "http://localhost:8080".
	URL string

	// ClassName overrides DefaultClassName.
	ClassName string
}

// WeaviateIndex stores symbol documents as objects of a single Weaviate
// class and lets the server's vectorizer module handle embedding, so no
// local Embedder is needed. Object ids are derived deterministically from
// symbol ids, which makes IndexSymbol an upsert without a read.
type WeaviateIndex struct {
	client    *weaviate.Client
	className string
	closed    bool
}

var _ Index = (*WeaviateIndex)(nil)

// NewWeaviateIndex connects to the server and ensures the symbol class
// exists.
func NewWeaviateIndex(ctx context.Context, opts WeaviateOptions) (*WeaviateIndex, error) {
	cfg := weaviate.Config{
		Host:   opts.URL,
		Scheme: "http",
	}
	if strings.HasPrefix(opts.URL, "https://") {
		cfg.Scheme = "https"
		cfg.Host = strings.TrimPrefix(opts.URL, "https://")
	} else if strings.HasPrefix(opts.URL, "http://") {
		cfg.Host = strings.TrimPrefix(opts.URL, "http://")
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	className := opts.ClassName
	if className == "" {
		className = DefaultClassName
	}

	w := &WeaviateIndex{client: client, className: className}
	if err := w.ensureClass(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WeaviateIndex) ensureClass(ctx context.Context) error {
	_, err := w.client.Schema().ClassGetter().WithClassName(w.className).Do(ctx)
	if err == nil {
		return nil
	}
	if err := w.client.Schema().ClassCreator().WithClass(w.classSchema()).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", w.className, err)
	}
	return nil
}

func (w *WeaviateIndex) classSchema() *models.Class {
	return &models.Class{
		Class:       w.className,
		Description: "One object per knowledge-graph symbol",
		Properties: []*models.Property{
			{Name: "symbolId", DataType: []string{"text"}, Description: "Symbol id"},
			{Name: "content", DataType: []string{"text"}, Description: "Text rendering of the symbol"},
			{Name: "symbol_domain", DataType: []string{"text"}, Description: "Owning domain id"},
			{Name: "kind", DataType: []string{"text"}, Description: "Symbol kind"},
			{Name: "symbol_tag", DataType: []string{"text"}, Description: "Symbol tag"},
		},
	}
}

// objectID derives a stable Weaviate UUID from a symbol id.
func objectID(symbolID string) strfmt.UUID {
	hash := sha256.Sum256([]byte(symbolID))
	id, _ := uuid.FromBytes(hash[:16])
	return strfmt.UUID(id.String())
}

// IndexSymbol upserts one document.
func (w *WeaviateIndex) IndexSymbol(ctx context.Context, doc Document) error {
	if w.closed {
		return ErrClosed
	}
	// Deterministic id: delete-then-create is the client's documented
	// upsert path for vectorized objects.
	if err := w.DeleteSymbol(ctx, doc.ID); err != nil {
		return err
	}
	_, err := w.client.Data().Creator().
		WithClassName(w.className).
		WithID(string(objectID(doc.ID))).
		WithProperties(w.properties(doc)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("index symbol %s: %w", doc.ID, err)
	}
	return nil
}

// IndexBatch upserts docs in one batch request, counting successes.
func (w *WeaviateIndex) IndexBatch(ctx context.Context, docs []Document) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if len(docs) == 0 {
		return 0, nil
	}

	objects := make([]*models.Object, len(docs))
	for i, doc := range docs {
		objects[i] = &models.Object{
			Class:      w.className,
			ID:         objectID(doc.ID),
			Properties: w.properties(doc),
		}
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("batch index: %w", err)
	}

	indexed := 0
	for _, obj := range resp {
		if obj.Result == nil || obj.Result.Errors == nil {
			indexed++
		}
	}
	return indexed, nil
}

func (w *WeaviateIndex) properties(doc Document) map[string]any {
	props := map[string]any{
		"symbolId": doc.ID,
		"content":  doc.Text,
	}
	for field, value := range doc.Metadata {
		props[field] = value
	}
	return props
}

// DeleteSymbol removes the object for id; absent objects are fine.
func (w *WeaviateIndex) DeleteSymbol(ctx context.Context, id string) error {
	if w.closed {
		return ErrClosed
	}
	err := w.client.Data().Deleter().
		WithClassName(w.className).
		WithID(string(objectID(id))).
		Do(ctx)
	if err != nil && !strings.Contains(err.Error(), "404") {
		return fmt.Errorf("delete symbol %s: %w", id, err)
	}
	return nil
}

// Search runs a nearText query filtered by metadata equality.
func (w *WeaviateIndex) Search(ctx context.Context, query string, limit int, filter map[string]any) ([]Hit, error) {
	if w.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 10
	}

	fields := []graphql.Field{
		{Name: "symbolId"},
		{Name: "content"},
		{Name: "symbol_domain"},
		{Name: "kind"},
		{Name: "symbol_tag"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	nearText := w.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	builder := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(limit)

	if where := buildWhere(filter); where != nil {
		builder = builder.WithWhere(where)
	}

	result, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search: %s", result.Errors[0].Message)
	}

	return w.parseHits(result)
}

// buildWhere converts the equality / any-of filter to a Weaviate where
// clause. Any-of values become Or operands; array-valued document fields
// already match by containment under Equal.
func buildWhere(filter map[string]any) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	for field, want := range filter {
		if alternatives, ok := anySlice(want); ok {
			alts := make([]*filters.WhereBuilder, 0, len(alternatives))
			for _, alt := range alternatives {
				alts = append(alts, filters.Where().
					WithPath([]string{field}).
					WithOperator(filters.Equal).
					WithValueString(fmt.Sprintf("%v", alt)))
			}
			if len(alts) == 0 {
				continue
			}
			operands = append(operands, filters.Where().
				WithOperator(filters.Or).
				WithOperands(alts))
			continue
		}
		operands = append(operands, filters.Where().
			WithPath([]string{field}).
			WithOperator(filters.Equal).
			WithValueString(fmt.Sprintf("%v", want)))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().
			WithOperator(filters.And).
			WithOperands(operands)
	}
}

func (w *WeaviateIndex) parseHits(result *models.GraphQLResponse) ([]Hit, error) {
	data, ok := result.Data["Get"].(map[string]any)
	if !ok {
		return []Hit{}, nil
	}
	objects, ok := data[w.className].([]any)
	if !ok {
		return []Hit{}, nil
	}

	hits := make([]Hit, 0, len(objects))
	for _, raw := range objects {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		hit := Hit{Metadata: map[string]any{}}
		if id, ok := obj["symbolId"].(string); ok {
			hit.ID = id
		}
		if content, ok := obj["content"].(string); ok {
			hit.Document = content
		}
		for _, field := range []string{"symbol_domain", "kind", "symbol_tag"} {
			if v, ok := obj[field]; ok && v != nil {
				hit.Metadata[field] = v
			}
		}
		if additional, ok := obj["_additional"].(map[string]any); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				hit.Score = certainty
			}
		}
		if hit.ID != "" {
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

// Reset drops and recreates the class. Every indexed document is lost.
func (w *WeaviateIndex) Reset(ctx context.Context) error {
	if w.closed {
		return ErrClosed
	}
	if err := w.client.Schema().ClassDeleter().WithClassName(w.className).Do(ctx); err != nil {
		if !strings.Contains(err.Error(), "404") {
			return fmt.Errorf("delete class %s: %w", w.className, err)
		}
	}
	return w.ensureClass(ctx)
}

// Close marks the index closed. The underlying HTTP client needs no
// teardown.
func (w *WeaviateIndex) Close() error {
	w.closed = true
	return nil
}
