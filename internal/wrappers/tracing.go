// Package wrappers provides composable decorators for the storage and
// index ports. Each wrapper implements the same interface as the value
// it wraps, so stacks compose innermost-out: base, tracing, validation,
// retry, cache, metrics.
package wrappers

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
)

var tracer = otel.Tracer("kotadb.storage")

// startSpan opens a span for one logical operation with a fresh
// correlation id, so concurrent operations can be told apart in traces.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("kotadb.correlation_id", uuid.NewString()))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TracingStore records a span per DocumentStore operation. Results and
// errors pass through unaltered.
type TracingStore struct {
	inner driven.DocumentStore
}

func NewTracingStore(inner driven.DocumentStore) *TracingStore {
	return &TracingStore{inner: inner}
}

func (s *TracingStore) Insert(ctx context.Context, doc *domain.Document) error {
	var attrs []attribute.KeyValue
	if doc != nil {
		attrs = append(attrs,
			attribute.String("kotadb.document_id", doc.ID.String()),
			attribute.String("kotadb.path", doc.Path.String()),
		)
	}
	ctx, span := startSpan(ctx, "storage.insert", attrs...)
	err := s.inner.Insert(ctx, doc)
	endSpan(span, err)
	return err
}

func (s *TracingStore) Get(ctx context.Context, id domain.ValidatedDocumentID) (*domain.Document, error) {
	ctx, span := startSpan(ctx, "storage.get", attribute.String("kotadb.document_id", id.String()))
	doc, err := s.inner.Get(ctx, id)
	span.SetAttributes(attribute.Bool("kotadb.found", doc != nil))
	endSpan(span, err)
	return doc, err
}

func (s *TracingStore) Update(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	var attrs []attribute.KeyValue
	if doc != nil {
		attrs = append(attrs, attribute.String("kotadb.document_id", doc.ID.String()))
	}
	ctx, span := startSpan(ctx, "storage.update", attrs...)
	updated, err := s.inner.Update(ctx, doc)
	endSpan(span, err)
	return updated, err
}

func (s *TracingStore) Delete(ctx context.Context, id domain.ValidatedDocumentID) error {
	ctx, span := startSpan(ctx, "storage.delete", attribute.String("kotadb.document_id", id.String()))
	err := s.inner.Delete(ctx, id)
	endSpan(span, err)
	return err
}

func (s *TracingStore) ListAll(ctx context.Context) ([]domain.Document, error) {
	ctx, span := startSpan(ctx, "storage.list_all")
	docs, err := s.inner.ListAll(ctx)
	span.SetAttributes(attribute.Int("kotadb.count", len(docs)))
	endSpan(span, err)
	return docs, err
}

func (s *TracingStore) Flush(ctx context.Context) error {
	ctx, span := startSpan(ctx, "storage.flush")
	err := s.inner.Flush(ctx)
	endSpan(span, err)
	return err
}

func (s *TracingStore) Close() error {
	return s.inner.Close()
}

// TracingPathIndex records a span per path index mutation and lookup.
// Range passes through: spans around lazy iteration would outlive the
// operation they describe.
type TracingPathIndex struct {
	inner driven.PathIndex
}

func NewTracingPathIndex(inner driven.PathIndex) *TracingPathIndex {
	return &TracingPathIndex{inner: inner}
}

func (i *TracingPathIndex) Insert(ctx context.Context, path domain.ValidatedPath, id domain.ValidatedDocumentID) error {
	ctx, span := startSpan(ctx, "path_index.insert", attribute.String("kotadb.path", path.String()))
	err := i.inner.Insert(ctx, path, id)
	endSpan(span, err)
	return err
}

func (i *TracingPathIndex) Remove(ctx context.Context, path domain.ValidatedPath) error {
	ctx, span := startSpan(ctx, "path_index.remove", attribute.String("kotadb.path", path.String()))
	err := i.inner.Remove(ctx, path)
	endSpan(span, err)
	return err
}

func (i *TracingPathIndex) Lookup(ctx context.Context, path domain.ValidatedPath) (domain.ValidatedDocumentID, bool) {
	ctx, span := startSpan(ctx, "path_index.lookup", attribute.String("kotadb.path", path.String()))
	id, ok := i.inner.Lookup(ctx, path)
	span.SetAttributes(attribute.Bool("kotadb.found", ok))
	endSpan(span, nil)
	return id, ok
}

func (i *TracingPathIndex) Range(ctx context.Context, prefix string) iter.Seq2[domain.ValidatedPath, domain.ValidatedDocumentID] {
	return i.inner.Range(ctx, prefix)
}

func (i *TracingPathIndex) Flush(ctx context.Context) error {
	ctx, span := startSpan(ctx, "path_index.flush")
	err := i.inner.Flush(ctx)
	endSpan(span, err)
	return err
}

func (i *TracingPathIndex) Close() error {
	return i.inner.Close()
}

// TracingTextIndex records a span per text index operation.
type TracingTextIndex struct {
	inner driven.TextIndex
}

func NewTracingTextIndex(inner driven.TextIndex) *TracingTextIndex {
	return &TracingTextIndex{inner: inner}
}

func (i *TracingTextIndex) Index(ctx context.Context, id domain.ValidatedDocumentID, title string, content []byte) error {
	ctx, span := startSpan(ctx, "text_index.index",
		attribute.String("kotadb.document_id", id.String()),
		attribute.Int("kotadb.content_bytes", len(content)),
	)
	err := i.inner.Index(ctx, id, title, content)
	endSpan(span, err)
	return err
}

func (i *TracingTextIndex) Remove(ctx context.Context, id domain.ValidatedDocumentID) error {
	ctx, span := startSpan(ctx, "text_index.remove", attribute.String("kotadb.document_id", id.String()))
	err := i.inner.Remove(ctx, id)
	endSpan(span, err)
	return err
}

func (i *TracingTextIndex) Search(ctx context.Context, text string, limit int) ([]driven.SearchHit, error) {
	ctx, span := startSpan(ctx, "text_index.search", attribute.Int("kotadb.limit", limit))
	hits, err := i.inner.Search(ctx, text, limit)
	span.SetAttributes(attribute.Int("kotadb.hits", len(hits)))
	endSpan(span, err)
	return hits, err
}

func (i *TracingTextIndex) Flush(ctx context.Context) error {
	ctx, span := startSpan(ctx, "text_index.flush")
	err := i.inner.Flush(ctx)
	endSpan(span, err)
	return err
}

func (i *TracingTextIndex) Close() error {
	return i.inner.Close()
}
