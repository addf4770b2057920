package wrappers

import (
	"context"
	"iter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
)

// Metrics holds the shared collectors for all metrics wrappers attached
// to one registry.
type Metrics struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics registers the kotadb operation collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kotadb_operations_total",
			Help: "Completed operations by component, operation, and status.",
		}, []string{"component", "op", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kotadb_operation_duration_seconds",
			Help:    "Operation latency by component and operation.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"component", "op"}),
	}
}

func (m *Metrics) observe(component, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ops.WithLabelValues(component, op, status).Inc()
	m.latency.WithLabelValues(component, op).Observe(time.Since(start).Seconds())
}

// MetricsStore counts DocumentStore operations and records latency.
type MetricsStore struct {
	inner driven.DocumentStore
	m     *Metrics
}

func NewMetricsStore(inner driven.DocumentStore, m *Metrics) *MetricsStore {
	return &MetricsStore{inner: inner, m: m}
}

func (s *MetricsStore) Insert(ctx context.Context, doc *domain.Document) error {
	start := time.Now()
	err := s.inner.Insert(ctx, doc)
	s.m.observe("storage", "insert", start, err)
	return err
}

func (s *MetricsStore) Get(ctx context.Context, id domain.ValidatedDocumentID) (*domain.Document, error) {
	start := time.Now()
	doc, err := s.inner.Get(ctx, id)
	s.m.observe("storage", "get", start, err)
	return doc, err
}

func (s *MetricsStore) Update(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	start := time.Now()
	updated, err := s.inner.Update(ctx, doc)
	s.m.observe("storage", "update", start, err)
	return updated, err
}

func (s *MetricsStore) Delete(ctx context.Context, id domain.ValidatedDocumentID) error {
	start := time.Now()
	err := s.inner.Delete(ctx, id)
	s.m.observe("storage", "delete", start, err)
	return err
}

func (s *MetricsStore) ListAll(ctx context.Context) ([]domain.Document, error) {
	start := time.Now()
	docs, err := s.inner.ListAll(ctx)
	s.m.observe("storage", "list_all", start, err)
	return docs, err
}

func (s *MetricsStore) Flush(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Flush(ctx)
	s.m.observe("storage", "flush", start, err)
	return err
}

func (s *MetricsStore) Close() error {
	return s.inner.Close()
}

// MetricsPathIndex counts path index operations and records latency.
type MetricsPathIndex struct {
	inner driven.PathIndex
	m     *Metrics
}

func NewMetricsPathIndex(inner driven.PathIndex, m *Metrics) *MetricsPathIndex {
	return &MetricsPathIndex{inner: inner, m: m}
}

func (i *MetricsPathIndex) Insert(ctx context.Context, path domain.ValidatedPath, id domain.ValidatedDocumentID) error {
	start := time.Now()
	err := i.inner.Insert(ctx, path, id)
	i.m.observe("path_index", "insert", start, err)
	return err
}

func (i *MetricsPathIndex) Remove(ctx context.Context, path domain.ValidatedPath) error {
	start := time.Now()
	err := i.inner.Remove(ctx, path)
	i.m.observe("path_index", "remove", start, err)
	return err
}

func (i *MetricsPathIndex) Lookup(ctx context.Context, path domain.ValidatedPath) (domain.ValidatedDocumentID, bool) {
	start := time.Now()
	id, ok := i.inner.Lookup(ctx, path)
	i.m.observe("path_index", "lookup", start, nil)
	return id, ok
}

func (i *MetricsPathIndex) Range(ctx context.Context, prefix string) iter.Seq2[domain.ValidatedPath, domain.ValidatedDocumentID] {
	return i.inner.Range(ctx, prefix)
}

func (i *MetricsPathIndex) Flush(ctx context.Context) error {
	start := time.Now()
	err := i.inner.Flush(ctx)
	i.m.observe("path_index", "flush", start, err)
	return err
}

func (i *MetricsPathIndex) Close() error {
	return i.inner.Close()
}

// MetricsTextIndex counts text index operations and records latency.
type MetricsTextIndex struct {
	inner driven.TextIndex
	m     *Metrics
}

func NewMetricsTextIndex(inner driven.TextIndex, m *Metrics) *MetricsTextIndex {
	return &MetricsTextIndex{inner: inner, m: m}
}

func (i *MetricsTextIndex) Index(ctx context.Context, id domain.ValidatedDocumentID, title string, content []byte) error {
	start := time.Now()
	err := i.inner.Index(ctx, id, title, content)
	i.m.observe("text_index", "index", start, err)
	return err
}

func (i *MetricsTextIndex) Remove(ctx context.Context, id domain.ValidatedDocumentID) error {
	start := time.Now()
	err := i.inner.Remove(ctx, id)
	i.m.observe("text_index", "remove", start, err)
	return err
}

func (i *MetricsTextIndex) Search(ctx context.Context, text string, limit int) ([]driven.SearchHit, error) {
	start := time.Now()
	hits, err := i.inner.Search(ctx, text, limit)
	i.m.observe("text_index", "search", start, err)
	return hits, err
}

func (i *MetricsTextIndex) Flush(ctx context.Context) error {
	start := time.Now()
	err := i.inner.Flush(ctx)
	i.m.observe("text_index", "flush", start, err)
	return err
}

func (i *MetricsTextIndex) Close() error {
	return i.inner.Close()
}
