// Package instrumented wraps an object store with Prometheus metrics.
package instrumented

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tendant/simple-store/pkg/simplestore"
)

// Metrics holds the storage collectors
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
}

// NewMetrics registers the storage collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simplestore_storage_operations_total",
			Help: "Object store operations by backend, operation and result.",
		}, []string{"backend", "op", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simplestore_storage_operation_duration_seconds",
			Help:    "Object store operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "op"}),
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simplestore_storage_bytes_written_total",
			Help: "Bytes written to the object store.",
		}, []string{"backend"}),
	}
}

// Store decorates an ObjectStore
type Store struct {
	next    simplestore.ObjectStore
	backend string
	metrics *Metrics
}

// New wraps next, labelling its metrics with backend
func New(next simplestore.ObjectStore, backend string, metrics *Metrics) *Store {
	return &Store{next: next, backend: backend, metrics: metrics}
}

func (s *Store) Put(ctx context.Context, key string, reader io.Reader, opts simplestore.PutOptions) (*simplestore.ObjectInfo, error) {
	start := time.Now()
	info, err := s.next.Put(ctx, key, reader, opts)
	s.observe("put", start, err)
	if err == nil {
		s.metrics.bytes.WithLabelValues(s.backend).Add(float64(info.Size))
	}
	return info, err
}

func (s *Store) Get(ctx context.Context, key string) (*simplestore.Object, error) {
	start := time.Now()
	obj, err := s.next.Get(ctx, key)
	s.observe("get", start, err)
	return obj, err
}

func (s *Store) Head(ctx context.Context, key string) (*simplestore.ObjectInfo, error) {
	start := time.Now()
	info, err := s.next.Head(ctx, key)
	s.observe("head", start, err)
	return info, err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.next.Delete(ctx, key)
	s.observe("delete", start, err)
	return err
}

func (s *Store) List(ctx context.Context, opts simplestore.ListOptions) (*simplestore.ListResult, error) {
	start := time.Now()
	result, err := s.next.List(ctx, opts)
	s.observe("list", start, err)
	return result, err
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.metrics.duration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	s.metrics.operations.WithLabelValues(s.backend, op, result(err)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, simplestore.ErrObjectNotFound):
		return "not_found"
	case errors.Is(err, simplestore.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
