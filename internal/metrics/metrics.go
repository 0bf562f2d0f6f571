// Package metrics counts and times store calls made on behalf of ordered
// lists, using Prometheus collectors registered on a caller-supplied
// registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/store"
)

const namespace = "listorder"

// Metrics holds the collectors for store traffic.
type Metrics struct {
	StoreOpsTotal   *prometheus.CounterVec
	StoreOpDuration *prometheus.HistogramVec
	ShiftedTotal    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		StoreOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Store calls by collection, operation and status (ok, not_found, error).",
			},
			[]string{"collection", "op", "status"},
		),
		StoreOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Store call latency in seconds.",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"collection", "op"},
		),
		ShiftedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shifted_documents_total",
				Help:      "Documents whose position was moved by a bulk increment or decrement.",
			},
			[]string{"collection", "direction"},
		),
	}
	for _, c := range []prometheus.Collector{m.StoreOpsTotal, m.StoreOpDuration, m.ShiftedTotal} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(collection, op string, start time.Time, err error) {
	m.StoreOpDuration.WithLabelValues(collection, op).Observe(time.Since(start).Seconds())
	m.StoreOpsTotal.WithLabelValues(collection, op, status(err)).Inc()
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Wrap returns coll instrumented with m. The wrapper keeps index support
// when coll has it.
func (m *Metrics) Wrap(coll store.DocumentCollection) store.DocumentCollection {
	inst := &instrumented{next: coll, m: m}
	if idx, ok := coll.(store.Indexer); ok {
		return &indexed{instrumented: inst, idx: idx}
	}
	return inst
}

type instrumented struct {
	next store.DocumentCollection
	m    *Metrics
}

var _ store.DocumentCollection = (*instrumented)(nil)

func (c *instrumented) Name() string { return c.next.Name() }

func (c *instrumented) FindOne(ctx context.Context, q query.Query) (*ir.Document, error) {
	start := time.Now()
	doc, err := c.next.FindOne(ctx, q)
	c.m.observe(c.Name(), "find_one", start, err)
	return doc, err
}

func (c *instrumented) SetField(ctx context.Context, id, field string, v ir.Value) error {
	start := time.Now()
	err := c.next.SetField(ctx, id, field, v)
	c.m.observe(c.Name(), "set_field", start, err)
	return err
}

func (c *instrumented) IncrementField(ctx context.Context, filter query.Predicate, field string) (int64, error) {
	start := time.Now()
	n, err := c.next.IncrementField(ctx, filter, field)
	c.m.observe(c.Name(), "increment_field", start, err)
	c.m.ShiftedTotal.WithLabelValues(c.Name(), "down").Add(float64(n))
	return n, err
}

func (c *instrumented) DecrementField(ctx context.Context, filter query.Predicate, field string) (int64, error) {
	start := time.Now()
	n, err := c.next.DecrementField(ctx, filter, field)
	c.m.observe(c.Name(), "decrement_field", start, err)
	c.m.ShiftedTotal.WithLabelValues(c.Name(), "up").Add(float64(n))
	return n, err
}

func (c *instrumented) Insert(ctx context.Context, doc *ir.Document) error {
	start := time.Now()
	err := c.next.Insert(ctx, doc)
	c.m.observe(c.Name(), "insert", start, err)
	return err
}

func (c *instrumented) Get(ctx context.Context, id string) (*ir.Document, error) {
	start := time.Now()
	doc, err := c.next.Get(ctx, id)
	c.m.observe(c.Name(), "get", start, err)
	return doc, err
}

func (c *instrumented) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := c.next.Delete(ctx, id)
	c.m.observe(c.Name(), "delete", start, err)
	return err
}

func (c *instrumented) Find(ctx context.Context, q query.Query) ([]*ir.Document, error) {
	start := time.Now()
	docs, err := c.next.Find(ctx, q)
	c.m.observe(c.Name(), "find", start, err)
	return docs, err
}

type indexed struct {
	*instrumented
	idx store.Indexer
}

func (c *indexed) EnsureIndex(ctx context.Context, field string) error {
	start := time.Now()
	err := c.idx.EnsureIndex(ctx, field)
	c.m.observe(c.Name(), "ensure_index", start, err)
	return err
}

// OpCount is one row of a Summary.
type OpCount struct {
	Collection string  `json:"collection"`
	Op         string  `json:"op"`
	Status     string  `json:"status"`
	Count      float64 `json:"count"`
}

// Summary reads the store operation counters back from g, sorted by
// collection, operation and status.
func Summary(g prometheus.Gatherer) ([]OpCount, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	var out []OpCount
	for _, mf := range families {
		if mf.GetName() != namespace+"_store_operations_total" || mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, metric := range mf.GetMetric() {
			row := OpCount{Count: metric.GetCounter().GetValue()}
			for _, lp := range metric.GetLabel() {
				switch lp.GetName() {
				case "collection":
					row.Collection = lp.GetValue()
				case "op":
					row.Op = lp.GetValue()
				case "status":
					row.Status = lp.GetValue()
				}
			}
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Collection != b.Collection {
			return a.Collection < b.Collection
		}
		if a.Op != b.Op {
			return a.Op < b.Op
		}
		return a.Status < b.Status
	})
	return out, nil
}
