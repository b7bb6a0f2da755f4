package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/settings"
	"github.com/lanternsearch/lantern/pkg/metrics"
)

const rebuildBatchSize = 512

type taskKind int

const (
	taskAddDocuments taskKind = iota
	taskDeleteDocuments
	taskUpdateSettings
)

func (k taskKind) String() string {
	switch k {
	case taskAddDocuments:
		return "add"
	case taskDeleteDocuments:
		return "delete"
	default:
		return "settings"
	}
}

type task struct {
	kind     taskKind
	docs     []document.Document
	ids      []string
	settings settings.Settings
	done     chan error
}

// Index owns one named document collection: its durable store, its mutation
// stream, and the currently published snapshot. All writes are serialized
// through a single goroutine in FIFO submission order; reads acquire the
// snapshot pointer once and proceed without locks.
type Index struct {
	Name string

	store   document.Store
	snap    atomic.Pointer[Snapshot]
	tasks   chan task
	stopped chan struct{}
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Index over the given store with initial settings. Run must
// be called before mutations are accepted.
func New(name string, store document.Store, s settings.Settings, queueSize int, m *metrics.Metrics) *Index {
	if queueSize < 1 {
		queueSize = 1
	}
	idx := &Index{
		Name:    name,
		store:   store,
		tasks:   make(chan task, queueSize),
		stopped: make(chan struct{}),
		logger:  slog.Default().With("component", "index", "index", name),
		metrics: m,
	}
	idx.snap.Store(emptySnapshot(s))
	return idx
}

// Snapshot returns the currently published snapshot. The returned value is
// immutable and remains valid for the whole query even while mutations
// publish newer generations.
func (idx *Index) Snapshot() *Snapshot {
	return idx.snap.Load()
}

// Run processes the mutation stream until ctx is cancelled. A mutation that
// has started is applied to completion; cancellation only stops admission
// of further tasks.
func (idx *Index) Run(ctx context.Context) {
	defer close(idx.stopped)
	builder := &builder{cur: idx.snap.Load()}
	for {
		select {
		case <-ctx.Done():
			idx.logger.Info("mutation stream stopping", "reason", ctx.Err())
			return
		case t := <-idx.tasks:
			idx.observeQueueDepth()
			err := idx.apply(ctx, builder, t)
			if t.done != nil {
				t.done <- err
			}
		}
	}
}

func (idx *Index) apply(ctx context.Context, b *builder, t task) error {
	switch t.kind {
	case taskAddDocuments:
		snap := b.AddDocuments(t.docs)
		idx.publish(snap)
		idx.countMutation("add")
		idx.logger.Debug("documents indexed",
			"count", len(t.docs),
			"generation", snap.Generation,
			"total_docs", snap.DocCount(),
		)
		return nil
	case taskDeleteDocuments:
		snap := b.DeleteDocuments(t.ids)
		idx.publish(snap)
		idx.countMutation("delete")
		idx.logger.Debug("documents deleted",
			"count", len(t.ids),
			"generation", snap.Generation,
		)
		return nil
	case taskUpdateSettings:
		old := b.Snapshot().Settings
		if !old.RequiresRebuild(t.settings) {
			snap := b.UpdateSettings(t.settings)
			idx.publish(snap)
			idx.countMutation("settings")
			return nil
		}
		return idx.rebuild(ctx, b, t.settings)
	default:
		return fmt.Errorf("unknown mutation kind %d", t.kind)
	}
}

// rebuild reindexes the whole store under new settings. The old snapshot
// stays published and queryable until the rebuilt one is swapped in whole,
// so readers never observe a half-migrated index.
func (idx *Index) rebuild(ctx context.Context, b *builder, s settings.Settings) error {
	idx.logger.Info("settings change requires rebuild, reindexing")
	fresh := newBuilder(s)
	batch := make([]document.Document, 0, rebuildBatchSize)
	err := idx.store.ForEach(ctx, func(d document.Document) error {
		batch = append(batch, d)
		if len(batch) == rebuildBatchSize {
			fresh.AddDocuments(batch)
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuilding index %s: %w", idx.Name, err)
	}
	if len(batch) > 0 {
		fresh.AddDocuments(batch)
	}
	// Carry the generation counter forward so cache keys never collide
	// across the rebuild boundary.
	snap := fresh.Snapshot()
	snap.Generation = b.Snapshot().Generation + 1
	*b = *fresh
	idx.publish(snap)
	idx.countMutation("settings")
	if idx.metrics != nil {
		idx.metrics.IndexRebuildsTotal.WithLabelValues(idx.Name).Inc()
	}
	idx.logger.Info("rebuild complete",
		"generation", snap.Generation,
		"total_docs", snap.DocCount(),
	)
	return nil
}

func (idx *Index) publish(snap *Snapshot) {
	idx.snap.Store(snap)
	if idx.metrics != nil {
		idx.metrics.SnapshotGeneration.WithLabelValues(idx.Name).Set(float64(snap.Generation))
		idx.metrics.IndexedDocuments.WithLabelValues(idx.Name).Set(float64(snap.DocCount()))
	}
}

func (idx *Index) countMutation(kind string) {
	if idx.metrics != nil {
		idx.metrics.MutationsTotal.WithLabelValues(idx.Name, kind).Inc()
	}
}

func (idx *Index) observeQueueDepth() {
	if idx.metrics != nil {
		idx.metrics.MutationQueueDepth.WithLabelValues(idx.Name).Set(float64(len(idx.tasks)))
	}
}

// submit enqueues a task and waits for it to be applied.
func (idx *Index) submit(ctx context.Context, t task) error {
	t.done = make(chan error, 1)
	select {
	case idx.tasks <- t:
	case <-ctx.Done():
		return fmt.Errorf("submitting mutation to index %s: %w", idx.Name, ctx.Err())
	case <-idx.stopped:
		return fmt.Errorf("index %s mutation stream stopped", idx.Name)
	}
	idx.observeQueueDepth()
	select {
	case err := <-t.done:
		return err
	case <-idx.stopped:
		return fmt.Errorf("index %s mutation stream stopped", idx.Name)
	}
}

// AddDocuments writes docs to the document store, then applies them to the
// index in submission order. Documents reusing an existing primary key
// replace the prior version in full.
func (idx *Index) AddDocuments(ctx context.Context, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := idx.store.Put(ctx, docs); err != nil {
		return fmt.Errorf("storing documents: %w", err)
	}
	return idx.submit(ctx, task{kind: taskAddDocuments, docs: docs})
}

// DeleteDocuments removes documents by primary key from the store and the
// index.
func (idx *Index) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := idx.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	return idx.submit(ctx, task{kind: taskDeleteDocuments, ids: ids})
}

// UpdateSettings applies new settings, rebuilding the index first when the
// change affects tokenization or filtering.
func (idx *Index) UpdateSettings(ctx context.Context, s settings.Settings) error {
	return idx.submit(ctx, task{kind: taskUpdateSettings, settings: s})
}

// Store exposes the document store for hit materialisation.
func (idx *Index) Store() document.Store {
	return idx.store
}
