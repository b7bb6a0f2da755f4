// Command loadtest builds a synthetic in-memory index and hammers it with
// concurrent queries through the scheduler, reporting latency percentiles,
// rejection counts and degradation counts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/index"
	"github.com/lanternsearch/lantern/internal/scheduler"
	"github.com/lanternsearch/lantern/internal/search"
	"github.com/lanternsearch/lantern/internal/search/cache"
	"github.com/lanternsearch/lantern/internal/settings"
	"github.com/lanternsearch/lantern/pkg/config"
	apperrors "github.com/lanternsearch/lantern/pkg/errors"
	"github.com/lanternsearch/lantern/pkg/logger"
	"github.com/lanternsearch/lantern/pkg/metrics"
	"github.com/lanternsearch/lantern/pkg/redis"
)

var vocabulary = []string{
	"batman", "catwoman", "gotham", "dark", "knight", "returns", "rises",
	"shadow", "night", "city", "crime", "justice", "detective", "story",
	"legend", "masked", "vigilante", "underworld", "harbor", "siege",
}

type stats struct {
	total     atomic.Int64
	rejected  atomic.Int64
	degraded  atomic.Int64
	errs      atomic.Int64
	latencies []time.Duration
	mu        sync.Mutex
}

func (s *stats) record(d time.Duration, res *search.Result, err error) {
	s.total.Add(1)
	switch {
	case errors.Is(err, apperrors.ErrSchedulerFull):
		s.rejected.Add(1)
		return
	case err != nil:
		s.errs.Add(1)
		return
	}
	if res.Degraded {
		s.degraded.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func (s *stats) report(elapsed time.Duration) {
	s.mu.Lock()
	lats := append([]time.Duration(nil), s.latencies...)
	s.mu.Unlock()
	sort.Slice(lats, func(i, j int) bool { return lats[i] < lats[j] })

	pct := func(p float64) time.Duration {
		if len(lats) == 0 {
			return 0
		}
		i := int(p * float64(len(lats)-1))
		return lats[i]
	}
	fmt.Printf("total:    %d (%.0f qps)\n", s.total.Load(), float64(s.total.Load())/elapsed.Seconds())
	fmt.Printf("ok:       %d\n", int64(len(lats)))
	fmt.Printf("rejected: %d\n", s.rejected.Load())
	fmt.Printf("degraded: %d\n", s.degraded.Load())
	fmt.Printf("errors:   %d\n", s.errs.Load())
	fmt.Printf("p50:      %v\n", pct(0.50))
	fmt.Printf("p95:      %v\n", pct(0.95))
	fmt.Printf("p99:      %v\n", pct(0.99))
}

func main() {
	docCount := flag.Int("docs", 50000, "synthetic corpus size")
	concurrency := flag.Int("concurrency", 32, "concurrent query workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	redisAddr := flag.String("redis", "", "redis address for the query cache (empty runs uncached)")
	flag.Parse()

	logger.Setup("warn", "text")
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading defaults: %v\n", err)
		os.Exit(1)
	}
	m := metrics.New()

	s := settings.Default()
	s.PrimaryKey = "id"
	s.FilterableAttributes = []string{"genre", "year"}
	s.SortableAttributes = []string{"year"}

	idx := index.New("loadtest", document.NewMemStore(), s, cfg.Index.MutationQueueSize, m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go idx.Run(ctx)

	fmt.Printf("indexing %d synthetic documents...\n", *docCount)
	rng := rand.New(rand.NewSource(42))
	batch := make([]document.Document, 0, 1000)
	for i := 0; i < *docCount; i++ {
		title := vocabulary[rng.Intn(len(vocabulary))] + " " + vocabulary[rng.Intn(len(vocabulary))]
		doc, err := document.New(map[string]any{
			"id":    fmt.Sprintf("doc-%d", i),
			"title": title,
			"genre": []string{"action", "drama", "noir"}[rng.Intn(3)],
			"year":  1980 + rng.Intn(45),
		}, s.PrimaryKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "building document: %v\n", err)
			os.Exit(1)
		}
		batch = append(batch, doc)
		if len(batch) == cap(batch) {
			if err := idx.AddDocuments(ctx, batch); err != nil {
				fmt.Fprintf(os.Stderr, "indexing: %v\n", err)
				os.Exit(1)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := idx.AddDocuments(ctx, batch); err != nil {
			fmt.Fprintf(os.Stderr, "indexing: %v\n", err)
			os.Exit(1)
		}
	}

	sched, err := scheduler.New(cfg.Scheduler, logger.WithComponent("scheduler"), m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating scheduler: %v\n", err)
		os.Exit(1)
	}
	defer sched.Close()
	exec := search.NewExecutor(cfg.Search, cfg.Index, logger.WithComponent("search"), m)

	var qc *cache.QueryCache
	if *redisAddr != "" {
		rcfg := cfg.Redis
		rcfg.Addr = *redisAddr
		client, err := redis.NewClient(rcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connecting to redis: %v\n", err)
			os.Exit(1)
		}
		defer client.Close()
		qc = cache.New(client, rcfg.CacheTTL, rcfg.OpTimeout, logger.WithComponent("cache"), m)
		fmt.Printf("query cache enabled via %s\n", *redisAddr)
	}

	fmt.Printf("running %d workers for %v...\n", *concurrency, *duration)
	st := &stats{latencies: make([]time.Duration, 0, 1<<18)}
	deadline := time.Now().Add(*duration)
	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				q := &search.Query{Q: vocabulary[r.Intn(len(vocabulary))]}
				if r.Intn(4) == 0 {
					q.Filter = "year >= 2000"
				}
				start := time.Now()
				var (
					res     *search.Result
					execErr error
				)
				err := sched.Run(ctx, func() {
					snap := idx.Snapshot()
					if qc != nil {
						res, execErr = qc.Execute(ctx, idx.Name, snap.Generation, q, func() (*search.Result, error) {
							return exec.Search(ctx, idx.Name, snap, q)
						})
					} else {
						res, execErr = exec.Search(ctx, idx.Name, snap, q)
					}
				})
				if err == nil {
					err = execErr
				}
				st.record(time.Since(start), res, err)
			}
		}(int64(w))
	}
	wg.Wait()
	st.report(*duration)
}
