// Command lanternfeed publishes index mutations to the mutation topic.
//
// It reads documents as JSON Lines from a file or stdin and publishes them
// in batches, keyed by index name so one index's mutations stay on one
// partition and apply in order. Deletions and settings updates go through
// the same topic.
//
// Usage:
//
//	lanternfeed -index movies -file movies.ndjson
//	lanternfeed -index movies -action deleteDocuments -ids 12,94
//	lanternfeed -index movies -action updateSettings -settings settings.json
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lanternsearch/lantern/internal/ingest"
	"github.com/lanternsearch/lantern/pkg/config"
	"github.com/lanternsearch/lantern/pkg/kafka"
	"github.com/lanternsearch/lantern/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	indexName := flag.String("index", "", "target index name")
	action := flag.String("action", ingest.ActionAddDocuments, "mutation action")
	file := flag.String("file", "-", "JSON Lines document file, - for stdin")
	ids := flag.String("ids", "", "comma-separated document ids for deleteDocuments")
	settingsPath := flag.String("settings", "", "settings JSON file for updateSettings")
	batchSize := flag.Int("batch", 1000, "documents per mutation event")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if *indexName == "" {
		slog.Error("-index is required")
		os.Exit(1)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexMutations)
	defer producer.Close()

	ctx := context.Background()
	switch *action {
	case ingest.ActionAddDocuments:
		err = feedDocuments(ctx, producer, *indexName, *file, *batchSize)
	case ingest.ActionDeleteDocuments:
		err = publishDelete(ctx, producer, *indexName, *ids)
	case ingest.ActionUpdateSettings:
		err = publishSettings(ctx, producer, *indexName, *settingsPath)
	default:
		slog.Error("unknown action", "action", *action)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("feed failed", "error", err)
		os.Exit(1)
	}
}

func feedDocuments(ctx context.Context, producer *kafka.Producer, indexName, file string, batchSize int) error {
	var in io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("opening document file: %w", err)
		}
		defer f.Close()
		in = f
	}

	published := 0
	batch := make([]map[string]any, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := producer.Publish(ctx, kafka.Event{
			Key: indexName,
			Value: ingest.Mutation{
				Index:     indexName,
				Action:    ingest.ActionAddDocuments,
				Documents: batch,
			},
		})
		if err != nil {
			return err
		}
		published += len(batch)
		batch = batch[:0]
		return nil
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, doc)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading documents: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}
	slog.Info("documents published", "index", indexName, "count", published)
	return nil
}

func publishDelete(ctx context.Context, producer *kafka.Producer, indexName, ids string) error {
	var list []string
	for _, id := range strings.Split(ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			list = append(list, id)
		}
	}
	if len(list) == 0 {
		return fmt.Errorf("deleteDocuments needs -ids")
	}
	err := producer.Publish(ctx, kafka.Event{
		Key:   indexName,
		Value: ingest.Mutation{Index: indexName, Action: ingest.ActionDeleteDocuments, IDs: list},
	})
	if err != nil {
		return err
	}
	slog.Info("deletion published", "index", indexName, "count", len(list))
	return nil
}

func publishSettings(ctx context.Context, producer *kafka.Producer, indexName, path string) error {
	if path == "" {
		return fmt.Errorf("updateSettings needs -settings")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading settings file: %w", err)
	}
	var payload ingest.SettingsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parsing settings file: %w", err)
	}
	if _, err := payload.ToSettings(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	err = producer.Publish(ctx, kafka.Event{
		Key:   indexName,
		Value: ingest.Mutation{Index: indexName, Action: ingest.ActionUpdateSettings, Settings: &payload},
	})
	if err != nil {
		return err
	}
	slog.Info("settings update published", "index", indexName)
	return nil
}
