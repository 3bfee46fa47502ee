package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	mapset "github.com/deckarep/golang-set"
	"github.com/urfave/cli"

	"github.com/ledgerwatch/turbo-facet/common/dbutils"
	"github.com/ledgerwatch/turbo-facet/facet"
	"github.com/ledgerwatch/turbo-facet/kv"
	"github.com/ledgerwatch/turbo-facet/kv/memdb"
	"github.com/ledgerwatch/turbo-facet/log"
)

// main wires a single extraction pass end to end against an in-memory
// store, the demo-mode counterpart of cmd/state/generate's
// RegenerateIndex: read a batch of documents, extract their facet
// values, and report what the Balanced Cache and per-document sender
// received.
func main() {
	app := cli.NewApp()
	app.Name = "facetextract"
	app.Usage = "run the faceted-value extraction core against a batch of documents"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "documents", Usage: "path to a JSON array of documents to insert"},
		cli.StringSliceFlag{Name: "attr", Usage: "attribute path to extract (repeatable)"},
		cli.IntFlag{Name: "workers", Value: runtime.GOMAXPROCS(0), Usage: "parallel extraction workers"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Error("facetextract failed", "error", err)
		os.Exit(1)
	}
}

// txSender persists per-document facet records straight into the
// FieldIdDocidFacetValue bucket of the run's transaction - a minimal
// Sender for demo purposes (spec.md §6).
type txSender struct {
	tx kv.RwTx
}

func (s *txSender) WriteFacetString(key, rawValue []byte) error {
	return s.tx.Put(dbutils.FieldIdDocidFacetValue, key, rawValue)
}

func (s *txSender) DeleteFacetString(key []byte) error {
	return s.tx.Delete(dbutils.FieldIdDocidFacetValue, key)
}

func (s *txSender) WriteFacetF64(key []byte) error {
	return s.tx.Put(dbutils.FieldIdDocidFacetValue, key, nil)
}

func (s *txSender) DeleteFacetF64(key []byte) error {
	return s.tx.Delete(dbutils.FieldIdDocidFacetValue, key)
}

func run(c *cli.Context) error {
	docsPath := c.String("documents")
	if docsPath == "" {
		return cli.NewExitError("missing required --documents", 1)
	}

	raw, err := os.ReadFile(docsPath)
	if err != nil {
		return fmt.Errorf("read documents: %w", err)
	}
	var docs []facet.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return fmt.Errorf("parse documents: %w", err)
	}

	attrs := mapset.NewSet()
	for _, a := range c.StringSlice("attr") {
		attrs.Add(a)
	}
	if attrs.Cardinality() == 0 {
		return cli.NewExitError("at least one --attr is required", 1)
	}

	ctx := context.Background()
	db := memdb.New()
	defer db.Close()

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	fieldIDMap, err := facet.NewSharedFieldIdMap(tx)
	if err != nil {
		return fmt.Errorf("field id map: %w", err)
	}
	sender := &txSender{tx: tx}

	changes := make([]facet.DocumentChange, 0, len(docs))
	for i, doc := range docs {
		changes = append(changes, facet.NewInsertion(facet.DocumentId(i), fmt.Sprintf("doc-%d", i), doc))
	}

	params := facet.DefaultExtractionParams(attrs)
	params.Workers = c.Int("workers")
	if params.Workers < 1 {
		params.Workers = 1
	}

	caches, err := facet.Drive(ctx, nil, changes, fieldIDMap, sender, params, func(done, total int, worker string) {
		log.Info("progress", "worker", worker, "done", done, "total", total)
	})
	if err != nil {
		return fmt.Errorf("drive: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for i, cache := range caches {
		fmt.Printf("worker %d: %d buckets, %d spill runs\n", i, cache.NumBuckets(), cache.RunCount())
		cache.Close()
	}
	fmt.Printf("documents: %d, fields: %d\n", len(docs), fieldIDMap.Len())
	return nil
}
