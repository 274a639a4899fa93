package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/data/catalog"
	types "github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/domain"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

// catalogfix audits the catalog, annotation and tile-directory trio and,
// with -repair, restores the invariants the server expects: every catalog
// row has a tile descriptor and an annotation key, and no annotation list
// outlives its row.
func main() {
	dataDir := flag.String("data", "./data", "data directory holding images.json, annotations.json and tiles/")
	repair := flag.Bool("repair", false, "write repairs instead of only reporting")
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := catalog.NewFileStore(*dataDir, 5*time.Second, log)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}

	rows, err := store.ReadCatalog()
	if err != nil {
		log.Error("read catalog", "error", err)
		os.Exit(1)
	}
	ann, err := store.ReadAnnotations()
	if err != nil {
		log.Error("read annotations", "error", err)
		os.Exit(1)
	}

	tilesDir := filepath.Join(*dataDir, "tiles")
	onDisk := map[string]bool{}
	if entries, err := os.ReadDir(tilesDir); err == nil {
		for _, e := range entries {
			if !e.IsDir() || !types.ValidImageID(e.Name()) {
				continue
			}
			if _, err := os.Stat(filepath.Join(tilesDir, e.Name(), "image.dzi")); err == nil {
				onDisk[e.Name()] = true
			}
		}
	}

	var (
		keptRows     []types.ImageRecord
		danglingRows []string
		missingKeys  []string
	)
	inCatalog := map[string]bool{}
	for _, r := range rows {
		inCatalog[r.ID] = true
		if !onDisk[r.ID] {
			danglingRows = append(danglingRows, r.ID)
			continue
		}
		keptRows = append(keptRows, r)
		if _, ok := ann[r.ID]; !ok {
			missingKeys = append(missingKeys, r.ID)
		}
	}

	var orphanKeys []string
	for id := range ann {
		if !inCatalog[id] {
			orphanKeys = append(orphanKeys, id)
		}
	}

	var unlisted []string
	for id := range onDisk {
		if !inCatalog[id] {
			unlisted = append(unlisted, id)
		}
	}

	for _, id := range danglingRows {
		log.Warn("catalog row without tile descriptor", "id", id)
	}
	for _, id := range missingKeys {
		log.Warn("catalog row without annotation key", "id", id)
	}
	for _, id := range orphanKeys {
		log.Warn("annotation list without catalog row", "id", id)
	}
	for _, id := range unlisted {
		log.Info("tile directory without catalog row (listed under raw id)", "id", id)
	}

	broken := len(danglingRows) + len(missingKeys) + len(orphanKeys)
	if broken == 0 {
		log.Info("catalog consistent", "rows", len(rows), "pyramids", len(onDisk))
		return
	}
	if !*repair {
		log.Error("inconsistencies found; re-run with -repair to fix", "count", broken)
		os.Exit(1)
	}

	ctx := context.Background()
	fixed := map[string][]types.AnnotationRecord{}
	for _, r := range keptRows {
		if list, ok := ann[r.ID]; ok {
			fixed[r.ID] = list
		} else {
			fixed[r.ID] = []types.AnnotationRecord{}
		}
	}
	if err := store.WriteCatalog(ctx, keptRows); err != nil {
		log.Error("write repaired catalog", "error", err)
		os.Exit(1)
	}
	if err := store.WriteAnnotations(ctx, fixed); err != nil {
		log.Error("write repaired annotations", "error", err)
		os.Exit(1)
	}
	log.Info("repaired",
		"dropped_rows", len(danglingRows),
		"seeded_keys", len(missingKeys),
		"dropped_annotation_lists", len(orphanKeys),
	)
}
