package tether

import (
	"context"
	"fmt"
	"io/fs"
	"runtime"
	"sync"

	"github.com/jward/tether/internal/scan"
	"github.com/jward/tether/internal/store"
)

// workItem holds everything an extraction worker needs.
type workItem struct {
	path    string
	lang    string
	content []byte
	hash    string
	batch   *store.BatchedStore

	// existingID is the ID of the previously indexed version, 0 if new.
	existingID int64
}

// IndexFilesParallel indexes files using a three-phase parallel pipeline:
//
//	Phase A (serial):   Read, hash check, prepare work items.
//	Phase B (parallel): Parse and extract requires via worker pool.
//	Phase C (serial):   Commit batches to SQLite.
func (e *Engine) IndexFilesParallel(ctx context.Context, paths []string) error {
	if e.changed == nil {
		e.changed = make(map[int64]bool)
	}

	// ---- Phase A: Serial file preparation ----
	var items []workItem
	for _, p := range paths {
		item, skip, err := e.prepareFile(ctx, p)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", p, err)
		}
		if skip {
			continue
		}
		item.batch = store.NewBatchedStore()
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil
	}

	// ---- Phase B: Parallel extraction ----
	numWorkers := min(runtime.NumCPU(), len(items))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item workItem
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each item writes to its own BatchedStore; parsers are per call.
			for item := range workCh {
				_, err := extractRequires(ctx, item.batch, item)
				resultCh <- result{item: item, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	var errs []error
	for res := range resultCh {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("extract %s: %w", res.item.path, res.err))
			continue
		}
		if err := e.store.CommitBatch(res.item.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", res.item.path, err))
			continue
		}
		for _, f := range res.item.batch.Files {
			e.changed[f.ID] = true
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// prepareFile does Phase A work for a single file: language filter, read,
// hash check. Returns (item, skip, error). skip=true means the file is
// unchanged or unsupported.
func (e *Engine) prepareFile(_ context.Context, p string) (workItem, bool, error) {
	p = e.relPath(p)
	lang, ok := scan.LanguageForFile(p)
	if !ok {
		return workItem{}, true, nil
	}
	if e.languages != nil && !e.languages[lang] {
		return workItem{}, true, nil
	}

	content, err := fs.ReadFile(e.fsys, p)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ComputeFileHash(content)

	existing, err := e.store.FileByPath(p)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	item := workItem{path: p, lang: lang, content: content, hash: hash}
	if existing != nil {
		if existing.Hash == hash {
			return workItem{}, true, nil // unchanged
		}
		item.existingID = existing.ID
	}
	return item, false, nil
}
