// Package loader reads concept records from file-based sources. It owns the
// infrastructure side of the two-stage boundary: structural decoding plus
// format validation happen here and in ConceptRecord.ValidateFormat, while
// domain invariants stay with the Concept entity.
package loader

import (
	"context"
	"fmt"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// conceptsFile is the accepted top-level shape of a source file: either a
// bare array of records or an object with a "concepts" key.
type conceptsFile struct {
	Domain   string                  `json:"domain,omitempty"`
	Concepts []schemas.ConceptRecord `json:"concepts"`
}

// FileLoader implements the ConceptLoader port over local JSON files.
type FileLoader struct {
	log *zap.Logger
	// loadConcurrency bounds parallel file reads in LoadAll.
	loadConcurrency int
}

var _ schemas.MultiSourceLoader = (*FileLoader)(nil)

// NewFileLoader creates a loader. Concurrency below 1 falls back to 4.
func NewFileLoader(logger *zap.Logger, concurrency int) *FileLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 4
	}
	return &FileLoader{
		log:             logger.Named("FileLoader"),
		loadConcurrency: concurrency,
	}
}

// Load parses one source file into raw records. Records are returned as
// parsed, including ones that will later fail format validation; the caller
// decides whether a bad record is a warning or a fatal condition.
func (l *FileLoader) Load(ctx context.Context, source string) ([]schemas.ConceptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read concept source '%s': %w", source, err)
	}

	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse concept source '%s': %w", source, err)
	}

	l.log.Debug("Loaded concept source",
		zap.String("source", source),
		zap.Int("records", len(records)))
	return records, nil
}

// LoadAll reads several sources concurrently and concatenates their records
// in the order the sources were given. One unreadable source fails the whole
// call; partial tolerance belongs to the integration pipeline, not here.
func (l *FileLoader) LoadAll(ctx context.Context, sources []string) ([]schemas.ConceptRecord, error) {
	results := make([][]schemas.ConceptRecord, len(sources))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.loadConcurrency)
	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			records, err := l.Load(gctx, source)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = records
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []schemas.ConceptRecord
	for _, records := range results {
		all = append(all, records...)
	}
	return all, nil
}

// decodeRecords accepts either a top-level array or a {"concepts": [...]}
// wrapper.
func decodeRecords(data []byte) ([]schemas.ConceptRecord, error) {
	var records []schemas.ConceptRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var file conceptsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.Concepts == nil {
		return nil, fmt.Errorf("source contains neither a record array nor a 'concepts' key")
	}
	return file.Concepts, nil
}
