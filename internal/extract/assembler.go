package extract

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ironsheep/boardscan/internal/catalog"
	"github.com/ironsheep/boardscan/internal/imaging"
)

// Assembly is the outcome of reading every region of a catalog.
type Assembly struct {
	Record Record

	// Degenerate lists regions that collapsed to an empty box, in catalog
	// order. Their fields are empty.
	Degenerate []string
}

// Assembler runs an Extractor over a catalog.
type Assembler struct {
	extractor *Extractor
	catalog   *catalog.Catalog
	workers   int
}

// NewAssembler returns an Assembler. With workers > 1 regions are read in
// parallel; the result is the same as a sequential run.
func NewAssembler(extractor *Extractor, cat *catalog.Catalog, workers int) *Assembler {
	if workers < 1 {
		workers = 1
	}
	return &Assembler{extractor: extractor, catalog: cat, workers: workers}
}

// Catalog returns the catalog being read.
func (a *Assembler) Catalog() *catalog.Catalog { return a.catalog }

type regionResult struct {
	text       string
	degenerate bool
	err        error
}

// Assemble reads every region of the catalog from img.
//
// Fields appear in catalog order. The first engine error aborts the record;
// when regions are read in parallel the error reported is the one from the
// region earliest in the catalog.
func (a *Assembler) Assemble(ctx context.Context, img *imaging.DecodedImage) (*Assembly, error) {
	regions := a.catalog.Regions()
	results := make([]regionResult, len(regions))

	if a.workers == 1 || len(regions) < 2 {
		for i, r := range regions {
			results[i] = a.read(ctx, img, r)
			if results[i].err != nil {
				return nil, results[i].err
			}
		}
	} else {
		a.readParallel(ctx, img, regions, results)
	}

	out := &Assembly{Record: make(Record, len(regions))}
	for i, r := range regions {
		if err := results[i].err; err != nil {
			return nil, err
		}
		out.Record[i] = Field{Name: r.Name, Value: results[i].text}
		if results[i].degenerate {
			out.Degenerate = append(out.Degenerate, r.Name)
		}
	}
	return out, nil
}

func (a *Assembler) read(ctx context.Context, img *imaging.DecodedImage, r catalog.Region) regionResult {
	text, err := a.extractor.extract(ctx, img, r)
	if errors.Is(err, ErrRegionDegenerate) {
		return regionResult{degenerate: true}
	}
	return regionResult{text: text, err: err}
}

// readParallel fills results using a fixed pool of workers. Once a region
// fails, regions later in the catalog are skipped; earlier ones still run
// so that the reported error is the earliest one.
func (a *Assembler) readParallel(ctx context.Context, img *imaging.DecodedImage, regions []catalog.Region, results []regionResult) {
	jobs := make(chan int)
	var firstFailed atomic.Int64
	firstFailed.Store(int64(len(regions)))
	var wg sync.WaitGroup

	workers := min(a.workers, len(regions))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if int64(i) > firstFailed.Load() {
					continue
				}
				results[i] = a.read(ctx, img, regions[i])
				if results[i].err != nil {
					lowerFailed(&firstFailed, int64(i))
				}
			}
		}()
	}

	for i := range regions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func lowerFailed(v *atomic.Int64, i int64) {
	for {
		cur := v.Load()
		if i >= cur || v.CompareAndSwap(cur, i) {
			return
		}
	}
}
