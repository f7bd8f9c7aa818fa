package importer

import (
	"context"
	"fmt"
)

// BulkInserter is the persistence boundary: one call inserts a slice of
// records into the target table, atomically succeeding or failing as a
// whole. Failures are opaque; the persister narrows them down by bisection.
type BulkInserter interface {
	InsertMany(ctx context.Context, table string, records []Record) error
}

// DefaultBatchSize is the batch size used when the caller passes 0.
const DefaultBatchSize = 500

// PersistBatches inserts records in fixed-size batches, in submission order.
//
// A rejected batch is split at its midpoint and each half retried
// independently, via an explicit worklist rather than recursion so a
// pathological all-fail input cannot grow the stack. The halves are retried
// synchronously and in order, which keeps the attribution of failures to
// records deterministic. A failing single record is dropped with an error
// pointing at its source sheet row.
//
// For N submitted records of which exactly K are malformed, exactly N-K are
// persisted and exactly K errors are returned, regardless of batch size or
// where the malformed records sit.
func PersistBatches(ctx context.Context, ins BulkInserter, table string, records []Record, batchSize int) (int, []ValidationError, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	persisted := 0
	var errs []ValidationError

	for start := 0; start < len(records); start += batchSize {
		if err := ctx.Err(); err != nil {
			return persisted, errs, err
		}

		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}

		n, batchErrs := persistBatch(ctx, ins, table, records, start, end)
		persisted += n
		errs = append(errs, batchErrs...)
	}

	return persisted, errs, nil
}

type batchRange struct{ lo, hi int }

func persistBatch(ctx context.Context, ins BulkInserter, table string, records []Record, lo, hi int) (int, []ValidationError) {
	persisted := 0
	var errs []ValidationError

	// LIFO worklist; the second half is pushed first so the first half is
	// always attempted first, keeping insertion in submission order.
	work := []batchRange{{lo, hi}}
	for len(work) > 0 {
		r := work[len(work)-1]
		work = work[:len(work)-1]

		err := ins.InsertMany(ctx, table, records[r.lo:r.hi])
		if err == nil {
			persisted += r.hi - r.lo
			continue
		}

		if r.hi-r.lo == 1 {
			errs = append(errs, ValidationError{
				Row:    records[r.lo].RowIndex,
				Reason: fmt.Sprintf("insert into %s failed: %v", table, err),
			})
			continue
		}

		mid := r.lo + (r.hi-r.lo)/2
		work = append(work, batchRange{mid, r.hi}, batchRange{r.lo, mid})
	}

	return persisted, errs
}
