package service

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

type BatchResult struct {
	Index  int
	Result IngestResult
	Err    error
}

// IngestBatch ingests a batch of samples.  Samples are grouped by employee;
// groups run in parallel and each group is applied in capture-time order.
// Results come back in input order.  One failing sample never stops the
// rest.
func (in *LocationIngestor) IngestBatch(ctx context.Context, raws []RawSample) []BatchResult {
	results := make([]BatchResult, len(raws))

	groups := make(map[string][]int)
	var keys []string
	for i, r := range raws {
		k := strings.TrimSpace(r.EmployeeID)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}

	var g errgroup.Group
	g.SetLimit(in.opts.BatchParallelism)
	for _, k := range keys {
		idx := groups[k]
		sort.SliceStable(idx, func(a, b int) bool {
			return raws[idx[a]].CapturedAt.Before(raws[idx[b]].CapturedAt)
		})
		g.Go(func() error {
			for _, i := range idx {
				res, err := in.Ingest(ctx, raws[i])
				results[i] = BatchResult{Index: i, Result: res, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
