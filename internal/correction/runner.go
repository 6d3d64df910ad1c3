package correction

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/transcorrect/pkg/types"
)

// FileJob is one file handed to [RunFiles].
type FileJob struct {
	FileID   string
	Segments []types.TimedSegment
}

// RunFiles corrects several files with o, running up to limit files at once
// (limit <= 0 means no limit). Blocks inside each file stay sequential.
//
// The result maps file IDs to their results, including the partial results
// of files interrupted by cancellation. The error is the first context error
// any file run returned.
func RunFiles(ctx context.Context, o *Orchestrator, jobs []FileJob, limit int) (map[string]*FileResult, error) {
	seen := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		if _, dup := seen[j.FileID]; dup {
			return nil, fmt.Errorf("correction: duplicate file id %q", j.FileID)
		}
		seen[j.FileID] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	var mu sync.Mutex
	results := make(map[string]*FileResult, len(jobs))
	for _, job := range jobs {
		g.Go(func() error {
			res, err := o.CorrectFile(gctx, job.FileID, job.Segments)
			mu.Lock()
			if res != nil {
				results[job.FileID] = res
			}
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	return results, err
}
