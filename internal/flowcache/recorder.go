// internal/flowcache/recorder.go
package flowcache

import (
	"context"

	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// Recorder persists the solved prefixes of a finished run.
type Recorder struct {
	store *Store
	log   *zap.Logger
}

func NewRecorder(store *Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, log: logger.Named("recorder")}
}

// Record saves one fragment per successful consecutive prefix of length
// at least two. A prefix ends at its last result's post-action URL; steps
// covered by a replayed fragment are skipped rather than re-recorded, so
// a fully-shortcut run records nothing new.
func (r *Recorder) Record(ctx context.Context, startURL string, results []schemas.ActionResult) error {
	site := SiteOf(startURL)
	if site == "" || r.store == nil {
		return nil
	}

	var steps []schemas.FragmentStep
	for _, res := range results {
		if !res.Success {
			break
		}
		if res.Skipped > 0 || res.Step.Action == schemas.ActionWait {
			// Replayed chains and waits are not worth re-learning.
			if res.Step.Action == schemas.ActionWait {
				continue
			}
			break
		}
		steps = append(steps, schemas.FragmentStep{
			Action: res.Step.Action,
			Target: res.Step.Target,
			Value:  res.Step.Value,
		})
		if len(steps) < 2 {
			continue
		}
		frag := schemas.FlowFragment{
			Site:     site,
			StartURL: startURL,
			EndURL:   res.After.URL,
			Steps:    append([]schemas.FragmentStep(nil), steps...),
		}
		if err := r.store.SaveOrUpdate(ctx, frag); err != nil {
			return err
		}
	}
	r.log.Debug("Run prefixes recorded.", zap.String("site", site), zap.Int("longest", len(steps)))
	return nil
}
