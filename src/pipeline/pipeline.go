// Package pipeline executes one run: it gates an event through the trigger
// evaluator and runs the selected jobs concurrently without fail-fast.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sofmeright/qualitygate/src/config"
	"github.com/sofmeright/qualitygate/src/job"
	"github.com/sofmeright/qualitygate/src/trigger"
)

// Run is one pipeline run.
type Run struct {
	ID       uuid.UUID
	Event    trigger.Event
	Decision trigger.Decision
	Results  []*job.Result // in decision order
	Started  time.Time
	Finished time.Time
}

// Triggered reports whether the event matched and jobs were instantiated.
func (r *Run) Triggered() bool { return r.Decision.Run && len(r.Results) > 0 }

// Succeeded reports whether every job succeeded. A run that was not
// triggered counts as successful.
func (r *Run) Succeeded() bool {
	for _, res := range r.Results {
		if res == nil || res.Status != job.StatusSuccess {
			return false
		}
	}
	return true
}

// Failed returns the failed job results.
func (r *Run) Failed() []*job.Result {
	var out []*job.Result
	for _, res := range r.Results {
		if res != nil && res.Status == job.StatusFailure {
			out = append(out, res)
		}
	}
	return out
}

// Duration returns the wall time of the run.
func (r *Run) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Observer is notified of job transitions. Calls for different jobs may be
// concurrent.
type Observer interface {
	JobStarted(ctx context.Context, run *Run, def job.Definition)
	JobFinished(ctx context.Context, run *Run, res *job.Result)
}

// DepsFunc builds the collaborators for one job. It is called once per job
// so no mutable state is shared between siblings.
type DepsFunc func(def job.Definition) job.Deps

// Pipeline wires the evaluator to the job executor.
type Pipeline struct {
	Evaluator   *trigger.Evaluator
	Definitions []job.Definition
	Deps        DepsFunc
	Parallelism int // 0 runs every job at once
	Observers   []Observer
	Log         *logrus.Entry
}

// New returns a pipeline whose evaluator instantiates every definition.
func New(triggers config.TriggerConfig, defs []job.Definition, deps DepsFunc) *Pipeline {
	return &Pipeline{
		Evaluator:   trigger.NewEvaluator(triggers, job.Names(defs)),
		Definitions: defs,
		Deps:        deps,
	}
}

// Execute evaluates ev and, on a match, runs the selected jobs to
// completion. A failing job never cancels its siblings. The returned error
// covers configuration problems only; job failures are in the results.
func (p *Pipeline) Execute(ctx context.Context, ev trigger.Event) (*Run, error) {
	log := p.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	run := &Run{ID: uuid.New(), Event: ev, Started: time.Now()}
	log = log.WithField("run", run.ID.String()[:8])

	run.Decision = p.Evaluator.Evaluate(ev)
	if !run.Decision.Run {
		log.Infof("not triggered: %s", run.Decision.Reason)
		run.Finished = time.Now()
		return run, nil
	}

	defs := make([]job.Definition, 0, len(run.Decision.Jobs))
	for _, name := range run.Decision.Jobs {
		def, ok := job.Find(p.Definitions, name)
		if !ok {
			return nil, fmt.Errorf("decision references unknown job %q", name)
		}
		defs = append(defs, def)
	}
	log.Infof("triggered by %s (%s): %d jobs", ev, run.Decision.Reason, len(defs))

	run.Results = make([]*job.Result, len(defs))

	// A plain Group: no derived context, so one job's failure cannot
	// cancel another.
	var g errgroup.Group
	if p.Parallelism > 0 {
		g.SetLimit(p.Parallelism)
	}
	for i, def := range defs {
		g.Go(func() error {
			deps := p.Deps(def)
			if deps.Log == nil {
				deps.Log = log
			} else {
				deps.Log = deps.Log.WithField("run", run.ID.String()[:8])
			}
			j := job.New(def, ev, deps)

			for _, o := range p.Observers {
				o.JobStarted(ctx, run, def)
			}
			res := j.Run(ctx)
			run.Results[i] = res
			for _, o := range p.Observers {
				o.JobFinished(ctx, run, res)
			}
			return nil
		})
	}
	_ = g.Wait()

	run.Finished = time.Now()
	if failed := run.Failed(); len(failed) > 0 {
		log.Warnf("%d of %d jobs failed", len(failed), len(run.Results))
	} else {
		log.Infof("all %d jobs succeeded in %s", len(run.Results), run.Duration().Round(time.Millisecond))
	}
	return run, nil
}
