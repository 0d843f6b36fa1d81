package forge

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/qualitygate/src/job"
	"github.com/sofmeright/qualitygate/src/pipeline"
)

// StatusObserver publishes one commit status per job. It implements
// pipeline.Observer.
type StatusObserver struct {
	Forge     Forge
	Context   string // prefix; the job name is appended
	TargetURL string
	Log       *logrus.Entry
}

// JobStarted marks the job pending.
func (o *StatusObserver) JobStarted(ctx context.Context, run *pipeline.Run, def job.Definition) {
	o.publish(ctx, run, Status{
		State:       StatePending,
		Context:     o.contextFor(def.Name),
		Description: fmt.Sprintf("%s running", def.Name),
	})
}

// JobFinished publishes the terminal state of the job.
func (o *StatusObserver) JobFinished(ctx context.Context, run *pipeline.Run, res *job.Result) {
	s := Status{Context: o.contextFor(res.Name), TargetURL: res.CoverageURL}
	if res.Status == job.StatusSuccess {
		s.State = StateSuccess
		s.Description = fmt.Sprintf("passed in %s", res.Duration.Round(time.Second))
		if res.Artifact != nil {
			s.Description += fmt.Sprintf(", coverage %.1f%%", res.Artifact.Percent)
		}
	} else {
		s.State = StateFailure
		s.Description = fmt.Sprintf("failed: %s", res.Failure)
	}
	o.publish(ctx, run, s)
}

func (o *StatusObserver) contextFor(name string) string {
	if o.Context == "" {
		return name
	}
	return o.Context + "/" + name
}

// publish never fails the job; errors are logged.
func (o *StatusObserver) publish(ctx context.Context, run *pipeline.Run, s Status) {
	s.SHA = run.Event.Commit
	if s.SHA == "" {
		o.warnf("no commit for %s, status not published", s.Context)
		return
	}
	if s.TargetURL == "" {
		s.TargetURL = o.TargetURL
	}
	if err := o.Forge.SetCommitStatus(ctx, s); err != nil {
		o.warnf("publishing %s status for %s: %v", s.State, s.Context, err)
	}
}

func (o *StatusObserver) warnf(format string, args ...any) {
	if o.Log != nil {
		o.Log.Warnf(format, args...)
	}
}
