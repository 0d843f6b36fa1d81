package badge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/qualitygate/src/job"
	"github.com/sofmeright/qualitygate/src/pipeline"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Writer renders job-<job>.svg and coverage-<job>.svg into Dir when a job
// finishes. It implements pipeline.Observer.
type Writer struct {
	Dir    string
	Engine *Engine
	Log    *logrus.Entry
}

// NewWriter returns a Writer using the Go font at size.
func NewWriter(dir string, size float64, log *logrus.Entry) (*Writer, error) {
	if size <= 0 {
		size = 11
	}
	m, err := LoadGoFont(size)
	if err != nil {
		return nil, err
	}
	return &Writer{Dir: dir, Engine: New(m, false), Log: log}, nil
}

// Write renders the badges for res and returns the paths written.
// The coverage badge is only written when the job produced coverage.
func (w *Writer) Write(res *job.Result) ([]string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating badge dir: %w", err)
	}
	name := unsafeNameChars.ReplaceAllString(res.Name, "_")

	value := "passed"
	if res.Status != job.StatusSuccess {
		value = "failed"
	}
	var written []string
	p := filepath.Join(w.Dir, "job-"+name+".svg")
	if err := writeFileAtomic(p, w.Engine.Generate(Badge{Label: res.Name, Value: value, Color: StatusColor(value)})); err != nil {
		return written, err
	}
	written = append(written, p)

	if res.Artifact != nil {
		p := filepath.Join(w.Dir, "coverage-"+name+".svg")
		if err := writeFileAtomic(p, w.Engine.Generate(Coverage(res.Artifact.Percent))); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

// JobStarted is a no-op; badges only reflect finished jobs.
func (w *Writer) JobStarted(context.Context, *pipeline.Run, job.Definition) {}

// JobFinished writes the job's badges. Errors are logged.
func (w *Writer) JobFinished(_ context.Context, _ *pipeline.Run, res *job.Result) {
	paths, err := w.Write(res)
	if w.Log == nil {
		return
	}
	if err != nil {
		w.Log.Warnf("writing badges for %s: %v", res.Name, err)
		return
	}
	for _, p := range paths {
		w.Log.Debugf("badge written: %s", p)
	}
}

func writeFileAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".badge-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
