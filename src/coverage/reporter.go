package coverage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrMissingToken is returned when no upload token is available.
var ErrMissingToken = errors.New("coverage upload token not set")

// UploadError is a coverage upload failure attributed to a job.
type UploadError struct {
	Job string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("coverage upload for %s: %v", e.Job, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Reporter applies the fail_ci_if_error policy around an Uploader.
type Reporter struct {
	Uploader    Uploader
	FailOnError bool
	Log         *logrus.Entry
}

// Report uploads u. Under FailOnError a missing token or failed upload is
// returned as *UploadError; otherwise it is logged and Report succeeds.
func (r *Reporter) Report(ctx context.Context, u Upload) (string, error) {
	var err error
	var resultURL string
	if u.Token == "" {
		err = ErrMissingToken
	} else {
		resultURL, err = r.Uploader.Upload(ctx, u)
	}
	if err == nil {
		if r.Log != nil {
			r.Log.WithField("job", u.Name).Infof("coverage uploaded: %s", resultURL)
		}
		return resultURL, nil
	}

	uerr := &UploadError{Job: u.Name, Err: err}
	if r.FailOnError {
		return "", uerr
	}
	if r.Log != nil {
		r.Log.WithField("job", u.Name).Warnf("%v (ignored, fail_ci_if_error is off)", uerr)
	}
	return "", nil
}

// Metadata fills CI fields of an upload from GitHub Actions variables.
func Metadata(getenv func(string) string) Upload {
	u := Upload{
		Slug:  getenv("GITHUB_REPOSITORY"),
		Build: getenv("GITHUB_RUN_ID"),
	}
	if u.Build != "" {
		u.Service = "github-actions"
		if server := getenv("GITHUB_SERVER_URL"); server != "" && u.Slug != "" {
			u.BuildURL = fmt.Sprintf("%s/%s/actions/runs/%s", server, u.Slug, u.Build)
		}
	}
	return u
}
