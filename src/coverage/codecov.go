package coverage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/sofmeright/qualitygate/src/version"
)

// Upload is one coverage submission.
type Upload struct {
	Artifact *Artifact
	Token    string
	Commit   string
	Branch   string
	Tag      string
	PR       string
	Slug     string // owner/repo
	Build    string // CI run identifier
	BuildURL string
	Service  string // e.g. "github-actions"
	Name     string // upload name, the job name
}

// Uploader sends a coverage artifact to a coverage service and returns the
// URL of the processed report.
type Uploader interface {
	Upload(ctx context.Context, u Upload) (string, error)
}

// Codecov uploads reports with the Codecov v4 upload protocol: a POST to
// /upload/v4 reserves the upload and answers with the report URL and a
// storage URL, then the report is PUT to storage.
type Codecov struct {
	URL     string // "https://codecov.io"
	Client  *http.Client
	Verbose bool
	Log     *logrus.Entry
}

// NewCodecov returns an uploader for baseURL with a bounded HTTP client.
func NewCodecov(baseURL string, verbose bool, log *logrus.Entry) *Codecov {
	if baseURL == "" {
		baseURL = "https://codecov.io"
	}
	return &Codecov{
		URL:     strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 2 * time.Minute},
		Verbose: verbose,
		Log:     log,
	}
}

// Upload implements Uploader.
func (c *Codecov) Upload(ctx context.Context, u Upload) (string, error) {
	if u.Artifact == nil || u.Artifact.ReportPath == "" {
		return "", fmt.Errorf("no report to upload")
	}
	report, err := os.ReadFile(u.Artifact.ReportPath)
	if err != nil {
		return "", fmt.Errorf("reading report: %w", err)
	}

	resultURL, storageURL, err := c.reserve(ctx, u)
	if err != nil {
		return "", err
	}

	body, err := envelope(filepath.Base(u.Artifact.ReportPath), report, u.Artifact.Files)
	if err != nil {
		return "", err
	}
	if err := c.put(ctx, storageURL, body); err != nil {
		return "", err
	}
	c.debugf("uploaded %d bytes, report at %s", len(report), resultURL)
	return resultURL, nil
}

func (c *Codecov) reserve(ctx context.Context, u Upload) (resultURL, storageURL string, err error) {
	q := url.Values{}
	q.Set("package", "qualitygate")
	q.Set("token", u.Token)
	q.Set("commit", u.Commit)
	q.Set("branch", u.Branch)
	setIf(q, "tag", u.Tag)
	setIf(q, "pr", u.PR)
	setIf(q, "slug", u.Slug)
	setIf(q, "build", u.Build)
	setIf(q, "build_url", u.BuildURL)
	setIf(q, "service", u.Service)
	setIf(q, "name", u.Name)
	if u.Artifact != nil && len(u.Artifact.Flags) > 0 {
		q.Set("flags", strings.Join(u.Artifact.Flags, ","))
	}
	endpoint := c.URL + "/upload/v4?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("X-Reduced-Redundancy", "false")
	req.Header.Set("X-Content-Type", "application/x-gzip")

	c.debugf("POST %s", redact(endpoint, u.Token))
	resp, err := c.client().Do(req)
	if err != nil {
		return "", "", fmt.Errorf("codecov: %s", redact(err.Error(), u.Token))
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	c.debugf("codecov answered %d", resp.StatusCode)

	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("codecov POST /upload/v4: %d %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(respBody))
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return "", "", fmt.Errorf("codecov: unexpected upload response %q", string(respBody))
	}
	return lines[0], lines[1], nil
}

func (c *Codecov) put(ctx context.Context, storageURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, storageURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-gzip")
	req.Header.Set("Content-Encoding", "gzip")

	c.debugf("PUT %s", stripQuery(storageURL))
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("codecov storage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("codecov storage PUT: %d %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// envelope builds the gzip'd upload body: the network section listing
// covered files, then the report itself.
func envelope(name string, report []byte, files []FileCoverage) ([]byte, error) {
	var raw bytes.Buffer
	for _, f := range files {
		raw.WriteString(f.Name)
		raw.WriteByte('\n')
	}
	raw.WriteString("<<<<<< network\n")
	fmt.Fprintf(&raw, "# path=%s\n", name)
	raw.Write(report)
	if len(report) > 0 && report[len(report)-1] != '\n' {
		raw.WriteByte('\n')
	}
	raw.WriteString("<<<<<< EOF\n")

	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (c *Codecov) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *Codecov) debugf(format string, args ...any) {
	if c.Verbose && c.Log != nil {
		c.Log.Infof(format, args...)
	}
}

func setIf(q url.Values, k, v string) {
	if v != "" {
		q.Set(k, v)
	}
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(token), "***")
	return strings.ReplaceAll(s, token, "***")
}

func stripQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
