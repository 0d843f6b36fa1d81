package coverage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

const termReport = `============================= test session starts ==============================
collected 42 items

skada/tests/test_base.py::test_fit PASSED                                [100%]

---------- coverage: platform linux, python 3.10.14-final-0 ----------
Name                     Stmts   Miss  Cover
--------------------------------------------
skada/__init__.py           10      0   100%
skada/base.py              120     12    90%
--------------------------------------------
TOTAL                      130     12    91%

============================== 42 passed in 3.21s ==============================
`

const branchReport = `Name                  Stmts   Miss Branch BrPart  Cover   Missing
---------------------------------------------------------------------
skada/_mapping.py        200     20     40      4    88.33%   10-14, 99
skada/utils.py            50      0     10      0   100.00%
---------------------------------------------------------------------
TOTAL                    250     20     50      4    90.67%
`

func TestParseTerm(t *testing.T) {
	art, err := ParseTerm(strings.NewReader(termReport), "skada")
	if err != nil {
		t.Fatalf("ParseTerm: %v", err)
	}
	if art.Statements != 130 || art.Missed != 12 || art.Percent != 91 {
		t.Errorf("totals = %d/%d %.2f", art.Statements, art.Missed, art.Percent)
	}
	if len(art.Files) != 2 || art.Files[1].Name != "skada/base.py" {
		t.Errorf("files = %+v", art.Files)
	}
	if art.Covered() != 118 {
		t.Errorf("Covered() = %d", art.Covered())
	}
}

func TestParseTermBranchColumns(t *testing.T) {
	art, err := ParseTerm(strings.NewReader(branchReport), "skada")
	if err != nil {
		t.Fatalf("ParseTerm: %v", err)
	}
	if art.Percent != 90.67 || art.Statements != 250 {
		t.Errorf("totals = %d %.2f", art.Statements, art.Percent)
	}
	if len(art.Files) != 2 || art.Files[0].Percent != 88.33 {
		t.Errorf("files = %+v", art.Files)
	}
}

func TestParseTermSingleFileWithoutTotal(t *testing.T) {
	in := "Name      Stmts   Miss  Cover\n---------------------------\nmod.py       10      5    50%\n"
	art, err := ParseTerm(strings.NewReader(in), "mod")
	if err != nil {
		t.Fatal(err)
	}
	if art.Percent != 50 {
		t.Errorf("Percent = %v", art.Percent)
	}
}

func TestParseTermNoTable(t *testing.T) {
	_, err := ParseTerm(strings.NewReader("42 passed\n"), "skada")
	if !errors.Is(err, ErrNoCoverage) {
		t.Fatalf("err = %v, want ErrNoCoverage", err)
	}
}

const coberturaXML = `<?xml version="1.0" ?>
<coverage version="7.4.0" line-rate="0.75" branch-rate="0" lines-covered="3" lines-valid="4">
	<packages>
		<package name="skada" line-rate="0.75">
			<classes>
				<class name="base.py" filename="skada/base.py" line-rate="0.75">
					<lines>
						<line number="1" hits="1"/>
						<line number="2" hits="1"/>
						<line number="3" hits="0"/>
						<line number="4" hits="3"/>
					</lines>
				</class>
			</classes>
		</package>
	</packages>
</coverage>
`

func writeReport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coverage.xml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseCobertura(t *testing.T) {
	path := writeReport(t, coberturaXML)
	art, err := ParseCobertura(path, "skada")
	if err != nil {
		t.Fatalf("ParseCobertura: %v", err)
	}
	if art.Statements != 4 || art.Missed != 1 || math.Abs(art.Percent-75) > 1e-9 {
		t.Errorf("art = %+v", art)
	}
	if art.ReportPath != path {
		t.Errorf("ReportPath = %q", art.ReportPath)
	}
}

// fakeCodecov records the v4 handshake.
type fakeCodecov struct {
	mu       sync.Mutex
	query    map[string]string
	uploaded string
	status   int
}

func (f *fakeCodecov) server(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload/v4":
			if f.status != 0 {
				http.Error(w, "invalid token", f.status)
				return
			}
			f.query = map[string]string{}
			for k := range r.URL.Query() {
				f.query[k] = r.URL.Query().Get(k)
			}
			io.WriteString(w, "https://codecov.example/report/abc\n"+srv.URL+"/storage/abc?sig=1\n")
		case r.Method == http.MethodPut && r.URL.Path == "/storage/abc":
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(zr)
			f.uploaded = string(data)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testUpload(t *testing.T) Upload {
	return Upload{
		Artifact: &Artifact{
			Package:    "skada",
			ReportPath: writeReport(t, coberturaXML),
			Files:      []FileCoverage{{Name: "skada/base.py"}},
			Flags:      []string{"Test-full"},
		},
		Token:  "s3cr3t-token",
		Commit: "0123abcd",
		Branch: "main",
		Name:   "Test-full",
	}
}

func TestCodecovUpload(t *testing.T) {
	fake := &fakeCodecov{}
	srv := fake.server(t)

	var logBuf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&logBuf)

	cc := NewCodecov(srv.URL, true, logrus.NewEntry(log))
	got, err := cc.Upload(context.Background(), testUpload(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got != "https://codecov.example/report/abc" {
		t.Errorf("result URL = %q", got)
	}
	if fake.query["token"] != "s3cr3t-token" || fake.query["commit"] != "0123abcd" || fake.query["flags"] != "Test-full" {
		t.Errorf("query = %v", fake.query)
	}
	if !strings.Contains(fake.uploaded, "skada/base.py\n<<<<<< network\n# path=coverage.xml\n") ||
		!strings.HasSuffix(fake.uploaded, "<<<<<< EOF\n") {
		t.Errorf("uploaded body = %q", fake.uploaded)
	}
	if strings.Contains(logBuf.String(), "s3cr3t-token") {
		t.Error("verbose log leaked the token")
	}
	if !strings.Contains(logBuf.String(), "token=%2A%2A%2A") && !strings.Contains(logBuf.String(), "token=***") {
		t.Errorf("verbose log missing redacted request: %s", logBuf.String())
	}
}

func TestCodecovRejected(t *testing.T) {
	fake := &fakeCodecov{status: http.StatusUnauthorized}
	srv := fake.server(t)
	_, err := NewCodecov(srv.URL, false, nil).Upload(context.Background(), testUpload(t))
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("Upload = %v, want 401 error", err)
	}
}

type stubUploader struct {
	err   error
	calls int
}

func (s *stubUploader) Upload(context.Context, Upload) (string, error) {
	s.calls++
	return "https://codecov.example/r", s.err
}

func TestReporterPolicy(t *testing.T) {
	boom := errors.New("503 service unavailable")
	tests := []struct {
		name    string
		token   string
		upErr   error
		strict  bool
		wantErr error
		calls   int
	}{
		{"ok", "tok", nil, true, nil, 1},
		{"missing token strict", "", nil, true, ErrMissingToken, 0},
		{"missing token lenient", "", nil, false, nil, 0},
		{"upload failure strict", "tok", boom, true, boom, 1},
		{"upload failure lenient", "tok", boom, false, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &stubUploader{err: tt.upErr}
			r := &Reporter{Uploader: up, FailOnError: tt.strict}
			_, err := r.Report(context.Background(), Upload{Token: tt.token, Name: "Test-minimal"})
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Report = %v", err)
				}
			} else {
				var uerr *UploadError
				if !errors.As(err, &uerr) || !errors.Is(err, tt.wantErr) || uerr.Job != "Test-minimal" {
					t.Fatalf("Report = %v, want UploadError wrapping %v", err, tt.wantErr)
				}
			}
			if up.calls != tt.calls {
				t.Errorf("uploader calls = %d, want %d", up.calls, tt.calls)
			}
		})
	}
}

func TestMetadata(t *testing.T) {
	env := map[string]string{
		"GITHUB_REPOSITORY": "scikit-adaptation/skada",
		"GITHUB_RUN_ID":     "77",
		"GITHUB_SERVER_URL": "https://github.com",
	}
	u := Metadata(func(k string) string { return env[k] })
	if u.Service != "github-actions" || u.BuildURL != "https://github.com/scikit-adaptation/skada/actions/runs/77" {
		t.Errorf("Metadata = %+v", u)
	}
}
