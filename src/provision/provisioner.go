package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"

	"github.com/sofmeright/qualitygate/src/command"
	"github.com/sofmeright/qualitygate/src/config"
)

// ErrRuntimeMismatch is returned when no interpreter satisfies the pinned version.
var ErrRuntimeMismatch = errors.New("runtime version mismatch")

var pythonVersionRe = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// Env is a provisioned virtual environment.
type Env struct {
	Dir     string
	Python  string // interpreter inside the environment
	Version *semver.Version
}

// Provisioner creates per-job environments for one pinned runtime.
type Provisioner struct {
	Config config.RuntimeConfig
	Runner command.Runner
	Log    *logrus.Entry
	Stdout io.Writer
	Stderr io.Writer
}

// Candidates lists interpreters to try, most specific first.
func (p *Provisioner) Candidates() []string {
	if p.Config.Interpreter != "" {
		return []string{p.Config.Interpreter}
	}
	names := []string{"python" + p.Config.Version, "python3", "python"}
	if runtime.GOOS == "windows" {
		names = []string{"py", "python"}
	}
	return names
}

// Constraint returns the accepted version range: the pinned version with
// any patch level, e.g. "3.10" accepts 3.10.x.
func (p *Provisioner) Constraint() (*semver.Constraints, error) {
	c, err := semver.NewConstraint("~" + p.Config.Version)
	if err != nil {
		return nil, fmt.Errorf("runtime.version %q: %w", p.Config.Version, err)
	}
	return c, nil
}

// Setup locates an interpreter matching the pinned version and creates a
// virtual environment in envDir.
func (p *Provisioner) Setup(ctx context.Context, envDir string) (*Env, error) {
	constraint, err := p.Constraint()
	if err != nil {
		return nil, err
	}

	var tried []string
	for _, name := range p.Candidates() {
		v, err := p.interpreterVersion(ctx, name)
		if err != nil {
			tried = append(tried, fmt.Sprintf("%s (%v)", name, err))
			continue
		}
		if !constraint.Check(v) {
			tried = append(tried, fmt.Sprintf("%s (%s)", name, v))
			continue
		}

		p.logf("using %s %s", name, v)
		if err := os.MkdirAll(filepath.Dir(envDir), 0o755); err != nil {
			return nil, fmt.Errorf("creating env parent: %w", err)
		}
		err = p.Runner.Run(ctx, command.Command{
			Name:   name,
			Args:   []string{"-m", "venv", envDir},
			Stdout: p.Stdout,
			Stderr: p.Stderr,
		})
		if err != nil {
			return nil, fmt.Errorf("creating virtualenv: %w", err)
		}
		return &Env{Dir: envDir, Python: venvPython(envDir), Version: v}, nil
	}

	return nil, fmt.Errorf("%w: want %s, tried %v", ErrRuntimeMismatch, p.Config.Version, tried)
}

// Install validates extras against the project's pyproject.toml and
// installs the project in editable mode with those extras.
func (p *Provisioner) Install(ctx context.Context, env *Env, projectDir, pyprojectPath string, extras Extras) error {
	if pyprojectPath != "" && len(extras) > 0 {
		declared, err := DeclaredExtras(filepath.Join(projectDir, pyprojectPath))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			p.logf("%s not found, skipping extras validation", pyprojectPath)
		case err != nil:
			return err
		default:
			if err := extras.Validate(declared); err != nil {
				return err
			}
		}
	}

	if p.Config.UpgradePip {
		if err := p.pip(ctx, env, projectDir, "install", "--upgrade", "pip"); err != nil {
			return fmt.Errorf("upgrading pip: %w", err)
		}
	}

	req := extras.Requirement(".")
	p.logf("installing %s", req)
	if err := p.pip(ctx, env, projectDir, "install", "-e", req); err != nil {
		return fmt.Errorf("installing %s: %w", req, err)
	}
	return nil
}

func (p *Provisioner) pip(ctx context.Context, env *Env, dir string, args ...string) error {
	return p.Runner.Run(ctx, command.Command{
		Name:   env.Python,
		Args:   append([]string{"-m", "pip"}, args...),
		Dir:    dir,
		Stdout: p.Stdout,
		Stderr: p.Stderr,
	})
}

func (p *Provisioner) interpreterVersion(ctx context.Context, name string) (*semver.Version, error) {
	var out bytes.Buffer
	err := p.Runner.Run(ctx, command.Command{
		Name:   name,
		Args:   []string{"--version"},
		Stdout: &out,
		Stderr: &out,
	})
	if err != nil {
		return nil, err
	}
	return ParsePythonVersion(out.String())
}

// ParsePythonVersion extracts the version from `python --version` output,
// e.g. "Python 3.10.12" or "Python 3.13.0rc1".
func ParsePythonVersion(s string) (*semver.Version, error) {
	m := pythonVersionRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("no version in %q", s)
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	return semver.NewVersion(fmt.Sprintf("%s.%s.%s", m[1], m[2], patch))
}

func venvPython(envDir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(envDir, "Scripts", "python.exe")
	}
	return filepath.Join(envDir, "bin", "python")
}

func (p *Provisioner) logf(format string, args ...any) {
	if p.Log != nil {
		p.Log.Infof(format, args...)
	}
}
