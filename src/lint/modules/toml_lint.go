package modules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/sofmeright/qualitygate/src/lint"
)

func init() {
	lint.Register("toml", func() lint.Module { return &tomlModule{} })
}

// tomlModule mirrors check-toml.
type tomlModule struct{}

func (m *tomlModule) Name() string        { return "toml" }
func (m *tomlModule) DefaultEnabled() bool { return true }
func (m *tomlModule) AutoDetect() []string { return []string{"*.toml"} }

func (m *tomlModule) Check(ctx context.Context, file lint.FileInfo) ([]lint.Finding, error) {
	if fileExt(file.Path) != ".toml" {
		return nil, nil
	}

	data, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var doc map[string]any
	err = toml.Unmarshal(data, &doc)
	if err == nil {
		return nil, nil
	}

	f := lint.Finding{
		File:     file.Path,
		Module:   m.Name(),
		Severity: lint.SeverityCritical,
		Message:  fmt.Sprintf("TOML parse error: %v", err),
	}
	var decErr *toml.DecodeError
	if errors.As(err, &decErr) {
		row, col := decErr.Position()
		f.Line, f.Column = row, col
		f.Message = "TOML parse error: " + decErr.Error()
	}
	return []lint.Finding{f}, nil
}
