package modules

import (
	"context"
	"fmt"

	"github.com/sofmeright/qualitygate/src/lint"
)

const defaultLargeFileMaxKB = 500

func init() {
	lint.Register("largefiles", func() lint.Module {
		return &largeFilesModule{maxBytes: defaultLargeFileMaxKB * 1024}
	})
}

// largeFilesModule mirrors check-added-large-files.
type largeFilesModule struct {
	maxBytes int64
}

func (m *largeFilesModule) Name() string        { return "largefiles" }
func (m *largeFilesModule) DefaultEnabled() bool { return true }
func (m *largeFilesModule) AutoDetect() []string { return nil }

// Configure implements lint.ConfigurableModule. Option: max_kb.
func (m *largeFilesModule) Configure(opts map[string]any) error {
	v, ok := opts["max_kb"]
	if !ok {
		return nil
	}
	kb, ok := v.(int)
	if !ok || kb <= 0 {
		return fmt.Errorf("max_kb: expected positive integer, got %v", v)
	}
	m.maxBytes = int64(kb) * 1024
	return nil
}

func (m *largeFilesModule) Check(ctx context.Context, file lint.FileInfo) ([]lint.Finding, error) {
	if file.Size <= m.maxBytes {
		return nil, nil
	}

	return []lint.Finding{{
		File:     file.Path,
		Module:   m.Name(),
		Severity: lint.SeverityCritical,
		Message:  fmt.Sprintf("file size %s exceeds threshold %s", humanSize(file.Size), humanSize(m.maxBytes)),
	}}, nil
}

func humanSize(b int64) string {
	switch {
	case b >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(b)/(1024*1024))
	case b >= 1024:
		return fmt.Sprintf("%.1f KB", float64(b)/1024)
	default:
		return fmt.Sprintf("%d B", b)
	}
}
