package modules

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sofmeright/qualitygate/src/lint"
)

// sniffLen matches git's binary detection window.
const sniffLen = 8000

// isBinaryFile reports whether the file has a NUL byte in its first 8000
// bytes, the same heuristic git uses.
func isBinaryFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}

func isBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// parseSeverity reads an optional "severity" option.
func parseSeverity(opts map[string]any, def lint.Severity) (lint.Severity, error) {
	v, ok := opts["severity"]
	if !ok {
		return def, nil
	}
	s, _ := v.(string)
	switch strings.ToLower(s) {
	case "info":
		return lint.SeverityInfo, nil
	case "warning":
		return lint.SeverityWarning, nil
	case "critical":
		return lint.SeverityCritical, nil
	}
	return def, fmt.Errorf("severity: want info, warning or critical, got %v", v)
}

// toStrings accepts []string or the []any produced by YAML decoding.
func toStrings(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return x, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list of strings, got %T", v)
}

// toInts accepts []int or the []any produced by YAML decoding.
func toInts(v any) ([]int, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []int:
		return x, nil
	case []any:
		out := make([]int, 0, len(x))
		for _, e := range x {
			n, ok := e.(int)
			if !ok {
				return nil, fmt.Errorf("expected integer, got %T", e)
			}
			out = append(out, n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list of integers, got %T", v)
}

func toBool(v any, def bool) (bool, error) {
	if v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, fmt.Errorf("expected boolean, got %T", v)
	}
	return b, nil
}
