package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: "debug", Format: "json"})
	l.WithField("job", "Lint").Debug("starting")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["job"] != "Lint" || entry["msg"] != "starting" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	l := New(Options{Output: &bytes.Buffer{}, Level: "chatty", Format: "text"})
	if l.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info", l.GetLevel())
	}
}

func TestDiscard(t *testing.T) {
	e := Discard()
	e.Error("dropped")
	if e.Logger.Out == nil {
		t.Fatal("discard logger has no output")
	}
}
