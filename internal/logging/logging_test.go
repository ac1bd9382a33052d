package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	Infof("should not appear")
	Warnf("tenant %s diverged", "t1")

	got := buf.String()
	if strings.Contains(got, "should not appear") {
		t.Fatal("INFO line logged below the configured WARN threshold")
	}
	if !strings.Contains(got, "[WARN]") || !strings.Contains(got, "t1 diverged") {
		t.Fatalf("missing expected WARN line: %q", got)
	}
}

func TestErrorfWritesErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Errorf("boom")
	if !strings.Contains(buf.String(), "[ERROR]") {
		t.Fatal("expected ERROR line")
	}
}
