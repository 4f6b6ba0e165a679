package diagnostics

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debugf("debug line")
	l.Infof("info line")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing logged below min level, got %q", buf.String())
	}

	l.Warnf("warn line")
	if !strings.Contains(buf.String(), "warn line") {
		t.Fatalf("expected warn line to be logged, got %q", buf.String())
	}
}

func TestNonFileWriterNeverColors(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug)
	l.Infof("hello")
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected no ANSI escapes for a non-*os.File writer, got %q", buf.String())
	}
}

func TestDumpGatedOnVerbose(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug)

	l.Dump("label", struct{ X int }{X: 1})
	if buf.Len() != 0 {
		t.Fatalf("expected Dump to be a no-op when verbose is unset, got %q", buf.String())
	}

	l = l.WithVerbose(true)
	l.Dump("label", struct{ X int }{X: 1})
	if !strings.Contains(buf.String(), "label") {
		t.Fatalf("expected Dump to render once verbose is enabled, got %q", buf.String())
	}
}

func TestStageReportsName(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	l.Stage("optimize foo", 5*time.Millisecond)
	if !strings.Contains(buf.String(), "optimize foo") {
		t.Fatalf("expected stage name in output, got %q", buf.String())
	}
}

func TestCacheStatsNoPath(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	l.CacheStats(3, "")
	if !strings.Contains(buf.String(), "3 digest(s) recorded") {
		t.Fatalf("expected digest count in output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "n/a") {
		t.Fatalf("expected n/a size with no path, got %q", buf.String())
	}
}
