package transcode

import (
	"testing"
	"time"
)

func TestProgressParserEmitsOnBlockBoundary(t *testing.T) {
	parser := newProgressParser(200 * time.Second)

	lines := []string{
		"frame=240",
		"fps=48.02",
		"out_time_ms=100000000",
		"speed=2.01x",
		"progress=continue",
	}
	var update ProgressUpdate
	var emitted bool
	for _, line := range lines {
		if u, ok := parser.Feed(line); ok {
			update, emitted = u, true
		}
	}
	if !emitted {
		t.Fatal("expected an update at the progress line")
	}
	if update.Percent != 50 {
		t.Fatalf("percent %f, want 50", update.Percent)
	}
	if update.Frame != 240 || update.FPS != 48.02 || update.Speed != 2.01 {
		t.Fatalf("unexpected update %+v", update)
	}
	if update.OutTime != 100*time.Second {
		t.Fatalf("out time %s, want 100s", update.OutTime)
	}
	if update.Done {
		t.Fatal("continue block must not be done")
	}
}

func TestProgressParserCapsAt99BeforeEnd(t *testing.T) {
	parser := newProgressParser(100 * time.Second)
	parser.Feed("out_time_ms=99950000")
	update, ok := parser.Feed("progress=continue")
	if !ok {
		t.Fatal("expected update")
	}
	if update.Percent != 99 {
		t.Fatalf("percent %f, want cap at 99", update.Percent)
	}

	update, ok = parser.Feed("progress=end")
	if !ok {
		t.Fatal("expected final update")
	}
	if update.Percent != 100 || !update.Done {
		t.Fatalf("final update %+v, want 100%% done", update)
	}
}

func TestProgressParserUnknownDurationReportsZero(t *testing.T) {
	parser := newProgressParser(0)
	parser.Feed("out_time_ms=5000000")
	update, ok := parser.Feed("progress=continue")
	if !ok {
		t.Fatal("expected update")
	}
	if update.Percent != 0 {
		t.Fatalf("percent %f, want 0 when duration unknown", update.Percent)
	}
}

func TestProgressParserIgnoresMalformedLines(t *testing.T) {
	parser := newProgressParser(time.Minute)
	for _, line := range []string{"", "garbage", "fps=not-a-number", "out_time_ms=-1"} {
		if _, ok := parser.Feed(line); ok {
			t.Fatalf("line %q should not emit an update", line)
		}
	}
}
