package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckResolvesPathBinaries(t *testing.T) {
	statuses := Check([]Requirement{
		{Name: "shell", Command: "sh"},
		{Name: "missing", Command: "definitely-not-a-binary-xyz"},
		{Name: "blank", Command: "  "},
	})
	if len(statuses) != 3 {
		t.Fatalf("statuses %d", len(statuses))
	}
	if !statuses[0].Available {
		t.Fatalf("sh should be available: %+v", statuses[0])
	}
	if statuses[1].Available || statuses[1].Detail == "" {
		t.Fatalf("missing binary should carry detail: %+v", statuses[1])
	}
	if statuses[2].Available {
		t.Fatal("blank command should be unavailable")
	}
}

func TestCheckStatsAbsolutePaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renderD128")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	statuses := Check([]Requirement{
		{Name: "device", Command: path, Optional: true},
		{Name: "gone", Command: path + "-missing", Optional: true},
	})
	if !statuses[0].Available {
		t.Fatalf("existing path should be available: %+v", statuses[0])
	}
	if statuses[1].Available {
		t.Fatal("missing path should be unavailable")
	}
}

func TestMissingRequiredIgnoresOptional(t *testing.T) {
	missing := MissingRequired([]Status{
		{Name: "ffmpeg", Available: false},
		{Name: "vaapi device", Available: false, Optional: true},
		{Name: "ffprobe", Available: true},
	})
	if len(missing) != 1 || missing[0].Name != "ffmpeg" {
		t.Fatalf("unexpected missing set %+v", missing)
	}
}
