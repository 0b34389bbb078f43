package presets

import (
	"strings"
	"testing"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	preset, ok := Lookup(" HEVC-1080p ")
	if !ok {
		t.Fatal("expected preset to exist")
	}
	if preset.ID != "hevc-1080p" {
		t.Fatalf("unexpected preset %q", preset.ID)
	}
}

func TestLookupUnknownPreset(t *testing.T) {
	if _, ok := Lookup("prores-422"); ok {
		t.Fatal("expected lookup miss")
	}
}

func TestAllIsSortedAndComplete(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatal("expected built-in presets")
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("presets not sorted: %q before %q", all[i-1].ID, all[i].ID)
		}
	}
	for _, preset := range all {
		if preset.Quality <= 0 || preset.AudioBitrate <= 0 || preset.Container == "" {
			t.Fatalf("incomplete preset %+v", preset)
		}
	}
}

func TestResolveTargetResolution(t *testing.T) {
	preset1080 := Preset{ID: "x", Codec: CodecH264, TargetWidth: 1920}
	presetOriginal := Preset{ID: "y", Codec: CodecHEVC}

	cases := []struct {
		name   string
		width  int
		height int
		preset Preset
		want   string
	}{
		{"preset keeps resolution", 3840, 2160, presetOriginal, ResolutionOriginal},
		{"unknown dimensions fall back to preset width", 0, 0, preset1080, "1920x-2"},
		{"low source never resized", 640, 360, preset1080, ResolutionOriginal},
		{"never upscale", 1280, 720, preset1080, ResolutionOriginal},
		{"equal width not resized", 1920, 1080, preset1080, ResolutionOriginal},
		{"downscale 4k to 1080p", 3840, 2160, preset1080, "1920x-2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveTargetResolution(tc.width, tc.height, tc.preset)
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPlanBitrateRespectsCeiling(t *testing.T) {
	// 4K HEVC source claiming an absurd bitrate must be clamped to the tier ceiling.
	rates := PlanBitrate(CodecHEVC, 3840, 400*mbps)
	if rates.Bitrate != 24*mbps {
		t.Fatalf("bitrate %d, want ceiling %d", rates.Bitrate, 24*mbps)
	}
	if rates.Maxrate != 24*mbps {
		t.Fatalf("maxrate %d exceeds ceiling", rates.Maxrate)
	}
	if rates.Bufsize != 2*rates.Maxrate {
		t.Fatalf("bufsize %d, want %d", rates.Bufsize, 2*rates.Maxrate)
	}
}

func TestPlanBitrateTracksLowSource(t *testing.T) {
	// A 3 Mbps 1080p source should land near 3.3 Mbps, not the 16 Mbps ceiling.
	rates := PlanBitrate(CodecH264, 1920, 3*mbps)
	if rates.Bitrate != 3_300_000 {
		t.Fatalf("bitrate %d, want 3300000", rates.Bitrate)
	}
	if rates.Maxrate != 3_960_000 {
		t.Fatalf("maxrate %d, want 3960000", rates.Maxrate)
	}
	if rates.Bufsize != 7_920_000 {
		t.Fatalf("bufsize %d, want 7920000", rates.Bufsize)
	}
}

func TestPlanBitrateFloorsTinySources(t *testing.T) {
	rates := PlanBitrate(CodecAV1, 854, 200_000)
	if rates.Bitrate != mbps {
		t.Fatalf("bitrate %d, want floor %d", rates.Bitrate, mbps)
	}
}

func TestPlanBitrateNarrowSourcesUseSmallestTier(t *testing.T) {
	rates := PlanBitrate(CodecH264, 640, 0)
	if rates.Bitrate != 4*mbps {
		t.Fatalf("bitrate %d, want smallest-tier ceiling %d", rates.Bitrate, 4*mbps)
	}
}

func TestPlanEncodeNeverUpscales(t *testing.T) {
	preset, _ := Lookup("h264-1080p")
	plan := PlanEncode(1280, 720, 0, preset)
	if plan.Resolution != ResolutionOriginal {
		t.Fatalf("resolution %q, want original", plan.Resolution)
	}
	// Effective width is the source's 1280, so the 1280 tier ceiling applies.
	if plan.Rates.Bitrate != 8*mbps {
		t.Fatalf("bitrate %d, want %d", plan.Rates.Bitrate, 8*mbps)
	}
}

func TestPlanEncodeDownscaleUsesTargetTier(t *testing.T) {
	preset, _ := Lookup("hevc-1080p")
	plan := PlanEncode(3840, 2160, 50*mbps, preset)
	if !strings.HasPrefix(plan.Resolution, "1920x") {
		t.Fatalf("resolution %q, want 1920x-2", plan.Resolution)
	}
	if plan.Rates.Bitrate != 10*mbps {
		t.Fatalf("bitrate %d, want 1080p hevc ceiling %d", plan.Rates.Bitrate, 10*mbps)
	}
}

func TestPlanEncodeUnknownSourceAssumes1080p(t *testing.T) {
	preset, _ := Lookup("hevc-original")
	plan := PlanEncode(0, 0, 0, preset)
	if plan.Resolution != ResolutionOriginal {
		t.Fatalf("resolution %q, want original", plan.Resolution)
	}
	if plan.Rates.Bitrate != 10*mbps {
		t.Fatalf("bitrate %d, want %d", plan.Rates.Bitrate, 10*mbps)
	}
}
