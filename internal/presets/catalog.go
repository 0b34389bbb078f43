package presets

import (
	"sort"
	"strings"
)

// Codec identifies the target codec family of a preset.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecHEVC Codec = "hevc"
	CodecAV1  Codec = "av1"
)

// Preset bundles the target characteristics of a conversion.
// A TargetWidth of zero means the source resolution is preserved.
type Preset struct {
	ID           string
	Name         string
	Codec        Codec
	TargetWidth  int
	Quality      int
	AudioBitrate int
	Container    string
}

var catalog = map[string]Preset{
	"h264-1080p": {
		ID:           "h264-1080p",
		Name:         "H.264 1080p",
		Codec:        CodecH264,
		TargetWidth:  1920,
		Quality:      23,
		AudioBitrate: 160,
		Container:    "mp4",
	},
	"h264-720p": {
		ID:           "h264-720p",
		Name:         "H.264 720p",
		Codec:        CodecH264,
		TargetWidth:  1280,
		Quality:      23,
		AudioBitrate: 128,
		Container:    "mp4",
	},
	"hevc-2160p": {
		ID:           "hevc-2160p",
		Name:         "HEVC 4K",
		Codec:        CodecHEVC,
		TargetWidth:  3840,
		Quality:      26,
		AudioBitrate: 192,
		Container:    "mkv",
	},
	"hevc-1080p": {
		ID:           "hevc-1080p",
		Name:         "HEVC 1080p",
		Codec:        CodecHEVC,
		TargetWidth:  1920,
		Quality:      26,
		AudioBitrate: 160,
		Container:    "mkv",
	},
	"hevc-original": {
		ID:           "hevc-original",
		Name:         "HEVC (keep resolution)",
		Codec:        CodecHEVC,
		TargetWidth:  0,
		Quality:      26,
		AudioBitrate: 160,
		Container:    "mkv",
	},
	"av1-1080p": {
		ID:           "av1-1080p",
		Name:         "AV1 1080p",
		Codec:        CodecAV1,
		TargetWidth:  1920,
		Quality:      30,
		AudioBitrate: 160,
		Container:    "mkv",
	},
}

// Lookup returns the preset registered under the given identifier.
func Lookup(id string) (Preset, bool) {
	preset, ok := catalog[strings.ToLower(strings.TrimSpace(id))]
	return preset, ok
}

// All returns every known preset ordered by identifier.
func All() []Preset {
	out := make([]Preset, 0, len(catalog))
	for _, preset := range catalog {
		out = append(out, preset)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
