package presets

import "math"

// Rates carries the rate-control parameters fed to the encoder, in bits per
// second.
type Rates struct {
	Bitrate int
	Maxrate int
	Bufsize int
}

const mbps = 1_000_000

// Resolution tiers keyed by width, widest first. A source is assigned the
// largest tier that does not exceed its effective width.
var tierWidths = []int{3840, 2560, 1920, 1280, 854}

// Per-codec bitrate ceilings by tier width, in bits per second.
var ceilings = map[Codec]map[int]int{
	CodecH264: {
		3840: 40 * mbps,
		2560: 24 * mbps,
		1920: 16 * mbps,
		1280: 8 * mbps,
		854:  4 * mbps,
	},
	CodecHEVC: {
		3840: 24 * mbps,
		2560: 15 * mbps,
		1920: 10 * mbps,
		1280: 5 * mbps,
		854:  3 * mbps,
	},
	CodecAV1: {
		3840: 20 * mbps,
		2560: 12 * mbps,
		1920: 8 * mbps,
		1280: 4 * mbps,
		854:  2 * mbps,
	},
}

// PlanBitrate computes rate-control parameters for an encode. effectiveWidth
// is the width the output will actually have; sourceBitrate is the measured
// source bitrate in bits per second, or zero when unknown. The target never
// exceeds the tier ceiling for the codec, and never meaningfully exceeds the
// source bitrate so re-encodes do not inflate files.
func PlanBitrate(codec Codec, effectiveWidth, sourceBitrate int) Rates {
	ceiling := ceilingFor(codec, effectiveWidth)

	target := ceiling
	if sourceBitrate > 0 {
		headroom := int(math.Round(float64(sourceBitrate) * 1.1))
		if headroom < target {
			target = headroom
		}
	}
	if target < mbps {
		target = mbps
	}

	maxrate := int(math.Round(float64(target) * 1.2))
	if maxrate < target {
		maxrate = target
	}
	if maxrate > ceiling {
		maxrate = ceiling
	}

	return Rates{
		Bitrate: target,
		Maxrate: maxrate,
		Bufsize: 2 * maxrate,
	}
}

func ceilingFor(codec Codec, width int) int {
	table, ok := ceilings[codec]
	if !ok {
		table = ceilings[CodecH264]
	}
	for _, tier := range tierWidths {
		if width >= tier {
			return table[tier]
		}
	}
	return table[tierWidths[len(tierWidths)-1]]
}

// EncodePlan is the full resolution and rate decision for one conversion.
type EncodePlan struct {
	Resolution string
	Rates      Rates
}

// PlanEncode resolves the scaling intent and rate-control parameters for a
// source being converted with the given preset. Source dimensions and bitrate
// may be zero when probing failed; the plan degrades gracefully.
func PlanEncode(sourceWidth, sourceHeight, sourceBitrate int, preset Preset) EncodePlan {
	resolution := ResolveTargetResolution(sourceWidth, sourceHeight, preset)

	effectiveWidth := preset.TargetWidth
	if resolution == ResolutionOriginal {
		effectiveWidth = sourceWidth
	}
	if effectiveWidth <= 0 {
		// Nothing known about the output width. Assume 1080p-class.
		effectiveWidth = 1920
	}

	return EncodePlan{
		Resolution: resolution,
		Rates:      PlanBitrate(preset.Codec, effectiveWidth, sourceBitrate),
	}
}
