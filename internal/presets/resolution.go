package presets

import "fmt"

// ResolutionOriginal marks a conversion that keeps the source resolution.
const ResolutionOriginal = "original"

// DefaultMinSourceHeight is the height below which a source counts as already
// low resolution and is never resized.
const DefaultMinSourceHeight = 480

// ResolveTargetResolution decides the scaling intent for a conversion. It
// returns ResolutionOriginal when no resize should happen, or a
// "{width}x-2" spec (auto height, aspect preserved) otherwise. Sources are
// never upscaled.
func ResolveTargetResolution(sourceWidth, sourceHeight int, preset Preset) string {
	return resolveTargetResolution(sourceWidth, sourceHeight, preset, DefaultMinSourceHeight)
}

func resolveTargetResolution(sourceWidth, sourceHeight int, preset Preset, minHeight int) string {
	if preset.TargetWidth <= 0 {
		return ResolutionOriginal
	}
	if sourceWidth <= 0 || sourceHeight <= 0 {
		// Dimensions unknown: apply the preset's width intent anyway.
		return fmt.Sprintf("%dx-2", preset.TargetWidth)
	}
	if sourceHeight < minHeight {
		return ResolutionOriginal
	}
	if sourceWidth <= preset.TargetWidth {
		return ResolutionOriginal
	}
	return fmt.Sprintf("%dx-2", preset.TargetWidth)
}
