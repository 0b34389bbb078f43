package transcode

import (
	"fmt"
	"strings"

	"reelvault/internal/presets"
)

var vaapiEncoders = map[presets.Codec]string{
	presets.CodecH264: "h264_vaapi",
	presets.CodecHEVC: "hevc_vaapi",
	presets.CodecAV1:  "av1_vaapi",
}

// buildArgs assembles the ffmpeg invocation for a hardware-accelerated
// transcode. Filters and rate control come from the encode plan; the device
// path is the VAAPI render node.
func buildArgs(req Request, hwDevice string) ([]string, error) {
	encoder, ok := vaapiEncoders[req.Preset.Codec]
	if !ok {
		return nil, fmt.Errorf("transcode: no encoder for codec %q", req.Preset.Codec)
	}

	args := []string{
		"-hide_banner",
		"-y",
		"-init_hw_device", "vaapi=va:" + hwDevice,
		"-hwaccel", "vaapi",
		"-hwaccel_device", "va",
		"-hwaccel_output_format", "vaapi",
		"-i", req.InputPath,
	}

	if filter := scaleFilter(req.Plan.Resolution); filter != "" {
		args = append(args, "-vf", filter)
	}

	args = append(args,
		"-c:v", encoder,
		"-global_quality", fmt.Sprintf("%d", req.Preset.Quality),
		"-b:v", fmt.Sprintf("%d", req.Plan.Rates.Bitrate),
		"-maxrate", fmt.Sprintf("%d", req.Plan.Rates.Maxrate),
		"-bufsize", fmt.Sprintf("%d", req.Plan.Rates.Bufsize),
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", req.Preset.AudioBitrate),
	)

	if strings.EqualFold(req.Preset.Container, "mp4") {
		args = append(args, "-movflags", "+faststart")
	}

	args = append(args,
		"-progress", "pipe:1",
		"-nostats",
		req.OutputPath,
	)
	return args, nil
}

// scaleFilter converts a "{width}x-2" resolution spec into a scale_vaapi
// filter. The sentinel for keeping the source resolution yields no filter.
func scaleFilter(resolution string) string {
	if resolution == "" || resolution == presets.ResolutionOriginal {
		return ""
	}
	width, _, found := strings.Cut(resolution, "x")
	if !found || width == "" {
		return ""
	}
	return fmt.Sprintf("scale_vaapi=w=%s:h=-2", width)
}
