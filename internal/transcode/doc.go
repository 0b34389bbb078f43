// Package transcode shells out to ffmpeg with VAAPI hardware acceleration to
// convert library videos. It streams the encoder's -progress output back to
// the caller as structured updates so job records can track live progress.
package transcode
