// Package presets defines the built-in conversion presets and the planning
// logic that turns a preset plus probed source characteristics into concrete
// encoder settings: the scaling decision and the bitrate/maxrate/bufsize
// triple handed to ffmpeg.
package presets
