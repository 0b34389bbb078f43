// Package library tracks the media files available for conversion. A
// scanner walks watched directories, probes files with ffprobe, and records
// resolution, duration, and bitrate so the conversion planner can make
// decisions without re-probing sources.
package library
