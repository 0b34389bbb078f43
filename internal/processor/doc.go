// Package processor orchestrates conversion jobs: it claims dequeued jobs,
// plans the encode from library metadata and the preset, drives the ffmpeg
// runner, records progress and terminal state, and reports batch completion.
package processor
