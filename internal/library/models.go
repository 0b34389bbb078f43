package library

import "time"

// Video is a media file tracked by the library.
type Video struct {
	ID              int64
	Path            string
	Title           string
	SizeBytes       int64
	DurationSeconds float64
	Width           int
	Height          int
	Bitrate         int64
	Codec           string
	AddedAt         time.Time
	UpdatedAt       time.Time
}

// WatchedDirectory is a directory the daemon rescans for new videos.
type WatchedDirectory struct {
	ID      int64
	Path    string
	AddedAt time.Time
}

// ScanResult summarizes one directory scan.
type ScanResult struct {
	Added   int
	Updated int
	Skipped int
}
