package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelvault/internal/logging"
	"reelvault/internal/media/ffprobe"
)

var videoExtensions = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".m4v":  {},
	".mov":  {},
	".avi":  {},
	".webm": {},
	".ts":   {},
}

// IsVideoFile reports whether a path looks like a media file the library
// should track.
func IsVideoFile(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(stem)
	title := strings.Join(strings.Fields(stem), " ")
	if title == "" {
		return base
	}
	return cases.Title(language.Und, cases.NoLower).String(title)
}

// probeFunc matches ffprobe.Inspect and is swappable in tests.
type probeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Scanner walks directories, probes media files, and records them in the
// library store.
type Scanner struct {
	store       *Store
	probeBinary string
	probe       probeFunc
	logger      *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithProbeBinary overrides the ffprobe binary used during scans.
func WithProbeBinary(binary string) ScannerOption {
	return func(s *Scanner) {
		if binary != "" {
			s.probeBinary = binary
		}
	}
}

// WithScanLogger attaches a logger to the scanner.
func WithScanLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "library")
		}
	}
}

func withProbe(probe probeFunc) ScannerOption {
	return func(s *Scanner) {
		s.probe = probe
	}
}

// NewScanner constructs a scanner over the given store.
func NewScanner(store *Store, opts ...ScannerOption) *Scanner {
	scanner := &Scanner{
		store:       store,
		probeBinary: "ffprobe",
		probe:       ffprobe.Inspect,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(scanner)
	}
	return scanner
}

// Scan walks a directory tree and upserts every playable video found.
// Files that cannot be probed are counted as skipped, not fatal.
func (s *Scanner) Scan(ctx context.Context, dir string) (ScanResult, error) {
	var result ScanResult
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || !IsVideoFile(path) {
			return nil
		}

		added, err := s.scanFile(ctx, path)
		if err != nil {
			result.Skipped++
			s.logger.Warn("skipping unreadable file",
				logging.String("path", path),
				logging.Error(err))
			return nil
		}
		if added {
			result.Added++
		} else {
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

// ScanAllWatched rescans every registered directory. Missing directories are
// logged and skipped.
func (s *Scanner) ScanAllWatched(ctx context.Context) (ScanResult, error) {
	dirs, err := s.store.ListWatched(ctx)
	if err != nil {
		return ScanResult{}, err
	}
	var total ScanResult
	for _, dir := range dirs {
		result, err := s.Scan(ctx, dir.Path)
		total.Added += result.Added
		total.Updated += result.Updated
		total.Skipped += result.Skipped
		if err != nil {
			if ctx.Err() != nil {
				return total, err
			}
			s.logger.Warn("watched directory scan failed",
				logging.String("path", dir.Path),
				logging.Error(err))
		}
	}
	return total, nil
}

func (s *Scanner) scanFile(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	probed, err := s.probe(ctx, s.probeBinary, path)
	if err != nil {
		return false, err
	}

	width, height := probed.Dimensions()
	codec := ""
	if stream, ok := probed.VideoStream(); ok {
		codec = stream.CodecName
	}
	video := &Video{
		Path:            path,
		Title:           titleFromPath(path),
		SizeBytes:       info.Size(),
		DurationSeconds: probed.DurationSeconds(),
		Width:           width,
		Height:          height,
		Bitrate:         probed.BitRate(),
		Codec:           codec,
	}
	return s.store.Upsert(ctx, video)
}
