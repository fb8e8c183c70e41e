package builder

import (
	"log/slog"

	"github.com/puzzlefs/puzzlefs/reader"
)

type config struct {
	logger   *slog.Logger
	compress bool
	base     *reader.Image
}

// Option configures a Build call.
type Option func(*config)

// WithLogger sets the logger used to report build progress.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithCompression enables zstd compression of chunk blobs.
func WithCompression(enabled bool) Option {
	return func(c *config) { c.compress = enabled }
}

// WithBase sets a previously built image as the base layer for a delta
// build: names already in the base keep their base inode numbers, and
// files or directories removed from rootDir are recorded as whiteouts.
// File content is chunked again rather than taken from the base layer.
func WithBase(base *reader.Image) Option {
	return func(c *config) { c.base = base }
}

func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
