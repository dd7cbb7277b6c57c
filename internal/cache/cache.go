// Package cache stores synthesized speech artifacts keyed by engine and
// phrase, so repeated phrases skip synthesis entirely.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/config"
)

// Store abstracts artifact storage backends.
type Store interface {
	// Save stores an artifact under key.
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// LocalPath returns the local filesystem path if the artifact exists on
	// disk. Returns "" if not available locally.
	LocalPath(key string) string

	// Open returns a reader for the artifact.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an artifact exists in any backend.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "tiered".
	Type() string
}

// Key derives the cache key for a phrase spoken by the engine with the given
// slug. Whitespace does not change the key, punctuation does.
func Key(slug, phrase, ext string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phrase)
	sum := md5.Sum([]byte(stripped))
	return slug + "-" + hex.EncodeToString(sum[:]) + ext
}

// Options configure the store assembly.
type Options struct {
	Dir       string
	Retention time.Duration
	MaxMB     int
	S3        config.S3Config
}

// New creates a Store based on config. Returns the store and optional
// background services (pruner) that the caller must Start/Stop. Returns an
// error if S3 is configured but unreachable.
func New(opts Options, log zerolog.Logger) (Store, []BackgroundService, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create cache dir %s: %w", opts.Dir, err)
	}
	local := NewLocalStore(opts.Dir)

	if !opts.S3.Enabled() {
		var services []BackgroundService
		if opts.Retention > 0 || opts.MaxMB > 0 {
			services = append(services, NewPruner(opts.Dir, opts.Retention, opts.MaxMB, nil, log))
		}
		return local, services, nil
	}

	s3store, err := NewS3Store(opts.S3, log)
	if err != nil {
		return nil, nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			opts.S3.Bucket, opts.S3.Endpoint, err)
	}
	log.Info().Str("bucket", opts.S3.Bucket).Str("endpoint", opts.S3.Endpoint).Msg("S3 connection verified")

	// Playback always needs a local file, so S3 is a backup tier rather
	// than a standalone backend.
	tiered := NewTieredStore(s3store, local, log)

	var services []BackgroundService
	if opts.Retention > 0 || opts.MaxMB > 0 {
		services = append(services, NewPruner(opts.Dir, opts.Retention, opts.MaxMB, s3store, log))
	}
	return tiered, services, nil
}

// BackgroundService is a stoppable background goroutine.
type BackgroundService interface {
	Start()
	Stop()
}
