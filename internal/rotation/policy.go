// Package rotation implements size-triggered log rotation: atomic rename of
// the active file, background compression of the rotated file, and retention
// pruning of old archives.
package rotation

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is returned when a policy fails validation. The caller's
// previous policy, if any, stays in effect.
var ErrInvalidPolicy = errors.New("invalid rotation policy")

// Policy is pure data: when to rotate and what to keep.
type Policy struct {
	// MaxSizeBytes is the active-file size ceiling. A file at or above this
	// size is rotated on the next check.
	MaxSizeBytes int64

	// RetentionCount is how many rotated archives to keep per log.
	// Archives beyond the window are deleted, never just marked.
	RetentionCount int

	// AgeThresholdDays gates the maintenance sweep that compresses rotated
	// files left uncompressed (e.g. after a crash mid-compression).
	AgeThresholdDays int

	// Codecs is the compression preference order; the first supported name
	// wins. Default: zstd, xz, gzip.
	Codecs []string
}

// DefaultPolicy returns the stock policy used when configuration is silent.
func DefaultPolicy() Policy {
	return Policy{
		MaxSizeBytes:     10 * 1024 * 1024,
		RetentionCount:   5,
		AgeThresholdDays: 1,
		Codecs:           []string{"zstd", "xz", "gzip"},
	}
}

// Validate rejects unusable policies at configuration time.
func (p Policy) Validate() error {
	if p.MaxSizeBytes <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidPolicy, p.MaxSizeBytes)
	}
	if p.RetentionCount < 1 {
		return fmt.Errorf("%w: retention count must be >= 1, got %d", ErrInvalidPolicy, p.RetentionCount)
	}
	if p.AgeThresholdDays < 0 {
		return fmt.Errorf("%w: age threshold must be >= 0, got %d", ErrInvalidPolicy, p.AgeThresholdDays)
	}
	if len(p.Codecs) == 0 {
		return fmt.Errorf("%w: at least one compression codec required", ErrInvalidPolicy)
	}
	for _, name := range p.Codecs {
		if !codecSupported(name) {
			return fmt.Errorf("%w: unsupported codec %q", ErrInvalidPolicy, name)
		}
	}
	return nil
}
