// Package rng implements the hardware RNG gate and the secret zeroization
// primitive used while the enclave holds ceremony contribution entropy
// (spec.md §4.7 "Hardware RNG Gate", §9 "drop-guard" design note).
package rng

import (
	"fmt"
	"os"
	"strings"
)

// Source reports the platform-attested entropy source identifier. The
// production implementation, SysfsSource, reads the name the kernel's hwrng
// subsystem reports for the current source; tests supply a fake.
type Source interface {
	Identifier() (string, error)
}

// defaultSysfsRNGPath is where the Linux hwrng subsystem publishes the name
// of the kernel's current entropy source (the Nitro Secure Module driver
// registers itself there as "nsm-hwrng").
const defaultSysfsRNGPath = "/sys/class/misc/hw_random/rng_current"

// SysfsSource reads the current hardware RNG identifier out of the Linux
// hwrng sysfs file.
type SysfsSource struct {
	Path string
}

// NewSysfsSource returns a SysfsSource reading the default hwrng path.
func NewSysfsSource() SysfsSource {
	return SysfsSource{Path: defaultSysfsRNGPath}
}

// Identifier implements Source.
func (s SysfsSource) Identifier() (string, error) {
	path := s.Path
	if path == "" {
		path = defaultSysfsRNGPath
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("rng: read %s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// RequireHardware returns an error unless src reports exactly the expected
// hardware RNG identifier, refusing to proceed on a software fallback.
func RequireHardware(src Source, expected string) error {
	got, err := src.Identifier()
	if err != nil {
		return fmt.Errorf("rng: read entropy source: %w", err)
	}
	if got != expected {
		return fmt.Errorf("rng: entropy source %q is not the expected hardware source %q", got, expected)
	}
	return nil
}

// SecretBytes is a fixed-size buffer intended to hold entropy that must be
// zeroized as soon as it is no longer needed (the contribution's randomness
// during CONTRIBUTE). Zero must be called on every exit path, success or
// error, before the buffer goes out of scope.
type SecretBytes struct {
	data   []byte
	zeroed bool
}

// NewSecretBytes wraps buf without copying it; the caller transfers
// ownership and must not retain other references to buf.
func NewSecretBytes(buf []byte) *SecretBytes {
	return &SecretBytes{data: buf}
}

// Bytes returns the underlying buffer. Calling it after Zero returns nil.
func (s *SecretBytes) Bytes() []byte {
	if s.zeroed {
		return nil
	}
	return s.data
}

// Zero overwrites the buffer with zero bytes. Safe to call more than once.
func (s *SecretBytes) Zero() {
	if s.zeroed {
		return
	}
	for i := range s.data {
		s.data[i] = 0
	}
	s.zeroed = true
}
