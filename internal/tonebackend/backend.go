// Package tonebackend resolves a requested execution strategy to a
// CPU-capability level for the tone-manipulation engines. There is no GPU
// backend here, only a scalar-vs-vectorized-capable axis, reported rather
// than dispatched, since the engines' inner loops are portable Go rather
// than hand-written assembly.
package tonebackend

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sys/cpu"
)

// Backend identifies a caller's requested execution strategy.
type Backend string

const (
	BackendAuto   Backend = "auto"
	BackendScalar Backend = "scalar"
	BackendSIMD   Backend = "simd"
)

var (
	// ErrUnknownBackend is returned when the name does not match a known backend.
	ErrUnknownBackend = errors.New("tonebackend: unknown backend")
	// ErrBackendUnavailable indicates BackendSIMD was requested but the host
	// CPU has no detected vector unit this module recognizes.
	ErrBackendUnavailable = errors.New("tonebackend: backend unavailable on this CPU")
)

// NormalizeBackend maps arbitrary user input (CLI flags, config files) to a
// canonical backend identifier.
func NormalizeBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return BackendAuto
	case "scalar", "cpu":
		return BackendScalar
	case "simd", "avx2", "neon":
		return BackendSIMD
	default:
		return Backend(name)
	}
}

// SupportedBackends returns the backends understood by Resolve.
func SupportedBackends() []Backend {
	return []Backend{BackendAuto, BackendScalar, BackendSIMD}
}

// Level is the vector capability detected on the running CPU, reported as
// plain data: nothing in this module currently branches on it beyond
// logging and Resolve's validation.
type Level int

const (
	LevelScalar Level = iota
	LevelAVX2
	LevelNEON
)

func (l Level) String() string {
	switch l {
	case LevelAVX2:
		return "AVX2"
	case LevelNEON:
		return "NEON"
	default:
		return "scalar"
	}
}

var detected Level

func init() {
	switch {
	case cpu.X86.HasAVX2:
		detected = LevelAVX2
	case cpu.ARM64.HasASIMD:
		detected = LevelNEON
	default:
		detected = LevelScalar
	}
	slog.Debug("tonebackend: CPU capability detected", "level", detected.String())
}

// DetectedLevel reports the vector capability found at process start.
func DetectedLevel() Level {
	return detected
}

// Resolve validates a requested backend name against the detected hardware
// capability and returns the Level a caller should honor.
func Resolve(name string) (Level, error) {
	switch NormalizeBackend(name) {
	case BackendAuto:
		return detected, nil
	case BackendScalar:
		return LevelScalar, nil
	case BackendSIMD:
		if detected == LevelScalar {
			return LevelScalar, fmt.Errorf("%w: %s", ErrBackendUnavailable, name)
		}
		return detected, nil
	default:
		return LevelScalar, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}
