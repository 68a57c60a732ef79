package cache

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// ErrInvalidMode is returned for mode values outside adaptive/simple/disabled.
var ErrInvalidMode = errors.New("invalid cache mode")

// Mode selects the caching policy.
type Mode string

const (
	// ModeAdaptive computes TTLs per consumer class and record content.
	ModeAdaptive Mode = "adaptive"

	// ModeSimple applies one fixed TTL to everything.
	ModeSimple Mode = "simple"

	// ModeDisabled bypasses the cache entirely.
	ModeDisabled Mode = "disabled"

	// ModePrecache labels entries written by the pre-cache rule engine.
	// It is never a selectable mode.
	ModePrecache Mode = "precache"
)

// ParseMode validates a mode literal. Matching is exact.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAdaptive, ModeSimple, ModeDisabled:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want one of adaptive, simple, disabled)", ErrInvalidMode, strings.TrimSpace(s))
	}
}

// ModeController holds the one active mode of a process.
// It is safe for concurrent use.
type ModeController struct {
	mode atomic.Value // Mode
}

// NewModeController creates a controller starting in the given mode.
func NewModeController(initial string) (*ModeController, error) {
	m, err := ParseMode(initial)
	if err != nil {
		return nil, err
	}
	c := &ModeController{}
	c.mode.Store(m)
	return c, nil
}

// Get returns the active mode.
func (c *ModeController) Get() Mode {
	return c.mode.Load().(Mode)
}

// Set validates and switches the active mode. Invalid input leaves the mode unchanged.
func (c *ModeController) Set(mode string) (Mode, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return c.Get(), err
	}
	c.mode.Store(m)
	return m, nil
}
