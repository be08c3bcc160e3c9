package timer

import (
	"errors"
	"slices"
	"sync"
)

var (
	ErrNotGated      = errors.New("countdown is not collecting ready signals")
	ErrNotInRoster   = errors.New("participant is not in the ready roster")
	ErrInvalidLength = errors.New("countdown length must be positive")
)

// Mode is how an armed countdown runs.
type Mode int

const (
	ModeIdle Mode = iota
	// ModeImmediate counts down from the moment it is armed.
	ModeImmediate
	// ModeReadyGated waits for ready signals from a roster, shortening to a
	// grace period after the first one and firing as soon as all are ready.
	ModeReadyGated
)

// Expiry identifies one arm cycle. It is only honoured while Current
// reports true for it.
type Expiry struct {
	Epoch uint64
	Tag   string
}

// Countdown is a per-session timer counted in whole ticks. Every Arm or
// Cancel starts a new epoch, so an Expiry from an earlier cycle can be told
// apart from the live one.
type Countdown struct {
	mu        sync.Mutex
	epoch     uint64
	armed     bool
	mode      Mode
	tag       string
	remaining int
	grace     int
	roster    []string
	ready     map[string]bool
}

func NewCountdown() *Countdown {
	return &Countdown{ready: make(map[string]bool)}
}

// Arm starts an immediate countdown of units ticks, replacing any armed cycle.
func (c *Countdown) Arm(tag string, units int) (Expiry, error) {
	if units <= 0 {
		return Expiry{}, ErrInvalidLength
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	c.armed = true
	c.mode = ModeImmediate
	c.tag = tag
	c.remaining = units
	return Expiry{Epoch: c.epoch, Tag: tag}, nil
}

// ArmReadyGated starts a ready-gated cycle for roster. Before any signal it
// force-fires after timeout ticks; the first signal caps the remaining time
// at grace ticks.
func (c *Countdown) ArmReadyGated(tag string, roster []string, timeout, grace int) (Expiry, error) {
	if timeout <= 0 || grace <= 0 {
		return Expiry{}, ErrInvalidLength
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	c.armed = true
	c.mode = ModeReadyGated
	c.tag = tag
	c.remaining = timeout
	c.grace = grace
	c.roster = slices.Clone(roster)
	return Expiry{Epoch: c.epoch, Tag: tag}, nil
}

// AddToRoster extends the roster of a ready-gated cycle.
func (c *Countdown) AddToRoster(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armed || c.mode != ModeReadyGated {
		return ErrNotGated
	}
	if !slices.Contains(c.roster, id) {
		c.roster = append(c.roster, id)
	}
	return nil
}

// Ready records a ready signal and reports whether the whole roster is ready.
func (c *Countdown) Ready(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armed || c.mode != ModeReadyGated {
		return false, ErrNotGated
	}
	if !slices.Contains(c.roster, id) {
		return false, ErrNotInRoster
	}
	first := len(c.ready) == 0
	c.ready[id] = true
	if first && c.remaining > c.grace {
		c.remaining = c.grace
	}
	return len(c.ready) == len(c.roster), nil
}

// Cancel disarms the countdown and invalidates every outstanding Expiry.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Tick advances an armed countdown by one unit. When it reaches zero it
// disarms and returns the expiry exactly once.
func (c *Countdown) Tick() (Expiry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armed {
		return Expiry{}, false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining > 0 {
		return Expiry{}, false
	}
	c.armed = false
	return Expiry{Epoch: c.epoch, Tag: c.tag}, true
}

// Current reports whether e belongs to the latest arm cycle.
func (c *Countdown) Current(e Expiry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return e.Epoch == c.epoch && e.Tag == c.tag
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

func (c *Countdown) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return ModeIdle
	}
	return c.mode
}

func (c *Countdown) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// reset must be called with mu held.
func (c *Countdown) reset() {
	c.epoch++
	c.armed = false
	c.mode = ModeIdle
	c.tag = ""
	c.remaining = 0
	c.grace = 0
	c.roster = nil
	clear(c.ready)
}
