package control

import "time"

type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreaker is a minimal per-error-code breaker for tool execution.
// A streak of failures in one code opens the circuit; after the cooldown
// a single probe call is allowed through.
type CircuitBreaker struct {
	Threshold int
	Cooldown  time.Duration

	state      CircuitState
	failures   map[string]int
	openedAt   time.Time
	openedCode string
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		Threshold: threshold,
		Cooldown:  cooldown,
		state:     CircuitClosed,
		failures:  map[string]int{},
	}
}

func (c *CircuitBreaker) State() CircuitState {
	return c.state
}

// Allow returns whether a new tool call is allowed at this instant.
func (c *CircuitBreaker) Allow(now time.Time) bool {
	if c.state != CircuitOpen {
		return true
	}
	if now.Sub(c.openedAt) >= c.Cooldown {
		c.state = CircuitHalfOpen
		return true
	}
	return false
}

// RecordSuccess closes the circuit and clears all failure streaks.
func (c *CircuitBreaker) RecordSuccess() {
	c.state = CircuitClosed
	c.openedCode = ""
	c.failures = map[string]int{}
}

// RecordFailure counts a failure under the given error code. A failed
// half-open probe reopens the circuit immediately.
func (c *CircuitBreaker) RecordFailure(code string, now time.Time) {
	if code == "" {
		code = "unknown"
	}
	if c.state == CircuitHalfOpen {
		c.state = CircuitOpen
		c.openedAt = now
		c.openedCode = code
		return
	}
	c.failures[code]++
	if c.failures[code] >= c.Threshold {
		c.state = CircuitOpen
		c.openedAt = now
		c.openedCode = code
	}
}

// OpenedCode reports which error code opened the circuit.
func (c *CircuitBreaker) OpenedCode() string {
	return c.openedCode
}
