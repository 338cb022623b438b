package clock

import "time"

type Clock interface {
	Now() time.Time
	Advance(d time.Duration)
	Reset()
}

// Config.Start freezes the clock at that instant; it then only moves with
// Advance. A zero Start follows the wall clock.
type Config struct {
	Start time.Time
}

var DefaultConfig = Config{}

type clock struct {
	start time.Time
	delta time.Duration
}

func (c *clock) Now() time.Time {
	if c.start.IsZero() {
		return time.Now().Add(c.delta)
	}
	return c.start.Add(c.delta)
}

func (c *clock) Advance(d time.Duration) {
	c.delta += d
}

func (c *clock) Reset() {
	c.delta = 0
}

func Make(config ...Config) Clock {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	return &clock{start: cfg.Start}
}
