package port

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// ReconnectConfig configures reconnection behavior
type ReconnectConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int // 0 = infinite
}

// DefaultReconnectConfig returns sensible defaults
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
	}
}

// next returns the delay that follows d.
func (c *ReconnectConfig) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * c.Multiplier)
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

func (p *LinePort) dialWithBackoff(ctx context.Context) (net.Conn, error) {
	cfg := p.reconnect
	delay := cfg.InitialDelay

	for attempt := 1; ; attempt++ {
		conn, err := p.dial(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("Reconnected")
			}
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrEndpointUnreachable, attempt, err)
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("Connection failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = cfg.next(delay)
	}
}
