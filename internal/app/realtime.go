package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"ridecore/internal/config"
	"ridecore/internal/realtime"
)

// Realtime bundles the event fan-out and the local websocket hub.
type Realtime struct {
	Hub       *realtime.Hub
	Publisher realtime.Publisher

	relay *realtime.RedisRelay
	amqp  *realtime.AMQPPublisher
}

// NewRealtime assembles the event sinks. With the relay enabled, local
// delivery goes through Redis so each instance receives every event once.
// AMQP is optional; a broker that cannot be reached is logged and skipped.
func NewRealtime(cfg config.RealtimeConfig, amqpCfg config.AMQPConfig, redisClient *redis.Client) *Realtime {
	rt := &Realtime{Hub: realtime.NewHub(cfg.SendBuffer)}

	var sinks []realtime.Sink
	if cfg.RelayEnabled && redisClient != nil {
		rt.relay = realtime.NewRedisRelay(redisClient, cfg.RelayChannel, rt.Hub)
		sinks = append(sinks, rt.relay)
	} else {
		sinks = append(sinks, rt.Hub)
	}

	if amqpCfg.URL != "" {
		publisher, err := realtime.DialAMQP(amqpCfg.URL, amqpCfg.Exchange)
		if err != nil {
			log.Printf("[REALTIME] AMQP disabled: %v", err)
		} else {
			rt.amqp = publisher
			sinks = append(sinks, publisher)
			log.Printf("[REALTIME] publishing to AMQP exchange %s", amqpCfg.Exchange)
		}
	}

	rt.Publisher = realtime.NewFanout(sinks...)
	rt.Hub.OnInbound(realtime.NewChatRelay(rt.Publisher).Handle)
	return rt
}

// Relay reconnect pauses. The pause doubles after each failure and resets
// once a subscription has stayed up longer than relayMaxBackoff.
const (
	relayMinBackoff = time.Second
	relayMaxBackoff = 30 * time.Second
)

// Run drives the Redis relay subscription until ctx is cancelled,
// resubscribing after failures. It returns immediately when the relay is
// disabled.
func (rt *Realtime) Run(ctx context.Context) {
	if rt.relay == nil {
		return
	}
	runWithBackoff(ctx, "relay", rt.relay.Run, relayMinBackoff, relayMaxBackoff)
}

func runWithBackoff(ctx context.Context, name string, run func(context.Context) error, minDelay, maxDelay time.Duration) {
	delay := minDelay
	for {
		started := time.Now()
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("subscription closed")
		}
		if time.Since(started) > maxDelay {
			delay = minDelay
		}
		log.Printf("[REALTIME] %s stopped: %v, retrying in %s", name, err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// Close releases the broker connection.
func (rt *Realtime) Close() {
	if rt.amqp != nil {
		if err := rt.amqp.Close(); err != nil {
			log.Printf("[REALTIME] AMQP close: %v", err)
		}
	}
}
