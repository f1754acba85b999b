package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"tradesim-engine/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// CandlePattern matches every live candle channel.
const CandlePattern = "pub:candle:*"

// Subscriber receives live candles published by any Publisher.
type Subscriber struct {
	client *goredis.Client
}

// NewSubscriber creates a Subscriber on an existing client.
func NewSubscriber(client *goredis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Run pattern-subscribes to CandlePattern and calls handle for every
// decodable message. Blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context, handle func(model.StreamCandle)) error {
	pubsub := s.client.PSubscribe(ctx, CandlePattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", CandlePattern, err)
	}
	log.Printf("[redis] subscribed to %s", CandlePattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c, err := DecodeMessage(msg.Channel, msg.Payload)
			if err != nil {
				log.Printf("[redis] dropping message on %s: %v", msg.Channel, err)
				continue
			}
			handle(c)
		}
	}
}

// DecodeMessage parses a candle payload and checks it against its channel.
func DecodeMessage(channel, payload string) (model.StreamCandle, error) {
	var c model.StreamCandle
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return c, fmt.Errorf("decode candle: %w", err)
	}
	tf, symbol, ok := ParseChannel(channel)
	if !ok {
		return c, fmt.Errorf("not a candle channel: %q", channel)
	}
	if c.Symbol == "" {
		c.Symbol = symbol
	}
	if c.Timeframe == "" {
		c.Timeframe = tf
	}
	if c.Symbol != symbol || c.Timeframe != tf {
		return c, fmt.Errorf("payload %s/%s does not match channel %q", c.Symbol, c.Timeframe, channel)
	}
	return c, nil
}

// ParseChannel splits "pub:candle:{tf}:{symbol}".
func ParseChannel(channel string) (model.Timeframe, string, bool) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[0] != "pub" || parts[1] != "candle" || parts[3] == "" {
		return "", "", false
	}
	return model.Timeframe(parts[2]), parts[3], true
}
