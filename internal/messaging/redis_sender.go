package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"kliklens/studioops/internal/config"
)

// RedisSender stores a representation of each message in Redis. Test
// harnesses read the keys back to assert on what would have been sent.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender.
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
	}
}

// Send stores the message in Redis instead of delivering it.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	// Classify the message by subject so test keys are stable.
	kind := "unknown"
	switch {
	case strings.Contains(subject, "konfirmasi") && strings.Contains(subject, "Pengingat"):
		kind = "follow_up"
	case strings.Contains(subject, "konfirmasi"):
		kind = "confirmation_request"
	case strings.Contains(subject, "Booking"):
		kind = "booking_ack"
	case strings.Contains(subject, "Pembayaran"):
		kind = "payment_receipt"
	}

	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	messageData := map[string]interface{}{
		"to":      strings.Join(to, ", "),
		"from":    s.cfg.SmtpFromAddress,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		"kind":    kind,
	}

	jsonData, err := json.Marshal(messageData)
	if err != nil {
		return fmt.Errorf("failed to marshal message data: %w", err)
	}

	key := fmt.Sprintf("mockmessage:%s:%s", primaryTo, kind)
	ttl := 5 * time.Minute

	if err := s.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store message in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock message stored in Redis key '%s' (TTL: %v, To: %s, Subject: %s)", key, ttl, strings.Join(to, ", "), subject)
	return nil
}
