package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/config"
)

// mockEmailTTL bounds how long captured test emails linger in Redis.
const mockEmailTTL = 5 * time.Minute

// RedisSender captures emails in Redis instead of delivering them. Used
// by integration tests (MOCK_SERVICES=true) to assert on notifications
// without a real mailbox.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a RedisSender.
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{client: client, cfg: cfg}
}

// Send pushes a JSON record of the email onto a per-recipient list
// (key "mockemail:<address>", newest first).
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	record := map[string]interface{}{
		"to":      strings.Join(to, ", "),
		"from":    s.cfg.SmtpFromAddress,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal email record: %w", err)
	}

	for _, addr := range to {
		key := fmt.Sprintf("mockemail:%s", addr)
		pipe := s.client.TxPipeline()
		pipe.LPush(ctx, key, jsonData)
		pipe.Expire(ctx, key, mockEmailTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
		}
	}

	log.Printf("Mock email captured in Redis (To: %s, Subject: %s)", strings.Join(to, ", "), subject)
	return nil
}
