package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/license"
	"github.com/remindhq/remind/internal/metrics"
)

// Paddle event types that issue a license. Everything else is acknowledged
// and ignored.
const (
	EventSubscriptionCreated  = "subscription.created"
	EventTransactionCompleted = "transaction.completed"
)

type paddleEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		Attributes struct {
			CustomerEmail string `json:"customer_email"`
			ProductID     string `json:"product_id"`
		} `json:"attributes"`
	} `json:"data"`
}

// IssuedLicense is the result of a processed purchase event.
type IssuedLicense struct {
	Email string
	Token string
	Tier  license.PlanTier
}

// Service turns verified Paddle purchase events into license tokens.
type Service struct {
	licenses license.Store
	mailer   Mailer
	cfg      config.PaddleConfig
	now      func() time.Time
}

// NewService creates a billing Service.
func NewService(licenses license.Store, mailer Mailer, cfg config.PaddleConfig) *Service {
	return &Service{
		licenses: licenses,
		mailer:   mailer,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// VerifySignature checks the X-Paddle-Signature header against an
// HMAC-SHA256 of the raw body. A missing secret rejects everything.
func (s *Service) VerifySignature(body []byte, signature string) bool {
	if s.cfg.WebhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleEvent processes a verified webhook body. It returns (nil, nil) for
// event types and products that issue no license; Paddle still expects a 200
// for those.
func (s *Service) HandleEvent(ctx context.Context, body []byte) (*IssuedLicense, error) {
	var ev paddleEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("parsing paddle event: %w", err)
	}

	switch ev.EventType {
	case EventSubscriptionCreated, EventTransactionCompleted:
	default:
		return nil, nil
	}

	email := ev.Data.Attributes.CustomerEmail
	productID := ev.Data.Attributes.ProductID
	if email == "" || productID == "" {
		return nil, nil
	}

	tierName, ok := s.cfg.ProductMapping[productID]
	if !ok {
		slog.Warn("paddle product not mapped to a tier", "product_id", productID)
		return nil, nil
	}
	tier := license.PlanTier(tierName)
	if !tier.Valid() {
		return nil, fmt.Errorf("product %s maps to unknown tier %q", productID, tierName)
	}

	token, err := license.MintToken(tier)
	if err != nil {
		return nil, err
	}

	user := &license.User{
		ID:        uuid.New(),
		Token:     token,
		Email:     email,
		PlanTier:  tier,
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.licenses.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("persisting license: %w", err)
	}

	metrics.LicensesIssuedTotal.WithLabelValues(string(tier)).Inc()

	// The license exists once it is persisted. A mail failure is not a
	// reason to make Paddle retry and mint a second token.
	if err := s.mailer.SendLicense(email, token, tier); err != nil {
		slog.Error("sending license email", "error", err, "email", email)
	}

	return &IssuedLicense{Email: email, Token: token, Tier: tier}, nil
}
