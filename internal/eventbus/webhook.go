package eventbus

import (
	"bytes"
	"context"
	cryptorand "crypto/rand"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
	"github.com/ironlayer/ironlayer/internal/governance"
	"github.com/ironlayer/ironlayer/internal/logging"
	"github.com/ironlayer/ironlayer/internal/resilience"
)

// validate is shared across every SubscriptionRequest validation call; the
// package docs note a *validator.Validate is safe for concurrent use once
// built, so one instance is cached rather than rebuilt per call.
var validate = validator.New()

// SubscriptionRequest is the tenant-supplied shape of a webhook
// subscription request, validated by struct tag before anything is
// constructed or persisted.
type SubscriptionRequest struct {
	TenantID   string   `validate:"required"`
	URL        string   `validate:"required,url"`
	EventTypes []string `validate:"required,min=1,dive,required"`
}

// Subscription is a tenant-configured webhook target. SecretHash is the
// bcrypt hash of the shared signing secret; the plaintext is handed back
// to the tenant exactly once at creation and never stored.
type Subscription struct {
	ID         string
	TenantID   string
	URL        string
	EventTypes map[EventType]bool
	SecretHash string
}

// Matches reports whether sub is subscribed to t.
func (sub Subscription) Matches(t EventType) bool {
	return sub.EventTypes[t]
}

// NewSubscriptionSecret generates a fresh signing secret and its bcrypt
// hash for storage, mirroring the API-key handling in governance.
func NewSubscriptionSecret() (plaintext string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := randRead(buf); err != nil {
		return "", "", err
	}
	plaintext = hex.EncodeToString(buf)
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return plaintext, string(h), nil
}

// Doer is the minimal HTTP client surface Dispatcher needs, satisfied by
// *http.Client and fakes in tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher delivers published events to subscribed webhook URLs,
// fire-and-forget: delivery failures are logged, retried up to three times
// with exponential backoff, and never propagated back to the publisher.
type Dispatcher struct {
	mu            sync.RWMutex
	subscriptions []Subscription
	secrets       map[string]string // subscription ID -> plaintext secret, held only in-process for signing
	client        Doer
	breaker       *resilience.Breaker
	retry         resilience.RetryConfig
	resolver      func(host string) ([]net.IP, error)
	logger        *logging.Logger
}

// NewDispatcher constructs a Dispatcher. resolver is used to re-validate a
// subscription's URL against SSRF at delivery time, not just at
// subscription-creation time, in case DNS has since been repointed.
func NewDispatcher(client Doer, resolver func(host string) ([]net.IP, error), logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		client:   client,
		breaker:  resilience.New(resilience.DefaultConfig("webhook")),
		retry:    resilience.DefaultRetryConfig(),
		resolver: resolver,
		logger:   logger,
		secrets:  make(map[string]string),
	}
}

// Subscribe validates sub.URL (well-formed, then against the SSRF guard)
// and registers it, remembering secretPlaintext in-process for signing
// outbound deliveries.
func (d *Dispatcher) Subscribe(sub Subscription, secretPlaintext string) error {
	req := SubscriptionRequest{TenantID: sub.TenantID, URL: sub.URL, EventTypes: eventTypeStrings(sub.EventTypes)}
	if err := validate.Struct(req); err != nil {
		return ironerrors.Validation("webhook_subscription", err.Error())
	}
	if err := governance.ValidateWebhookURL(sub.URL, d.resolver); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscriptions = append(d.subscriptions, sub)
	d.secrets[sub.ID] = secretPlaintext
	return nil
}

// Deliver publishes e to every matching subscription of e.TenantID,
// fire-and-forget: each delivery's error is logged and never returned.
func (d *Dispatcher) Deliver(ctx context.Context, e Event) {
	d.mu.RLock()
	var matched []Subscription
	for _, sub := range d.subscriptions {
		if sub.TenantID == e.TenantID && sub.Matches(e.Type) {
			matched = append(matched, sub)
		}
	}
	secrets := d.secrets
	d.mu.RUnlock()

	for _, sub := range matched {
		if err := d.deliverOne(ctx, sub, secrets[sub.ID], e); err != nil && d.logger != nil {
			d.logger.WithFields(map[string]interface{}{
				"subscription_id": sub.ID,
				"tenant_id":       sub.TenantID,
				"event_type":      string(e.Type),
				"error":           err.Error(),
			}).Error("webhook delivery failed after retries")
		}
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, sub Subscription, secret string, e Event) error {
	body, err := json.Marshal(struct {
		EventType EventType              `json:"event_type"`
		TenantID  string                 `json:"tenant_id"`
		Payload   map[string]interface{} `json:"payload"`
	}{e.Type, e.TenantID, e.Payload})
	if err != nil {
		return err
	}

	deliveryID := deliveryIDFor(sub.ID, body)
	signature := signBody(secret, body)

	return resilience.Retry(ctx, d.retry, func(ctx context.Context) error {
		return d.breaker.Execute(ctx, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Ironlayer-Signature", signature)
			req.Header.Set("X-Ironlayer-Event-Type", string(e.Type))
			req.Header.Set("X-Ironlayer-Delivery-Id", deliveryID)

			resp, err := d.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 500 {
				return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
			}
			if resp.StatusCode >= 400 {
				return resilience.Permanent(fmt.Errorf("webhook endpoint returned %d", resp.StatusCode))
			}
			return nil
		})
	})
}

// signBody computes the hex-encoded HMAC-SHA256 signature of body using
// the subscription's plaintext secret.
func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func deliveryIDFor(subscriptionID string, body []byte) string {
	h := sha256.Sum256(append([]byte(subscriptionID+"\x00"), body...))
	return hex.EncodeToString(h[:])[:32]
}

func randRead(buf []byte) (int, error) {
	return cryptorand.Read(buf)
}

func eventTypeStrings(types map[EventType]bool) []string {
	out := make([]string, 0, len(types))
	for t := range types {
		out = append(out, string(t))
	}
	return out
}
