package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shashiranjanraj/cartsync/internal/cart"
	"github.com/shashiranjanraj/cartsync/pkg/http"
	"github.com/shashiranjanraj/cartsync/pkg/logger"
)

// PaystackConfig configures both Paystack collaborators.
type PaystackConfig struct {
	BaseURL   string
	SecretKey string
	Currency  string
	// HTTP overrides the transport, mainly for tests.
	HTTP *http.Client
}

type paystack struct {
	api      *http.Client
	secret   string
	currency string
}

func newPaystack(cfg PaystackConfig) paystack {
	api := cfg.HTTP
	if api == nil {
		api = http.NewClient(cfg.BaseURL, nil)
	}
	return paystack{api: api, secret: cfg.SecretKey, currency: strings.ToUpper(cfg.Currency)}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// transaction is the "data" object shared by verify and charge responses.
type transaction struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
	Message         string `json:"message"`
}

func (t transaction) reason() string {
	if t.GatewayResponse != "" {
		return t.GatewayResponse
	}
	if t.Message != "" {
		return t.Message
	}
	return t.Status
}

// call sends req and decodes the envelope's data into out. Paystack reports
// business failures with status=false and a message.
func (p paystack) call(ctx context.Context, req *http.Request, out interface{}) error {
	resp, err := req.Bearer(p.secret).Timeout(30 * time.Second).Send(ctx)
	if err != nil {
		return err
	}
	var env envelope
	if err := resp.JSON(&env); err != nil {
		if tErr := resp.Throw(); tErr != nil {
			return tErr
		}
		return err
	}
	if !resp.OK() || !env.Status {
		return fmt.Errorf("%s (status %d)", env.Message, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// Authorization is handed to the Authorizer to complete the payment.
type Authorization struct {
	URL        string
	AccessCode string
	Reference  string
}

// Authorizer takes the customer to the gateway's payment page and returns
// once they are back. It returns ErrCancelled when the customer abandoned
// the page.
type Authorizer interface {
	Authorize(ctx context.Context, auth Authorization) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, auth Authorization) error

func (f AuthorizerFunc) Authorize(ctx context.Context, auth Authorization) error { return f(ctx, auth) }

// PaystackGateway initializes a transaction, lets the Authorizer complete it
// and then verifies the result server-side.
type PaystackGateway struct {
	paystack
	authorizer Authorizer
	newRef     func() string
}

func NewPaystackGateway(cfg PaystackConfig, authorizer Authorizer) *PaystackGateway {
	return &PaystackGateway{paystack: newPaystack(cfg), authorizer: authorizer, newRef: NewReference}
}

func (g *PaystackGateway) Checkout(ctx context.Context, amountMinor int64, email string) (GatewayResult, error) {
	if amountMinor <= 0 {
		return GatewayResult{}, fmt.Errorf("paystack: invalid amount %d", amountMinor)
	}
	log := logger.WithCtx(ctx)

	var init struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	// Not retried: a reply lost after Paystack created the transaction would
	// make the retry fail on the reused reference.
	req := g.api.Post("/transaction/initialize").Body(map[string]interface{}{
		"email":     email,
		"amount":    strconv.FormatInt(amountMinor, 10),
		"currency":  g.currency,
		"reference": g.newRef(),
	})
	if err := g.call(ctx, req, &init); err != nil {
		return GatewayResult{}, fmt.Errorf("paystack: initialize: %w", err)
	}
	log.Info("payment: paystack transaction initialized", "reference", init.Reference, "amount", amountMinor)

	err := g.authorizer.Authorize(ctx, Authorization{URL: init.AuthorizationURL, AccessCode: init.AccessCode, Reference: init.Reference})
	if errors.Is(err, ErrCancelled) {
		return GatewayResult{Outcome: OutcomeCancelled, Reference: init.Reference}, nil
	}
	if err != nil {
		return GatewayResult{Outcome: OutcomeFailed, Reference: init.Reference, Reason: err.Error()}, nil
	}

	var tx transaction
	if err := g.call(ctx, g.api.Get("/transaction/verify/"+init.Reference).Retry(3, time.Second), &tx); err != nil {
		log.Error("payment: paystack verify failed", "reference", init.Reference, "error", err)
		return GatewayResult{Outcome: OutcomeUnverified, Reference: init.Reference, Reason: err.Error()}, nil
	}

	switch {
	case tx.Status == "success" && tx.Amount != amountMinor:
		log.Error("payment: paystack amount mismatch", "reference", init.Reference, "want", amountMinor, "got", tx.Amount)
		return GatewayResult{Outcome: OutcomeFailed, Reference: init.Reference, Reason: "amount mismatch"}, nil
	case tx.Status == "success":
		return GatewayResult{Outcome: OutcomeSuccess, Reference: init.Reference}, nil
	case tx.Status == "abandoned":
		return GatewayResult{Outcome: OutcomeCancelled, Reference: init.Reference}, nil
	default:
		return GatewayResult{Outcome: OutcomeFailed, Reference: init.Reference, Reason: tx.reason()}, nil
	}
}

// PaystackCardProcessor charges stored card authorizations and new cards
// through Paystack's charge endpoints.
type PaystackCardProcessor struct {
	paystack
}

func NewPaystackCardProcessor(cfg PaystackConfig) *PaystackCardProcessor {
	return &PaystackCardProcessor{paystack: newPaystack(cfg)}
}

// Process never retries: a charge is not idempotent.
func (p *PaystackCardProcessor) Process(ctx context.Context, ch Charge) (CardResult, error) {
	body := map[string]interface{}{
		"email":    ch.Email,
		"amount":   strconv.FormatInt(cart.MinorUnits(ch.Amount), 10),
		"currency": p.currency,
	}
	path := "/charge"
	if ch.Card == nil {
		path = "/transaction/charge_authorization"
		body["authorization_code"] = ch.StoredCardID
	} else {
		body["card"] = map[string]string{
			"number":       strings.ReplaceAll(ch.Card.Number, " ", ""),
			"cvv":          ch.Card.CVV,
			"expiry_month": ch.Card.ExpiryMonth,
			"expiry_year":  ch.Card.ExpiryYear,
		}
	}

	var tx transaction
	if err := p.call(ctx, p.api.Post(path).Body(body), &tx); err != nil {
		return CardResult{}, fmt.Errorf("paystack: charge: %w", err)
	}
	if tx.Status != "success" {
		return CardResult{TransactionID: tx.Reference, Reason: tx.reason()}, nil
	}
	return CardResult{Approved: true, TransactionID: tx.Reference}, nil
}
