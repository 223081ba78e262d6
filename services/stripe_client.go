package services

import (
	"bytes"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
)

// CheckoutProvider creates hosted checkout sessions for the embedded gateway
// surface and parses the gateway's webhook callbacks.
type CheckoutProvider interface {
	CreateCheckoutSession(amount int64, currency, orderReference, purpose string) (sessionID, checkoutURL string, err error)
}

type StripeService struct {
	SecretKey  string
	WebhookKey string
	SuccessURL string
	CancelURL  string
}

func NewStripeService(secretKey, webhookKey, successURL, cancelURL string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{SecretKey: secretKey, WebhookKey: webhookKey, SuccessURL: successURL, CancelURL: cancelURL}
}

func (s *StripeService) CreateCheckoutSession(amount int64, currency, orderReference, purpose string) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(orderReference),
		SuccessURL:        stripe.String(s.SuccessURL),
		CancelURL:         stripe.String(s.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(purpose),
					},
				},
			},
		},
	}
	sess, err := session.New(params)
	if err != nil {
		return "", "", err
	}
	return sess.ID, sess.URL, nil
}

func (s *StripeService) ParseWebhook(r *http.Request) (stripe.Event, error) {
	var event stripe.Event
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return event, err
	}
	r.Body = io.NopCloser(bytes.NewBuffer(payload))
	sigHeader := r.Header.Get("Stripe-Signature")
	return webhook.ConstructEvent(payload, sigHeader, s.WebhookKey)
}
