package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"tavola/utils"
)

// PaymentLink is a created payment-link resource.
type PaymentLink struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
}

// Payment is a provider payment resource, fetched during verification.
type Payment struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
}

// Captured reports whether the provider considers the payment settled.
func (p Payment) Captured() bool {
	return p.Status == "captured" || p.Status == "authorized"
}

var ErrNotConfigured = errors.New("razorpay credentials not configured")

// Client is the payment gateway adapter.
type Client struct {
	keyID       string
	keySecret   string
	baseURL     string
	callbackURL string
	http        *http.Client
}

func New() *Client {
	backend := os.Getenv("BACKEND_URL")
	if backend == "" {
		backend = "http://localhost:8080"
	}
	return &Client{
		keyID:       os.Getenv("RAZORPAY_KEY_ID"),
		keySecret:   os.Getenv("RAZORPAY_KEY_SECRET"),
		baseURL:     "https://api.razorpay.com/v1",
		callbackURL: backend + "/payment/callback",
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

// NewWithBaseURL points the adapter at a stub server for tests.
func NewWithBaseURL(baseURL, keyID, keySecret, callbackURL string) *Client {
	return &Client{
		keyID:       keyID,
		keySecret:   keySecret,
		baseURL:     baseURL,
		callbackURL: callbackURL,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if c.keyID == "" || c.keySecret == "" {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("razorpay %s %s: %d %s", method, path, resp.StatusCode, string(raw))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreatePaymentLink creates a provider payment link for the order. Amounts
// are in paise with a provider-imposed floor of one rupee.
func (c *Client) CreatePaymentLink(ctx context.Context, amount float64, orderID, customerID, customerName string) (PaymentLink, error) {
	paise := int64(amount * 100)
	if paise < 100 {
		paise = 100
	}

	payload := map[string]interface{}{
		"amount":      paise,
		"currency":    "INR",
		"description": fmt.Sprintf("Restaurant Order #%s", utils.ShortID(orderID)),
		"customer": map[string]interface{}{
			"name":    customerName,
			"contact": customerID,
			"email":   customerID + "@restaurant.com",
		},
		"notify":          map[string]interface{}{"sms": true, "whatsapp": true},
		"reminder_enable": true,
		"notes": map[string]interface{}{
			"orderId":       orderID,
			"customerPhone": customerID,
		},
		"callback_url":    c.callbackURL,
		"callback_method": "get",
	}

	var link PaymentLink
	if err := c.do(ctx, http.MethodPost, "/payment_links", payload, &link); err != nil {
		return PaymentLink{}, err
	}
	return link, nil
}

// FetchPayment looks a payment up by its provider id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// VerifySignature recomputes the webhook HMAC over the exact received body
// and compares it to the supplied header value in constant time.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
