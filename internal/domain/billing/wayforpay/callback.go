package wayforpay

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Callback is the gateway's asynchronous payment notification.
// Delivery is at-least-once and may be JSON, form-encoded, or, as the
// gateway actually sends it, a JSON document wrapped in a form key.
type Callback struct {
	MerchantAccount string `json:"merchantAccount"`
	OrderReference  string `json:"orderReference"`

	// Amount keeps the wire text: the gateway signed the exact string it
	// sent ("5.40", not "5.4"), so re-serializing a parsed float would
	// reject genuine callbacks. Empty when absent.
	Amount json.Number `json:"amount,omitempty"`

	Currency          string      `json:"currency"`
	AuthCode          string      `json:"authCode"`
	CardPan           string      `json:"cardPan"`
	TransactionStatus string      `json:"transactionStatus"`
	ReasonCode        json.Number `json:"reasonCode,omitempty"`
	RecToken          string      `json:"recToken"`
	Email             string      `json:"email"`
	Phone             string      `json:"phone"`
	MerchantSignature string      `json:"merchantSignature"`
}

// Ack is the body the receiver must always answer with. Anything other
// than a 200 with this shape makes the gateway retry for days.
type Ack struct {
	OrderReference string `json:"orderReference"`
	Status         string `json:"status"`
	Time           int64  `json:"time"`
	Signature      string `json:"signature"`
}

// AckStatusAccept is the literal acknowledgement token.
const AckStatusAccept = "accept"

// BuildAck constructs a signed acknowledgement for the given order.
func BuildAck(secret, orderReference string, unixTime int64) Ack {
	return Ack{
		OrderReference: orderReference,
		Status:         AckStatusAccept,
		Time:           unixTime,
		Signature:      AckSignature(secret, orderReference, AckStatusAccept, unixTime),
	}
}

// ParseCallback decodes a callback body of any of the delivery shapes.
func ParseCallback(contentType string, body []byte) (*Callback, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, fmt.Errorf("empty callback body")
	}

	// Plain JSON document.
	if strings.Contains(contentType, "json") || strings.HasPrefix(trimmed, "{") {
		var cb Callback
		if err := json.Unmarshal([]byte(trimmed), &cb); err != nil {
			return nil, fmt.Errorf("decode callback json: %w", err)
		}
		return &cb, nil
	}

	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode callback form: %w", err)
	}

	// The gateway url-encodes the whole JSON document as a single form
	// key with an empty value.
	for key, vals := range values {
		if strings.HasPrefix(strings.TrimSpace(key), "{") && (len(vals) == 0 || vals[0] == "") {
			var cb Callback
			if err := json.Unmarshal([]byte(key), &cb); err != nil {
				return nil, fmt.Errorf("decode wrapped callback json: %w", err)
			}
			return &cb, nil
		}
	}

	return callbackFromForm(values), nil
}

// callbackFromForm maps ordinary form fields onto the callback.
func callbackFromForm(values url.Values) *Callback {
	return &Callback{
		MerchantAccount:   values.Get("merchantAccount"),
		OrderReference:    values.Get("orderReference"),
		Amount:            json.Number(values.Get("amount")),
		Currency:          values.Get("currency"),
		AuthCode:          values.Get("authCode"),
		CardPan:           values.Get("cardPan"),
		TransactionStatus: values.Get("transactionStatus"),
		ReasonCode:        json.Number(values.Get("reasonCode")),
		RecToken:          values.Get("recToken"),
		Email:             values.Get("email"),
		Phone:             values.Get("phone"),
		MerchantSignature: values.Get("merchantSignature"),
	}
}
