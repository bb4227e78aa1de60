package wayforpay

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
)

// Verification is the outcome of a callback signature check. An empty
// secret yields Unknown, never Invalid: absent configuration must not
// be conflated with a forged signature.
type Verification int

const (
	VerificationUnknown Verification = iota
	VerificationValid
	VerificationInvalid
)

func (v Verification) String() string {
	switch v {
	case VerificationValid:
		return "valid"
	case VerificationInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Sign computes the gateway's HMAC-MD5 over the ";"-joined fields,
// lowercase hex encoded. Field order is load-bearing: reordering
// silently invalidates every signature.
func Sign(secret string, fields ...string) string {
	mac := hmac.New(md5.New, []byte(secret))
	mac.Write([]byte(strings.Join(fields, ";")))
	return hex.EncodeToString(mac.Sum(nil))
}

// FormatAmount renders an amount exactly as it appears in the request
// JSON (shortest decimal form), so both signature sides join the same
// string.
func FormatAmount(a float64) string {
	return strconv.FormatFloat(a, 'f', -1, 64)
}

// InvoiceSignature signs an outbound invoice request. The product
// arrays are flattened in position order after the scalar fields.
func InvoiceSignature(secret, merchantAccount, merchantDomain, orderReference string, orderDate int64, amount float64, currency string, productNames []string, productCounts []int, productPrices []float64) string {
	fields := []string{
		merchantAccount,
		merchantDomain,
		orderReference,
		strconv.FormatInt(orderDate, 10),
		FormatAmount(amount),
		currency,
	}
	fields = append(fields, productNames...)
	for _, c := range productCounts {
		fields = append(fields, strconv.Itoa(c))
	}
	for _, p := range productPrices {
		fields = append(fields, FormatAmount(p))
	}
	return Sign(secret, fields...)
}

// CallbackSignature computes the expected merchantSignature of an
// inbound callback. Missing fields serialize as empty strings; the
// join always has exactly 8 segments. The amount joins as the exact
// wire text the gateway signed.
func CallbackSignature(secret string, cb *Callback) string {
	return Sign(secret,
		cb.MerchantAccount,
		cb.OrderReference,
		cb.Amount.String(),
		cb.Currency,
		cb.AuthCode,
		cb.CardPan,
		cb.TransactionStatus,
		cb.ReasonCode.String(),
	)
}

// AckSignature signs the acknowledgement body returned to the gateway:
// (orderReference, status, unix seconds).
func AckSignature(secret, orderReference, status string, unixTime int64) string {
	return Sign(secret, orderReference, status, strconv.FormatInt(unixTime, 10))
}

// VerifyCallback checks the callback's merchantSignature against the
// expected value. Comparison is case-insensitive so an upper-cased
// digest from either side never produces a false negative.
func VerifyCallback(secret string, cb *Callback) Verification {
	if secret == "" {
		return VerificationUnknown
	}

	expected := CallbackSignature(secret, cb)
	if hmac.Equal(
		[]byte(strings.ToLower(expected)),
		[]byte(strings.ToLower(cb.MerchantSignature)),
	) {
		return VerificationValid
	}
	return VerificationInvalid
}
