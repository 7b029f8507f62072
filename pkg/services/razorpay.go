package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"pos_settlement/pkg/apperr"

	"github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
)

var (
	razorpayClient *razorpay.Client
)

// InitRazorpay initializes the Razorpay client
func InitRazorpay() error {
	keyID := os.Getenv("RAZORPAY_KEY_ID")
	keySecret := os.Getenv("RAZORPAY_KEY_SECRET")

	if keyID == "" || keySecret == "" {
		fmt.Println("Warning: RAZORPAY_KEY_ID or RAZORPAY_KEY_SECRET not set")
		return nil // Don't fail init, just warn
	}

	razorpayClient = razorpay.NewClient(keyID, keySecret)
	return nil
}

// GatewayCheck is what a card/upi payment claims about its gateway capture.
type GatewayCheck struct {
	PaymentID string
	OrderID   string
	Signature string
	Amount    decimal.Decimal
}

// RazorpayGateway verifies card/upi captures against Razorpay.
type RazorpayGateway struct {
	keySecret string
	fetch     func(paymentID string) (map[string]interface{}, error)
}

// NewRazorpayGateway returns nil when Razorpay is not configured.
func NewRazorpayGateway() *RazorpayGateway {
	if razorpayClient == nil {
		return nil
	}
	return &RazorpayGateway{
		keySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		fetch:     FetchPaymentDetails,
	}
}

// VerifyPayment checks the signature when supplied, then confirms the payment
// is captured for exactly the claimed amount.
func (g *RazorpayGateway) VerifyPayment(ctx context.Context, check GatewayCheck) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if check.Signature != "" && !VerifyPaymentSignature(g.keySecret, check.OrderID, check.PaymentID, check.Signature) {
		return apperr.New(apperr.CodeGatewayVerificationFailed, "payment signature mismatch")
	}

	details, err := g.fetch(check.PaymentID)
	if err != nil {
		return apperr.Wrap(apperr.CodeGatewayVerificationFailed, "could not verify gateway payment", err)
	}

	if status, _ := details["status"].(string); status != "captured" {
		return apperr.New(apperr.CodeGatewayVerificationFailed, fmt.Sprintf("gateway payment is %q, not captured", status))
	}

	paise, ok := details["amount"].(float64)
	if !ok {
		return apperr.New(apperr.CodeGatewayVerificationFailed, "gateway payment has no amount")
	}
	want := check.Amount.Mul(decimal.NewFromInt(100)).Round(0)
	if !decimal.NewFromFloat(paise).Equal(want) {
		return apperr.New(apperr.CodeGatewayVerificationFailed,
			fmt.Sprintf("gateway captured %s, payment claims %s", decimal.NewFromFloat(paise/100).StringFixed(2), check.Amount.StringFixed(2)))
	}
	return nil
}

// FetchPaymentDetails fetches payment details from Razorpay
func FetchPaymentDetails(paymentID string) (map[string]interface{}, error) {
	if razorpayClient == nil {
		return nil, fmt.Errorf("Razorpay client not initialized")
	}

	body, err := razorpayClient.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment details: %v", err)
	}

	return body, nil
}

// VerifyPaymentSignature verifies the Razorpay payment signature
func VerifyPaymentSignature(keySecret, orderID, paymentID, signature string) bool {
	if keySecret == "" {
		return false
	}

	data := orderID + "|" + paymentID
	h := hmac.New(sha256.New, []byte(keySecret))
	h.Write([]byte(data))
	expectedSignature := hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(expectedSignature), []byte(signature))
}
