package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload строит заголовок Stripe-Signature так же, как его строит Stripe
func signPayload(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d", ts.Unix())))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

// eventPayload собирает JSON события с объектом данных
func eventPayload(eventType string, object string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_test_1","object":"event","api_version":%q,"type":%q,"created":%d,"data":{"object":%s}}`,
		stripe.APIVersion, eventType, time.Now().Unix(), object,
	))
}

func newTestVerifier(t *testing.T) *WebhookVerifier {
	t.Helper()
	verifier, err := NewWebhookVerifier(testWebhookSecret, logger.New(logger.ERROR))
	require.NoError(t, err)
	return verifier
}

func TestNewWebhookVerifierRequiresSecret(t *testing.T) {
	_, err := NewWebhookVerifier("", logger.New(logger.ERROR))
	assert.ErrorIs(t, err, domain.ErrMissingConfiguration)
}

func TestVerifyAndDecodeRejectsInvalidSignature(t *testing.T) {
	verifier := newTestVerifier(t)
	payload := eventPayload("checkout.session.completed", `{"id":"cs_1"}`)

	// Подпись другим секретом
	header := signPayload("whsec_wrong_secret", payload, time.Now())
	_, err := verifier.VerifyAndDecode(payload, header)
	assert.ErrorIs(t, err, domain.ErrSignatureVerification)

	// Отсутствие заголовка
	_, err = verifier.VerifyAndDecode(payload, "")
	assert.ErrorIs(t, err, domain.ErrSignatureVerification)
}

func TestVerifyAndDecodeRejectsTamperedPayload(t *testing.T) {
	verifier := newTestVerifier(t)
	payload := eventPayload("checkout.session.completed", `{"id":"cs_1"}`)
	header := signPayload(testWebhookSecret, payload, time.Now())

	tampered := eventPayload("checkout.session.completed", `{"id":"cs_evil"}`)
	_, err := verifier.VerifyAndDecode(tampered, header)
	assert.ErrorIs(t, err, domain.ErrSignatureVerification)
}

func TestVerifyAndDecodeCheckoutSession(t *testing.T) {
	verifier := newTestVerifier(t)
	payload := eventPayload("checkout.session.completed",
		`{"id":"cs_1","customer":"cus_1","subscription":"sub_1","metadata":{"uid":"user-1"}}`)
	header := signPayload(testWebhookSecret, payload, time.Now())

	event, err := verifier.VerifyAndDecode(payload, header)
	require.NoError(t, err)

	assert.Equal(t, "evt_test_1", event.ID)
	assert.Equal(t, domain.EventCheckoutSessionCompleted, event.Type)
	require.NotNil(t, event.CheckoutSession)
	assert.Equal(t, "cs_1", event.CheckoutSession.ID)
	assert.Equal(t, "cus_1", event.CheckoutSession.CustomerID)
	assert.Equal(t, "sub_1", event.CheckoutSession.SubscriptionID)
	assert.Equal(t, "user-1", event.CheckoutSession.Metadata[domain.MetadataUserIDKey])
}

func TestVerifyAndDecodeSubscription(t *testing.T) {
	verifier := newTestVerifier(t)
	payload := eventPayload("customer.subscription.updated",
		`{"id":"sub_1","customer":"cus_1","status":"past_due","metadata":{"uid":"user-1"}}`)
	header := signPayload(testWebhookSecret, payload, time.Now())

	event, err := verifier.VerifyAndDecode(payload, header)
	require.NoError(t, err)

	assert.Equal(t, domain.EventSubscriptionUpdated, event.Type)
	require.NotNil(t, event.Subscription)
	assert.Equal(t, "sub_1", event.Subscription.ID)
	assert.Equal(t, domain.SubscriptionStatusPastDue, event.Subscription.Status)
	assert.Equal(t, "user-1", event.Subscription.Metadata[domain.MetadataUserIDKey])
}

func TestVerifyAndDecodeInvoice(t *testing.T) {
	verifier := newTestVerifier(t)
	payload := eventPayload("invoice.payment_succeeded",
		`{"id":"in_1","customer":"cus_1","subscription":"sub_1"}`)
	header := signPayload(testWebhookSecret, payload, time.Now())

	event, err := verifier.VerifyAndDecode(payload, header)
	require.NoError(t, err)

	assert.Equal(t, domain.EventInvoicePaymentSucceeded, event.Type)
	require.NotNil(t, event.Invoice)
	assert.Equal(t, "in_1", event.Invoice.ID)
	assert.Equal(t, "sub_1", event.Invoice.SubscriptionID)
}

func TestVerifyAndDecodeUnknownTypeKeepsHeaderOnly(t *testing.T) {
	verifier := newTestVerifier(t)
	payload := eventPayload("customer.created", `{"id":"cus_1"}`)
	header := signPayload(testWebhookSecret, payload, time.Now())

	event, err := verifier.VerifyAndDecode(payload, header)
	require.NoError(t, err)

	assert.Equal(t, domain.EventType("customer.created"), event.Type)
	assert.Nil(t, event.CheckoutSession)
	assert.Nil(t, event.Subscription)
	assert.Nil(t, event.Invoice)
	assert.Nil(t, event.PaymentIntent)
}
