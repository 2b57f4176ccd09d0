package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ridecore/internal/domain"
)

const callbackBase = "https://api.example.com/v1/payments/callback"

func checkoutRequest() CheckoutRequest {
	return CheckoutRequest{TransactionID: "tx-1", RideID: "ride-1", Amount: 25000, Currency: "UZS"}
}

func TestCallbackURLs_For(t *testing.T) {
	t.Parallel()

	got := NewCallbackURLs(callbackBase).For(domain.PaymentMethodStripe, "tx-1", "status", "success")
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("invalid url %q: %v", got, err)
	}
	q := u.Query()
	if q.Get("provider") != "stripe" || q.Get("tx") != "tx-1" || q.Get("status") != "success" {
		t.Errorf("unexpected query %v", q)
	}
	if !strings.HasPrefix(got, callbackBase+"?") {
		t.Errorf("unexpected base in %q", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(CashProvider{})
	if !r.Supports(domain.PaymentMethodCash) {
		t.Error("expected cash supported")
	}
	if _, err := r.Get(domain.PaymentMethodPayme); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestClickCheckout(t *testing.T) {
	t.Parallel()

	signer := NewCallbackSigner("secret", time.Hour)
	p := NewClickProvider(ClickConfig{MerchantID: "m-1", ServiceID: "s-1"}, NewCallbackURLs(callbackBase), signer)
	checkout, err := p.Checkout(context.Background(), checkoutRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, _ := url.Parse(checkout.RedirectURL)
	q := u.Query()
	if q.Get("amount") != "25000" || q.Get("transaction_param") != "tx-1" || q.Get("service_id") != "s-1" {
		t.Errorf("unexpected click query %v", q)
	}
	ret, err := url.Parse(q.Get("return_url"))
	if err != nil {
		t.Fatalf("invalid return url: %v", err)
	}
	if ret.Query().Get("provider") != "click" || ret.Query().Get("tx") != "tx-1" {
		t.Errorf("unexpected return url %s", ret)
	}
	if err := signer.Verify(ret.Query().Get("sig"), "tx-1", NotifyStatus); err != nil {
		t.Errorf("expected signed return url: %v", err)
	}

	unconfigured := NewClickProvider(ClickConfig{}, NewCallbackURLs(callbackBase), signer)
	checkout, _ = unconfigured.Checkout(context.Background(), checkoutRequest())
	if !checkout.Simulated || checkout.RedirectURL != "" {
		t.Errorf("expected simulated checkout, got %+v", checkout)
	}
}

func TestPaymeCheckoutEncodesTiyin(t *testing.T) {
	t.Parallel()

	signer := NewCallbackSigner("secret", time.Hour)
	p := NewPaymeProvider(PaymeConfig{MerchantID: "m-1"}, NewCallbackURLs(callbackBase), signer)
	checkout, err := p.Checkout(context.Background(), checkoutRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	encoded := strings.TrimPrefix(checkout.RedirectURL, paymeCheckoutURL)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("expected base64 params: %v", err)
	}
	var params paymeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		t.Fatalf("expected json params: %v", err)
	}
	if params.Amount != 2500000 || params.Account.OrderID != "tx-1" || params.Merchant != "m-1" {
		t.Errorf("unexpected params %+v", params)
	}
	cbURL, err := url.Parse(params.Callback)
	if err != nil {
		t.Fatalf("invalid callback url: %v", err)
	}
	if err := signer.Verify(cbURL.Query().Get("sig"), "tx-1", NotifyStatus); err != nil {
		t.Errorf("expected signed callback url: %v", err)
	}
}

func TestCashCheckout(t *testing.T) {
	t.Parallel()

	checkout, err := CashProvider{}.Checkout(context.Background(), checkoutRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checkout.Provider != domain.PaymentMethodCash || checkout.RedirectURL != "" {
		t.Errorf("unexpected cash checkout %+v", checkout)
	}
}

// ──────────────────────────────────────────────
// STRIPE
// ──────────────────────────────────────────────

func TestStripeCheckout(t *testing.T) {
	t.Parallel()

	var form url.Values
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.com/c/cs_test_1"}`))
	}))
	defer srv.Close()

	signer := NewCallbackSigner("secret", time.Hour)
	p := NewStripeProvider(StripeConfig{SecretKey: "sk_test", Endpoint: srv.URL}, srv.Client(), NewCallbackURLs(callbackBase), signer)

	checkout, err := p.Checkout(context.Background(), checkoutRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checkout.SessionID != "cs_test_1" || checkout.RedirectURL == "" {
		t.Errorf("unexpected checkout %+v", checkout)
	}
	if auth != "Bearer sk_test" {
		t.Errorf("unexpected auth header %q", auth)
	}
	// 25000 UZS at 12500 per USD is $2.00
	if got := form.Get("line_items[0][price_data][unit_amount]"); got != "200" {
		t.Errorf("expected 200 cents, got %s", got)
	}
	if form.Get("metadata[transaction_id]") != "tx-1" {
		t.Errorf("expected transaction metadata, got %v", form)
	}

	success, _ := url.Parse(form.Get("success_url"))
	q := success.Query()
	if err := signer.Verify(q.Get("sig"), "tx-1", "success"); err != nil {
		t.Errorf("expected signed success url: %v", err)
	}
}

func TestStripeCheckoutError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key provided"}}`))
	}))
	defer srv.Close()

	p := NewStripeProvider(StripeConfig{SecretKey: "sk_bad", Endpoint: srv.URL}, srv.Client(), NewCallbackURLs(callbackBase), NewCallbackSigner("secret", 0))
	_, err := p.Checkout(context.Background(), checkoutRequest())
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid API Key") {
		t.Errorf("expected provider message in error, got %v", err)
	}
}

func TestStripeUnconfiguredIsSimulated(t *testing.T) {
	t.Parallel()

	p := NewStripeProvider(StripeConfig{}, nil, NewCallbackURLs(callbackBase), NewCallbackSigner("secret", 0))
	checkout, err := p.Checkout(context.Background(), checkoutRequest())
	if err != nil || !checkout.Simulated {
		t.Errorf("expected simulated checkout, got %+v %v", checkout, err)
	}
}

func TestUSDCents(t *testing.T) {
	t.Parallel()

	if got := USDCents(25000, 12500); got != 200 {
		t.Errorf("expected 200, got %d", got)
	}
	if got := USDCents(1, 12500); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

// ──────────────────────────────────────────────
// SIGNER AND CALLBACK PARSING
// ──────────────────────────────────────────────

func TestSigner_RejectsTamperingAndExpiry(t *testing.T) {
	t.Parallel()

	signer := NewCallbackSigner("secret", time.Minute)
	token, err := signer.Sign("tx-1", "success")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := signer.Verify(token, "tx-1", "success"); err != nil {
		t.Errorf("expected valid token, got %v", err)
	}
	if err := signer.Verify(token, "tx-1", "cancelled"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected status mismatch rejected, got %v", err)
	}
	if err := signer.Verify(token, "tx-2", "success"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected transaction mismatch rejected, got %v", err)
	}
	if err := NewCallbackSigner("other", time.Minute).Verify(token, "tx-1", "success"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected foreign key rejected, got %v", err)
	}

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if err := signer.Verify(token, "tx-1", "success"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected expired token rejected, got %v", err)
	}
}

// notifyQuery is the query of a signed Click or Payme callback URL.
func notifyQuery(t *testing.T, signer *CallbackSigner, provider, txID string) url.Values {
	t.Helper()
	sig, err := signer.Sign(txID, NotifyStatus)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return url.Values{"provider": {provider}, "tx": {txID}, "sig": {sig}}
}

func TestParse_Click(t *testing.T) {
	t.Parallel()

	signer := NewCallbackSigner("secret", time.Hour)
	parser := NewCallbackParser(signer)
	query := notifyQuery(t, signer, "click", "tx-1")

	cb, err := parser.Parse(query, []byte(`{"error":0,"click_trans_id":98765,"merchant_trans_id":"tx-1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.TransactionID != "tx-1" || cb.Outcome != OutcomeSuccess || cb.ExternalRef != "98765" {
		t.Errorf("unexpected callback %+v", cb)
	}

	cb, _ = parser.Parse(query, []byte(`{"error":-5017}`))
	if cb.Outcome != OutcomeFailed {
		t.Errorf("expected failed, got %s", cb.Outcome)
	}

	cb, _ = parser.Parse(query, nil)
	if cb.Reported() {
		t.Error("expected browser return without a verdict")
	}

	if _, err := parser.Parse(query, []byte(`{not json`)); !errors.Is(err, ErrMalformedCallback) {
		t.Errorf("expected ErrMalformedCallback, got %v", err)
	}
}

func TestParse_Payme(t *testing.T) {
	t.Parallel()

	signer := NewCallbackSigner("secret", time.Hour)
	parser := NewCallbackParser(signer)
	query := notifyQuery(t, signer, "payme", "tx-1")

	body := []byte(`{"result":{"transaction":"pm-1"},"params":{"account":{"order_id":"tx-1"}}}`)
	cb, err := parser.Parse(query, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.TransactionID != "tx-1" || cb.Outcome != OutcomeSuccess || cb.ExternalRef != "pm-1" {
		t.Errorf("unexpected callback %+v", cb)
	}

	cb, _ = parser.Parse(query, []byte(`{"error":{"code":-31050}}`))
	if cb.Outcome != OutcomeFailed {
		t.Errorf("expected failed, got %s", cb.Outcome)
	}
}

func TestParse_NotificationsRequireSignedURL(t *testing.T) {
	t.Parallel()

	signer := NewCallbackSigner("secret", time.Hour)
	parser := NewCallbackParser(signer)
	success := []byte(`{"error":0,"click_trans_id":1}`)

	_, err := parser.Parse(url.Values{"provider": {"click"}, "tx": {"tx-1"}}, success)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature without sig, got %v", err)
	}

	// A sig for one transaction does not cover another.
	query := notifyQuery(t, signer, "click", "tx-1")
	query.Set("tx", "tx-2")
	if _, err := parser.Parse(query, success); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for a reused sig, got %v", err)
	}

	// A Stripe return sig is bound to its status and cannot notify.
	stripeSig, _ := signer.Sign("tx-1", "success")
	query = url.Values{"provider": {"payme"}, "tx": {"tx-1"}, "sig": {stripeSig}}
	if _, err := parser.Parse(query, []byte(`{"result":{"transaction":"pm-1"}}`)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for a stripe sig, got %v", err)
	}

	forged := NewCallbackParser(NewCallbackSigner("other-secret", time.Hour))
	if _, err := forged.Parse(notifyQuery(t, signer, "click", "tx-1"), success); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature under another secret, got %v", err)
	}
}

func TestParse_BodyMustNameSignedTransaction(t *testing.T) {
	t.Parallel()

	signer := NewCallbackSigner("secret", time.Hour)
	parser := NewCallbackParser(signer)

	click := []byte(`{"error":0,"click_trans_id":1,"merchant_trans_id":"tx-2"}`)
	if _, err := parser.Parse(notifyQuery(t, signer, "click", "tx-1"), click); !errors.Is(err, ErrMalformedCallback) {
		t.Errorf("expected ErrMalformedCallback for click, got %v", err)
	}

	payme := []byte(`{"result":{"transaction":"pm-1"},"params":{"account":{"order_id":"tx-2"}}}`)
	if _, err := parser.Parse(notifyQuery(t, signer, "payme", "tx-1"), payme); !errors.Is(err, ErrMalformedCallback) {
		t.Errorf("expected ErrMalformedCallback for payme, got %v", err)
	}
}

func TestParse_StripeRequiresSignature(t *testing.T) {
	t.Parallel()

	signer := NewCallbackSigner("secret", time.Hour)
	parser := NewCallbackParser(signer)
	sig, _ := signer.Sign("tx-1", "success")

	cb, err := parser.Parse(url.Values{"provider": {"stripe"}, "tx": {"tx-1"}, "status": {"success"}, "sig": {sig}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.Outcome != OutcomeSuccess {
		t.Errorf("expected success, got %s", cb.Outcome)
	}

	_, err = parser.Parse(url.Values{"provider": {"stripe"}, "tx": {"tx-1"}, "status": {"success"}}, nil)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature without sig, got %v", err)
	}

	_, err = parser.Parse(url.Values{"provider": {"stripe"}, "tx": {"tx-1"}, "status": {"failed"}, "sig": {sig}}, nil)
	if !errors.Is(err, ErrMalformedCallback) {
		t.Errorf("expected ErrMalformedCallback for unsupported status, got %v", err)
	}
}

func TestParse_Rejections(t *testing.T) {
	t.Parallel()

	parser := NewCallbackParser(NewCallbackSigner("secret", 0))

	if _, err := parser.Parse(url.Values{"provider": {"paypal"}, "tx": {"tx-1"}}, nil); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := parser.Parse(url.Values{"provider": {"click"}}, nil); !errors.Is(err, ErrMalformedCallback) {
		t.Errorf("expected ErrMalformedCallback without transaction, got %v", err)
	}
}
