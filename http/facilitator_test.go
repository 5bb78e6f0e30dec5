package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	shadowwire "github.com/Radrdotfun/ShadowWire"
)

func testRequirement() shadowwire.PaymentRequirement {
	return shadowwire.PaymentRequirement{
		Scheme:   shadowwire.SchemeShadowWire,
		Network:  shadowwire.NetworkMainnet,
		Amount:   "10000",
		Asset:    "USDC",
		PayTo:    "merchant",
		Resource: "/api/premium",
	}
}

func TestFacilitatorVerifySuccess(t *testing.T) {
	var gotBody verifyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("path = %q, want /verify", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("X-Api-Key = %q, want %q", r.Header.Get("X-Api-Key"), "secret")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(shadowwire.VerifyResult{Valid: true, Payer: "payer1", Amount: "10000"})
	}))
	defer server.Close()

	client := &FacilitatorClient{BaseURL: server.URL, APIKey: "secret"}
	result := client.Verify(context.Background(), "header-value", testRequirement())

	if !result.Valid {
		t.Fatalf("Verify failed: %s", result.Error)
	}
	if result.Payer != "payer1" {
		t.Errorf("Payer = %q, want %q", result.Payer, "payer1")
	}
	if gotBody.PaymentHeader != "header-value" || gotBody.Resource != "/api/premium" {
		t.Errorf("request body = %+v", gotBody)
	}
}

func TestFacilitatorSettleSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settle" {
			t.Errorf("path = %q, want /settle", r.URL.Path)
		}
		var gotBody settleRequest
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if gotBody.MerchantWallet != "merchant" || gotBody.Amount != "10000" || gotBody.Asset != "USDC" {
			t.Errorf("request body = %+v", gotBody)
		}
		json.NewEncoder(w).Encode(shadowwire.SettleResult{Success: true, TxHash: "tx1", Fee: "10", Net: "9990"})
	}))
	defer server.Close()

	client := &FacilitatorClient{BaseURL: server.URL}
	result := client.Settle(context.Background(), "header-value", testRequirement())

	if !result.Success {
		t.Fatalf("Settle failed: %s", result.Error)
	}
	if result.TxHash != "tx1" || result.Fee != "10" || result.Net != "9990" {
		t.Errorf("result = %+v", result)
	}
}

func TestFacilitatorAcceptsAny2xxStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(shadowwire.VerifyResult{Valid: true, Payer: "payer1"})
	}))
	defer server.Close()

	client := &FacilitatorClient{BaseURL: server.URL}
	result := client.Verify(context.Background(), "header-value", testRequirement())

	if !result.Valid {
		t.Fatalf("202 response misclassified as failure: %s", result.Error)
	}
	if result.Payer != "payer1" {
		t.Errorf("Payer = %q, want payer1", result.Payer)
	}
}

func TestFacilitatorErrorStatusPreservesRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "ledger unavailable"})
	}))
	defer server.Close()

	client := &FacilitatorClient{BaseURL: server.URL}
	result := client.Verify(context.Background(), "header-value", testRequirement())

	if result.Valid {
		t.Fatal("expected fail-closed result")
	}
	if !strings.Contains(result.Error, "facilitator_error_status_502") {
		t.Errorf("Error = %q, want status kind", result.Error)
	}
	if !strings.Contains(result.Error, "ledger unavailable") {
		t.Errorf("Error = %q, want remote detail preserved", result.Error)
	}
}

func TestFacilitatorUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := &FacilitatorClient{BaseURL: server.URL}

	verify := client.Verify(context.Background(), "header-value", testRequirement())
	if verify.Valid || !strings.Contains(verify.Error, errKindUnreachable) {
		t.Errorf("Verify result = %+v, want unreachable kind", verify)
	}

	settle := client.Settle(context.Background(), "header-value", testRequirement())
	if settle.Success || !strings.Contains(settle.Error, errKindUnreachable) {
		t.Errorf("Settle result = %+v, want unreachable kind", settle)
	}
}

func TestFacilitatorTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(shadowwire.VerifyResult{Valid: true})
	}))
	defer server.Close()

	client := &FacilitatorClient{
		BaseURL:  server.URL,
		Timeouts: shadowwire.TimeoutConfig{VerifyTimeout: 20 * time.Millisecond},
	}
	result := client.Verify(context.Background(), "header-value", testRequirement())

	if result.Valid {
		t.Fatal("expected fail-closed result")
	}
	if !strings.Contains(result.Error, errKindTimeout) {
		t.Errorf("Error = %q, want timeout kind", result.Error)
	}
}

func TestFacilitatorInvalidResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	}))
	defer server.Close()

	client := &FacilitatorClient{BaseURL: server.URL}
	result := client.Verify(context.Background(), "header-value", testRequirement())

	if result.Valid || !strings.Contains(result.Error, errKindBadResponse) {
		t.Errorf("result = %+v, want bad-response kind", result)
	}
}

func TestFacilitatorOversizedHeaderShortCircuits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(shadowwire.VerifyResult{Valid: true})
	}))
	defer server.Close()

	client := &FacilitatorClient{BaseURL: server.URL}
	oversized := strings.Repeat("A", shadowwire.MaxPaymentHeaderBytes+1)

	verify := client.Verify(context.Background(), oversized, testRequirement())
	if verify.Valid {
		t.Error("oversized header must not verify")
	}
	settle := client.Settle(context.Background(), oversized, testRequirement())
	if settle.Success {
		t.Error("oversized header must not settle")
	}
	if calls.Load() != 0 {
		t.Errorf("facilitator called %d times for oversized header, want 0", calls.Load())
	}
}
