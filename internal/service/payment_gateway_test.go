package service

import (
	"context"
	"encoding/json"
	"lms_backend/internal/config"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGatewayClientCreateDeposit(t *testing.T) {
	var got DepositRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		writeDepositJSON(w, DepositResult{DepositID: got.DepositID, Status: GatewayAccepted})
	}))
	defer server.Close()

	cfg := config.PaymentConfig{BaseURL: server.URL, APIToken: "tok-123", Currency: "ZMW", Country: "ZMB"}
	client := NewGatewayClient(cfg)

	req := client.NewDepositRequest("dep-42", 4900, "MTN_MOMO_ZMB", "260763456789", "Course #1")
	result, err := client.CreateDeposit(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateDeposit: %v", err)
	}
	if result.Status != GatewayAccepted {
		t.Errorf("status = %s, want ACCEPTED", result.Status)
	}

	if auth != "Bearer tok-123" {
		t.Errorf("auth header = %q, want bearer token", auth)
	}
	if got.Amount != "4900" {
		t.Errorf("amount = %q, gateway expects a string amount", got.Amount)
	}
	if got.Currency != "ZMW" || got.Country != "ZMB" {
		t.Errorf("currency/country = %s/%s, want ZMW/ZMB", got.Currency, got.Country)
	}
	if got.Payer.Type != "MSISDN" || got.Payer.Address.Value != "260763456789" {
		t.Errorf("payer = %+v, want MSISDN with the phone number", got.Payer)
	}
}

func TestGatewayClientDepositStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deposits/dep-42" {
			http.NotFound(w, r)
			return
		}
		// 网关按数组返回
		result := DepositResult{DepositID: "dep-42", Status: GatewayFailed}
		result.RejectionReason.RejectionMessage = "insufficient funds"
		writeDepositJSON(w, []DepositResult{result})
	}))
	defer server.Close()

	client := NewGatewayClient(config.PaymentConfig{BaseURL: server.URL})
	result, err := client.DepositStatus(context.Background(), "dep-42")
	if err != nil {
		t.Fatalf("DepositStatus: %v", err)
	}
	if result.Status != GatewayFailed {
		t.Errorf("status = %s, want FAILED", result.Status)
	}
	if result.RejectionReason.RejectionMessage != "insufficient funds" {
		t.Errorf("rejection = %q", result.RejectionReason.RejectionMessage)
	}
}

func TestGatewayClientEmptyStatusList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDepositJSON(w, []DepositResult{})
	}))
	defer server.Close()

	client := NewGatewayClient(config.PaymentConfig{BaseURL: server.URL})
	if _, err := client.DepositStatus(context.Background(), "dep-42"); err == nil {
		t.Fatal("empty gateway response must be an error")
	}
}
