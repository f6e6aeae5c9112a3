package installment

import (
	"encoding/json"
	"testing"
)

func TestParseWebhookAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1500.00", 1500, false},
		{"300000.00", 300000, false},
		{" 100.50 ", 100, false},
		{"0.00", 0, true},
		{"-10.00", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := parseWebhookAmount(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseWebhookAmount(%q): ожидалась ошибка", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseWebhookAmount(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseWebhookAmount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestWebhookPayloadUnmarshal(t *testing.T) {
	raw := `{
		"event": "payment.succeeded",
		"object": {
			"id": "2e8b6f1a",
			"status": "succeeded",
			"amount": {"value": "25000.00", "currency": "RUB"},
			"metadata": {"deal_id": "77", "identifier": "client@example.com", "identifier_type": "email"}
		}
	}`
	var p WebhookPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Event != "payment.succeeded" || p.Object.ID != "2e8b6f1a" {
		t.Fatalf("неожиданный payload: %+v", p)
	}
	if p.Object.Metadata["deal_id"] != "77" {
		t.Fatalf("deal_id из metadata = %q", p.Object.Metadata["deal_id"])
	}
	if p.Object.Amount.Value != "25000.00" {
		t.Fatalf("amount = %q", p.Object.Amount.Value)
	}
}
