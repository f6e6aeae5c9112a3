package bitrix

import (
	"testing"
)

func TestPhoneTail(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"+7 (999) 123-45-67", "9991234567"},
		{"89991234567", "9991234567"},
		{"9991234567", "9991234567"},
		{"123", "123"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := phoneTail(tc.in); got != tc.expected {
			t.Fatalf("phoneTail(%q) = %q, want %q", tc.in, got, tc.expected)
		}
	}
}

func TestPhoneVariants(t *testing.T) {
	variants := phoneVariants("8 (999) 123-45-67")
	want := map[string]bool{"+79991234567": false, "79991234567": false, "89991234567": false}
	for _, v := range variants {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for v, found := range want {
		if !found {
			t.Fatalf("вариант %q не построен, получено %v", v, variants)
		}
	}
}

func TestFormatISODate(t *testing.T) {
	cases := []struct {
		in       any
		expected string
	}{
		{"2025-09-23T03:00:00+03:00", "23.09.2025"},
		{"2025-09-23", "23.09.2025"},
		{"", ""},
		{nil, ""},
		{false, ""},
		{"не дата", "не дата"},
	}
	for _, tc := range cases {
		if got := FormatISODate(tc.in); got != tc.expected {
			t.Fatalf("FormatISODate(%#v) = %q, want %q", tc.in, got, tc.expected)
		}
	}
}

func TestEnumIDs(t *testing.T) {
	if ids := enumIDs(false); len(ids) != 0 {
		t.Fatalf("false должен давать пустой список, получено %v", ids)
	}
	if ids := enumIDs("42"); len(ids) != 1 || ids[0] != "42" {
		t.Fatalf("одиночный ID: %v", ids)
	}
	if ids := enumIDs([]any{"1", float64(2)}); len(ids) != 2 || ids[1] != "2" {
		t.Fatalf("список ID: %v", ids)
	}
}

func TestRawDealToDeal(t *testing.T) {
	raw := RawDeal{
		"ID":              "123",
		"TITLE":           "Дом из бруса",
		"OPPORTUNITY":     "3 050 000,00",
		"CONTACT_NAME":    "Иван Иванов",
		"CONTACT_PHONE":   "+79991234567",
		"CONTACT_EMAIL":   "ivan@example.com",
		FieldPaidAmount:   "500000",
		FieldTermMonths:   "6.0",
		"project_type":    "Каркасный дом",
		"object_location": "Московская область",
	}
	deal := raw.ToDeal()
	if deal.ContractNumber != "123" {
		t.Fatalf("ContractNumber = %q", deal.ContractNumber)
	}
	if deal.TotalAmount != 3050000 || deal.PaidAmount != 500000 || deal.TermMonths != 6 {
		t.Fatalf("суммы разобраны неверно: %+v", deal)
	}
	if len(deal.MissingFields) != 0 {
		t.Fatalf("MissingFields должен быть пуст: %v", deal.MissingFields)
	}
	if !deal.IsScheduled() {
		t.Fatal("сделка с term=6 должна считаться настроенной")
	}
}

func TestRawDealToDealMissingFields(t *testing.T) {
	raw := RawDeal{"ID": "7", "TITLE": "Без данных"}
	deal := raw.ToDeal()
	if deal.IsScheduled() {
		t.Fatal("сделка без срока не должна считаться настроенной")
	}
	if len(deal.MissingFields) != 2 {
		t.Fatalf("ожидались total_amount и term_months: %v", deal.MissingFields)
	}
}

func TestRawDealPaidCappedByTotal(t *testing.T) {
	raw := RawDeal{
		"ID":            "9",
		"OPPORTUNITY":   "100000",
		FieldPaidAmount: "150000",
		FieldTermMonths: "4",
	}
	deal := raw.ToDeal()
	if deal.PaidAmount != 100000 {
		t.Fatalf("переплата должна ограничиваться суммой сделки: %d", deal.PaidAmount)
	}
}
