package schedule

import (
	"encoding/json"
	"testing"
)

func i64(v int64) *int64 { return &v }

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in       any
		expected int64
	}{
		{nil, 0},
		{"", 0},
		{false, 0},
		{true, 0},
		{"abc", 0},
		{-500, 0},
		{"-500", 0},
		{3050000, 3050000},
		{3050000.99, 3050000},
		{"3050000.00", 3050000},
		{"3 050 000,00", 3050000},
		{"3 050 000,50", 3050000},
	}
	for _, tc := range cases {
		if got := ParseMoney(tc.in); got != tc.expected {
			t.Fatalf("ParseMoney(%#v) = %d, want %d", tc.in, got, tc.expected)
		}
	}
}

func TestParseInt(t *testing.T) {
	cases := []struct {
		in       any
		expected int
	}{
		{nil, 0},
		{"", 0},
		{"6", 6},
		{"6.0", 6},
		{"6,0", 6},
		{6.0, 6},
		{12, 12},
	}
	for _, tc := range cases {
		if got := ParseInt(tc.in); got != tc.expected {
			t.Fatalf("ParseInt(%#v) = %d, want %d", tc.in, got, tc.expected)
		}
	}
}

func TestReconcileMonthPrecedence(t *testing.T) {
	cases := []struct {
		name          string
		entry         Entry
		wantPaid      int64
		wantRemaining int64
	}{
		{
			name:          "remaining_in_month имеет высший приоритет",
			entry:         Entry{Amount: 50000, RemainingInMonth: i64(20000)},
			wantPaid:      30000,
			wantRemaining: 20000,
		},
		{
			name:          "remaining важнее paid и status",
			entry:         Entry{Amount: 50000, Status: StatusPaid, PaidInMonth: i64(50000), RemainingInMonth: i64(10000)},
			wantPaid:      40000,
			wantRemaining: 10000,
		},
		{
			name:          "paid_in_month без remaining",
			entry:         Entry{Amount: 50000, PaidInMonth: i64(50000)},
			wantPaid:      50000,
			wantRemaining: 0,
		},
		{
			name:          "paid_in_month ограничивается amount",
			entry:         Entry{Amount: 50000, PaidInMonth: i64(70000)},
			wantPaid:      50000,
			wantRemaining: 0,
		},
		{
			name:          "отрицательный paid_in_month поджимается к нулю",
			entry:         Entry{Amount: 50000, PaidInMonth: i64(-100)},
			wantPaid:      0,
			wantRemaining: 50000,
		},
		{
			name:          "только status=paid",
			entry:         Entry{Amount: 50000, Status: StatusPaid},
			wantPaid:      50000,
			wantRemaining: 0,
		},
		{
			name:          "только status=pending",
			entry:         Entry{Amount: 50000, Status: StatusPending},
			wantPaid:      0,
			wantRemaining: 50000,
		},
		{
			name:          "amount <= 0 считается закрытым",
			entry:         Entry{Amount: 0, Status: StatusPending},
			wantPaid:      0,
			wantRemaining: 0,
		},
	}
	for _, tc := range cases {
		fig := ReconcileMonth(tc.entry)
		if fig.PaidInMonth != tc.wantPaid || fig.RemainingInMonth != tc.wantRemaining {
			t.Fatalf("%s: got paid=%d remaining=%d, want paid=%d remaining=%d",
				tc.name, fig.PaidInMonth, fig.RemainingInMonth, tc.wantPaid, tc.wantRemaining)
		}
	}
}

// Инвариант: для любой ветки приоритета paid + remaining == amount.
func TestReconcileMonthInvariant(t *testing.T) {
	entries := []Entry{
		{Amount: 50000, RemainingInMonth: i64(20000)},
		{Amount: 50000, RemainingInMonth: i64(0)},
		{Amount: 50000, RemainingInMonth: i64(90000)},
		{Amount: 50000, PaidInMonth: i64(12345)},
		{Amount: 50000, PaidInMonth: i64(99999)},
		{Amount: 50000, Status: StatusPaid},
		{Amount: 50000, Status: StatusPartial},
		{Amount: 50000},
	}
	for _, e := range entries {
		fig := ReconcileMonth(e)
		if fig.PaidInMonth+fig.RemainingInMonth != e.Amount {
			t.Fatalf("paid(%d) + remaining(%d) != amount(%d) для %+v",
				fig.PaidInMonth, fig.RemainingInMonth, e.Amount, e)
		}
		if fig.PaidInMonth < 0 || fig.RemainingInMonth < 0 {
			t.Fatalf("отрицательные производные для %+v: %+v", e, fig)
		}
	}
}

func TestReconcileMonthFlagsInconsistency(t *testing.T) {
	// paid + remaining != amount: берём remaining, помечаем расхождение
	fig := ReconcileMonth(Entry{Amount: 50000, PaidInMonth: i64(10000), RemainingInMonth: i64(20000)})
	if !fig.Inconsistent {
		t.Fatal("ожидался флаг Inconsistent при paid+remaining != amount")
	}
	if fig.PaidInMonth != 30000 || fig.RemainingInMonth != 20000 {
		t.Fatalf("при расхождении должен побеждать remaining: %+v", fig)
	}

	fig = ReconcileMonth(Entry{Amount: 50000, PaidInMonth: i64(30000), RemainingInMonth: i64(20000)})
	if fig.Inconsistent {
		t.Fatal("флаг Inconsistent не должен ставиться на согласованных данных")
	}
}

func TestAggregate(t *testing.T) {
	entries := []Entry{
		{Amount: 50000, Status: StatusPaid},
		{Amount: 50000, RemainingInMonth: i64(20000)},
		{Amount: 50000},
	}
	got := Aggregate(entries)
	if got.TotalSum != 150000 {
		t.Fatalf("TotalSum = %d, want 150000", got.TotalSum)
	}
	if got.PaidSum != 80000 {
		t.Fatalf("PaidSum = %d, want 80000", got.PaidSum)
	}
	if got.PaidMonths != 1 {
		t.Fatalf("PaidMonths = %d, want 1", got.PaidMonths)
	}
	wantPercent := float64(80000) / 150000 * 100
	if got.ProgressPercent != wantPercent {
		t.Fatalf("ProgressPercent = %v, want %v", got.ProgressPercent, wantPercent)
	}
	if got.Overpaid {
		t.Fatal("Overpaid не должен ставиться без переплаты")
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	if got.ProgressPercent != 0 || got.TotalSum != 0 || got.PaidSum != 0 {
		t.Fatalf("пустой график должен давать нули: %+v", got)
	}
}

func TestAggregateFullyPaid(t *testing.T) {
	entries := []Entry{
		{Amount: 50000, PaidInMonth: i64(50000)},
		{Amount: 50000, Status: StatusPaid},
	}
	got := Aggregate(entries)
	if got.Overpaid {
		t.Fatalf("ровно 100%% ещё не переплата: %+v", got)
	}
	if got.ProgressPercent != 100 || got.RawPercent != 100 {
		t.Fatalf("ProgressPercent = %v, RawPercent = %v, want 100", got.ProgressPercent, got.RawPercent)
	}
	if got.PaidMonths != 2 {
		t.Fatalf("PaidMonths = %d, want 2", got.PaidMonths)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	entries := []Entry{
		{Amount: 50000, RemainingInMonth: i64(20000)},
		{Amount: 50000, PaidInMonth: i64(10000)},
	}
	first := Aggregate(entries)
	second := Aggregate(entries)
	if first != second {
		t.Fatalf("Aggregate не идемпотентен: %+v != %+v", first, second)
	}
}

func TestEntryUnmarshalAliases(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Entry
	}{
		{
			name: "канонические имена",
			in:   `{"index":2,"month":"Март 2026","date":"10.03.2026","amount":50000,"status":"partial","paid_in_month":30000,"remaining_in_month":20000}`,
			want: Entry{Index: 2, Month: "Март 2026", Date: "10.03.2026", Amount: 50000, Status: StatusPartial, PaidInMonth: i64(30000), RemainingInMonth: i64(20000)},
		},
		{
			name: "алиасы month_index и paid_amount_for_month",
			in:   `{"month_index":"3","amount":"50 000,00","status":"paid","paid_amount_for_month":"50000"}`,
			want: Entry{Index: 3, Amount: 50000, Status: StatusPaid, PaidInMonth: i64(50000)},
		},
		{
			name: "неизвестный статус превращается в pending",
			in:   `{"index":0,"amount":1000,"status":"cancelled"}`,
			want: Entry{Index: 0, Amount: 1000, Status: StatusPending},
		},
	}
	for _, tc := range cases {
		var got Entry
		if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got.Index != tc.want.Index || got.Amount != tc.want.Amount || got.Status != tc.want.Status {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
		if (got.PaidInMonth == nil) != (tc.want.PaidInMonth == nil) {
			t.Fatalf("%s: PaidInMonth nil-ность не совпала", tc.name)
		}
		if got.PaidInMonth != nil && *got.PaidInMonth != *tc.want.PaidInMonth {
			t.Fatalf("%s: PaidInMonth = %d, want %d", tc.name, *got.PaidInMonth, *tc.want.PaidInMonth)
		}
		if (got.RemainingInMonth == nil) != (tc.want.RemainingInMonth == nil) {
			t.Fatalf("%s: RemainingInMonth nil-ность не совпала", tc.name)
		}
	}
}

// Отсутствующее paid_in_month не должно превращаться в 0
func TestEntryUnmarshalKeepsMissingOptional(t *testing.T) {
	var e Entry
	if err := json.Unmarshal([]byte(`{"index":0,"amount":50000,"status":"paid"}`), &e); err != nil {
		t.Fatal(err)
	}
	if e.PaidInMonth != nil || e.RemainingInMonth != nil {
		t.Fatalf("опциональные поля должны остаться nil: %+v", e)
	}
	fig := ReconcileMonth(e)
	if fig.PaidInMonth != 50000 || fig.RemainingInMonth != 0 {
		t.Fatalf("fallback по статусу не сработал: %+v", fig)
	}
}
