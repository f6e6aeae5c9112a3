package schedule

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDealReconcile(t *testing.T) {
	cases := []struct {
		name string
		deal Deal
		want Figures
	}{
		{
			name: "график не настроен: суммы рассрочки нулевые",
			deal: Deal{TotalAmount: 300000, PaidAmount: 100000, TermMonths: 0},
			want: Figures{RemainingTotal: 200000},
		},
		{
			name: "обычная рассрочка",
			deal: Deal{TotalAmount: 300000, PaidAmount: 150000, InitialPayment: 100000, TermMonths: 6},
			want: Figures{
				InstallmentAmount:    200000,
				PaidInstallment:      150000,
				RemainingInstallment: 50000,
				RemainingTotal:       150000,
			},
		},
		{
			name: "оплачено больше суммы рассрочки",
			deal: Deal{TotalAmount: 300000, PaidAmount: 250000, InitialPayment: 100000, TermMonths: 6},
			want: Figures{
				InstallmentAmount:    200000,
				PaidInstallment:      200000,
				RemainingInstallment: 0,
				RemainingTotal:       50000,
			},
		},
		{
			name: "взнос больше суммы сделки",
			deal: Deal{TotalAmount: 100000, PaidAmount: 0, InitialPayment: 150000, TermMonths: 3},
			want: Figures{RemainingTotal: 100000},
		},
	}
	for _, tc := range cases {
		if got := tc.deal.Reconcile(); got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestIsScheduled(t *testing.T) {
	if (Deal{TermMonths: 0}).IsScheduled() {
		t.Fatal("term_months=0 не должен считаться настроенным графиком")
	}
	if (Deal{TermMonths: -1}).IsScheduled() {
		t.Fatal("отрицательный срок не должен считаться настроенным графиком")
	}
	if !(Deal{TermMonths: 1}).IsScheduled() {
		t.Fatal("term_months=1 должен считаться настроенным графиком")
	}
}

func TestBuildNotScheduled(t *testing.T) {
	d := Deal{TotalAmount: 300000, PaidAmount: 100000, TermMonths: 0}
	if got := Build(d, nil, date(2026, time.January, 5)); got != nil {
		t.Fatalf("для сделки без графика ожидался nil, получено %d записей", len(got))
	}
}

func TestBuildCoveredByInitialPayment(t *testing.T) {
	d := Deal{TotalAmount: 100000, InitialPayment: 100000, TermMonths: 6}
	if got := Build(d, nil, date(2026, time.January, 5)); got != nil {
		t.Fatalf("рассрочка полностью закрыта взносом, ожидался nil, получено %d записей", len(got))
	}
}

func TestBuildSplitsRemainderIntoLastMonth(t *testing.T) {
	start := date(2026, time.January, 1)
	d := Deal{
		TotalAmount:    300001,
		InitialPayment: 100000,
		TermMonths:     6,
		ScheduleDay:    10,
		ScheduleStart:  &start,
	}
	entries := Build(d, nil, date(2026, time.January, 5))
	if len(entries) != 6 {
		t.Fatalf("ожидалось 6 месяцев, получено %d", len(entries))
	}
	var sum int64
	for i, e := range entries {
		sum += e.Amount
		if i < 5 && e.Amount != 33333 {
			t.Fatalf("месяц %d: amount = %d, want 33333", i, e.Amount)
		}
	}
	if entries[5].Amount != 33336 {
		t.Fatalf("последний месяц: amount = %d, want 33336", entries[5].Amount)
	}
	if sum != 200001 {
		t.Fatalf("сумма месяцев %d не равна сумме рассрочки 200001", sum)
	}
}

func TestBuildSequentialPaidDistribution(t *testing.T) {
	start := date(2026, time.January, 1)
	d := Deal{
		TotalAmount:    300000,
		PaidAmount:     150000,
		InitialPayment: 100000,
		TermMonths:     4,
		ScheduleDay:    10,
		ScheduleStart:  &start,
	}
	// рассрочка 200000, по 50000 в месяц; оплачено 150000
	entries := Build(d, nil, date(2026, time.January, 5))
	if len(entries) != 4 {
		t.Fatalf("ожидалось 4 месяца, получено %d", len(entries))
	}
	wantStatus := []string{StatusPaid, StatusPaid, StatusPaid, StatusPending}
	for i, e := range entries {
		if e.Status != wantStatus[i] {
			t.Fatalf("месяц %d: status = %q, want %q", i, e.Status, wantStatus[i])
		}
		fig := ReconcileMonth(e)
		if fig.PaidInMonth+fig.RemainingInMonth != e.Amount {
			t.Fatalf("месяц %d: нарушен инвариант paid+remaining==amount", i)
		}
	}
}

func TestBuildAllocationBasedDistribution(t *testing.T) {
	start := date(2026, time.January, 1)
	d := Deal{
		TotalAmount:    300000,
		PaidAmount:     80000,
		InitialPayment: 100000,
		TermMonths:     4,
		ScheduleDay:    10,
		ScheduleStart:  &start,
	}
	// наличные зачтены во второй месяц, остальное (30000) докидывается
	// последовательно начиная с первого
	alloc := map[int]int64{1: 50000}
	entries := Build(d, alloc, date(2026, time.January, 5))
	if entries[1].Status != StatusPaid {
		t.Fatalf("месяц с полным распределением должен быть paid, got %q", entries[1].Status)
	}
	if *entries[0].PaidInMonth != 30000 || entries[0].Status != StatusPartial {
		t.Fatalf("первый месяц: paid = %d, status = %q", *entries[0].PaidInMonth, entries[0].Status)
	}
	if entries[2].Status != StatusPending || entries[3].Status != StatusPending {
		t.Fatal("месяцы без оплат должны остаться pending")
	}
}

func TestFirstPaymentDate(t *testing.T) {
	cases := []struct {
		name string
		deal Deal
		now  time.Time
		want time.Time
	}{
		{
			name: "до дня платежа: тот же месяц",
			deal: Deal{TermMonths: 1, ScheduleDay: 10},
			now:  date(2026, time.March, 5),
			want: date(2026, time.March, 10),
		},
		{
			name: "в день платежа: следующий месяц",
			deal: Deal{TermMonths: 1, ScheduleDay: 10},
			now:  date(2026, time.March, 10),
			want: date(2026, time.April, 10),
		},
		{
			name: "декабрь переходит в январь",
			deal: Deal{TermMonths: 1, ScheduleDay: 10},
			now:  date(2026, time.December, 15),
			want: date(2027, time.January, 10),
		},
		{
			name: "31-е поджимается к длине месяца",
			deal: Deal{TermMonths: 1, ScheduleDay: 31},
			now:  date(2026, time.February, 1),
			want: date(2026, time.February, 28),
		},
		{
			name: "день по умолчанию",
			deal: Deal{TermMonths: 1},
			now:  date(2026, time.March, 5),
			want: date(2026, time.March, 10),
		},
		{
			name: "база из schedule_start_date, а не now",
			deal: func() Deal {
				s := date(2026, time.January, 1)
				return Deal{TermMonths: 1, ScheduleDay: 10, ScheduleStart: &s}
			}(),
			now:  date(2026, time.June, 20),
			want: date(2026, time.January, 10),
		},
	}
	for _, tc := range cases {
		if got := firstPaymentDate(tc.deal, tc.now); !got.Equal(tc.want) {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestBuildDatesClampedAcrossMonths(t *testing.T) {
	start := date(2026, time.January, 1)
	d := Deal{
		TotalAmount:   120000,
		TermMonths:    3,
		ScheduleDay:   31,
		ScheduleStart: &start,
	}
	entries := Build(d, nil, start)
	want := []string{"31.01.2026", "28.02.2026", "31.03.2026"}
	for i, e := range entries {
		if e.Date != want[i] {
			t.Fatalf("месяц %d: date = %q, want %q", i, e.Date, want[i])
		}
	}
	if entries[0].Month != "Январь 2026" || entries[1].Month != "Февраль 2026" {
		t.Fatalf("названия месяцев: %q, %q", entries[0].Month, entries[1].Month)
	}
}
