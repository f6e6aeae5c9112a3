package installment

import (
	"testing"
	"time"

	"github.com/som1one/bitr/internal/models"
	"github.com/som1one/bitr/internal/schedule"
)

func TestMergeLocalOverridesMoney(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	deal := schedule.Deal{
		ContractNumber: "123",
		TotalAmount:    300000,
		PaidAmount:     0,
		TermMonths:     0,
		MissingFields:  []string{"term_months"},
	}
	local := &models.Deal{
		BitrixDealID:      123,
		PaidAmount:        150000,
		InitialPayment:    100000,
		TermMonths:        6,
		ScheduleDay:       15,
		ScheduleStartDate: &start,
		Email:             "client@example.com",
	}

	mergeLocal(&deal, local)

	if deal.PaidAmount != 150000 || deal.TermMonths != 6 || deal.InitialPayment != 100000 {
		t.Fatalf("локальные суммы должны перекрывать CRM: %+v", deal)
	}
	if deal.ScheduleDay != 15 || deal.ScheduleStart == nil {
		t.Fatalf("параметры графика не подтянулись: %+v", deal)
	}
	if deal.Email != "client@example.com" {
		t.Fatalf("пустой email должен заполняться из БД: %q", deal.Email)
	}
	if len(deal.MissingFields) != 0 {
		t.Fatalf("после слияния срок задан, MissingFields должен опустеть: %v", deal.MissingFields)
	}
}

func TestMergeLocalNilKeepsBitrixData(t *testing.T) {
	deal := schedule.Deal{TotalAmount: 300000, PaidAmount: 50000, TermMonths: 6}
	mergeLocal(&deal, nil)
	if deal.PaidAmount != 50000 || deal.TermMonths != 6 {
		t.Fatalf("без локальной записи данные CRM должны сохраниться: %+v", deal)
	}
}

func TestMergeLocalClampsInitialPayment(t *testing.T) {
	deal := schedule.Deal{TotalAmount: 100000}
	local := &models.Deal{InitialPayment: 150000, TermMonths: 3}
	mergeLocal(&deal, local)
	if deal.InitialPayment != 100000 {
		t.Fatalf("взнос должен ограничиваться суммой сделки: %d", deal.InitialPayment)
	}
}

func TestComposeViewScheduled(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	deal := schedule.Deal{
		ContractNumber: "123",
		TotalAmount:    300000,
		PaidAmount:     150000,
		InitialPayment: 100000,
		TermMonths:     4,
		ScheduleDay:    10,
		ScheduleStart:  &start,
	}

	view := composeView(deal, nil, start)

	if view.Deal.InstallmentAmount != 200000 {
		t.Fatalf("InstallmentAmount = %d, want 200000", view.Deal.InstallmentAmount)
	}
	if len(view.Payments) != 4 {
		t.Fatalf("ожидалось 4 платежа, получено %d", len(view.Payments))
	}
	// 150000 из 200000 по графику: три месяца по 50000 закрыты
	if view.Deal.PaidMonths != 3 {
		t.Fatalf("PaidMonths = %d, want 3", view.Deal.PaidMonths)
	}
	if view.Deal.ProgressPercent != 75 {
		t.Fatalf("ProgressPercent = %v, want 75", view.Deal.ProgressPercent)
	}
}

func TestComposeViewNotScheduled(t *testing.T) {
	deal := schedule.Deal{
		ContractNumber: "7",
		TotalAmount:    300000,
		PaidAmount:     100000,
		TermMonths:     0,
		MissingFields:  []string{"term_months"},
	}

	view := composeView(deal, nil, time.Now())

	if len(view.Payments) != 0 {
		t.Fatalf("без графика платежей быть не должно: %d", len(view.Payments))
	}
	if view.Deal.InstallmentAmount != 0 || view.Deal.PaidMonths != 0 {
		t.Fatalf("графиковые величины должны быть нулевыми: %+v", view.Deal)
	}
	if view.Payments == nil || view.Deal.MissingFields == nil {
		t.Fatal("в JSON должны уходить пустые массивы, а не null")
	}
}

func TestDealStatus(t *testing.T) {
	cases := []struct {
		total, paid int64
		want        string
	}{
		{300000, 300000, DealStatusPaid},
		{300000, 350000, DealStatusPaid},
		{300000, 100000, DealStatusActive},
		{300000, 0, DealStatusPending},
		{0, 0, DealStatusActive},
	}
	for _, tc := range cases {
		if got := dealStatus(tc.total, tc.paid); got != tc.want {
			t.Fatalf("dealStatus(%d, %d) = %q, want %q", tc.total, tc.paid, got, tc.want)
		}
	}
}

func TestCashComment(t *testing.T) {
	req := CashPaymentRequest{
		Allocations: []CashAllocationInput{{MonthIndex: 0, Amount: 50000}, {MonthIndex: 2, Amount: 10000}},
		Comment:     "взнос за январь и март",
	}
	got := cashComment(req)
	want := "#1:50000 | #3:10000 | взнос за январь и март"
	if got != want {
		t.Fatalf("cashComment = %q, want %q", got, want)
	}

	if cashComment(CashPaymentRequest{}) != "" {
		t.Fatal("пустой запрос должен давать пустой комментарий")
	}
}
