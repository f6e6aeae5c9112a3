package export

import "testing"

func TestAmountToWords(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{0, "Ноль рублей"},
		{1, "Один рубль"},
		{2, "Два рубля"},
		{5, "Пять рублей"},
		{11, "Одиннадцать рублей"},
		{21, "Двадцать один рубль"},
		{100, "Сто рублей"},
		{1000, "Одна тысяча рублей"},
		{2000, "Две тысячи рублей"},
		{25000, "Двадцать пять тысяч рублей"},
		{300000, "Триста тысяч рублей"},
		{300001, "Триста тысяч один рубль"},
		{1500000, "Один миллион пятьсот тысяч рублей"},
		{2000000000, "Два миллиарда рублей"},
	}
	for _, tc := range cases {
		if got := AmountToWords(tc.amount); got != tc.want {
			t.Errorf("AmountToWords(%d) = %q, want %q", tc.amount, got, tc.want)
		}
	}
}

func TestDeclension(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{1, "рубль"},
		{3, "рубля"},
		{7, "рублей"},
		{12, "рублей"},
		{111, "рублей"},
		{102, "рубля"},
	}
	for _, tc := range cases {
		if got := declension(tc.n, "рубль", "рубля", "рублей"); got != tc.want {
			t.Errorf("declension(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1 000"},
		{300000, "300 000"},
		{1234567, "1 234 567"},
		{-5000, "-5 000"},
	}
	for _, tc := range cases {
		if got := formatMoney(tc.amount); got != tc.want {
			t.Errorf("formatMoney(%d) = %q, want %q", tc.amount, got, tc.want)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	if statusLabel("paid") != "Оплачен" || statusLabel("partial") != "Частично" || statusLabel("pending") != "Ожидает" {
		t.Fatal("неверный перевод статусов месяца")
	}
}
