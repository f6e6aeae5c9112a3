package auth

import (
	"testing"
)

func TestMagicTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret")

	token, err := m.GenerateMagicToken("client@example.com", IdentifierEmail)
	if err != nil {
		t.Fatalf("GenerateMagicToken: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Identifier != "client@example.com" || claims.IdentifierType != IdentifierEmail {
		t.Fatalf("неожиданные claims: %+v", claims)
	}
	if claims.IsAdmin {
		t.Fatal("magic-токен не должен давать права администратора")
	}
}

func TestAdminTokenHasAdminFlag(t *testing.T) {
	m := NewTokenManager("test-secret")

	token, err := m.GenerateAdminToken("+79991234567")
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !claims.IsAdmin {
		t.Fatal("токен администратора должен содержать is_admin=true")
	}
	if claims.IdentifierType != IdentifierPhone {
		t.Fatalf("тип идентификатора = %q, want phone", claims.IdentifierType)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a").GenerateMagicToken("client@example.com", IdentifierEmail)
	if err != nil {
		t.Fatalf("GenerateMagicToken: %v", err)
	}

	if _, err := NewTokenManager("secret-b").Validate(token); err == nil {
		t.Fatal("токен с чужой подписью должен отклоняться")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := NewTokenManager("s").Validate("not-a-token"); err == nil {
		t.Fatal("мусор вместо токена должен отклоняться")
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct{ in, want string }{
		{"+7 (999) 123-45-67", "+79991234567"},
		{"8 999 123 45 67", "89991234567"},
		{"  +79991234567  ", "+79991234567"},
	}
	for _, tc := range cases {
		if got := normalizePhone(tc.in); got != tc.want {
			t.Fatalf("normalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLastDigits(t *testing.T) {
	if got := lastDigits("+7 (999) 123-45-67", 10); got != "9991234567" {
		t.Fatalf("lastDigits = %q, want 9991234567", got)
	}
	// Разные префиксы одного номера совпадают по хвосту
	if lastDigits("89991234567", 10) != lastDigits("+79991234567", 10) {
		t.Fatal("хвосты номеров с префиксами 8 и +7 должны совпадать")
	}
	if got := lastDigits("123", 10); got != "123" {
		t.Fatalf("короткий номер должен возвращаться целиком: %q", got)
	}
}
