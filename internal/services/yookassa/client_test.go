package yookassa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/config"
)

func testClient(secret string) *Client {
	log := logrus.New()
	return NewClient(config.YooKassaConfig{
		ShopID:        "12345",
		SecretKey:     "key",
		WebhookSecret: secret,
	}, log)
}

func TestVerifySignature(t *testing.T) {
	c := testClient("webhook-secret")
	body := []byte(`{"event":"payment.succeeded","object":{"id":"p1"}}`)

	mac := hmac.New(sha256.New, []byte("webhook-secret"))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !c.VerifySignature(body, valid) {
		t.Fatal("корректная подпись должна проходить проверку")
	}
	if c.VerifySignature(body, "deadbeef") {
		t.Fatal("неверная подпись должна отклоняться")
	}
	if c.VerifySignature(body, "") {
		t.Fatal("пустая подпись должна отклоняться")
	}
	if c.VerifySignature([]byte(`{"other":1}`), valid) {
		t.Fatal("подпись другого тела должна отклоняться")
	}
}

func TestEnabled(t *testing.T) {
	if !testClient("").Enabled() {
		t.Fatal("клиент с ключами должен быть включён")
	}
	log := logrus.New()
	if NewClient(config.YooKassaConfig{}, log).Enabled() {
		t.Fatal("клиент без ключей должен быть выключен")
	}
}

func TestSignatureConfigured(t *testing.T) {
	if testClient("").SignatureConfigured() {
		t.Fatal("без webhook_secret подпись не настроена")
	}
	if !testClient("s").SignatureConfigured() {
		t.Fatal("с webhook_secret подпись настроена")
	}
}
