package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Типы идентификаторов в magic-токене
const (
	IdentifierEmail = "email"
	IdentifierPhone = "phone"
)

// Сроки жизни токенов
const (
	magicTokenTTL   = 15 * time.Minute
	sessionTokenTTL = 24 * time.Hour
	adminTokenTTL   = 24 * time.Hour
)

// Claims - полезная нагрузка JWT-токена входа
type Claims struct {
	Identifier     string `json:"identifier"`
	IdentifierType string `json:"type"`
	IsAdmin        bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenManager выпускает и проверяет JWT-токены
type TokenManager struct {
	secret []byte
}

// NewTokenManager создаёт менеджер токенов с секретом из конфига
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// GenerateMagicToken выпускает короткоживущий токен для входа по ссылке.
// identifierType - email или phone.
func (m *TokenManager) GenerateMagicToken(identifier, identifierType string) (string, error) {
	return m.sign(Claims{
		Identifier:     identifier,
		IdentifierType: identifierType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identifier,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(magicTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "installment-api",
		},
	})
}

// GenerateSessionToken выпускает токен личного кабинета после перехода
// по magic-ссылке
func (m *TokenManager) GenerateSessionToken(identifier, identifierType string) (string, error) {
	return m.sign(Claims{
		Identifier:     identifier,
		IdentifierType: identifierType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identifier,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "installment-api",
		},
	})
}

// GenerateAdminToken выпускает токен администратора на сутки
func (m *TokenManager) GenerateAdminToken(identifier string) (string, error) {
	return m.sign(Claims{
		Identifier:     identifier,
		IdentifierType: IdentifierPhone,
		IsAdmin:        true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identifier,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(adminTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "installment-api",
		},
	})
}

func (m *TokenManager) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate проверяет подпись и срок действия токена
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неверный метод подписи: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("неверный токен")
}
