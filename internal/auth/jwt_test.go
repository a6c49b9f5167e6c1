package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	secret, err := GenerateSecureSecret()
	if err != nil {
		t.Fatalf("Ошибка генерации секрета: %v", err)
	}
	tm, err := NewTokenManager(secret, time.Hour)
	if err != nil {
		t.Fatalf("Ошибка создания TokenManager: %v", err)
	}
	return tm
}

// TestIssueAndValidate тестирует выпуск и проверку токена
func TestIssueAndValidate(t *testing.T) {
	tm := newManager(t)

	token, err := tm.Issue("ci", ScopeMapsWrite)
	if err != nil {
		t.Fatalf("Ошибка выпуска токена: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("Неверный формат JWT токена: %s", token)
	}

	claims, err := tm.Validate(token)
	if err != nil {
		t.Fatalf("Валидный токен отклонён: %v", err)
	}
	if claims.Subject != "ci" {
		t.Errorf("Ожидался subject ci, получен %s", claims.Subject)
	}
	if !claims.HasScope(ScopeMapsWrite) {
		t.Error("Нет области maps:write")
	}
	if claims.HasScope("admin") {
		t.Error("Лишняя область доступа")
	}
}

// TestValidateRejects тестирует отказ для чужих, просроченных и испорченных токенов
func TestValidateRejects(t *testing.T) {
	tm := newManager(t)
	other := newManager(t)

	foreign, _ := other.Issue("ci", ScopeMapsWrite)
	if _, err := tm.Validate(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Токен с чужим секретом принят: %v", err)
	}

	token, _ := tm.Issue("ci")
	if _, err := tm.Validate(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Испорченный токен принят: %v", err)
	}

	tm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := tm.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Просроченный токен принят: %v", err)
	}

	// Токен без подписи (alg=none)
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := tm.Validate(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Неподписанный токен принят: %v", err)
	}
}

// TestNewTokenManagerSecret тестирует требования к секрету
func TestNewTokenManagerSecret(t *testing.T) {
	if _, err := NewTokenManager("не base64!", time.Hour); err == nil {
		t.Error("Ожидалась ошибка для не-base64 секрета")
	}
	if _, err := NewTokenManager("c2hvcnQ=", time.Hour); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("Ожидалась ErrWeakSecret, получено %v", err)
	}
}
