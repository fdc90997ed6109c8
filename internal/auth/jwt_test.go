package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret-key"

	token, err := GenerateToken(secret, time.Hour, "uid-1", "ana@example.com", "Vendedor")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	id := claims.Identity()
	if id.UserID != "uid-1" {
		t.Errorf("expected user id 'uid-1', got %q", id.UserID)
	}
	if id.Email != "ana@example.com" {
		t.Errorf("expected email 'ana@example.com', got %q", id.Email)
	}
	if claims.UserType != "Vendedor" {
		t.Errorf("expected user type 'Vendedor', got %q", claims.UserType)
	}
}

func TestValidateTokenStableIdentity(t *testing.T) {
	token, _ := GenerateToken("secret", time.Hour, "uid-1", "ana@example.com", "")

	first, err := ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := ValidateToken("secret", token)
		if err != nil {
			t.Fatalf("ValidateToken #%d: %v", i, err)
		}
		if again.Identity() != first.Identity() {
			t.Errorf("identity changed between calls: %+v vs %+v", again.Identity(), first.Identity())
		}
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret1", time.Hour, "uid-1", "ana@example.com", "")

	_, err := ValidateToken("secret2", token)
	if !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("expected ErrInvalidCredential for wrong secret, got %v", err)
	}
	if errors.Is(err, ErrTokenExpired) {
		t.Error("wrong secret must not be reported as expired")
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	_, err := ValidateToken("secret", "not-a-token")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("expected ErrInvalidCredential for garbled token, got %v", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	claims := Claims{
		Email: "ana@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "uid-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	_, err = ValidateToken("secret", token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
	if !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("expected expired token to also be ErrInvalidCredential, got %v", err)
	}
}

func TestValidateTokenRequiresSubject(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))

	if _, err := ValidateToken("secret", token); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("expected ErrInvalidCredential for token without subject, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	secret := "test"
	token, _ := GenerateToken(secret, 2*time.Hour, "uid-1", "a@b.co", "")
	claims, _ := ValidateToken(secret, token)

	expiresAt := claims.ExpiresAt.Time
	expectedExpiry := time.Now().Add(2 * time.Hour)

	// Should be within a few seconds.
	diff := expectedExpiry.Sub(expiresAt)
	if diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("token expiry too far from expected: diff=%v", diff)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"Bearer   abc ", "abc", false},
		{"", "", true},
		{"Bearer ", "", true},
		{"Basic dXNlcjpwYXNz", "", true},
		{"abc.def.ghi", "", true},
	}

	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if (err != nil) != tt.wantErr {
			t.Errorf("BearerToken(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("BearerToken(%q) error = %v, want ErrUnauthenticated", tt.header, err)
		}
		if got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
