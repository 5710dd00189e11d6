package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	token, _, err := m.GenerateToken("u1", "tenant-a", "Ada")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}

	if claims.UserID != "u1" || claims.TenantID != "tenant-a" || claims.Name != "Ada" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestJWTManager_Rotation(t *testing.T) {
	keys := map[string]string{"k1": "secret-one", "k2": "secret-two"}
	m := NewJWTManagerFromKeys(keys, "k2", 5*time.Minute)

	tkn2, _, err := m.GenerateToken("u1", "t", "")
	if err != nil {
		t.Fatalf("GenerateToken (k2) failed: %v", err)
	}
	if _, err := m.VerifyToken(tkn2); err != nil {
		t.Fatalf("VerifyToken (k2) failed: %v", err)
	}

	// a token issued while k1 was active must keep verifying after rotation
	mOld := NewJWTManagerFromKeys(keys, "k1", 5*time.Minute)
	tkn1, _, err := mOld.GenerateToken("u1", "t", "")
	if err != nil {
		t.Fatalf("GenerateToken (k1) failed: %v", err)
	}
	if _, err := m.VerifyToken(tkn1); err != nil {
		t.Fatalf("VerifyToken (old k1) failed: %v", err)
	}

	// once k1 is retired its tokens are rejected
	mNew := NewJWTManagerFromKeys(map[string]string{"k2": "secret-two"}, "k2", 5*time.Minute)
	if _, err := mNew.VerifyToken(tkn1); err == nil {
		t.Fatal("expected token signed by a retired key to be rejected")
	}
}

func TestJWTManager_RejectsExpiredAndForeign(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)
	expired, _, err := m.GenerateToken("u1", "t", "")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := m.VerifyToken(expired); err == nil {
		t.Fatal("expected expired token to be rejected")
	}

	other := NewJWTManager("other-secret", time.Minute)
	foreign, _, _ := other.GenerateToken("u1", "t", "")
	if _, err := NewJWTManager("test-secret", time.Minute).VerifyToken(foreign); err == nil {
		t.Fatal("expected token signed with a different secret to be rejected")
	}
}

func TestJWTManager_RequiresTenant(t *testing.T) {
	secret := []byte("test-secret")
	claims := &Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = "default"
	s, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := NewJWTManager("test-secret", time.Minute).VerifyToken(s); err == nil {
		t.Fatal("expected token without tenant_id to be rejected")
	}
}

func TestParseKeys(t *testing.T) {
	keys, err := ParseKeys("k1:one, k2:two")
	if err != nil {
		t.Fatalf("ParseKeys failed: %v", err)
	}
	if keys["k1"] != "one" || keys["k2"] != "two" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	if _, err := ParseKeys("broken"); err == nil {
		t.Fatal("expected malformed entry to fail")
	}
}
