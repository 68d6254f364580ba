package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "jwtauth-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func signRaw(t *testing.T, claims *Claims) string {
	t.Helper()
	s, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign raw: %v", err)
	}
	return s
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	m := newHSManager(t)

	for _, kind := range []TokenType{TypeAccess, TypeRefresh} {
		tok, issued, err := m.Issue(kind, "42")
		if err != nil {
			t.Fatalf("Issue(%s) failed: %v", kind, err)
		}
		if got := issued.ExpiresAt.Sub(issued.IssuedAt.Time); got != m.TTL(kind) {
			t.Fatalf("expected lifetime %s, got %s", m.TTL(kind), got)
		}

		claims, err := m.Parse(tok, kind)
		if err != nil {
			t.Fatalf("Parse(%s) failed: %v", kind, err)
		}
		if claims.UserID != "42" || claims.Subject != "42" {
			t.Fatalf("unexpected subject: %+v", claims)
		}
		if claims.TokenType != kind {
			t.Fatalf("expected token type %s, got %s", kind, claims.TokenType)
		}
		if claims.ID == "" || claims.ID != issued.ID {
			t.Fatalf("jti mismatch: issued %q parsed %q", issued.ID, claims.ID)
		}
	}
}

func TestIssueGeneratesDistinctTokenIDs(t *testing.T) {
	m := newHSManager(t)
	_, a, err := m.Issue(TypeRefresh, "1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	_, b, err := m.Issue(TypeRefresh, "1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("expected distinct jti values")
	}
}

func TestParseRejectsWrongTokenType(t *testing.T) {
	m := newHSManager(t)
	refresh, _, err := m.Issue(TypeRefresh, "1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = m.Parse(refresh, TypeAccess)
	if !errors.Is(err, ErrInvalid) || !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected wrong type error, got %v", err)
	}

	if _, err := m.Parse(refresh, ""); err != nil {
		t.Fatalf("untyped parse should accept refresh token: %v", err)
	}
}

func TestParseReportsExpiry(t *testing.T) {
	m := newHSManager(t)
	tok, _, err := m.IssueAt(TypeAccess, "1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("IssueAt failed: %v", err)
	}

	_, err = m.Parse(tok, TypeAccess)
	if !errors.Is(err, ErrInvalid) || !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestParseHonoursLeeway(t *testing.T) {
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	tok, _, err := m.IssueAt(TypeAccess, "1", time.Now().Add(-70*time.Second))
	if err != nil {
		t.Fatalf("IssueAt failed: %v", err)
	}
	if _, err := m.Parse(tok, TypeAccess); err != nil {
		t.Fatalf("expected token within leeway to parse, got %v", err)
	}
}

func TestParseRejectsExpiryNotAfterIssuedAt(t *testing.T) {
	m := newHSManager(t)
	now := time.Now()
	tok := signRaw(t, &Claims{
		TokenType: TypeAccess,
		UserID:    "1",
		RegisteredClaims: gjwt.RegisteredClaims{
			ID:        "jti-1",
			Issuer:    "jwtauth-test",
			IssuedAt:  gjwt.NewNumericDate(now.Add(time.Hour)),
			ExpiresAt: gjwt.NewNumericDate(now.Add(time.Hour)),
		},
	})

	if _, err := m.Parse(tok, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected exp <= iat to be rejected, got %v", err)
	}
}

func TestParseRejectsMissingClaims(t *testing.T) {
	m := newHSManager(t)
	exp := gjwt.NewNumericDate(time.Now().Add(time.Minute))
	iat := gjwt.NewNumericDate(time.Now())

	cases := map[string]*Claims{
		"missing jti": {
			TokenType:        TypeAccess,
			UserID:           "1",
			RegisteredClaims: gjwt.RegisteredClaims{Issuer: "jwtauth-test", IssuedAt: iat, ExpiresAt: exp},
		},
		"missing type": {
			UserID:           "1",
			RegisteredClaims: gjwt.RegisteredClaims{ID: "j", Issuer: "jwtauth-test", IssuedAt: iat, ExpiresAt: exp},
		},
		"missing user": {
			TokenType:        TypeAccess,
			RegisteredClaims: gjwt.RegisteredClaims{ID: "j", Issuer: "jwtauth-test", IssuedAt: iat, ExpiresAt: exp},
		},
		"missing exp": {
			TokenType:        TypeAccess,
			UserID:           "1",
			RegisteredClaims: gjwt.RegisteredClaims{ID: "j", Issuer: "jwtauth-test", IssuedAt: iat},
		},
	}
	for name, claims := range cases {
		if _, err := m.Parse(signRaw(t, claims), ""); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func TestParseRejectsTamperedPayload(t *testing.T) {
	m := newHSManager(t)
	tok, _, err := m.Issue(TypeAccess, "1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	forged, _, err := m.Issue(TypeAccess, "2")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	parts := strings.Split(tok, ".")
	forgedParts := strings.Split(forged, ".")
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]

	if _, err := m.Parse(spliced, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected spliced payload to fail, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	edOnly, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	// HS256 keyed with the public key bytes: the classic confusion attack.
	claims := &Claims{
		TokenType: TypeAccess,
		UserID:    "1",
		RegisteredClaims: gjwt.RegisteredClaims{
			ID:        "j",
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte(pub))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := edOnly.Parse(tok, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected algorithm confusion to fail, got %v", err)
	}

	if _, _, err := edOnly.Issue(TypeAccess, "1"); !errors.Is(err, ErrVerifyOnly) {
		t.Fatalf("expected verify-only manager to refuse signing, got %v", err)
	}
}

func TestEd25519KeyRotationByKid(t *testing.T) {
	oldPub, oldPriv := newEdKeys(t)
	newPub, newPriv := newEdKeys(t)

	oldSigner, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    oldPriv,
		PublicKey:     oldPub,
		KeyID:         "k1",
	})
	if err != nil {
		t.Fatalf("NewManager old failed: %v", err)
	}
	rotated, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    newPriv,
		KeyID:         "k2",
		VerifyKeys:    map[string][]byte{"k1": oldPub, "k2": newPub},
	})
	if err != nil {
		t.Fatalf("NewManager rotated failed: %v", err)
	}

	oldTok, _, err := oldSigner.Issue(TypeRefresh, "7")
	if err != nil {
		t.Fatalf("Issue old failed: %v", err)
	}
	if _, err := rotated.Parse(oldTok, TypeRefresh); err != nil {
		t.Fatalf("rotated manager should accept k1 token: %v", err)
	}

	newTok, _, err := rotated.Issue(TypeAccess, "7")
	if err != nil {
		t.Fatalf("Issue new failed: %v", err)
	}
	if _, err := oldSigner.Parse(newTok, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("old manager must reject unknown kid, got %v", err)
	}
}

func TestParseRejectsIssuedAtTooFarInFuture(t *testing.T) {
	m := newHSManager(t)
	tok, _, err := m.IssueAt(TypeAccess, "1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("IssueAt failed: %v", err)
	}
	if _, err := m.Parse(tok, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected future iat to be rejected, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	pub, _ := newEdKeys(t)
	cases := map[string]Config{
		"zero access ttl":  {RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: testSecret},
		"zero refresh ttl": {AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: testSecret},
		"hs256 no secret":  {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256},
		"ed25519 no key":   {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519},
		"unknown method":   {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: "rs256", PrivateKey: testSecret},
		"large leeway":     {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: testSecret, Leeway: time.Hour},
		"kid not in set": {
			AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519,
			KeyID: "missing", VerifyKeys: map[string][]byte{"k1": pub},
		},
	}
	for name, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func FuzzParseExpAfterIAT(f *testing.F) {
	m, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		RequireIAT:    true,
	})
	if err != nil {
		f.Fatal(err)
	}
	valid, _, err := m.Issue(TypeAccess, "uid1")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1c2VyX2lkIjoiMSJ9.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := m.Parse(input, "")
		if err != nil {
			return
		}
		if claims == nil {
			t.Fatal("Parse returned nil claims without error")
		}
		if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
			t.Fatal("accepted token with exp <= iat")
		}
	})
}
