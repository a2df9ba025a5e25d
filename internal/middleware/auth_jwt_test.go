package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func authProbe(t *testing.T, secret string, setup func(r *http.Request)) (int, string, string) {
	t.Helper()
	var userID, locale string
	h := AuthJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = UserIDFromContext(r.Context())
		locale = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/videos/chain", nil)
	setup(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, userID, locale
}

func TestAuthJWTAcceptsBearerAndCookie(t *testing.T) {
	token, err := SignJWT("s3cret", TokenClaims{UserID: "user-42", Sub: "ignored", Locale: "es"})
	if err != nil {
		t.Fatalf("SignJWT error: %v", err)
	}

	code, userID, locale := authProbe(t, "s3cret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if code != http.StatusOK || userID != "user-42" || locale != "es" {
		t.Fatalf("bearer: code=%d user=%q locale=%q", code, userID, locale)
	}

	code, userID, _ = authProbe(t, "s3cret", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: token})
	})
	if code != http.StatusOK || userID != "user-42" {
		t.Fatalf("cookie: code=%d user=%q", code, userID)
	}
}

func TestAuthJWTFallsBackToSub(t *testing.T) {
	token, _ := SignJWT("s3cret", TokenClaims{Sub: "sub-1"})
	code, userID, _ := authProbe(t, "s3cret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if code != http.StatusOK || userID != "sub-1" {
		t.Fatalf("code=%d user=%q", code, userID)
	}
}

func TestAuthJWTRejects(t *testing.T) {
	good, _ := SignJWT("s3cret", TokenClaims{UserID: "u"})
	expired, _ := SignJWT("s3cret", TokenClaims{UserID: "u", Exp: time.Now().Add(-time.Minute).Unix()})
	anonymous, _ := SignJWT("s3cret", TokenClaims{})

	cases := map[string]func(r *http.Request){
		"missing":        func(r *http.Request) {},
		"wrong scheme":   func(r *http.Request) { r.Header.Set("Authorization", "Basic "+good) },
		"wrong secret":   func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+good+"x") },
		"expired":        func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) },
		"no subject":     func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+anonymous) },
		"garbage cookie": func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "a.b"}) },
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			if code, _, _ := authProbe(t, "s3cret", setup); code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", code)
			}
		})
	}
}
