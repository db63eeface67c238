package qstash

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestPublishPostsToDestination(t *testing.T) {
	t.Parallel()

	var (
		gotPath    string
		gotAuth    string
		gotRetries string
		gotForward string
		gotBody    string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotRetries = r.Header.Get("Upstash-Retries")
		gotForward = r.Header.Get("Upstash-Forward-X-Conversation-Id")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		fmt.Fprint(w, `{"messageId":"msg_123"}`)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, Token: "tok", Retries: 2}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	out, err := client.Publish(context.Background(), PublishRequest{
		Destination: "https://feedback.example.com/api/qstash/message",
		Body:        []byte(`{"message":"hi"}`),
		Forward:     map[string]string{"X-Conversation-Id": "conv-1"},
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if out.MessageID != "msg_123" {
		t.Fatalf("MessageID = %q", out.MessageID)
	}
	if gotPath != "/v2/publish/https://feedback.example.com/api/qstash/message" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" || gotRetries != "2" || gotForward != "conv-1" {
		t.Fatalf("headers auth=%q retries=%q forward=%q", gotAuth, gotRetries, gotForward)
	}
	if gotBody != `{"message":"hi"}` {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestPublishSurfacesErrorBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid token"}`)
	}))
	t.Cleanup(server.Close)

	client := MustNew(Config{URL: server.URL, Token: "tok"}, WithHTTPClient(server.Client()))
	_, err := client.Publish(context.Background(), PublishRequest{Destination: "https://x.example.com"})
	if err == nil || err.Error() != "qstash http status=401: invalid token" {
		t.Fatalf("Publish() error = %v", err)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{URL: "https://qstash.upstash.io"}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func sign(t *testing.T, key string, body []byte, subject string, exp time.Time) string {
	t.Helper()
	sum := sha256.Sum256(body)
	claims := SignatureClaims{
		Body: base64.URLEncoding.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "Upstash",
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestVerifierAcceptsCurrentAndNextKeys(t *testing.T) {
	t.Parallel()

	body := []byte(`{"message":"hi"}`)
	const dest = "https://feedback.example.com/api/qstash/message"
	v := NewVerifier("current-key", "next-key")

	for _, key := range []string{"current-key", "next-key"} {
		sig := sign(t, key, body, dest, time.Now().Add(5*time.Minute))
		if err := v.Verify(sig, body, dest); err != nil {
			t.Fatalf("Verify() with %s error = %v", key, err)
		}
	}
}

func TestVerifierRejects(t *testing.T) {
	t.Parallel()

	body := []byte(`{"message":"hi"}`)
	const dest = "https://feedback.example.com/api/qstash/message"
	v := NewVerifier("current-key", "")

	cases := map[string]struct {
		sig  string
		body []byte
		dest string
	}{
		"wrong key":     {sig: sign(t, "other-key", body, dest, time.Now().Add(time.Minute)), body: body, dest: dest},
		"tampered body": {sig: sign(t, "current-key", body, dest, time.Now().Add(time.Minute)), body: []byte(`{"message":"bye"}`), dest: dest},
		"expired":       {sig: sign(t, "current-key", body, dest, time.Now().Add(-time.Hour)), body: body, dest: dest},
		"wrong subject": {sig: sign(t, "current-key", body, "https://evil.example.com", time.Now().Add(time.Minute)), body: body, dest: dest},
		"missing":       {sig: "", body: body, dest: dest},
	}
	for name, tc := range cases {
		if err := v.Verify(tc.sig, tc.body, tc.dest); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("%s: Verify() error = %v, want ErrInvalidSignature", name, err)
		}
	}

	if err := NewVerifier("", "").Verify("x", body, ""); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("disabled verifier error = %v", err)
	}
}
