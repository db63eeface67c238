package qstash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const signatureIssuer = "Upstash"

var ErrInvalidSignature = errors.New("invalid qstash signature")

// SignatureClaims is the payload of the Upstash-Signature JWT.
type SignatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verifier checks Upstash-Signature headers against the current signing key
// and falls back to the next key during rotation.
type Verifier struct {
	keys [][]byte
}

func NewVerifier(currentSigningKey, nextSigningKey string) *Verifier {
	v := &Verifier{}
	for _, key := range []string{currentSigningKey, nextSigningKey} {
		if k := strings.TrimSpace(key); k != "" {
			v.keys = append(v.keys, []byte(k))
		}
	}
	return v
}

func (v *Verifier) Enabled() bool {
	return v != nil && len(v.keys) > 0
}

// Verify checks signature, expiry, issuer and body hash. destinationURL is
// compared with the subject claim when non-empty.
func (v *Verifier) Verify(signature string, body []byte, destinationURL string) error {
	if !v.Enabled() {
		return fmt.Errorf("%w: no signing keys configured", ErrInvalidSignature)
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}

	var lastErr error
	for _, key := range v.keys {
		if err := verifyWithKey(signature, key, body, destinationURL); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func verifyWithKey(signature string, key []byte, body []byte, destinationURL string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(signatureIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(time.Second),
	}
	if destinationURL != "" {
		opts = append(opts, jwt.WithSubject(destinationURL))
	}

	claims := &SignatureClaims{}
	if _, err := jwt.ParseWithClaims(signature, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...); err != nil {
		return err
	}

	sum := sha256.Sum256(body)
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	if strings.TrimRight(claims.Body, "=") != want {
		return errors.New("body hash mismatch")
	}
	return nil
}
