package storage

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const artifactAudience = "artifact"

var ErrInvalidToken = errors.New("storage: invalid or expired artifact token")

// URLSigner mints short-lived HS256 tokens naming one artifact reference.
type URLSigner struct {
	secret  []byte
	baseURL string
}

func NewURLSigner(secret, baseURL string) *URLSigner {
	return &URLSigner{secret: []byte(secret), baseURL: baseURL}
}

// Sign returns a retrieval URL for ref that expires after ttl. Each call yields
// a distinct URL for the same artifact.
func (s *URLSigner) Sign(ref string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   ref,
		Audience:  jwt.ClaimStrings{artifactAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("storage: sign url: %w", err)
	}
	return s.baseURL + "/v1/artifacts?token=" + url.QueryEscape(signed), nil
}

// Verify returns the reference a valid token was minted for.
func (s *URLSigner) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(artifactAudience))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
