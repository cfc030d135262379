// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Token kinds keep a reset code from being accepted as an access token and
// the other way around.
const (
	kindCode   = "code"
	kindAccess = "access"
)

// SignedPayload is the content of a signed token.
type SignedPayload struct {
	UID  string
	Code string
}

// PublicAccessToken is the decoded form of a client-facing access token.
type PublicAccessToken struct {
	UID         string
	IP          string
	AccessToken string
	Created     time.Time
}

type codeClaims struct {
	Kind string `json:"k"`
	Code string `json:"c"`
	jwt.RegisteredClaims
}

type accessClaims struct {
	Kind        string `json:"k"`
	AccessToken string `json:"t"`
	IP          string `json:"i,omitempty"`
	jwt.RegisteredClaims
}

// CreateSignedToken signs p with secret. The result is URL-safe.
func CreateSignedToken(p SignedPayload, secret []byte) (string, error) {
	claims := codeClaims{
		Kind:             kindCode,
		Code:             p.Code,
		RegisteredClaims: jwt.RegisteredClaims{Subject: p.UID},
	}
	return sign(claims, secret)
}

// ParseSignedToken verifies token against secret and returns its payload.
// Any decoding or signature failure yields invalid_signature.
func ParseSignedToken(token string, secret []byte) (SignedPayload, error) {
	claims := &codeClaims{}
	if err := parse(token, claims, secret); err != nil || claims.Kind != kindCode {
		return SignedPayload{}, newError(CodeInvalidSignature)
	}
	return SignedPayload{UID: claims.Subject, Code: claims.Code}, nil
}

// CreatePublicAccessToken binds accessToken and the issuing ip to uid.
func CreatePublicAccessToken(uid, ip, accessToken string, secret []byte) (string, error) {
	claims := accessClaims{
		Kind:        kindAccess,
		AccessToken: accessToken,
		IP:          ip,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  uid,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	return sign(claims, secret)
}

// ParsePublicAccessToken verifies a token made by CreatePublicAccessToken.
func ParsePublicAccessToken(token string, secret []byte) (PublicAccessToken, error) {
	claims := &accessClaims{}
	if err := parse(token, claims, secret); err != nil || claims.Kind != kindAccess {
		return PublicAccessToken{}, newError(CodeInvalidSignature)
	}
	out := PublicAccessToken{
		UID:         claims.Subject,
		IP:          claims.IP,
		AccessToken: claims.AccessToken,
	}
	if claims.IssuedAt != nil {
		out.Created = claims.IssuedAt.Time
	}
	return out, nil
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", oops.Code("TOKEN_SECRET_MISSING").Errorf("signing secret is empty")
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return token, nil
}

func parse(token string, claims jwt.Claims, secret []byte) error {
	if len(secret) == 0 {
		return oops.Code("TOKEN_SECRET_MISSING").Errorf("signing secret is empty")
	}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return err //nolint:wrapcheck // callers collapse every failure into one code
	}
	if !parsed.Valid {
		return jwt.ErrTokenSignatureInvalid
	}
	return nil
}
