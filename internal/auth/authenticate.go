// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
)

// Authenticate resolves a public access token to its account. The cache is
// consulted first; a cached record whose token does not match is re-read
// from the store before the request is rejected.
func (s *Service) Authenticate(ctx context.Context, publicToken, clientIP string) (account *Account, err error) {
	token, parseErr := ParsePublicAccessToken(publicToken, s.secret)

	ctx, f := s.begin(ctx, ActionAuthenticate, token.UID, clientIP)
	defer s.end(f, &err)

	if parseErr != nil {
		return nil, parseErr
	}

	if cached, ok := s.cache.Get(token.UID); ok && VerifyAccessToken(cached, token.AccessToken) {
		return cached, nil
	}

	current, err := s.store.Get(ctx, token.UID)
	if errors.Is(err, ErrNotFound) {
		s.cache.Remove(token.UID)
		return nil, newError(CodeUnknownUser)
	}
	if err != nil {
		return nil, s.fail(ctx, f, err)
	}
	s.cache.Set(token.UID, current)

	if !VerifyAccessToken(current, token.AccessToken) {
		return nil, newError(CodeWrongAccessToken)
	}
	return current, nil
}
