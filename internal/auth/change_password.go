// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// ChangePasswordRequest is the input of ChangePassword.
type ChangePasswordRequest struct {
	UID         string
	OldPassword string
	NewPassword string
	// AccessToken, when set, must match the stored access token.
	AccessToken string
	ClientIP    string
}

// ChangePassword verifies the old password, stores a salted hash of the new
// one and rotates the access token. It returns a public access token for the
// new session. Other sessions of the user keep their binding but their
// tokens stop matching.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) (publicToken string, err error) {
	ctx, f := s.begin(ctx, ActionChangePassword, req.UID, req.ClientIP)
	defer s.end(f, &err)

	if err := ChangePasswordPolicy.Check(req.NewPassword); err != nil {
		return "", err
	}

	hash, err := s.hasher.HashSalted(req.NewPassword, "")
	if err != nil {
		return "", s.fail(ctx, f, err)
	}
	accessToken, err := GenerateAccessToken()
	if err != nil {
		return "", s.fail(ctx, f, err)
	}
	now := s.now()

	updated, err := s.store.Transaction(ctx, req.UID, func(current *Account) (*Account, error) {
		if current == nil {
			return nil, newError(CodeUnknownUser)
		}
		if !s.hasher.Verify(req.OldPassword, current) {
			return nil, newError(CodeWrongPassword)
		}
		if req.AccessToken != "" && !VerifyAccessToken(current, req.AccessToken) {
			return nil, newError(CodeWrongAccessToken)
		}
		current.SetPassword(hash)
		current.AccessToken = accessToken
		current.AccessTokenCreated = now
		return current, nil
	})
	if err != nil {
		return "", s.fail(ctx, f, err)
	}

	s.cache.Set(req.UID, updated)

	publicToken, err = CreatePublicAccessToken(req.UID, req.ClientIP, updated.AccessToken, s.secret)
	if err != nil {
		return "", s.fail(ctx, f, err)
	}
	s.audit(ctx, f)
	return publicToken, nil
}
