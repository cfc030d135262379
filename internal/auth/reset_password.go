// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/holomush/authcore/internal/notify"
)

// ResetPasswordRequest is the input of ResetPassword.
type ResetPasswordRequest struct {
	// Code is the signed reset code handed to the user.
	Code        string
	NewPassword string
	ClientIP    string
}

// ResetPassword consumes a signed reset code and sets a new password. The
// code is checked again inside the transaction so it can only be used once.
// The access token is rotated but no public token is issued. A confirmation
// notification is dispatched in the background.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (account *Account, err error) {
	payload, parseErr := ParseSignedToken(req.Code, s.secret)

	ctx, f := s.begin(ctx, ActionResetPassword, payload.UID, req.ClientIP)
	defer s.end(f, &err)

	if parseErr != nil {
		return nil, newError(CodeInvalidCode)
	}

	current, err := s.store.Get(ctx, payload.UID)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(CodeUnknownUser)
	}
	if err != nil {
		return nil, s.fail(ctx, f, err)
	}
	if !VerifyResetCode(current, payload.Code) {
		return nil, newError(CodeInvalidCode)
	}
	if err := ResetPasswordPolicy.Check(req.NewPassword); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashSalted(req.NewPassword, "")
	if err != nil {
		return nil, s.fail(ctx, f, err)
	}
	accessToken, err := GenerateAccessToken()
	if err != nil {
		return nil, s.fail(ctx, f, err)
	}
	now := s.now()

	updated, err := s.store.Transaction(ctx, payload.UID, func(current *Account) (*Account, error) {
		if current == nil {
			return nil, newError(CodeUnknownUser)
		}
		if !VerifyResetCode(current, payload.Code) {
			return nil, newError(CodeInvalidCode)
		}
		current.SetPassword(hash)
		current.PasswordResetCode = nil
		current.AccessToken = accessToken
		current.AccessTokenCreated = now
		return current, nil
	})
	if err != nil {
		return nil, s.fail(ctx, f, err)
	}

	s.cache.Set(payload.UID, updated)
	s.notifier.Dispatch(notify.Event{
		Type: notify.TypeResetPasswordSuccess,
		Date: now,
		IP:   req.ClientIP,
		User: recipient(updated),
	})
	s.audit(ctx, f)
	return updated, nil
}

// RequestPasswordReset stores a fresh reset code for uid and returns it
// signed. The signed code is also dispatched to the user.
func (s *Service) RequestPasswordReset(ctx context.Context, uid, clientIP string) (signedCode string, err error) {
	ctx, f := s.begin(ctx, ActionRequestReset, uid, clientIP)
	defer s.end(f, &err)

	code, err := GenerateResetCode()
	if err != nil {
		return "", s.fail(ctx, f, err)
	}

	updated, err := s.store.Transaction(ctx, uid, func(current *Account) (*Account, error) {
		if current == nil {
			return nil, newError(CodeUnknownUser)
		}
		current.PasswordResetCode = &code
		return current, nil
	})
	if err != nil {
		return "", s.fail(ctx, f, err)
	}
	s.cache.Set(uid, updated)

	signedCode, err = CreateSignedToken(SignedPayload{UID: uid, Code: code}, s.secret)
	if err != nil {
		return "", s.fail(ctx, f, err)
	}
	s.notifier.Dispatch(notify.Event{
		Type: notify.TypeResetPassword,
		Date: s.now(),
		IP:   clientIP,
		User: recipient(updated),
		Code: signedCode,
	})
	s.audit(ctx, f)
	return signedCode, nil
}

func recipient(a *Account) notify.User {
	u := notify.User{
		UID:         a.UID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		Settings:    a.Settings,
	}
	if a.Email != nil {
		u.Email = *a.Email
	}
	return u
}
