// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by AccountStore.Get when no record exists for a uid.
var ErrNotFound = errors.New("not found")

// Code is the closed set of failure codes returned by the flows. Values are
// the wire codes the HTTP layer hands to clients.
type Code string

// Failure codes.
const (
	CodeUnknownUser                 Code = "unknown_user"
	CodeWrongPassword               Code = "wrong_password"
	CodeWrongAccessToken            Code = "wrong_access_token"
	CodeInvalidCode                 Code = "invalid_code"
	CodePasswordRequirementMismatch Code = "password_requirement_mismatch"
	CodeInvalidSignature            Code = "invalid_signature"
	CodeUnexpected                  Code = "unexpected"
)

// Codes lists every failure code.
var Codes = []Code{
	CodeUnknownUser,
	CodeWrongPassword,
	CodeWrongAccessToken,
	CodeInvalidCode,
	CodePasswordRequirementMismatch,
	CodeInvalidSignature,
	CodeUnexpected,
}

func (c Code) known() bool {
	for _, k := range Codes {
		if c == k {
			return true
		}
	}
	return false
}

// Message returns the client-facing text for c.
func (c Code) Message() string {
	switch c {
	case CodeUnknownUser:
		return "unknown user"
	case CodeWrongPassword:
		return "wrong password"
	case CodeWrongAccessToken:
		return "access token does not match the current session"
	case CodeInvalidCode:
		return "invalid or expired reset code"
	case CodePasswordRequirementMismatch:
		return "password does not meet the requirements"
	case CodeInvalidSignature:
		return "invalid token signature"
	default:
		return "an unexpected error occurred"
	}
}

func newError(code Code) error {
	return oops.Code(string(code)).Errorf("%s", code.Message())
}

// CodeOf maps err onto the closed code set. Errors that do not carry one of
// the flow codes are reported as CodeUnexpected; a nil error yields "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return CodeUnexpected
	}
	raw, _ := any(oopsErr.Code()).(string)
	if c := Code(raw); c.known() {
		return c
	}
	return CodeUnexpected
}

// IsCode reports whether err maps to code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
