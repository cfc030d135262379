// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the minimum password length for every flow.
const MinPasswordLength = 8

// PasswordPolicy describes the shape a new password must have.
type PasswordPolicy struct {
	MinLength    int
	RequireDigit bool
	RequireLower bool
	RequireUpper bool
}

// ChangePasswordPolicy applies when a signed-in user picks a new password.
var ChangePasswordPolicy = PasswordPolicy{
	MinLength:    MinPasswordLength,
	RequireDigit: true,
	RequireLower: true,
	RequireUpper: true,
}

// ResetPasswordPolicy applies when a password is set through a reset code.
var ResetPasswordPolicy = PasswordPolicy{
	MinLength: MinPasswordLength,
}

// Check returns a password_requirement_mismatch error if password violates p.
// Spaces are never allowed. Character classes are ASCII.
func (p PasswordPolicy) Check(password string) error {
	if utf8.RuneCountInString(password) < p.MinLength || strings.Contains(password, " ") {
		return newError(CodePasswordRequirementMismatch)
	}
	var digit, lower, upper bool
	for i := 0; i < len(password); i++ {
		switch c := password[i]; {
		case c >= '0' && c <= '9':
			digit = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		}
	}
	if (p.RequireDigit && !digit) || (p.RequireLower && !lower) || (p.RequireUpper && !upper) {
		return newError(CodePasswordRequirementMismatch)
	}
	return nil
}
