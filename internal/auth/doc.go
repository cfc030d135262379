// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements the credential flows of the realtime database:
// password change, password reset and sign-out.
//
// # Records
//
// Account is the per-user credential record. A record without a salt is a
// legacy record and verifies against the legacy digest; every password
// written by this package is salted.
//
// # Flows
//
// Service coordinates the flows over an AccountStore, a SessionCache and a
// ClientRegistry:
//   - ChangePassword - verify the old password, store the new one, rotate the access token
//   - RequestPasswordReset - store a fresh reset code and dispatch it signed
//   - ResetPassword - consume a signed reset code and set a new password
//   - SignOut - unbind clients and record the sign-out, optionally everywhere
//   - Authenticate - resolve a public access token to its account
//
// Every store mutation runs inside AccountStore.Transaction, which may call
// the mutate function more than once. Mutate functions only inspect and
// modify the record they are given.
//
// # Errors
//
// Flows fail with one of the codes in Codes. Infrastructure failures are
// logged with their context and surface as CodeUnexpected.
package auth
