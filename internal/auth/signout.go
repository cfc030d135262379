// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// SignOutRequest is the input of SignOut.
type SignOutRequest struct {
	// ClientID is the requesting client, if the request came over a live
	// connection.
	ClientID string
	UID      string
	// Everywhere signs out every session of UID and clears the access token.
	Everywhere bool
	ClientIP   string
}

// SignOut unbinds the requesting client, or every client of the user when
// Everywhere is set, and then records the sign-out on the account. The
// in-memory updates happen before the store commit; clearing the stored
// access token is what makes global sign-out binding.
//
// Signing out of a single client does not rotate the access token, so other
// sessions of the same user stay valid.
func (s *Service) SignOut(ctx context.Context, req SignOutRequest) (err error) {
	ctx, f := s.begin(ctx, ActionSignOut, req.UID, req.ClientIP)
	defer s.end(f, &err)

	unbound := 0
	if req.Everywhere {
		s.cache.Remove(req.UID)
		unbound = s.clients.UnbindAll(req.UID)
	}
	if req.ClientID != "" && s.clients.Unbind(req.ClientID) {
		unbound++
	}

	if req.UID == "" {
		s.audit(ctx, f, "everywhere", req.Everywhere, "unbound", unbound)
		return nil
	}

	now := s.now()
	updated, err := s.store.Transaction(ctx, req.UID, func(current *Account) (*Account, error) {
		if current == nil {
			return nil, nil
		}
		current.LastSignout = &now
		current.LastSignoutIP = req.ClientIP
		if req.Everywhere {
			current.AccessToken = ""
		}
		return current, nil
	})
	if err != nil {
		return s.fail(ctx, f, err)
	}

	switch {
	case req.Everywhere && updated != nil:
		// Lookups that read the record before this commit can no longer
		// cache it.
		s.cache.Evict(req.UID, updated.Version)
	case req.Everywhere:
		s.cache.Remove(req.UID)
	case updated != nil:
		if _, cached := s.cache.Get(req.UID); cached {
			s.cache.Set(req.UID, updated)
		}
	}
	s.audit(ctx, f, "everywhere", req.Everywhere, "unbound", unbound)
	return nil
}
