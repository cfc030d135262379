// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/auth/postgres"
	"github.com/holomush/authcore/internal/store"
)

var _ = Describe("AccountBackend", func() {
	var (
		ctx     context.Context
		backend *postgres.AccountBackend
		tx      *store.Transactor
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = postgres.NewAccountBackend(testPool)
		var err error
		tx, err = store.NewTransactor(backend, store.WithMaxAttempts(50))
		Expect(err).NotTo(HaveOccurred())

		_, err = testPool.Exec(ctx, `DELETE FROM accounts`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips every column", func() {
		salt := "salt"
		email := "ann@example.com"
		_, err := tx.Transaction(ctx, "u1", func(cur *auth.Account) (*auth.Account, error) {
			Expect(cur).To(BeNil())
			return &auth.Account{
				PasswordHash: "hash",
				PasswordSalt: &salt,
				AccessToken:  "tok",
				Email:        &email,
				Username:     "ann",
				Settings:     map[string]any{"lang": "en"},
			}, nil
		})
		Expect(err).NotTo(HaveOccurred())

		got, version, err := backend.Load(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(int64(1)))
		Expect(got.PasswordSalt).To(HaveValue(Equal("salt")))
		Expect(got.Email).To(HaveValue(Equal(email)))
		Expect(got.Settings).To(HaveKeyWithValue("lang", "en"))
		Expect(got.PasswordResetCode).To(BeNil())
	})

	It("reports a stale version as a lost race", func() {
		Expect(backend.CompareAndSwap(ctx, "u2", 0, &auth.Account{Username: "bo"})).To(BeTrue())
		Expect(backend.CompareAndSwap(ctx, "u2", 0, &auth.Account{Username: "dup"})).To(BeFalse())
		Expect(backend.CompareAndSwap(ctx, "u2", 7, &auth.Account{Username: "stale"})).To(BeFalse())
		Expect(backend.CompareAndSwap(ctx, "u2", 1, &auth.Account{Username: "fresh"})).To(BeTrue())

		got, version, err := backend.Load(ctx, "u2")
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(int64(2)))
		Expect(got.Username).To(Equal("fresh"))
	})

	It("linearizes concurrent transactions on one uid", func() {
		_, err := tx.Transaction(ctx, "u3", func(*auth.Account) (*auth.Account, error) {
			return &auth.Account{Settings: map[string]any{"n": float64(0)}}, nil
		})
		Expect(err).NotTo(HaveOccurred())

		const workers = 10
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := tx.Transaction(ctx, "u3", func(cur *auth.Account) (*auth.Account, error) {
					cur.Settings["n"] = cur.Settings["n"].(float64) + 1
					return cur, nil
				})
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		got, err := tx.Get(ctx, "u3")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Settings["n"]).To(Equal(float64(workers)))
	})

	It("returns ErrNotFound for a missing uid", func() {
		_, err := tx.Get(ctx, "nobody")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
