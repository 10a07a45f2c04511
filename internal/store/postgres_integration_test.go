// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gachafight/arena/internal/auth"
	"github.com/gachafight/arena/internal/store"
)

// setupPostgres starts a container, migrates it, and opens a store.
func setupPostgres() (*store.PostgresProfileStore, string, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("gachafight_test"),
		postgres.WithUsername("gachafight"),
		postgres.WithPassword("gachafight"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}
	upErr := migrator.Up()
	_ = migrator.Close()
	if upErr != nil {
		_ = container.Terminate(ctx)
		return nil, "", nil, upErr
	}

	s, err := store.OpenPostgres(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", nil, err
	}

	cleanup := func() {
		_ = s.Close()
		_ = container.Terminate(ctx)
	}
	return s, connStr, cleanup, nil
}

var _ = Describe("PostgresProfileStore", func() {
	var (
		profiles *store.PostgresProfileStore
		connStr  string
		cleanup  func()
	)

	BeforeEach(func() {
		var err error
		profiles, connStr, cleanup, err = setupPostgres()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("GetProfile", func() {
		It("round-trips owned characters", func() {
			ctx := context.Background()
			Expect(profiles.UpsertProfile(ctx, &auth.Profile{
				ID: "u1", Username: "alice", SelectedCharacter: "kaito", OwnedCharacters: []string{"kaito", "yuki"},
			})).To(Succeed())

			p, err := profiles.GetProfile(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.OwnedCharacters).To(Equal([]string{"kaito", "yuki"}))
			Expect(p.SelectedCharacter).To(Equal("kaito"))
		})

		It("reports unknown profiles as not found", func() {
			_, err := profiles.GetProfile(context.Background(), "ghost")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("CreditKillAndSpin", func() {
		It("never loses concurrent credits", func() {
			ctx := context.Background()
			Expect(profiles.UpsertProfile(ctx, &auth.Profile{ID: "u1", Username: "alice"})).To(Succeed())

			var wg sync.WaitGroup
			for range 25 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					Expect(profiles.CreditKillAndSpin(ctx, "u1")).To(Succeed())
				}()
			}
			wg.Wait()

			p, err := profiles.GetProfile(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Kills).To(Equal(25))
			Expect(p.Spins).To(Equal(25))
		})

		It("does not treat a missing profile as transient", func() {
			err := profiles.CreditKillAndSpin(context.Background(), "ghost")
			Expect(err).To(HaveOccurred())
			Expect(profiles.IsTransient(err)).To(BeFalse())
		})
	})

	Describe("Migrator", func() {
		It("rolls the schema down and up again", func() {
			m, err := store.NewMigrator(connStr)
			Expect(err).NotTo(HaveOccurred())
			defer m.Close()

			v, dirty, err := m.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeNumerically(">", 0))
			Expect(dirty).To(BeFalse())

			Expect(m.Down()).To(Succeed())
			pending, err := m.Pending()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).NotTo(BeEmpty())

			Expect(m.Up()).To(Succeed())
			pending, err = m.Pending()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})
	})
})
