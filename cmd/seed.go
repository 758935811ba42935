/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/result-system/apiserver/config"
	"github.com/result-system/apiserver/internal/auth"
	"github.com/result-system/apiserver/internal/db"
	"github.com/result-system/apiserver/internal/store"
	"github.com/result-system/apiserver/types"
)

const adminUsername = "A-2000"

var (
	seedFirstName string
	seedLastName  string
)

// seedAdminCmd creates the initial administrator account.
var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the initial ADMIN account",
	Long: `Creates the ADMIN account "A-2000" unless it already exists. The
password is read from ADMIN_PASSWORD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := os.Getenv("ADMIN_PASSWORD")
		if password == "" {
			return errors.New("ADMIN_PASSWORD is required")
		}

		cfg := config.LoadConfig()
		log := newLogger(cfg)
		defer func() { _ = log.Sync() }()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()
		users := store.NewUserRepository(conn)

		if _, err := users.GetByUsername(cmd.Context(), adminUsername); err == nil {
			log.Info("admin already exists", zap.String("username", adminUsername))
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		hasher, err := auth.NewHasher(auth.DefaultArgon2Params(), 1)
		if err != nil {
			return err
		}
		hash, err := hasher.Hash(cmd.Context(), password)
		if err != nil {
			return err
		}

		admin, err := users.Create(cmd.Context(), types.User{
			Username:     adminUsername,
			FirstName:    seedFirstName,
			LastName:     seedLastName,
			Role:         types.RoleAdmin,
			PasswordHash: hash,
		})
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		log.Info("admin created", zap.String("user_id", admin.ID), zap.String("username", admin.Username))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd)
	seedAdminCmd.Flags().StringVar(&seedFirstName, "first-name", "System", "first name of the admin")
	seedAdminCmd.Flags().StringVar(&seedLastName, "last-name", "Admin", "last name of the admin")
}
