package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/edgard/psyprofile/internal/api"
	"github.com/edgard/psyprofile/internal/database"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(opts, false)
			if err != nil {
				return err
			}
			db, err := database.NewDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			database.CloseDB(db)
			log.Info("Database is up to date", "driver", cfg.Database.Driver)
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newClearProfileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-profile <telegram-user-id>",
		Short: "Remove the stored profile of a Telegram user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			if _, err := strconv.ParseInt(userID, 10, 64); err != nil {
				return usageError("user id must be numeric, got %q", userID)
			}

			cfg, log, err := loadConfig(opts, false)
			if err != nil {
				return err
			}
			db, err := database.NewDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			if err := database.NewStore(db, log).ClearProfile(cmd.Context(), userID); err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return fmt.Errorf("user %s not found", userID)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile of user %s cleared\n", userID)
			return nil
		},
	}
}

func newStaffCmd(opts *rootOptions) *cobra.Command {
	staff := &cobra.Command{
		Use:   "staff",
		Short: "Manage dashboard accounts",
	}

	var username, password, role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a dashboard account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if role != database.RoleAdmin && role != database.RoleUser {
				return usageError("--role must be %q or %q", database.RoleAdmin, database.RoleUser)
			}

			cfg, log, err := loadConfig(opts, false)
			if err != nil {
				return err
			}
			db, err := database.NewDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			auth := api.NewAuth(cfg.HTTP.JWTSecret, cfg.HTTP.TokenTTL)
			user, err := auth.CreateStaff(cmd.Context(), database.NewStore(db, log), username, password, role)
			if err != nil {
				if errors.Is(err, database.ErrConflict) {
					return fmt.Errorf("staff account %q already exists", username)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s account %s (id %d)\n", user.Role, user.Username, user.ID)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "Account username")
	create.Flags().StringVar(&password, "password", "", "Account password")
	create.Flags().StringVar(&role, "role", database.RoleUser, "Account role (admin or user)")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("password")

	staff.AddCommand(create)
	return staff
}
