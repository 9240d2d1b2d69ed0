package main

import (
	"errors"
	"fmt"
	"os"

	"charityfeed/internal/jobs"
	"charityfeed/internal/service"

	"github.com/spf13/cobra"
)

func setupCmd() *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create an admin account",
		Long: `Create an admin account directly in the database.

Unlike the public admin-setup endpoint this works when admins already exist.
The password falls back to the ADMIN_PASSWORD environment variable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if password == "" {
				return errors.New("a password is required (--password or ADMIN_PASSWORD)")
			}
			user, err := current.auth.CreateAdmin(cmd.Context(), service.AccountInput{
				Email:    email,
				Password: password,
				FullName: name,
			})
			if err != nil {
				return err
			}
			green.Printf("Created admin %s (ID: %d)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := current.auth.Promote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			green.Printf("%s (ID: %d) is now an admin\n", user.Email, user.ID)
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild like and comment counters from rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ran, err := jobs.NewReconcileJob(current.engagement, current.rt.Redis).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if !ran {
				yellow.Println("Another reconciliation is running; nothing done")
				return nil
			}
			green.Println("Counters reconciled")
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := current.posts.CollectStats(cmd.Context())
			if err != nil {
				return err
			}
			bold.Println("Dashboard")
			fmt.Println("─────────────────────────")
			fmt.Printf("Users     %8d\n", stats.TotalUsers)
			fmt.Printf("Posts     %8d\n", stats.TotalPosts)
			fmt.Printf("Likes     %8d\n", stats.TotalLikes)
			fmt.Printf("Comments  %8d\n", stats.TotalComments)
			return nil
		},
	}
}
