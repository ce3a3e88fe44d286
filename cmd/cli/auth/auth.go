package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/aquamarine/cmd/cli/config"
	"github.com/crucial707/aquamarine/internal/middleware"
)

// InitAuth registers token commands on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(tokenCmd())
}

// tokenCmd mints a bearer token with the server's JWT secret and stores it
// for later commands. The API has no login endpoint; whoever holds the
// secret can issue tokens.
func tokenCmd() *cobra.Command {
	var (
		secret    string
		subject   string
		ttl       time.Duration
		printOnly bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and store an API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			token, err := middleware.IssueToken([]byte(secret), subject, ttl)
			if err != nil {
				return err
			}
			if printOnly {
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}
			if err := config.SaveToken(token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token stored, valid until %s.\n", time.Now().Add(ttl).Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "JWT secret configured on the server (default $JWT_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the token instead of storing it")
	return cmd
}
