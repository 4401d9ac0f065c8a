package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iliyamo/table-reservation/internal/utils"
)

func newTokenCmd() *cobra.Command {
	var (
		sub  string
		role string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			id := uuid.New()
			if sub != "" {
				var err error
				if id, err = uuid.Parse(sub); err != nil {
					return fmt.Errorf("invalid --sub: %w", err)
				}
			}
			tok, err := utils.NewAccessToken(secret, id, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sub=%s expires=%s\n%s\n", id, tok.Exp.Format(time.RFC3339), tok.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "requester id (random when empty)")
	cmd.Flags().StringVar(&role, "role", "", "role claim, e.g. ADMIN or MANAGER for staff")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
