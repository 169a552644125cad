// Copyright © 2019 Andrei Gubarev <agubarev@protonmail.com>

package cmd

import (
	"fmt"
	"time"

	"github.com/agubarev/handbook/pkg/auth"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var tokenActor role.Actor

// tokenCmd issues an access token, the identity itself is not verified
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for a user within a business.",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenActor.UserID == 0 || tokenActor.BusinessID == 0 {
			return errors.New("both --user and --business are required")
		}

		// revocation is irrelevant for the issuer
		backend, err := auth.NewCacheBackend(time.Minute)
		if err != nil {
			return err
		}

		a, err := auth.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.TTL, backend)
		if err != nil {
			return err
		}

		token, claims, err := a.Issue(tokenActor)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", time.Unix(claims.ExpiresAt, 0).Format(time.RFC3339))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().Uint32Var(&tokenActor.UserID, "user", 0, "user id")
	tokenCmd.Flags().Uint32Var(&tokenActor.BusinessID, "business", 0, "business id")
}
