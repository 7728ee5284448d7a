package main

import (
	"fmt"
	"time"

	"chamahub/internal/pkg/password"

	"github.com/spf13/cobra"
)

var keyBytes int

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage token signing keys",
	}

	generate := &cobra.Command{
		Use:   "generate [kid]",
		Short: "Generate a signing key entry for JWT_KEYS",
		Long: `Generate a random signing secret and print it as a JWT_KEYS entry.

Rotation:
  1. Append the new entry to JWT_KEYS and deploy.
  2. Set JWT_ACTIVE_KID to the new kid and deploy.
  3. Once ACCESS_TOKEN_TTL has passed, list the old kid in JWT_RETIRED_KIDS.

Examples:
  chamactl keys generate
  chamactl keys generate 2026b --bytes 48`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyBytes < 32 {
				return fmt.Errorf("--bytes must be at least 32")
			}
			kid := time.Now().UTC().Format("2006-01")
			if len(args) == 1 {
				kid = args[0]
			}
			secret, err := password.GenerateToken(keyBytes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", kid, secret)
			return nil
		},
	}
	generate.Flags().IntVar(&keyBytes, "bytes", 32, "random bytes in the secret")

	cmd.AddCommand(generate)
	return cmd
}
