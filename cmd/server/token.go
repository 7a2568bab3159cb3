package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "rescue/internal/jwt_token"
	"rescue/pkg/domain"
)

var tokenUser string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for a user id",
	Args:  cobra.NoArgs,
	RunE:  issueToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (uuid) to use as the token subject")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}

func issueToken(cmd *cobra.Command, args []string) error {
	id, err := domain.ParseUserID(tokenUser)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
	token, expiresAt, err := jwt.GenerateAccessToken(id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
