package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/validator-dashboard/handlers/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate JWT tokens for API authentication",
}

var generateTokenCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generateToken(cmd)
	},
}

var generateSecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a random secret for token signing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generateSecret()
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(generateTokenCmd)
	tokenCmd.AddCommand(generateSecretCmd)

	generateTokenCmd.Flags().StringP("name", "n", "", "Token name/identifier (required)")
	generateTokenCmd.Flags().UintP("rate-limit", "r", 0, "Rate limit per minute (0 = unlimited)")
	generateTokenCmd.Flags().StringP("duration", "d", "", "Token duration (e.g. '24h', '7d', empty = no expiration)")
	generateTokenCmd.Flags().StringP("secret", "s", "", "JWT signing secret (uses config value if not provided)")
	generateTokenCmd.Flags().StringSliceP("domain-patterns", "p", []string{}, "Dashboard domain patterns the token is valid for (empty = any)")

	generateTokenCmd.MarkFlagRequired("name")
}

func generateToken(cmd *cobra.Command) error {
	name, _ := cmd.Flags().GetString("name")
	rateLimit, _ := cmd.Flags().GetUint("rate-limit")
	duration, _ := cmd.Flags().GetString("duration")
	secret, _ := cmd.Flags().GetString("secret")
	domainPatterns, _ := cmd.Flags().GetStringSlice("domain-patterns")

	if secret == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		secret = cfg.Api.AuthSecret
	}
	if secret == "" {
		return fmt.Errorf("no JWT secret provided, use --secret or set api.authSecret in the config")
	}

	var ttl time.Duration
	if duration != "" {
		parsed, err := parseDurationWithDays(duration)
		if err != nil {
			return fmt.Errorf("invalid duration format: %v (use format like '24h', '7d')", err)
		}
		ttl = parsed
	}

	token, err := middleware.IssueToken(secret, name, rateLimit, domainPatterns, ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %v", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name: %s\n", name)
	if rateLimit == 0 {
		fmt.Fprintf(out, "Rate Limit: unlimited\n")
	} else {
		fmt.Fprintf(out, "Rate Limit: %d requests/minute\n", rateLimit)
	}
	if ttl > 0 {
		fmt.Fprintf(out, "Expires At: %s\n", time.Now().Add(ttl).Format(time.RFC3339))
	} else {
		fmt.Fprintf(out, "Expires At: never\n")
	}
	fmt.Fprintf(out, "\nToken:\n%s\n", token)

	return nil
}

func generateSecret() error {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("error generating secret: %v", err)
	}

	secret := base64.StdEncoding.EncodeToString(secretBytes)
	fmt.Printf("Secret: %s\n", secret)
	fmt.Printf("\nconfig:\n  api:\n    authSecret: \"%s\"\n", secret)
	fmt.Printf("\nor environment:\n  export API_AUTH_SECRET=\"%s\"\n", secret)
	return nil
}

// parseDurationWithDays extends time.ParseDuration with a day unit ("7d").
func parseDurationWithDays(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
