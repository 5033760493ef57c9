package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/credentials"
	"mercator-hq/relay/pkg/security/secrets"
)

// secretAlphabet is the character set of generated secrets. Printable and
// shell-safe, so the value can live in .env files unquoted.
const secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var keysFlags struct {
	format     string
	key        string
	credential string
	show       bool
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the decryption secret and encrypted credentials",
	Long: `Generate a decryption secret and encrypt or decrypt provider API keys.

Clients send provider keys encrypted as <hex-iv>:<hex-ciphertext> using
AES-256-CBC under the relay's decryption secret.

Subcommands:
  generate - Generate a new 32-byte decryption secret
  encrypt  - Encrypt a provider API key with the configured secret
  decrypt  - Decrypt a credential (masked unless --show)

Examples:
  # Generate a secret for .env
  relay keys generate --format env >> .env

  # Encrypt a provider key
  relay keys encrypt --key sk-...

  # Check which key a credential holds
  relay keys decrypt --credential 0a1b...:9f8e...`,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a decryption secret",
	Long: `Generate a random 32-character secret suitable for DECRYPTION_KEY.

Formats:
  raw - the secret alone
  env - DECRYPTION_KEY=<secret>`,
	RunE: generateSecret,
}

var keysEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a provider API key",
	RunE:  encryptKey,
}

var keysDecryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt a credential",
	RunE:  decryptCredential,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd, keysEncryptCmd, keysDecryptCmd)

	keysGenerateCmd.Flags().StringVar(&keysFlags.format, "format", "raw", "output format: raw, env")
	keysEncryptCmd.Flags().StringVar(&keysFlags.key, "key", "", "plaintext provider API key")
	keysDecryptCmd.Flags().StringVar(&keysFlags.credential, "credential", "", "encrypted credential (<hex-iv>:<hex-ciphertext>)")
	keysDecryptCmd.Flags().BoolVar(&keysFlags.show, "show", false, "print the full plaintext instead of a masked value")

	_ = keysEncryptCmd.MarkFlagRequired("key")
	_ = keysDecryptCmd.MarkFlagRequired("credential")
}

func generateSecret(cmd *cobra.Command, args []string) error {
	secret, err := randomSecret(credentials.KeySize)
	if err != nil {
		return fmt.Errorf("failed to generate secret: %w", err)
	}

	out := cmd.OutOrStdout()
	switch keysFlags.format {
	case "raw":
		fmt.Fprintln(out, secret)
	case "env":
		fmt.Fprintf(out, "%s=%s\n", secrets.NewEnvProvider("").EnvVar(defaultSecretName()), secret)
	default:
		return fmt.Errorf("unknown format %q (want raw or env)", keysFlags.format)
	}
	return nil
}

func encryptKey(cmd *cobra.Command, args []string) error {
	secret, err := resolveSecret(cmd)
	if err != nil {
		return err
	}

	enc, err := credentials.Encrypt(keysFlags.key, secret)
	if err != nil {
		return cli.NewCommandError("keys encrypt", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), enc)
	return nil
}

func decryptCredential(cmd *cobra.Command, args []string) error {
	secret, err := resolveSecret(cmd)
	if err != nil {
		return err
	}

	plain, err := credentials.Decrypt(strings.TrimSpace(keysFlags.credential), secret)
	if err != nil {
		return cli.NewCommandError("keys decrypt", err)
	}

	if !keysFlags.show {
		plain = mask(plain)
	}
	fmt.Fprintln(cmd.OutOrStdout(), plain)
	return nil
}

// resolveSecret loads the decryption secret the same way serve does.
func resolveSecret(cmd *cobra.Command) (credentials.Secret, error) {
	cfg, err := loadConfig()
	if err != nil {
		return credentials.Secret{}, err
	}

	manager, fileProvider, err := secrets.NewManagerFromConfig(cfg.Credentials)
	if err != nil {
		return credentials.Secret{}, cli.NewConfigError("credentials.secrets_dir", err.Error())
	}
	if fileProvider != nil {
		defer fileProvider.Close()
	}

	secret, err := secrets.LoadDecryptionSecret(cmd.Context(), manager, cfg.Credentials.SecretName)
	if err != nil {
		return credentials.Secret{}, cli.NewConfigError("credentials.secret_name", err.Error())
	}
	return secret, nil
}

// randomSecret returns n characters drawn uniformly from secretAlphabet.
func randomSecret(n int) (string, error) {
	limit := big.NewInt(int64(len(secretAlphabet)))
	var sb strings.Builder
	sb.Grow(n)
	for range n {
		i, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		sb.WriteByte(secretAlphabet[i.Int64()])
	}
	return sb.String(), nil
}

// mask keeps the first four characters of a key.
func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", min(len(s)-4, 12))
}

func defaultSecretName() string {
	if cfg, err := loadConfig(); err == nil {
		return cfg.Credentials.SecretName
	}
	return config.DefaultSecretName
}
