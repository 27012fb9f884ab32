package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"interviewer/pkg/config"
)

func newSecretsCommand(_ *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted foundry credential file",
		Long: `The credential file holds the foundry API key encrypted with a password.
Point FOUNDRY_SECRETS_FILE (or "secrets_file" in the config) at it and set
FOUNDRY_SECRETS_PASSWORD to have it read at startup.`,
	}
	cmd.AddCommand(newSecretsSetCommand(), newSecretsCheckCommand())
	return cmd
}

func newSecretsSetCommand() *cobra.Command {
	var (
		file   string
		apiKey string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Encrypt an API key into the credential file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			if apiKey == "" {
				apiKey = os.Getenv(config.EnvAPIKey)
			}
			if apiKey == "" {
				key, err := readSecret(cmd, in, "API key: ")
				if err != nil {
					return err
				}
				apiKey = key
			}
			if apiKey == "" {
				return fmt.Errorf("API key is required")
			}

			password, err := secretsPassword(cmd, in)
			if err != nil {
				return err
			}
			if err := config.EncryptCredentials(file, password, map[string]string{config.CredentialAPIKey: apiKey}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credentials written to %s\n", file)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", ".interviewer/secrets.enc", "Credential file")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (default: FOUNDRY_API_KEY or prompt)")
	return cmd
}

func newSecretsCheckCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the credential file opens with the password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := secretsPassword(cmd, bufio.NewReader(cmd.InOrStdin()))
			if err != nil {
				return err
			}
			creds, err := config.DecryptCredentials(file, password)
			if err != nil {
				return err
			}
			key, ok := creds[config.CredentialAPIKey]
			if !ok || key == "" {
				return fmt.Errorf("%s holds no API key", file)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key %s\n", maskSecret(key))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", ".interviewer/secrets.enc", "Credential file")
	return cmd
}

// secretsPassword takes the password from the environment or prompts for it.
func secretsPassword(cmd *cobra.Command, in *bufio.Reader) (string, error) {
	if password := os.Getenv(config.EnvSecretsPassword); password != "" {
		return password, nil
	}
	password, err := readSecret(cmd, in, "Password: ")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	return password, nil
}

// readSecret reads a value without echo from a terminal, or one line from
// piped input.
func readSecret(cmd *cobra.Command, in *bufio.Reader, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
