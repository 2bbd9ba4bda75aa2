package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/granola-mcp/pkg/calendar"
	"github.com/otherjamesbrown/granola-mcp/pkg/credentials"
)

// NewAuthCommand creates the auth command group.
func NewAuthCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Google Calendar and classifier credentials",
	}
	cmd.AddCommand(newAuthGoogleCommand(deps))
	cmd.AddCommand(newAuthLLMCommand())
	cmd.AddCommand(newAuthStatusCommand(deps))
	cmd.AddCommand(newAuthLogoutCommand())
	return cmd
}

func newAuthGoogleCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "google",
		Short: "Authorize read-only access to Google Calendar",
		Long: `Run the Google OAuth flow for read-only calendar access.

Requires google.client_id and google.client_secret in the config file
(or GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET). The resulting token is
stored in the system keyring.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			if !cfg.Google.Enabled() {
				return fmt.Errorf("google.client_id and google.client_secret are not configured")
			}

			oauthCfg := calendar.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)
			url := oauthCfg.AuthCodeURL("state")
			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser, authorize access, then paste the code below.\n\n%s\n\nCode: ", url)

			reader := bufio.NewReader(cmd.InOrStdin())
			code, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading authorization code: %w", err)
			}
			code = strings.TrimSpace(code)
			if code == "" {
				return fmt.Errorf("no authorization code entered")
			}

			token, err := oauthCfg.Exchange(cmd.Context(), code)
			if err != nil {
				return fmt.Errorf("exchanging authorization code: %w", err)
			}
			if err := credentials.NewStore().SetGoogleToken(token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Google Calendar authorized.")
			return nil
		},
	}
}

func newAuthLLMCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "llm",
		Short: "Store the API key for the remote classifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), "API key: ")

			var key string
			if term.IsTerminal(int(os.Stdin.Fd())) {
				raw, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("reading API key: %w", err)
				}
				key = string(raw)
			} else {
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("reading API key: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return fmt.Errorf("no API key entered")
			}

			if err := credentials.NewStore().SetLLMAPIKey(key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key stored.")
			return nil
		},
	}
}

func newAuthStatusCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which credentials are configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			store := credentials.NewStore()

			fmt.Fprintf(out, "google oauth app configured: %v\n", cfg.Google.Enabled())
			fmt.Fprintf(out, "google token stored:         %v\n", hasGoogleToken(store))
			fmt.Fprintf(out, "llm api key stored:          %v\n", hasLLMKey(store))
			fmt.Fprintf(out, "classifier endpoint:         %s\n", orNone(cfg.Classifier.Endpoint))
			fmt.Fprintf(out, "embeddings endpoint:         %s\n", orNone(cfg.Semantic.Endpoint))
			return nil
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored Google Calendar token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials.NewStore().DeleteGoogleToken(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Google token removed.")
			return nil
		},
	}
}

func hasGoogleToken(store *credentials.Store) bool {
	_, err := store.GoogleToken()
	return err == nil
}

func hasLLMKey(store *credentials.Store) bool {
	_, err := store.LLMAPIKey()
	return err == nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
