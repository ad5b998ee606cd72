package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"playground/config"
	"playground/provider"
)

var credentialsCmd = &cobra.Command{
	Use:     "credentials",
	Aliases: []string{"creds"},
	Short:   "Manage stored provider API keys",
	Long: `Stored keys are used when the matching environment variable is not set.
They are kept in the data directory, encrypted with your SSH key when
credential_storage = "ssh_key" in config.toml.`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set NAME [VALUE]",
	Short: "Store an API key (read from stdin when VALUE is omitted)",
	Long: `Store an API key. NAME is a variable name such as OPENAI_API_KEY or a
provider id such as openai.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := credentialName(args[0])
		value := ""
		if len(args) == 2 {
			value = args[1]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read value: %w", err)
			}
			value = line
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return errors.New("empty value; use 'credentials delete' to remove a key")
		}

		return withCredentials(func(cfg *config.Config) error {
			if err := cfg.CredentialStore.Set(name, value); err != nil {
				return err
			}
			if err := cfg.CredentialStore.Save(cfg.DataDir()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Stored %s\n", successStyle.Render("✓"), name)
			return nil
		})
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Remove a stored API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := credentialName(args[0])
		return withCredentials(func(cfg *config.Config) error {
			if cfg.CredentialStore.Get(name) == "" {
				return fmt.Errorf("no stored credential named %s", name)
			}
			if err := cfg.CredentialStore.Delete(name); err != nil {
				return err
			}
			if err := cfg.CredentialStore.Save(cfg.DataDir()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", successStyle.Render("✓"), name)
			return nil
		})
	},
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show which provider keys are available (values are never printed)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCredentials(func(cfg *config.Config) error {
			out := cmd.OutOrStdout()
			seen := make(map[string]bool)
			for _, t := range provider.KnownProviders() {
				name := provider.CredentialName(t)
				if name == "" {
					continue
				}
				seen[name] = true
				fmt.Fprintf(out, "%-22s %s\n", name, credentialSource(cfg, name))
			}
			for _, name := range cfg.CredentialStore.Names() {
				if !seen[name] {
					fmt.Fprintf(out, "%-22s %s\n", name, credentialSource(cfg, name))
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsDeleteCmd, credentialsListCmd)
}

func withCredentials(fn func(*config.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		if errors.Is(err, config.ErrPassphraseRequired) {
			return fmt.Errorf("%w: set PLAYGROUND_SSH_PASSPHRASE", err)
		}
		return err
	}
	if err := cfg.InitLogging(false); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return fn(cfg)
}

// credentialName accepts a provider id ("openai") in place of the variable
// name it uses.
func credentialName(arg string) string {
	if name := provider.CredentialName(provider.MapProviderIDToType(strings.ToLower(arg))); name != "" {
		return name
	}
	return strings.ToUpper(arg)
}

func credentialSource(cfg *config.Config, name string) string {
	switch {
	case envSet(name):
		return successStyle.Render("environment")
	case cfg.CredentialStore.Get(name) != "":
		return successStyle.Render("stored (" + string(cfg.CredentialStore.GetMethod()) + ")")
	default:
		return dimStyle.Render("not set")
	}
}

func envSet(name string) bool {
	return os.Getenv(name) != ""
}
