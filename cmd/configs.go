package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"playground/config"
	"playground/mcp"
	"playground/model"
	"playground/provider"
	"playground/storage"
)

type configSaveOptions struct {
	model       string
	system      string
	temperature float64
	topP        float64
	maxTokens   int
	n           int
	format      string
	stop        []string
	tools       string
}

var (
	configSaveOpts     configSaveOptions
	configShowVersions bool
	configExportOutput string
)

var configsCmd = &cobra.Command{
	Use:     "configs",
	Aliases: []string{"config"},
	Short:   "Manage saved model configurations",
	Long: `Model configurations bind a model to its parameters and system prompt.
Saving under an existing name adds a version; old versions are kept.`,
}

var configsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved configurations (latest versions)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConfigStore(cmd, func(ctx context.Context, _ *config.Config, store storage.ConfigStore) error {
			configs, err := store.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(configs) == 0 {
				fmt.Fprintln(out, dimStyle.Render("No saved configurations. Create one with: playground configs save NAME --model provider/model"))
				return nil
			}
			for _, c := range configs {
				fmt.Fprintf(out, "%-24s v%-4d %-40s %s\n", c.Name, c.Version, c.Model, dimStyle.Render(c.CreatedAt.Local().Format("2006-01-02 15:04")))
			}
			return nil
		})
	},
}

var configsSaveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Save a new version of a configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConfigStore(cmd, func(ctx context.Context, cfg *config.Config, store storage.ConfigStore) error {
			opts := configSaveOpts
			if opts.model == "" {
				opts.model = cfg.DefaultModel
			}
			c, err := configFromFlags(args[0], opts)
			if err != nil {
				return err
			}
			saved, err := store.Save(ctx, c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %s v%d\n", successStyle.Render("✓"), saved.Name, saved.Version)
			return nil
		})
	},
}

var configsShowCmd = &cobra.Command{
	Use:   "show NAME[@VERSION]",
	Short: "Print a configuration as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, version, err := storage.ParseConfigRef(args[0])
		if err != nil {
			return err
		}
		return withConfigStore(cmd, func(ctx context.Context, _ *config.Config, store storage.ConfigStore) error {
			out := cmd.OutOrStdout()
			if configShowVersions {
				versions, err := store.Versions(ctx, name)
				if err != nil {
					return err
				}
				for _, v := range versions {
					fmt.Fprintf(out, "v%-4d %-40s %s\n", v.Version, v.Model, dimStyle.Render(v.CreatedAt.Local().Format("2006-01-02 15:04")))
				}
				return nil
			}

			c, err := store.Get(ctx, name, version)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(c); err != nil {
				return err
			}
			return enc.Close()
		})
	},
}

var configsExportCmd = &cobra.Command{
	Use:   "export [NAME...]",
	Short: "Export configurations as YAML (all when no name is given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConfigStore(cmd, func(ctx context.Context, _ *config.Config, store storage.ConfigStore) error {
			if configExportOutput == "" || configExportOutput == "-" {
				return storage.ExportConfigs(ctx, store, cmd.OutOrStdout(), args...)
			}
			f, err := os.OpenFile(configExportOutput, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
			if err != nil {
				return err
			}
			if err := storage.ExportConfigs(ctx, store, f, args...); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s Exported to %s\n", successStyle.Render("✓"), configExportOutput)
			return nil
		})
	},
}

var configsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import configurations from YAML (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		return withConfigStore(cmd, func(ctx context.Context, _ *config.Config, store storage.ConfigStore) error {
			saved, err := storage.ImportConfigs(ctx, store, r)
			for _, c := range saved {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Imported %s v%d\n", successStyle.Render("✓"), c.Name, c.Version)
			}
			return err
		})
	},
}

var configsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete every version of a configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConfigStore(cmd, func(ctx context.Context, _ *config.Config, store storage.ConfigStore) error {
			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", successStyle.Render("✓"), args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(configsCmd)
	configsCmd.AddCommand(configsListCmd, configsSaveCmd, configsShowCmd, configsExportCmd, configsImportCmd, configsDeleteCmd)

	defaults := model.DefaultParams()
	f := configsSaveCmd.Flags()
	f.StringVarP(&configSaveOpts.model, "model", "m", "", "Model as provider/model (default: the configured default)")
	f.StringVarP(&configSaveOpts.system, "system", "s", "", "System prompt")
	f.Float64VarP(&configSaveOpts.temperature, "temperature", "t", defaults.Temperature, "Sampling temperature")
	f.Float64Var(&configSaveOpts.topP, "top-p", defaults.TopP, "Nucleus sampling")
	f.IntVar(&configSaveOpts.maxTokens, "max-tokens", defaults.MaxTokens, "Maximum tokens per answer")
	f.IntVarP(&configSaveOpts.n, "choices", "n", defaults.N, "Number of choices")
	f.StringVar(&configSaveOpts.format, "format", string(defaults.ResponseFormat), "Response format: text, json_object or json_schema")
	f.StringArrayVar(&configSaveOpts.stop, "stop", nil, "Stop sequence (repeatable)")
	f.StringVar(&configSaveOpts.tools, "tools", "", "JSON file with tool definitions")

	configsShowCmd.Flags().BoolVar(&configShowVersions, "versions", false, "List every version instead")
	configsExportCmd.Flags().StringVarP(&configExportOutput, "output", "o", "", "Write to a file instead of stdout")
}

// withConfigStore loads the configuration, opens the config store and runs
// fn with it.
func withConfigStore(cmd *cobra.Command, fn func(context.Context, *config.Config, storage.ConfigStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.InitLogging(false); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	ctx := cmd.Context()
	store, err := openConfigStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, cfg, store)
}

func configFromFlags(name string, opts configSaveOptions) (storage.ModelConfig, error) {
	if _, _, ok := provider.SplitModelID(opts.model); !ok {
		return storage.ModelConfig{}, fmt.Errorf("invalid model %q: expected provider/model", opts.model)
	}
	format := model.ResponseFormat(opts.format)
	switch format {
	case model.ResponseFormatText, model.ResponseFormatJSONObject, model.ResponseFormatJSONSchema:
	default:
		return storage.ModelConfig{}, fmt.Errorf("unknown response format %q", opts.format)
	}
	if opts.n < 1 {
		return storage.ModelConfig{}, fmt.Errorf("choices must be at least 1")
	}

	params := model.DefaultParams()
	params.Temperature = opts.temperature
	params.TopP = opts.topP
	params.MaxTokens = opts.maxTokens
	params.N = opts.n
	params.ResponseFormat = format
	params.StopSequences = opts.stop
	if opts.tools != "" {
		defs, err := mcp.LoadToolsFile(opts.tools)
		if err != nil {
			return storage.ModelConfig{}, err
		}
		params.Tools = defs
	}

	return storage.ModelConfig{
		Name:         name,
		Model:        opts.model,
		SystemPrompt: opts.system,
		Params:       params,
	}, nil
}
