package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gitgood-project/gitgood/pkg/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage gitgood configuration",
	Long: `Manage gitgood configuration stored in ~/.gitgood/config.yaml (or --config).

Settings are layered: built-in defaults, the config file, GITGOOD_* environment
variables, then command-line flags. The Blockfrost project id is read from
PROJECT_ID or GITGOOD_BLOCKFROST_PROJECT_ID and is never written to the file.

Available commands:
  show              - Show the effective configuration
  init              - Write a config file with the effective settings`,
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := cfg.Redacted()
		if jsonOutput {
			return outputJSON(shown)
		}

		data, err := yaml.Marshal(shown)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Println("# gitgood configuration")
		fmt.Printf("# Location: %s\n\n", configFile())
		fmt.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile()
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]string{"path": path})
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func configFile() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configInitCmd.Flags().String("project-name", "", "project name to store")
	configInitCmd.Flags().String("git-repo-path", "", "repository path to store")
	configInitCmd.Flags().String("payment-signing-key-path", "", "signing key path to store")
	configInitCmd.Flags().String("network", "", "network to store")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
