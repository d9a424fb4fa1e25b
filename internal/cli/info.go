package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitgood-project/gitgood/internal/ledger"
	"github.com/gitgood-project/gitgood/internal/store"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show sender address, network and store information",
	RunE: func(cmd *cobra.Command, args []string) error {
		network, err := requireNetwork()
		if err != nil {
			return err
		}
		params := network.Params()

		info := map[string]any{
			"network":    network.String(),
			"network_id": params.NetworkID,
			"magic":      params.Magic,
			"api_server": params.Server,
			"store_path": cfg.Store.Path,
		}

		if cfg.SigningKey != "" {
			key, err := ledger.LoadSigningKey(cfg.SigningKey)
			if err != nil {
				return err
			}
			info["address"] = ledger.EnterpriseAddress(network, key.KeyHash()).String()
		}

		if cfg.Project.Name != "" {
			project, err := requireProject()
			if err != nil {
				return err
			}
			info["project"] = project
			if _, err := os.Stat(cfg.Store.Path); err == nil {
				err = store.With(cfg.Store.Path, func(s *store.Store) error {
					id, ok, err := s.OnchainID(cmd.Context(), project)
					if err != nil {
						return err
					}
					if ok {
						info["onchain_id"] = id
					}
					return nil
				}, storeOptions()...)
				if err != nil {
					return err
				}
			}
		}

		if jsonOutput {
			return outputJSON(info)
		}

		fmt.Printf("Network: %s (magic %d)\n", network, params.Magic)
		fmt.Printf("  API: %s\n", params.Server)
		fmt.Printf("  Store: %s\n", cfg.Store.Path)
		if addr, ok := info["address"]; ok {
			fmt.Printf("  Address: %s\n", addr)
		}
		if project, ok := info["project"]; ok {
			if id, ok := info["onchain_id"]; ok {
				fmt.Printf("  Project: %s (label %d)\n", project, id)
			} else {
				fmt.Printf("  Project: %s (no commits recorded yet)\n", project)
			}
		}
		return nil
	},
}

func init() {
	f := infoCmd.Flags()
	f.String("project-name", "", "project name")
	f.String("network", "", "mainnet or preprod (default preprod)")
	f.String("payment-signing-key-path", "", "cardano-cli payment signing key file")
	rootCmd.AddCommand(infoCmd)
}
