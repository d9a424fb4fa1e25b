package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitgood-project/gitgood/internal/doctor"
	"github.com/gitgood-project/gitgood/internal/gitlog"
	"github.com/gitgood-project/gitgood/pkg/color"
)

var errUnhealthy = errors.New("doctor found problems")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that an anchor run can proceed",
	Long: `Check that an anchor run can proceed.

Checks that git is installed, the repository tracks an upstream branch and is
in sync with it, the signing key loads, the chain API credential is set and
the local store opens.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := doctor.NewDoctor(doctor.Target{
			Reader:         gitlog.NewReader(cfg.Project.RepoPath),
			SigningKeyPath: cfg.SigningKey,
			Network:        cfg.Network,
			ProjectID:      cfg.Blockfrost.ProjectID,
			StorePath:      cfg.Store.Path,
		})
		result, err := doc.Check(cmd.Context())
		if err != nil {
			return fmt.Errorf("doctor: %w", err)
		}

		if jsonOutput {
			if err := outputJSON(result); err != nil {
				return err
			}
		} else {
			if result.Address != "" {
				fmt.Printf("Sender address: %s\n", result.Address)
			}
			if len(result.Findings) == 0 {
				fmt.Println(color.Success("Everything looks healthy."))
				return nil
			}
			fmt.Printf("Findings (%d):\n", len(result.Findings))
			for _, f := range result.Findings {
				fmt.Printf("  [%s] %s: %s\n", severity(f.Severity), f.Category, f.Description)
			}
		}

		if !result.Healthy {
			return errUnhealthy
		}
		return nil
	},
}

func severity(s string) string {
	switch s {
	case "critical", "error":
		return color.Error(s)
	case "warning":
		return color.Warning(s)
	default:
		return color.Dim(s)
	}
}

func init() {
	f := doctorCmd.Flags()
	f.String("git-repo-path", "", "path of the git repository (default .)")
	f.String("payment-signing-key-path", "", "cardano-cli payment signing key file")
	f.String("network", "", "mainnet or preprod (default preprod)")
	rootCmd.AddCommand(doctorCmd)
}
