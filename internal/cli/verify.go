package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitgood-project/gitgood/internal/ledger"
	"github.com/gitgood-project/gitgood/internal/store"
	"github.com/gitgood-project/gitgood/internal/verify"
	"github.com/gitgood-project/gitgood/pkg/color"
	"github.com/gitgood-project/gitgood/pkg/metrics"
	"github.com/gitgood-project/gitgood/pkg/model"
	"github.com/gitgood-project/gitgood/pkg/progress"
	"github.com/gitgood-project/gitgood/pkg/webhook"
)

var (
	verifyDelay time.Duration

	errVerificationFailed = errors.New("onchain verification failed")
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the latest recorded commit against the chain",
	Long: `Check the latest recorded commit against the chain.

Looks up the newest metadata entry under the project's label and compares its
commit hash with the latest commit in the local store. Nothing is submitted.

Examples:
  gitgood verify --project-name demo
  gitgood verify --project-name demo --delay 80s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := requireProject()
		if err != nil {
			return err
		}
		network, err := requireNetwork()
		if err != nil {
			return err
		}
		client, err := newChainClient(network, cfg.Blockfrost.ProjectID)
		if err != nil {
			return err
		}

		var rec *model.CommitRecord
		err = store.With(cfg.Store.Path, func(s *store.Store) error {
			var lerr error
			rec, lerr = s.Latest(cmd.Context(), project)
			return lerr
		}, storeOptions()...)
		if err != nil {
			return err
		}

		ctx, cancel := runContext(cmd.Context())
		defer cancel()

		opts := []verify.Option{verify.WithDelay(verifyDelay)}
		var countdown *progress.Countdown
		if !jsonOutput && verifyDelay > 0 {
			countdown = progress.NewCountdown(os.Stderr, "waiting for indexer", verifyDelay, true)
			opts = append(opts, verify.WithCountdown(countdown.Tick))
		}
		result := verify.NewVerifier(client, opts...).Verify(ctx, rec.OnchainID, rec.LocalCommitHash)
		if countdown != nil {
			countdown.Done("")
		}
		if metrics.Enabled() {
			metrics.Default().RecordVerification(string(result.Status))
		}
		if et, ok := verifyEventType(result.Status); ok {
			notify(ctx, webhook.Event{
				Event:      et,
				Project:    project,
				OnchainID:  rec.OnchainID,
				CommitHash: rec.LocalCommitHash,
				TxHash:     result.TxHash,
				TxURL:      txURL(network, result.TxHash),
				Error:      result.Error,
			})
		}
		logger.Info("verification finished", map[string]any{
			"project": project,
			"label":   rec.OnchainID,
			"status":  string(result.Status),
		})

		if jsonOutput {
			if err := outputJSON(result); err != nil {
				return err
			}
		} else {
			fmt.Printf("Project:  %s (label %d)\n", project, rec.OnchainID)
			fmt.Printf("  Local:   %s\n", color.CommitHash(rec.LocalCommitHash))
			if result.OnchainHash != "" {
				fmt.Printf("  Onchain: %s\n", color.CommitHash(result.OnchainHash))
			}
			if result.TxHash != "" {
				fmt.Printf("  Tx:      %s\n", color.Link(network.TxURL(result.TxHash)))
			}
			line := fmt.Sprintf("  Status:  %s", color.Status(string(result.Status)))
			if result.Error != "" {
				line += " (" + result.Error + ")"
			}
			fmt.Println(line)
		}

		if result.Status == model.VerifyMismatch || result.Status == model.VerifyError {
			return errVerificationFailed
		}
		return nil
	},
}

func txURL(network ledger.Network, hash string) string {
	if hash == "" {
		return ""
	}
	return network.TxURL(hash)
}

func init() {
	f := verifyCmd.Flags()
	f.String("project-name", "", "project name")
	f.String("network", "", "mainnet or preprod (default preprod)")
	f.DurationVar(&verifyDelay, "delay", 0, "wait before querying the indexer")
	rootCmd.AddCommand(verifyCmd)
}
