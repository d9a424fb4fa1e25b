package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitgood-project/gitgood/internal/anchor"
	"github.com/gitgood-project/gitgood/internal/gitlog"
	"github.com/gitgood-project/gitgood/internal/ledger"
	"github.com/gitgood-project/gitgood/internal/publish"
	"github.com/gitgood-project/gitgood/internal/store"
	"github.com/gitgood-project/gitgood/internal/verify"
	"github.com/gitgood-project/gitgood/pkg/color"
	"github.com/gitgood-project/gitgood/pkg/metrics"
	"github.com/gitgood-project/gitgood/pkg/model"
	"github.com/gitgood-project/gitgood/pkg/progress"
	"github.com/gitgood-project/gitgood/pkg/webhook"
)

var (
	anchorNoVerify bool

	// anchorIDs is replaced in tests.
	anchorIDs anchor.IDSource = anchor.RandomIDs{}
)

var anchorCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Publish the latest commit on the ledger",
	Long: `Publish the latest commit on the ledger.

Reads the latest commit of the repository. If the local branch differs from
its upstream the run stops with exit code 1. A commit that is already recorded
is skipped. Otherwise the commit is recorded, submitted as transaction metadata
under the project's label and, after a delay, checked against the indexer.

Exit codes:
  0  published, already recorded, or rejected (message too long)
  1  local branch differs from upstream
  2  submission failed or not enough funds
  3  any other failure

Examples:
  gitgood anchor --project-name demo --payment-signing-key-path payment.skey
  gitgood anchor --project-name demo --network mainnet --no-verify`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if anchorNoVerify {
			cfg.Anchor.Verify = false
		}
		project, err := requireProject()
		if err != nil {
			return err
		}
		network, err := requireNetwork()
		if err != nil {
			return err
		}
		key, err := requireKey()
		if err != nil {
			return err
		}
		client, err := newChainClient(network, cfg.Blockfrost.ProjectID)
		if err != nil {
			return err
		}

		ctx, cancel := runContext(cmd.Context())
		defer cancel()

		publisher := publish.New(client, key, network,
			publish.WithAmount(cfg.Anchor.AmountLovelace),
			publish.WithTTLSlots(cfg.Anchor.TTLSlots),
		)
		deps := anchor.Deps{
			Reader:    gitlog.NewReader(cfg.Project.RepoPath),
			Publisher: publisher,
			IDs:       anchorIDs,
			Logger:    logger,
		}
		if metrics.Enabled() {
			deps.Metrics = metrics.Default()
		}

		var countdown *progress.Countdown
		if cfg.Anchor.Verify {
			opts := []verify.Option{verify.WithDelay(cfg.Anchor.VerifyDelay)}
			if !jsonOutput && cfg.Anchor.VerifyDelay > 0 {
				countdown = progress.NewCountdown(os.Stderr, "waiting for indexer", cfg.Anchor.VerifyDelay, true)
				opts = append(opts, verify.WithCountdown(countdown.Tick))
			}
			deps.Verifier = verify.NewVerifier(client, opts...)
		}

		var out *anchor.Outcome
		err = store.With(cfg.Store.Path, func(s *store.Store) error {
			deps.Store = s
			var runErr error
			out, runErr = anchor.New(deps).Run(ctx, project)
			return runErr
		}, storeOptions()...)
		if countdown != nil && out != nil && out.Verification != nil {
			countdown.Done("")
		}
		for _, ev := range anchorEvents(project, network, out, err) {
			notify(ctx, ev)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(out)
		}
		printOutcome(out, network.TxURL(out.TxHash), publisher.Address().String())
		return nil
	},
}

func printOutcome(out *anchor.Outcome, txURL, sender string) {
	switch out.Status {
	case model.AnchorDuplicate:
		fmt.Printf("Commit %s is already recorded for %s; nothing to do.\n",
			color.CommitHash(short(out.Commit.Hash)), out.Project)
	case model.AnchorRejected:
		fmt.Printf("Commit %s was not published: %s\n", color.CommitHash(short(out.Commit.Hash)), color.Warning(out.Reason))
	case model.AnchorPublished:
		fmt.Printf("Published commit %s for %s under label %d\n",
			color.CommitHash(short(out.Commit.Hash)), out.Project, out.OnchainID)
		fmt.Printf("  From:        %s\n", color.Dim(sender))
		fmt.Printf("  Transaction: %s\n", color.TxHash(out.TxHash))
		fmt.Printf("  Explorer:    %s\n", color.Link(txURL))
		if v := out.Verification; v != nil {
			line := fmt.Sprintf("  Verified:    %s", color.Status(string(v.Status)))
			if v.Error != "" {
				line += " (" + v.Error + ")"
			}
			fmt.Println(line)
		}
	}
}

// anchorEvents maps the result of a run to webhook events.
func anchorEvents(project string, network ledger.Network, out *anchor.Outcome, runErr error) []webhook.Event {
	if runErr != nil {
		return []webhook.Event{{Event: webhook.EventAnchorFailed, Project: project, Error: runErr.Error()}}
	}
	ev := webhook.Event{
		Project:    out.Project,
		OnchainID:  out.OnchainID,
		CommitHash: out.Commit.Hash,
		Reason:     out.Reason,
	}
	switch out.Status {
	case model.AnchorDuplicate:
		ev.Event = webhook.EventAnchorDuplicate
	case model.AnchorRejected:
		ev.Event = webhook.EventAnchorRejected
	default:
		ev.Event = webhook.EventAnchorPublished
		ev.TxHash = out.TxHash
		ev.TxURL = network.TxURL(out.TxHash)
	}
	events := []webhook.Event{ev}
	if v := out.Verification; v != nil {
		if vt, ok := verifyEventType(v.Status); ok {
			vev := ev
			vev.Event = vt
			vev.Reason = ""
			vev.Error = v.Error
			events = append(events, vev)
		}
	}
	return events
}

func verifyEventType(status model.VerifyStatus) (webhook.EventType, bool) {
	switch status {
	case model.VerifyMatch:
		return webhook.EventVerifyMatch, true
	case model.VerifyMismatch:
		return webhook.EventVerifyMismatch, true
	case model.VerifyPending:
		return webhook.EventVerifyPending, true
	case model.VerifyError:
		return webhook.EventVerifyError, true
	}
	return "", false
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func init() {
	f := anchorCmd.Flags()
	f.String("project-name", "", "project name; selects the onchain label")
	f.String("git-repo-path", "", "path of the git repository (default .)")
	f.String("payment-signing-key-path", "", "cardano-cli payment signing key file")
	f.String("network", "", "mainnet or preprod (default preprod)")
	f.Uint64("amount", 0, "lovelace paid back to the sender (default 2000000)")
	f.Duration("verify-delay", 0, "wait before verifying (default 80s)")
	f.BoolVar(&anchorNoVerify, "no-verify", false, "skip onchain verification")
	rootCmd.AddCommand(anchorCmd)
}
