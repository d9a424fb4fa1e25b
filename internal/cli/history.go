package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitgood-project/gitgood/internal/store"
	"github.com/gitgood-project/gitgood/pkg/color"
	"github.com/gitgood-project/gitgood/pkg/model"
)

var historyLimit int

type historyEntry struct {
	model.CommitRecord
	ExplorerURL string `json:"explorer_url,omitempty"`
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the commits recorded for a project",
	Long: `List the commits recorded for a project, newest first, with their
transaction hashes and explorer links.

Examples:
  gitgood history --project-name demo
  gitgood history --project-name demo -n 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := requireProject()
		if err != nil {
			return err
		}
		network, err := requireNetwork()
		if err != nil {
			return err
		}

		var rows []model.CommitRecord
		err = store.With(cfg.Store.Path, func(s *store.Store) error {
			var lerr error
			rows, lerr = s.Commits(cmd.Context(), project)
			return lerr
		}, storeOptions()...)
		if err != nil {
			return err
		}

		entries := make([]historyEntry, 0, len(rows))
		for i := len(rows) - 1; i >= 0; i-- {
			if historyLimit > 0 && len(entries) >= historyLimit {
				break
			}
			e := historyEntry{CommitRecord: rows[i]}
			if rows[i].TransactionHash != "" {
				e.ExplorerURL = network.TxURL(rows[i].TransactionHash)
			}
			entries = append(entries, e)
		}

		if jsonOutput {
			return outputJSON(entries)
		}

		if len(entries) == 0 {
			fmt.Printf("No commits recorded for %s.\n", project)
			return nil
		}
		fmt.Printf("%s (label %d)\n", color.Header(project), rows[0].OnchainID)
		for _, e := range entries {
			fmt.Printf("%s  %s  %s\n", color.CommitHash(short(e.LocalCommitHash)), color.Dim(e.CommitTimestamp), e.CommitMessage)
			if e.ExplorerURL != "" {
				fmt.Printf("    %s\n", color.Link(e.ExplorerURL))
			}
		}
		return nil
	},
}

func init() {
	f := historyCmd.Flags()
	f.String("project-name", "", "project name")
	f.String("network", "", "network used for explorer links")
	f.IntVarP(&historyLimit, "limit", "n", 0, "show at most this many commits")
	rootCmd.AddCommand(historyCmd)
}
