package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for gitgood.

To load completions for your shell:

Bash:
  # To load completions for each session, execute once:
  # Linux:
  gitgood completion bash > /etc/bash_completion.d/gitgood
  # macOS:
  gitgood completion bash > /usr/local/etc/bash_completion.d/gitgood

  # Or add to your ~/.bashrc or ~/.bash_profile:
  source <(gitgood completion bash)

Zsh:
  # To load completions for each session, execute once:
  gitgood completion zsh > "${fpath[1]}/_gitgood"

  # Or add to your ~/.zshrc:
  source <(gitgood completion zsh)

  # You may need to force rebuild the completion cache:
  rm -f ~/.zcompdump
  compinit

Fish:
  # To load completions for each session, execute once:
  gitgood completion fish > ~/.config/fish/completions/gitgood.fish

  # Or add to your ~/.config/fish/config.fish:
  gitgood completion fish | source

PowerShell:
  # To load completions for each session, run:
  gitgood completion powershell | Out-String | Invoke-Expression

  # Or add to your PowerShell profile:
  # (Microsoft.PowerShell_profile.ps1 or profile.ps1)
  gitgood completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.ExactValidArgs(1),
	PersistentPreRunE:     func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := args[0]

		var err error
		switch shell {
		case "bash":
			err = cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			err = cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			err = cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			err = cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		default:
			err = fmt.Errorf("unsupported shell type: %s", shell)
		}

		if err != nil {
			return fmt.Errorf("generate completion for %s: %w", shell, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
