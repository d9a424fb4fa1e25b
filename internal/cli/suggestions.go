package cli

import (
	"errors"
	"fmt"

	"github.com/gitgood-project/gitgood/pkg/color"
	"github.com/gitgood-project/gitgood/pkg/errclass"
)

// suggestFix returns a hint for errors the user can usually fix, or "".
func suggestFix(err error) string {
	switch {
	case errors.Is(err, errclass.ErrVCSConflict):
		return fmt.Sprintf("Bring the branch in line with its upstream (%s or %s), then run again.",
			color.Header("git pull"), color.Header("git push"))
	case errors.Is(err, errclass.ErrCredentialMissing):
		return "Set PROJECT_ID (or GITGOOD_BLOCKFROST_PROJECT_ID) to a Blockfrost project id for the selected network."
	case errors.Is(err, errclass.ErrInsufficientFunds):
		return fmt.Sprintf("Fund the sender address; %s shows it.", color.Header("gitgood info"))
	case errors.Is(err, errclass.ErrKeyInvalid):
		return "Point --payment-signing-key-path at a cardano-cli payment.skey file."
	case errors.Is(err, errclass.ErrNetworkInvalid):
		return "Use --network mainnet or --network preprod."
	case errors.Is(err, errclass.ErrNotRecorded):
		return fmt.Sprintf("Run %s first.", color.Header("gitgood anchor"))
	}
	return ""
}
