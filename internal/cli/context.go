package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gitgood-project/gitgood/internal/chainapi"
	"github.com/gitgood-project/gitgood/internal/ledger"
	"github.com/gitgood-project/gitgood/internal/metadata"
	"github.com/gitgood-project/gitgood/internal/publish"
	"github.com/gitgood-project/gitgood/internal/store"
	"github.com/gitgood-project/gitgood/internal/verify"
	"github.com/gitgood-project/gitgood/pkg/color"
	"github.com/gitgood-project/gitgood/pkg/errclass"
	"github.com/gitgood-project/gitgood/pkg/logging"
	"github.com/gitgood-project/gitgood/pkg/webhook"
)

// chainClient is everything the commands need from the chain API.
type chainClient interface {
	publish.Chain
	verify.Indexer
}

// newChainClient is replaced in tests.
var newChainClient = func(network ledger.Network, projectID string) (chainClient, error) {
	return chainapi.New(network, projectID)
}

// runContext is cancelled on SIGINT.
func runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

const notifyTimeout = 30 * time.Second

// notify posts event to the configured webhooks. Delivery failures are
// logged and never change the outcome of the command.
func notify(ctx context.Context, event webhook.Event) {
	if len(cfg.Webhooks) == 0 {
		return
	}
	event.RunID = runID
	event.Network = strings.ToLower(cfg.Network)
	// delivery outlives an interrupted run
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := webhook.NewClient(cfg.Webhooks).Send(ctx, event); err != nil {
		logger.Warn("webhook delivery failed", map[string]any{
			"event": string(event.Event),
			"error": err.Error(),
		})
	}
}

// storeOptions logs SQL statements to stderr at debug level.
func storeOptions() []store.Option {
	if cfg.Logging.Level == string(logging.LevelDebug) {
		return []store.Option{store.WithSQLLogging(os.Stderr)}
	}
	return nil
}

func requireProject() (string, error) {
	if strings.TrimSpace(cfg.Project.Name) == "" {
		return "", errclass.ErrNameInvalid.WithMessage("project name is required (--project-name or project.name)")
	}
	return metadata.NormalizeProjectName(cfg.Project.Name)
}

func requireNetwork() (ledger.Network, error) {
	return ledger.ParseNetwork(cfg.Network)
}

func requireKey() (*ledger.SigningKey, error) {
	if cfg.SigningKey == "" {
		return nil, errclass.ErrKeyInvalid.WithMessage("payment signing key path is required (--payment-signing-key-path or signing_key)")
	}
	return ledger.LoadSigningKey(cfg.SigningKey)
}

func fmtErr(format string, args ...any) {
	prefix := "gitgood: "
	if color.Enabled() {
		prefix = color.Error("gitgood:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
