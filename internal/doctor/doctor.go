package doctor

import (
	"context"
	"errors"
	"os"

	"github.com/gitgood-project/gitgood/internal/gitlog"
	"github.com/gitgood-project/gitgood/internal/ledger"
	"github.com/gitgood-project/gitgood/internal/store"
	"github.com/gitgood-project/gitgood/pkg/errclass"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
	Address  string    `json:"address,omitempty"`
}

// Target is the environment an anchor run would use.
type Target struct {
	Reader         *gitlog.Reader
	SigningKeyPath string
	Network        string
	ProjectID      string
	StorePath      string
}

// Doctor checks that an anchor run can proceed.
type Doctor struct {
	target Target
}

// NewDoctor creates a new doctor.
func NewDoctor(target Target) *Doctor {
	return &Doctor{target: target}
}

// Check runs all diagnostic checks.
func (d *Doctor) Check(ctx context.Context) (*Result, error) {
	result := &Result{Healthy: true}

	if d.checkGit(result) {
		d.checkUpstream(ctx, result)
	}
	network, ok := d.checkNetwork(result)
	d.checkKey(result, network, ok)
	d.checkCredential(result)
	d.checkStore(result)

	return result, nil
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == "critical" || f.Severity == "error" {
		r.Healthy = false
	}
}

func (d *Doctor) checkGit(result *Result) bool {
	if !d.target.Reader.Available() {
		result.add(Finding{
			Category:    "git",
			Description: "git executable not found in PATH",
			Severity:    "critical",
		})
		return false
	}
	return true
}

func (d *Doctor) checkUpstream(ctx context.Context, result *Result) {
	path := d.target.Reader.RepoPath()
	if _, err := d.target.Reader.Upstream(ctx); err != nil {
		result.add(Finding{
			Category:    "repo",
			Description: "repository has no upstream branch: " + err.Error(),
			Severity:    "error",
			Path:        path,
		})
		return
	}
	if err := d.target.Reader.CheckUpstream(ctx); err != nil {
		sev := "error"
		if errors.Is(err, errclass.ErrVCSConflict) {
			sev = "warning"
		}
		result.add(Finding{
			Category:    "repo",
			Description: err.Error(),
			Severity:    sev,
			Path:        path,
		})
	}
}

func (d *Doctor) checkNetwork(result *Result) (ledger.Network, bool) {
	n, err := ledger.ParseNetwork(d.target.Network)
	if err != nil {
		result.add(Finding{
			Category:    "network",
			Description: err.Error(),
			Severity:    "error",
		})
		return 0, false
	}
	return n, true
}

func (d *Doctor) checkKey(result *Result, network ledger.Network, networkOK bool) {
	if d.target.SigningKeyPath == "" {
		result.add(Finding{
			Category:    "key",
			Description: "no payment signing key configured",
			Severity:    "error",
		})
		return
	}
	key, err := ledger.LoadSigningKey(d.target.SigningKeyPath)
	if err != nil {
		result.add(Finding{
			Category:    "key",
			Description: err.Error(),
			Severity:    "error",
			Path:        d.target.SigningKeyPath,
		})
		return
	}
	if networkOK {
		result.Address = ledger.EnterpriseAddress(network, key.KeyHash()).String()
	}
}

func (d *Doctor) checkCredential(result *Result) {
	if d.target.ProjectID == "" {
		result.add(Finding{
			Category:    "credential",
			Description: "Blockfrost project id is not set (PROJECT_ID or GITGOOD_BLOCKFROST_PROJECT_ID)",
			Severity:    "error",
		})
	}
}

func (d *Doctor) checkStore(result *Result) {
	path := d.target.StorePath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		result.add(Finding{
			Category:    "store",
			Description: "store does not exist yet and will be created on the first run",
			Severity:    "info",
			Path:        path,
		})
		return
	}
	if err := store.With(path, func(*store.Store) error { return nil }); err != nil {
		result.add(Finding{
			Category:    "store",
			Description: err.Error(),
			Severity:    "critical",
			Path:        path,
		})
	}
}
