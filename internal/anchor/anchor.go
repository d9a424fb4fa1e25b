// Package anchor runs one anchoring pass: read the latest commit, skip it if
// already recorded, otherwise record it, publish its metadata and verify it.
package anchor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gitgood-project/gitgood/internal/metadata"
	"github.com/gitgood-project/gitgood/internal/store"
	"github.com/gitgood-project/gitgood/internal/verify"
	"github.com/gitgood-project/gitgood/pkg/errclass"
	"github.com/gitgood-project/gitgood/pkg/logging"
	"github.com/gitgood-project/gitgood/pkg/metrics"
	"github.com/gitgood-project/gitgood/pkg/model"
)

// CommitReader reads the state of the local repository.
type CommitReader interface {
	CheckUpstream(ctx context.Context) error
	Latest(ctx context.Context) (*model.Commit, error)
}

// Publisher submits a metadata document and returns the transaction hash.
type Publisher interface {
	Publish(ctx context.Context, doc *metadata.Document) (string, error)
}

// Verifier checks a published document against the local record.
type Verifier interface {
	Verify(ctx context.Context, label uint64, expectedHash string) *verify.Result
}

// Deps are the collaborators of a run. Verifier, Logger and Metrics are optional.
type Deps struct {
	Reader    CommitReader
	Store     *store.Store
	Publisher Publisher
	Verifier  Verifier
	IDs       IDSource
	Logger    *logging.Logger
	Metrics   *metrics.Registry
}

// Outcome describes what a run did.
type Outcome struct {
	Status       model.AnchorStatus `json:"status"`
	Project      string             `json:"project"`
	OnchainID    uint64             `json:"onchain_id,omitempty"`
	Commit       *model.Commit      `json:"commit"`
	TxHash       string             `json:"tx_hash,omitempty"`
	Metadata     *metadata.Document `json:"metadata,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	Verification *verify.Result     `json:"verification,omitempty"`
}

// Anchorer runs anchoring passes.
type Anchorer struct {
	deps Deps
	log  *logging.Logger
}

// New creates an Anchorer.
func New(deps Deps) *Anchorer {
	if deps.IDs == nil {
		deps.IDs = RandomIDs{}
	}
	log := deps.Logger
	if log == nil {
		log = logging.Global()
	}
	return &Anchorer{deps: deps, log: log}
}

// Run anchors the latest commit of the repository under project.
//
// A diverged upstream fails with ErrVCSConflict before anything is read.
// An already recorded commit, or one whose message cannot be encoded, ends
// the run without error and without a submission.
func (a *Anchorer) Run(ctx context.Context, project string) (*Outcome, error) {
	out, err := a.run(ctx, project)
	if err != nil && a.deps.Metrics != nil {
		if name, nerr := metadata.NormalizeProjectName(project); nerr == nil {
			project = name
		}
		a.deps.Metrics.RecordAnchor(project, string(model.AnchorFailed))
	}
	return out, err
}

func (a *Anchorer) run(ctx context.Context, project string) (*Outcome, error) {
	project, err := metadata.NormalizeProjectName(project)
	if err != nil {
		return nil, err
	}
	log := a.log.WithFields(map[string]any{"project": project})

	if err := a.deps.Reader.CheckUpstream(ctx); err != nil {
		if errors.Is(err, errclass.ErrVCSConflict) {
			log.Warn("local branch differs from upstream, skipping")
		}
		return nil, err
	}

	commit, err := a.deps.Reader.Latest(ctx)
	if err != nil {
		return nil, err
	}
	log = log.WithFields(map[string]any{"commit": commit.Hash})
	out := &Outcome{Project: project, Commit: commit}

	recorded, err := a.deps.Store.IsRecorded(ctx, commit.Hash)
	if err != nil {
		return nil, err
	}
	if recorded {
		log.Info("commit already recorded")
		out.Status = model.AnchorDuplicate
		a.record(out)
		return out, nil
	}

	label, err := a.label(ctx, project)
	if err != nil {
		return nil, err
	}
	out.OnchainID = label
	log = log.WithFields(map[string]any{"onchain_id": label})

	doc, err := metadata.Build(label, project, commit.Hash, commit.Message, commit.Timestamp)
	if err != nil {
		if errors.Is(err, errclass.ErrMessageTooLong) || errors.Is(err, errclass.ErrSlotOverflow) {
			log.Warn("commit rejected", map[string]any{"reason": err.Error()})
			out.Status = model.AnchorRejected
			out.Reason = err.Error()
			a.record(out)
			return out, nil
		}
		return nil, err
	}
	out.Metadata = doc

	if err := a.publish(ctx, log, doc, out); err != nil {
		return nil, err
	}
	out.Status = model.AnchorPublished
	log.Info("commit anchored", map[string]any{"tx_hash": out.TxHash})

	if a.deps.Verifier != nil {
		res := a.deps.Verifier.Verify(ctx, label, commit.Hash)
		out.Verification = res
		fields := map[string]any{"status": string(res.Status)}
		if res.Error != "" {
			fields["detail"] = res.Error
		}
		if res.Status == model.VerifyMatch || res.Status == model.VerifyPending {
			log.Info("verification finished", fields)
		} else {
			log.Warn("verification finished", fields)
		}
		if a.deps.Metrics != nil {
			a.deps.Metrics.RecordVerification(string(res.Status))
		}
	}
	a.record(out)
	return out, nil
}

// publish records the commit, submits doc and links the transaction hash,
// all in one store transaction.
func (a *Anchorer) publish(ctx context.Context, log *logging.Logger, doc *metadata.Document, out *Outcome) error {
	rec := &model.CommitRecord{
		OnchainID:       doc.Label,
		ProjectName:     doc.ProjectName,
		LocalCommitHash: out.Commit.Hash,
		CommitMessage:   out.Commit.Message,
		CommitTimestamp: out.Commit.Timestamp,
	}
	var linkErr error
	err := a.deps.Store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertCommit(rec); err != nil {
			return err
		}

		start := time.Now()
		hash, err := a.deps.Publisher.Publish(ctx, doc)
		if a.deps.Metrics != nil {
			a.deps.Metrics.RecordSubmission(err == nil, time.Since(start))
		}
		if err != nil {
			log.ErrorErr("submission failed", err)
			return err
		}
		out.TxHash = hash

		// Once submitted, the commit row is kept even if the link fails, so
		// the next run sees the commit as recorded and does not submit again.
		if err := tx.InsertTransaction(rec.ID, hash); err != nil {
			log.ErrorErr("transaction submitted but not recorded", err, map[string]any{"tx_hash": hash})
			linkErr = fmt.Errorf("record transaction %s: %w", hash, err)
			return nil
		}
		rec.TransactionHash = hash
		return nil
	})
	if err != nil {
		return err
	}
	return linkErr
}

// label returns the project's onchain identifier, drawing a new one for a
// project without rows.
func (a *Anchorer) label(ctx context.Context, project string) (uint64, error) {
	id, ok, err := a.deps.Store.OnchainID(ctx, project)
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}
	id, err = a.deps.IDs.NewID()
	if err != nil {
		return 0, fmt.Errorf("generate onchain id: %w", err)
	}
	return id, nil
}

func (a *Anchorer) record(out *Outcome) {
	if a.deps.Metrics != nil {
		a.deps.Metrics.RecordAnchor(out.Project, string(out.Status))
	}
}
