// Package gitlog reads commit information from a local git working tree by
// shelling out to the git executable.
package gitlog

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/gitgood-project/gitgood/pkg/errclass"
	"github.com/gitgood-project/gitgood/pkg/model"
)

// DefaultUpstream is the ref compared against HEAD before anchoring.
const DefaultUpstream = "@{upstream}"

// fieldSep separates the fields of the log format; commit subjects may contain commas.
const fieldSep = "\x1f"

// Reader reads the latest commit of one repository. It never modifies the repository.
type Reader struct {
	repoPath string
	gitBin   string
	upstream string
}

// Option configures a Reader.
type Option func(*Reader)

// WithGitBinary overrides the git executable (default "git" from PATH).
func WithGitBinary(bin string) Option {
	return func(r *Reader) { r.gitBin = bin }
}

// WithUpstream overrides the upstream ref compared against HEAD.
func WithUpstream(ref string) Option {
	return func(r *Reader) { r.upstream = ref }
}

// NewReader creates a Reader for the working tree at repoPath.
func NewReader(repoPath string, opts ...Option) *Reader {
	r := &Reader{repoPath: repoPath, gitBin: "git", upstream: DefaultUpstream}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RepoPath returns the working tree path.
func (r *Reader) RepoPath() string {
	return r.repoPath
}

// Available reports whether the git executable can be found.
func (r *Reader) Available() bool {
	_, err := exec.LookPath(r.gitBin)
	return err == nil
}

// CheckUpstream fails with ErrVCSConflict when the upstream branch carries
// changes that are not merged into HEAD.
func (r *Reader) CheckUpstream(ctx context.Context) error {
	out, err := r.git(ctx, "diff", "HEAD..."+r.upstream)
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) != "" {
		return errclass.ErrVCSConflict.WithMessagef("%s has unmerged changes from %s; pull before anchoring", r.repoPath, r.upstream)
	}
	return nil
}

// Upstream returns the name of the tracked upstream branch.
func (r *Reader) Upstream(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", r.upstream)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Latest returns the hash, subject and author date of HEAD.
func (r *Reader) Latest(ctx context.Context) (*model.Commit, error) {
	out, err := r.git(ctx, "log", "-1", "--date=default", "--pretty=format:%H%x1f%s%x1f%ad")
	if err != nil {
		return nil, err
	}
	return parseLogLine(out)
}

func parseLogLine(line string) (*model.Commit, error) {
	fields := strings.SplitN(strings.TrimRight(line, "\n"), fieldSep, 3)
	if len(fields) != 3 || fields[0] == "" {
		return nil, errclass.ErrGitFailed.WithMessagef("unexpected git log output: %q", line)
	}
	return &model.Commit{
		Hash:      fields[0],
		Message:   fields[1],
		Timestamp: fields[2],
	}, nil
}

func (r *Reader) git(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", r.repoPath}, args...)
	cmd := exec.CommandContext(ctx, r.gitBin, full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return "", errclass.ErrGitFailed.WithMessagef("git %s: %s", strings.Join(args, " "), detail).WithCause(err)
	}
	return stdout.String(), nil
}
