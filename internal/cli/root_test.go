package cli

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgood-project/gitgood/internal/anchor"
	"github.com/gitgood-project/gitgood/internal/chainapi"
	"github.com/gitgood-project/gitgood/internal/ledger"
	"github.com/gitgood-project/gitgood/pkg/color"
	"github.com/gitgood-project/gitgood/pkg/errclass"
)

func executeCommand(root *cobra.Command, args ...string) (stdout string, err error) {
	// Capture os.Stdout since CLI uses fmt.Printf directly
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		done <- buf.String()
	}()

	root.SetArgs(args)
	err = root.Execute()

	w.Close()
	os.Stdout = oldStdout
	return <-done, err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func createTestRootCmd() *cobra.Command {
	color.Disable()
	jsonOutput = false
	configPath = ""
	cfg = nil

	cmd := newRootCmd()
	cmd.AddCommand(anchorCmd)
	cmd.AddCommand(verifyCmd)
	cmd.AddCommand(historyCmd)
	cmd.AddCommand(infoCmd)
	cmd.AddCommand(doctorCmd)
	cmd.AddCommand(configCmd)
	cmd.AddCommand(completionCmd)
	resetFlags(cmd)
	return cmd
}

type fakeChain struct {
	submitted int
	submitErr error
	entry     *chainapi.Entry
}

func (f *fakeChain) UTxOs(context.Context, string) ([]ledger.UTxO, error) {
	return []ledger.UTxO{{TxHash: strings.Repeat("ab", 32), Lovelace: 50_000_000}}, nil
}

func (f *fakeChain) ProtocolParams(context.Context) (ledger.ProtocolParams, error) {
	return ledger.ProtocolParams{MinFeeA: 44, MinFeeB: 155381}, nil
}

func (f *fakeChain) TipSlot(context.Context) (uint64, error) {
	return 1000, nil
}

func (f *fakeChain) Submit(context.Context, []byte) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted++
	return strings.Repeat("f", 64), nil
}

func (f *fakeChain) LatestMetadata(context.Context, uint64) (*chainapi.Entry, error) {
	if f.entry == nil {
		return nil, chainapi.ErrNotFound
	}
	return f.entry, nil
}

// testEnv isolates HOME and the credential, fakes the chain and pins the
// onchain id. It returns the fake and the store path.
func testEnv(t *testing.T) (*fakeChain, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PROJECT_ID", "preprodTest")
	t.Setenv("GITGOOD_BLOCKFROST_PROJECT_ID", "")

	chain := &fakeChain{}
	oldClient, oldIDs := newChainClient, anchorIDs
	newChainClient = func(ledger.Network, string) (chainClient, error) { return chain, nil }
	anchorIDs = anchor.FixedID(12345678)
	t.Cleanup(func() {
		newChainClient, anchorIDs = oldClient, oldIDs
	})
	return chain, filepath.Join(t.TempDir(), "commits.db")
}

func writeKey(t *testing.T) string {
	t.Helper()
	k, err := ledger.NewSigningKey(make([]byte, ed25519.SeedSize))
	require.NoError(t, err)
	data, err := k.MarshalTextEnvelope()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "payment.skey")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// setupRepo returns a clone tracking a bare origin with one pushed commit.
func setupRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := t.TempDir()
	origin := filepath.Join(root, "origin.git")
	work := filepath.Join(root, "work")
	runGit(t, root, "init", "--bare", origin)
	runGit(t, root, "clone", origin, work)
	require.NoError(t, os.WriteFile(filepath.Join(work, "README"), []byte("hi\n"), 0644))
	runGit(t, work, "add", "README")
	runGit(t, work, "commit", "-m", "fix bug")
	runGit(t, work, "push", "-u", "origin", "HEAD")
	return work
}

func TestRootCommand_Help(t *testing.T) {
	cmd := createTestRootCmd()
	stdout, err := executeCommand(cmd, "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cardano")
}

func TestRootCommand_JSONFlag(t *testing.T) {
	cmd := createTestRootCmd()
	_, err := executeCommand(cmd, "--json", "--help")
	require.NoError(t, err)
	assert.True(t, jsonOutput)
}

func TestAnchorCommand_PublishThenDuplicate(t *testing.T) {
	chain, storePath := testEnv(t)
	work := setupRepo(t)
	key := writeKey(t)
	metricsPath := filepath.Join(t.TempDir(), "gitgood.prom")

	args := []string{"--store", storePath, "--metrics-file", metricsPath, "anchor",
		"--project-name", "demo", "--git-repo-path", work,
		"--payment-signing-key-path", key, "--no-verify"}

	stdout, err := executeCommand(createTestRootCmd(), args...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Published commit")
	assert.Contains(t, stdout, "label 12345678")
	assert.Contains(t, stdout, "https://preprod.cardanoscan.io/transaction/"+strings.Repeat("f", 64))
	assert.Equal(t, 1, chain.submitted)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `gitgood_anchor_runs_total{project="demo",status="published"}`)

	stdout, err = executeCommand(createTestRootCmd(), args...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "already recorded")
	assert.Equal(t, 1, chain.submitted)

	// history lists the single commit with its link
	stdout, err = executeCommand(createTestRootCmd(), "--store", storePath, "--json", "history", "--project-name", "demo")
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, runGit(t, work, "rev-parse", "HEAD"), entries[0]["local_commit_hash"])
	assert.Equal(t, "fix bug", entries[0]["commit_message"])
	assert.Contains(t, entries[0]["explorer_url"], "/transaction/")
}

func TestAnchorCommand_FailedSubmitStillWritesMetrics(t *testing.T) {
	chain, storePath := testEnv(t)
	chain.submitErr = errors.New("mempool full")
	work := setupRepo(t)
	metricsPath := filepath.Join(t.TempDir(), "gitgood.prom")
	logPath := filepath.Join(t.TempDir(), "gitgood.log")

	_, err := executeCommand(createTestRootCmd(), "--store", storePath, "--metrics-file", metricsPath,
		"--log-file", logPath, "anchor", "--project-name", "demo", "--git-repo-path", work,
		"--payment-signing-key-path", writeKey(t), "--no-verify")
	require.Error(t, err)
	assert.Equal(t, errclass.ExitSubmission, errclass.ExitCode(err))

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `gitgood_anchor_runs_total{project="demo",status="failed"} 1`)
	assert.Contains(t, string(prom), `gitgood_submission_duration_seconds_count{result="failure"} 1`)

	logs, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "submission failed")
	assert.Nil(t, logger, "logger is closed after the run")
}

func TestAnchorCommand_WithVerification(t *testing.T) {
	chain, storePath := testEnv(t)
	work := setupRepo(t)
	head := runGit(t, work, "rev-parse", "HEAD")
	chain.entry = &chainapi.Entry{TxHash: "tx", Msg: []string{"demo", head, "fix bug", "date"}}

	stdout, err := executeCommand(createTestRootCmd(), "--store", storePath, "--json", "anchor",
		"--project-name", "demo", "--git-repo-path", work,
		"--payment-signing-key-path", writeKey(t), "--verify-delay", "0s")
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "published", out["status"])
	verification, ok := out["verification"].(map[string]any)
	require.True(t, ok, "verification missing from %s", stdout)
	assert.Equal(t, "match", verification["status"])

	// standalone verify agrees
	stdout, err = executeCommand(createTestRootCmd(), "--store", storePath, "verify", "--project-name", "demo")
	require.NoError(t, err)
	assert.Contains(t, stdout, "match")

	chain.entry.Msg[1] = "someotherhash"
	_, err = executeCommand(createTestRootCmd(), "--store", storePath, "verify", "--project-name", "demo")
	assert.ErrorIs(t, err, errVerificationFailed)
}

func TestAnchorCommand_Conflict(t *testing.T) {
	chain, storePath := testEnv(t)
	work := setupRepo(t)
	origin := runGit(t, work, "remote", "get-url", "origin")
	other := filepath.Join(t.TempDir(), "other")
	runGit(t, filepath.Dir(other), "clone", origin, other)
	require.NoError(t, os.WriteFile(filepath.Join(other, "NEW"), []byte("x\n"), 0644))
	runGit(t, other, "add", "NEW")
	runGit(t, other, "commit", "-m", "upstream work")
	runGit(t, other, "push", "origin", "HEAD")
	runGit(t, work, "fetch", "origin")

	_, err := executeCommand(createTestRootCmd(), "--store", storePath, "anchor",
		"--project-name", "demo", "--git-repo-path", work,
		"--payment-signing-key-path", writeKey(t), "--no-verify")
	require.Error(t, err)
	assert.Equal(t, errclass.ExitConflict, errclass.ExitCode(err))
	assert.Zero(t, chain.submitted)
}

func TestAnchorCommand_MissingCredential(t *testing.T) {
	_, storePath := testEnv(t)
	t.Setenv("PROJECT_ID", "")
	newChainClient = func(n ledger.Network, id string) (chainClient, error) { return chainapi.New(n, id) }

	_, err := executeCommand(createTestRootCmd(), "--store", storePath, "anchor",
		"--project-name", "demo", "--payment-signing-key-path", writeKey(t))
	assert.True(t, errors.Is(err, errclass.ErrCredentialMissing))
	assert.Equal(t, errclass.ExitGeneralFail, errclass.ExitCode(err))
}

func TestAnchorCommand_RequiresProjectName(t *testing.T) {
	_, storePath := testEnv(t)
	_, err := executeCommand(createTestRootCmd(), "--store", storePath, "anchor")
	assert.True(t, errors.Is(err, errclass.ErrNameInvalid))
}

func TestVerifyCommand_NotRecorded(t *testing.T) {
	_, storePath := testEnv(t)
	_, err := executeCommand(createTestRootCmd(), "--store", storePath, "verify", "--project-name", "demo")
	assert.True(t, errors.Is(err, errclass.ErrNotRecorded))
}

func TestHistoryCommand_Empty(t *testing.T) {
	_, storePath := testEnv(t)
	stdout, err := executeCommand(createTestRootCmd(), "--store", storePath, "history", "--project-name", "demo")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No commits recorded")
}

func TestInfoCommand_JSON(t *testing.T) {
	_, storePath := testEnv(t)
	stdout, err := executeCommand(createTestRootCmd(), "--store", storePath, "--json", "info",
		"--network", "mainnet", "--payment-signing-key-path", writeKey(t), "--project-name", "demo")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, "mainnet", info["network"])
	assert.True(t, strings.HasPrefix(info["address"].(string), "addr1"))
	assert.Equal(t, "demo", info["project"])
	assert.NotContains(t, info, "onchain_id")
}

func TestDoctorCommand_Unhealthy(t *testing.T) {
	_, storePath := testEnv(t)
	t.Setenv("PROJECT_ID", "")
	stdout, err := executeCommand(createTestRootCmd(), "--store", storePath, "doctor", "--git-repo-path", t.TempDir())
	assert.ErrorIs(t, err, errUnhealthy)
	assert.Contains(t, stdout, "credential")
}

func TestConfigCommand_InitAndShow(t *testing.T) {
	testEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	stdout, err := executeCommand(createTestRootCmd(), "--config", path, "config", "init", "--project-name", "demo")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: demo")
	assert.NotContains(t, string(data), "preprodTest")

	_, err = executeCommand(createTestRootCmd(), "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	stdout, err = executeCommand(createTestRootCmd(), "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "name: demo")
	assert.Contains(t, stdout, "****")
	assert.NotContains(t, stdout, "preprodTest")
}

func TestCompletionCommand(t *testing.T) {
	stdout, err := executeCommand(createTestRootCmd(), "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, stdout, "gitgood")
}

func TestOutputJSON(t *testing.T) {
	jsonOutput = true
	err := outputJSON(map[string]string{"test": "value"})
	assert.NoError(t, err)

	jsonOutput = false
	err = outputJSON(map[string]string{"test": "value"})
	assert.NoError(t, err)
}

func TestFmtErr(t *testing.T) {
	// fmtErr should not panic
	fmtErr("test error: %s", "detail")
}
