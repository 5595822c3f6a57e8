package assethistory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepoWithFile(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	filePath := filepath.Join(dir, "kick.wav")
	require.NoError(t, os.WriteFile(filePath, []byte("v1"), 0o644))
	_, err = wt.Add("kick.wav")
	require.NoError(t, err)

	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}
	_, err = wt.Commit("add kick", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filePath, []byte("v2"), 0o644))
	_, err = wt.Add("kick.wav")
	require.NoError(t, err)
	_, err = wt.Commit("update kick", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	return dir, "kick.wav"
}

func TestHistoryReturnsCommitsThatTouchedTheFile(t *testing.T) {
	dir, relPath := initRepoWithFile(t)

	commits, err := History(dir, relPath, 0)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "update kick", commits[0].Message)
	assert.Equal(t, "add kick", commits[1].Message)
}

func TestHistoryOnNonGitDirectoryIsNotSupported(t *testing.T) {
	dir := t.TempDir()
	_, err := History(dir, "whatever", 0)
	assert.Error(t, err)
}

func TestReadAtCommitReturnsHistoricalContents(t *testing.T) {
	dir, relPath := initRepoWithFile(t)

	commits, err := History(dir, relPath, 0)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	firstCommitHash := commits[1].Hash
	content, err := ReadAtCommit(dir, relPath, firstCommitHash)
	require.NoError(t, err)
	assert.Equal(t, "v1", content)
}
