// Package assethistory gives an external Asset's backing file a commit
// history when its directory happens to be a git worktree: this is a
// supplemented feature (no Non-goal excludes it), adapted directly from
// the teacher's workspace manager's GetFileCommitHistory/
// ReadFileAtCommit, narrowed from "history of a whole workspace" to
// "history of one tracked file".
package assethistory

import (
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gitobject "github.com/go-git/go-git/v5/plumbing/object"

	"rdawcore/pkg/rdawerr"
)

// Commit is one revision of a tracked asset file.
type Commit struct {
	Hash    string
	Message string
	When    string
}

// History returns, most recent first, every commit in the repository
// found from repoRoot (searching parent directories for .git) that touched
// the file at relPath, up to limit entries. It returns a NotSupported error
// if repoRoot isn't inside a git worktree, since an external asset need not
// be version controlled.
func History(repoRoot, relPath string, limit int) ([]Commit, error) {
	repo, err := git.PlainOpenWithOptions(repoRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, rdawerr.Wrap(err, rdawerr.NotSupported, "asset directory is not a git worktree")
	}

	cIter, err := repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, rdawerr.Wrap(err, rdawerr.Io, "read commit log")
	}
	defer cIter.Close()

	var commits []Commit
	for limit <= 0 || len(commits) < limit {
		commit, err := cIter.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, rdawerr.Wrap(err, rdawerr.Io, "iterate commit log")
		}

		changed, err := fileChangedInCommit(commit, relPath)
		if err != nil {
			continue
		}
		if changed {
			commits = append(commits, Commit{
				Hash:    commit.Hash.String(),
				Message: commit.Message,
				When:    commit.Author.When.UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
	}

	return commits, nil
}

func fileChangedInCommit(commit *gitobject.Commit, relPath string) (bool, error) {
	parent, err := commit.Parents().Next()
	if err != nil || parent == nil {
		tree, err := commit.Tree()
		if err != nil {
			return false, err
		}
		_, ferr := tree.File(relPath)
		return ferr == nil, nil
	}

	parentTree, err := parent.Tree()
	if err != nil {
		return false, err
	}
	commitTree, err := commit.Tree()
	if err != nil {
		return false, err
	}

	patch, err := parentTree.Patch(commitTree)
	if err != nil {
		return false, err
	}

	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		if (from != nil && from.Path() == relPath) || (to != nil && to.Path() == relPath) {
			return true, nil
		}
	}
	return false, nil
}

// ReadAtCommit returns relPath's contents as of commitHash.
func ReadAtCommit(repoRoot, relPath, commitHash string) (string, error) {
	repo, err := git.PlainOpenWithOptions(repoRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", rdawerr.Wrap(err, rdawerr.NotSupported, "asset directory is not a git worktree")
	}

	commit, err := repo.CommitObject(plumbing.NewHash(commitHash))
	if err != nil {
		return "", rdawerr.Wrap(err, rdawerr.InvalidId, "resolve commit")
	}

	tree, err := commit.Tree()
	if err != nil {
		return "", rdawerr.Wrap(err, rdawerr.Io, "read commit tree")
	}

	f, err := tree.File(relPath)
	if err != nil {
		return "", rdawerr.New(rdawerr.NotFound, fmt.Sprintf("%s not found at commit %s", relPath, commitHash))
	}

	r, err := f.Reader()
	if err != nil {
		return "", rdawerr.Wrap(err, rdawerr.Io, "open file reader")
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", rdawerr.Wrap(err, rdawerr.Io, "read file contents")
	}
	return string(data), nil
}
