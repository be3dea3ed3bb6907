// Package gitrepo records manifest rewrites in the repository that holds the
// course sources.
package gitrepo

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var ErrNotRepository = errors.New("not inside a git repository")

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}

type Service struct {
	author string
	email  string
}

func New(author, email string) *Service {
	if strings.TrimSpace(author) == "" {
		author = "contentsync"
	}
	if strings.TrimSpace(email) == "" {
		email = fmt.Sprintf("%s@contentsync.local", sanitizeEmail(author))
	}
	return &Service{author: author, email: email}
}

// CommitFiles stages paths in their enclosing repository and commits them.
// It reports false, without committing, when none of the files changed.
func (s *Service) CommitFiles(paths []string, message string) (CommitInfo, bool, error) {
	if len(paths) == 0 {
		return CommitInfo{}, false, nil
	}
	repo, root, err := openEnclosing(paths[0])
	if err != nil {
		return CommitInfo{}, false, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, false, fmt.Errorf("open worktree: %w", err)
	}

	staged := make([]string, 0, len(paths))
	for _, path := range paths {
		rel, err := relativeTo(root, path)
		if err != nil {
			return CommitInfo{}, false, err
		}
		if _, err := worktree.Add(rel); err != nil {
			return CommitInfo{}, false, fmt.Errorf("git add %s: %w", rel, err)
		}
		staged = append(staged, rel)
	}

	status, err := worktree.Status()
	if err != nil {
		return CommitInfo{}, false, fmt.Errorf("read status: %w", err)
	}
	if !hasStagedChanges(status, staged) {
		return CommitInfo{}, false, nil
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.author,
			Email: s.email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitInfo{}, false, fmt.Errorf("commit: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, false, fmt.Errorf("read commit: %w", err)
	}
	return toCommitInfo(commitObj), true, nil
}

// History lists the newest commits touching path, newest first.
func (s *Service) History(path string, limit int) ([]CommitInfo, error) {
	repo, root, err := openEnclosing(path)
	if err != nil {
		return nil, err
	}
	rel, err := relativeTo(root, path)
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), FileName: &rel})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var out []CommitInfo
	for limit <= 0 || len(out) < limit {
		commitObj, err := iter.Next()
		if err != nil {
			break
		}
		out = append(out, toCommitInfo(commitObj))
	}
	return out, nil
}

func openEnclosing(path string) (*git.Repository, string, error) {
	dir := filepath.Dir(path)
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, "", fmt.Errorf("%w: %s", ErrNotRepository, dir)
	}
	if err != nil {
		return nil, "", fmt.Errorf("open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, "", fmt.Errorf("open worktree: %w", err)
	}
	return repo, worktree.Filesystem.Root(), nil
}

func relativeTo(root, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside repository %s", path, root)
	}
	return filepath.ToSlash(rel), nil
}

func hasStagedChanges(status git.Status, paths []string) bool {
	for _, path := range paths {
		fs, ok := status[path]
		if !ok {
			continue
		}
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			return true
		}
	}
	return false
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String(),
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(input) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			b.WriteRune('.')
		}
	}
	if b.Len() == 0 {
		return "contentsync"
	}
	return b.String()
}
