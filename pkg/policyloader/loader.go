// Package policyloader syncs policy rule files from a Git-backed source
// directory (local clone or remote repository) into an in-memory cache,
// re-parsing only the files that changed since the last sync.
package policyloader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/munet-project/unet/pkg/policy"
	"github.com/munet-project/unet/pkg/util"
)

// PolicyFileExt is the extension a directory walk treats as a policy rule
// file. Anything else under the source directory is ignored.
const PolicyFileExt = ".policy"

// CacheEntry holds one parsed policy file and the metadata used to decide
// whether it needs to be re-parsed on the next sync.
type CacheEntry struct {
	Path        string
	Rules       []*policy.Rule
	ModTime     time.Time
	CachedAt    time.Time
	ContentHash string
}

// SyncResult summarizes what changed during a Sync call.
type SyncResult struct {
	Added    []string
	Removed  []string
	Reloaded []string
	Errors   map[string]error
}

// Auth carries optional Git remote credentials. Zero value means the
// repository requires no authentication (e.g. a local path or a
// public HTTP remote).
type Auth struct {
	Username string
	Password string // a personal access token for most Git hosts
}

// Loader owns a local checkout of a policy source repository and a
// per-file cache of parsed rule sets.
type Loader struct {
	RemoteURL string // empty means localDir is used as-is, no Git sync
	LocalDir  string
	Branch    string
	TTL       time.Duration
	Auth      Auth

	cache map[string]*CacheEntry
}

// NewLoader builds a Loader. localDir is always the directory policy files
// are read from; if remoteURL is non-empty, Sync clones/pulls it into
// localDir first.
func NewLoader(remoteURL, localDir, branch string, ttl time.Duration) *Loader {
	return &Loader{
		RemoteURL: remoteURL,
		LocalDir:  localDir,
		Branch:    branch,
		TTL:       ttl,
		cache:     make(map[string]*CacheEntry),
	}
}

// Sync brings LocalDir up to date with RemoteURL (if set), then walks
// LocalDir for .policy files and reloads any that are new, removed, or
// whose cache entry is stale.
func (l *Loader) Sync() (*SyncResult, error) {
	if l.RemoteURL != "" {
		if err := l.syncRepo(); err != nil {
			return nil, fmt.Errorf("syncing policy repository: %w", err)
		}
	}
	return l.reloadDirectory()
}

func (l *Loader) syncRepo() error {
	var authMethod *http.BasicAuth
	if l.Auth.Username != "" || l.Auth.Password != "" {
		authMethod = &http.BasicAuth{Username: l.Auth.Username, Password: l.Auth.Password}
	}

	repo, err := git.PlainOpen(l.LocalDir)
	if err != nil {
		if err != git.ErrRepositoryNotExists {
			return fmt.Errorf("opening local repo: %w", err)
		}
		util.Logger.Infof("policyloader: cloning %s into %s", l.RemoteURL, l.LocalDir)
		_, err = git.PlainClone(l.LocalDir, false, &git.CloneOptions{
			URL:           l.RemoteURL,
			Auth:          authMethod,
			ReferenceName: branchRef(l.Branch),
			SingleBranch:  l.Branch != "",
		})
		if err != nil {
			return fmt.Errorf("cloning %s: %w", l.RemoteURL, err)
		}
		return nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	err = wt.Pull(&git.PullOptions{
		RemoteName:    "origin",
		Auth:          authMethod,
		ReferenceName: branchRef(l.Branch),
		SingleBranch:  l.Branch != "",
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("pulling %s: %w", l.RemoteURL, err)
	}
	return nil
}

func branchRef(branch string) plumbing.ReferenceName {
	if branch == "" {
		return ""
	}
	return plumbing.NewBranchReferenceName(branch)
}

func (l *Loader) reloadDirectory() (*SyncResult, error) {
	result := &SyncResult{Errors: map[string]error{}}

	seen := map[string]bool{}
	err := filepath.Walk(l.LocalDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != PolicyFileExt {
			return nil
		}
		seen[path] = true

		existing, cached := l.cache[path]
		if cached && !l.stale(existing, info.ModTime()) {
			return nil
		}

		entry, parseErr := l.loadFile(path, info.ModTime())
		if parseErr != nil {
			result.Errors[path] = parseErr
			return nil
		}
		if l.cache == nil {
			l.cache = map[string]*CacheEntry{}
		}
		l.cache[path] = entry
		if cached {
			result.Reloaded = append(result.Reloaded, path)
		} else {
			result.Added = append(result.Added, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", l.LocalDir, err)
	}

	for path := range l.cache {
		if !seen[path] {
			delete(l.cache, path)
			result.Removed = append(result.Removed, path)
		}
	}

	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	sort.Strings(result.Reloaded)
	return result, nil
}

// stale reports whether entry needs reparsing: either its TTL has elapsed
// or the file's mtime has moved on since it was cached.
func (l *Loader) stale(entry *CacheEntry, modTime time.Time) bool {
	if modTime.After(entry.ModTime) {
		return true
	}
	if l.TTL <= 0 {
		return false
	}
	return time.Since(entry.CachedAt) > l.TTL
}

func (l *Loader) loadFile(path string, modTime time.Time) (*CacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	rules, err := parseRules(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", util.ErrPolicyParse, path, err)
	}

	sum := sha256.Sum256(data)
	return &CacheEntry{
		Path:        path,
		Rules:       rules,
		ModTime:     modTime,
		CachedAt:    time.Now(),
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}

// parseRules parses every non-blank, non-comment line of a .policy file
// as a single rule, matching the one-rule-per-line convention used across
// the rule evaluator's test fixtures.
func parseRules(text string) ([]*policy.Rule, error) {
	var rules []*policy.Rule
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		rule, err := policy.ParseRule(trimmed, i+1)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Rules returns every rule currently cached across all policy files,
// sorted by file path then declaration order, for deterministic evaluation.
func (l *Loader) Rules() []*policy.Rule {
	paths := make([]string, 0, len(l.cache))
	for p := range l.cache {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var all []*policy.Rule
	for _, p := range paths {
		all = append(all, l.cache[p].Rules...)
	}
	return all
}

// CacheStats reports the size and staleness of the current cache.
type CacheStats struct {
	FileCount  int
	RuleCount  int
	OldestLoad time.Time
	NewestLoad time.Time
}

// CacheStats computes summary statistics over the current cache.
func (l *Loader) CacheStats() CacheStats {
	stats := CacheStats{FileCount: len(l.cache)}
	for _, entry := range l.cache {
		stats.RuleCount += len(entry.Rules)
		if stats.OldestLoad.IsZero() || entry.CachedAt.Before(stats.OldestLoad) {
			stats.OldestLoad = entry.CachedAt
		}
		if entry.CachedAt.After(stats.NewestLoad) {
			stats.NewestLoad = entry.CachedAt
		}
	}
	return stats
}

// ValidateDirectory parses every .policy file under dir without mutating
// the loader's cache, returning one error that lists every file that fails
// to read or parse. Used to check out a policy change before it is synced live.
func ValidateDirectory(dir string) error {
	v := &util.ValidationBuilder{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != PolicyFileExt {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			v.AddErrorf("%s: %v", path, err)
			return nil
		}
		if _, err := parseRules(string(data)); err != nil {
			v.AddErrorf("%s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", dir, err)
	}
	return v.Build()
}
