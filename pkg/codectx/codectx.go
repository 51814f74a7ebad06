// Package codectx assembles source-code context for model prompts without
// cloning repositories. A cached file tree drives change detection; file
// content is fetched on demand and cached by blob hash.
package codectx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"caretaker/pkg/config"
	"caretaker/pkg/forge"
	"caretaker/pkg/jsonx"
	"caretaker/pkg/llm"
	"caretaker/pkg/logx"
	"caretaker/pkg/persistence"
)

const defaultRef = "HEAD"

// Builder is the two-phase code-context assembler.
type Builder struct {
	forge  forge.API
	store  *persistence.Store
	model  llm.Client
	cfg    config.CodeContextConfig
	logger *logx.Logger
	now    func() time.Time
}

// NewBuilder creates a code-context builder.
func NewBuilder(api forge.API, store *persistence.Store, model llm.Client, cfg config.CodeContextConfig) *Builder {
	return &Builder{
		forge:  api,
		store:  store,
		model:  model,
		cfg:    cfg,
		logger: logx.NewLogger("codectx"),
		now:    time.Now,
	}
}

// RefreshTree fetches the remote file tree and rebuilds the cached path
// list when the root hash changed. Returns false without touching any rows
// beyond a timestamp bump when the tree is unchanged.
func (b *Builder) RefreshTree(ctx context.Context, repo string) (bool, error) {
	tree, err := b.forge.GetFileTree(ctx, repo, defaultRef)
	if err != nil {
		return false, fmt.Errorf("failed to fetch file tree for %s: %w", repo, err)
	}

	cachedRoot, err := b.store.GetTreeRootHash(repo)
	if err != nil {
		return false, err
	}
	if cachedRoot != "" && cachedRoot == tree.SHA {
		b.logger.Debug("Tree for %s unchanged at %s", repo, tree.SHA)
		return false, b.store.TouchTree(repo)
	}

	entries := make([]persistence.FileEntry, 0, len(tree.Tree))
	for _, entry := range tree.Tree {
		if entry.Type != "blob" {
			continue
		}
		if !included(entry.Path, b.cfg.IncludePatterns, b.cfg.ExcludePatterns) {
			continue
		}
		entries = append(entries, persistence.FileEntry{
			Repo:     repo,
			Path:     entry.Path,
			BlobHash: entry.SHA,
			Size:     entry.Size,
		})
	}

	if err := b.store.ReplaceFileTree(repo, tree.SHA, entries); err != nil {
		return false, err
	}
	if err := b.store.SetRepoSummary(repo, deriveSummary(repo, entries), tree.SHA); err != nil {
		return false, err
	}
	b.logger.Info("Rebuilt tree cache for %s: %d files at %s", repo, len(entries), tree.SHA)
	return true, nil
}

// EnsureFresh refreshes the tree when it was never cached or the refresh
// interval has elapsed.
func (b *Builder) EnsureFresh(ctx context.Context, repo string) error {
	refreshedAt, ok, err := b.store.TreeRefreshedAt(repo)
	if err != nil {
		return err
	}
	interval := time.Duration(b.cfg.TreeRefreshIntervalMinutes) * time.Minute
	if ok && interval > 0 && b.now().UTC().Sub(refreshedAt) < interval {
		return nil
	}
	_, err = b.RefreshTree(ctx, repo)
	return err
}

// Summary returns the cached repository summary, refreshing the tree first
// if nothing is cached yet.
func (b *Builder) Summary(ctx context.Context, repo string) (string, error) {
	summary, _, ok, err := b.store.GetRepoSummary(repo)
	if err != nil {
		return "", err
	}
	if ok {
		return summary, nil
	}
	if _, err := b.RefreshTree(ctx, repo); err != nil {
		return "", err
	}
	summary, _, _, err = b.store.GetRepoSummary(repo)
	return summary, err
}

// SelectFiles asks the model which cached paths are relevant to a question.
// Paths not present in the cache are discarded silently; unparseable model
// output selects nothing.
func (b *Builder) SelectFiles(ctx context.Context, repo, question string) ([]string, error) {
	entries, err := b.store.ListFileEntries(repo)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	known := make(map[string]bool, len(entries))
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		known[entry.Path] = true
		paths = append(paths, entry.Path)
	}
	if len(paths) > 400 {
		paths = paths[:400]
	}

	prompt := fmt.Sprintf(
		"Question about the repository %s:\n%s\n\nAvailable files:\n%s\n\n"+
			"Reply with a JSON array of at most %d file paths from the list above "+
			"that are most relevant to the question. Reply with the JSON array only.",
		repo, question, strings.Join(paths, "\n"), b.cfg.MaxFiles,
	)
	result, err := b.model.Chat(ctx, llm.NewRequest([]llm.Message{llm.NewUserMessage(prompt)}, llm.ComplexityLow))
	if err != nil {
		return nil, fmt.Errorf("file selection failed: %w", err)
	}
	if result.Blocked {
		return nil, nil
	}

	var selected []string
	jsonx.ExtractArray(result.Content, &selected)
	filtered := make([]string, 0, len(selected))
	for _, p := range selected {
		if known[p] {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) > b.cfg.MaxFiles {
		filtered = filtered[:b.cfg.MaxFiles]
	}
	return filtered, nil
}

// BuildContext assembles question-relevant file content under the character
// budget, preferring cached blobs over network fetches.
func (b *Builder) BuildContext(ctx context.Context, repo, question string) (string, error) {
	if err := b.EnsureFresh(ctx, repo); err != nil {
		return "", err
	}

	selected, err := b.SelectFiles(ctx, repo, question)
	if err != nil {
		return "", err
	}

	entries, err := b.store.ListFileEntries(repo)
	if err != nil {
		return "", err
	}
	hashByPath := make(map[string]string, len(entries))
	for _, entry := range entries {
		hashByPath[entry.Path] = entry.BlobHash
	}

	var b2 strings.Builder
	if summary, _, ok, err := b.store.GetRepoSummary(repo); err == nil && ok {
		b2.WriteString(summary)
		b2.WriteString("\n\n")
	}

	for _, p := range selected {
		remaining := b.cfg.MaxContextChars - b2.Len()
		if remaining <= 0 {
			break
		}
		content, ok := b.fetchFile(ctx, repo, p, hashByPath[p])
		if !ok {
			continue
		}
		section := fmt.Sprintf("--- %s ---\n%s\n\n", p, content)
		if len(section) > remaining {
			section = section[:remaining]
		}
		b2.WriteString(section)
	}
	return b2.String(), nil
}

// fetchFile returns file content via the blob cache, fetching and caching
// on miss. Oversized and unfetchable files are skipped.
func (b *Builder) fetchFile(ctx context.Context, repo, path, blobHash string) (string, bool) {
	if blobHash != "" {
		if content, hit, err := b.store.GetFileBlob(repo, blobHash); err == nil && hit {
			return content, true
		}
	}

	content, err := b.forge.GetFileContent(ctx, repo, path, defaultRef)
	if err != nil {
		b.logger.Warn("Failed to fetch %s:%s: %v", repo, path, err)
		return "", false
	}
	if b.cfg.MaxFileBytes > 0 && len(content) > b.cfg.MaxFileBytes {
		b.logger.Debug("Skipping %s:%s: %d bytes over ceiling", repo, path, len(content))
		return "", false
	}
	if blobHash != "" {
		if err := b.store.PutFileBlob(repo, blobHash, content); err != nil {
			b.logger.Warn("Failed to cache blob for %s:%s: %v", repo, path, err)
		}
	}
	return content, true
}
