package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store provides methods for all caretaker database operations.
// It is handed explicitly to each component; there is no singleton.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an initialized database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- Seen events ---

// HasSeenEvent reports whether an event has been processed before.
func (s *Store) HasSeenEvent(repo, eventID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM seen_events WHERE repo = ? AND event_id = ?`,
		repo, eventID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query seen_events: %w", err)
	}
	return count > 0, nil
}

// MarkEventSeen records an event as processed. Idempotent.
func (s *Store) MarkEventSeen(repo, eventID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO seen_events (repo, event_id) VALUES (?, ?)`,
		repo, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event seen: %w", err)
	}
	return nil
}

// --- Posted comments ---

// HasRespondedToIssue reports whether the agent has posted a comment on the
// given issue before.
func (s *Store) HasRespondedToIssue(repo string, issueNumber int) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM posted_comments WHERE repo = ? AND issue_number = ?`,
		repo, issueNumber,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query posted_comments: %w", err)
	}
	return count > 0, nil
}

// RecordPostedComment records a posted comment by content hash for dedup.
func (s *Store) RecordPostedComment(repo string, issueNumber int, contentHash string) error {
	_, err := s.db.Exec(
		`INSERT INTO posted_comments (id, repo, issue_number, content_hash) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), repo, issueNumber, contentHash,
	)
	if err != nil {
		return fmt.Errorf("failed to record posted comment: %w", err)
	}
	return nil
}

// --- File tree cache ---

// GetTreeRootHash returns the cached root hash for a repository's file tree,
// or empty string if the tree has never been cached.
func (s *Store) GetTreeRootHash(repo string) (string, error) {
	var rootHash string
	err := s.db.QueryRow(
		`SELECT root_hash FROM repo_trees WHERE repo = ?`, repo,
	).Scan(&rootHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query repo_trees: %w", err)
	}
	return rootHash, nil
}

// TreeRefreshedAt returns when the cached tree for a repository was last
// refreshed or touched. ok is false when no tree has been cached yet.
func (s *Store) TreeRefreshedAt(repo string) (refreshedAt time.Time, ok bool, err error) {
	err = s.db.QueryRow(
		`SELECT refreshed_at FROM repo_trees WHERE repo = ?`, repo,
	).Scan(&refreshedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query tree refresh time: %w", err)
	}
	return refreshedAt, true, nil
}

// TouchTree bumps the refresh timestamp without touching the cached paths.
// Used when the remote root hash is unchanged.
func (s *Store) TouchTree(repo string) error {
	_, err := s.db.Exec(
		`UPDATE repo_trees SET refreshed_at = ? WHERE repo = ?`, time.Now().UTC(), repo,
	)
	if err != nil {
		return fmt.Errorf("failed to touch repo tree: %w", err)
	}
	return nil
}

// ReplaceFileTree atomically replaces the cached path list for a repository
// and records the new root hash.
func (s *Store) ReplaceFileTree(repo, rootHash string, entries []FileEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tree replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM repo_files WHERE repo = ?`, repo); err != nil {
		return fmt.Errorf("failed to clear repo_files: %w", err)
	}
	for i := range entries {
		entry := &entries[i]
		if _, err := tx.Exec(
			`INSERT INTO repo_files (repo, path, blob_hash, size) VALUES (?, ?, ?, ?)`,
			repo, entry.Path, entry.BlobHash, entry.Size,
		); err != nil {
			return fmt.Errorf("failed to insert repo file %s: %w", entry.Path, err)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO repo_trees (repo, root_hash, refreshed_at) VALUES (?, ?, ?)
		 ON CONFLICT(repo) DO UPDATE SET root_hash = excluded.root_hash, refreshed_at = excluded.refreshed_at`,
		repo, rootHash, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to upsert repo tree: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tree replace: %w", err)
	}
	return nil
}

// ListFileEntries returns the cached file tree for a repository.
func (s *Store) ListFileEntries(repo string) ([]FileEntry, error) {
	rows, err := s.db.Query(
		`SELECT repo, path, blob_hash, size FROM repo_files WHERE repo = ? ORDER BY path`, repo,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query repo_files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []FileEntry
	for rows.Next() {
		var entry FileEntry
		if err := rows.Scan(&entry.Repo, &entry.Path, &entry.BlobHash, &entry.Size); err != nil {
			return nil, fmt.Errorf("failed to scan repo file: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate repo_files: %w", err)
	}
	return entries, nil
}

// CountFileEntries returns the number of tracked paths for a repository.
func (s *Store) CountFileEntries(repo string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM repo_files WHERE repo = ?`, repo).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count repo_files: %w", err)
	}
	return count, nil
}

// GetFileBlob returns cached file content by hash, if present.
func (s *Store) GetFileBlob(repo, blobHash string) (string, bool, error) {
	var content string
	err := s.db.QueryRow(
		`SELECT content FROM file_blobs WHERE repo = ? AND blob_hash = ?`, repo, blobHash,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query file_blobs: %w", err)
	}
	return content, true, nil
}

// PutFileBlob caches file content addressed by (repo, hash).
func (s *Store) PutFileBlob(repo, blobHash, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO file_blobs (repo, blob_hash, content, size) VALUES (?, ?, ?, ?)
		 ON CONFLICT(repo, blob_hash) DO UPDATE SET content = excluded.content, size = excluded.size`,
		repo, blobHash, content, len(content),
	)
	if err != nil {
		return fmt.Errorf("failed to cache file blob: %w", err)
	}
	return nil
}

// --- Repo summaries ---

// GetRepoSummary returns the cached summary and the root hash it was derived
// from, if present.
func (s *Store) GetRepoSummary(repo string) (summary, treeRootHash string, ok bool, err error) {
	err = s.db.QueryRow(
		`SELECT summary, tree_root_hash FROM repo_summaries WHERE repo = ?`, repo,
	).Scan(&summary, &treeRootHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("failed to query repo_summaries: %w", err)
	}
	return summary, treeRootHash, true, nil
}

// SetRepoSummary caches a repository summary tied to a tree root hash.
func (s *Store) SetRepoSummary(repo, summary, treeRootHash string) error {
	_, err := s.db.Exec(
		`INSERT INTO repo_summaries (repo, summary, tree_root_hash, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(repo) DO UPDATE SET summary = excluded.summary,
			tree_root_hash = excluded.tree_root_hash, updated_at = excluded.updated_at`,
		repo, summary, treeRootHash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert repo summary: %w", err)
	}
	return nil
}

// --- Goals ---

// ListGoals returns goals with the given status sorted by priority
// descending. An empty status lists all goals.
func (s *Store) ListGoals(status string) ([]Goal, error) {
	query := `SELECT name, description, priority, status, progress FROM goals`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY priority DESC, name`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var goals []Goal
	for rows.Next() {
		var goal Goal
		if err := rows.Scan(&goal.Name, &goal.Description, &goal.Priority, &goal.Status, &goal.Progress); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate goals: %w", err)
	}
	return goals, nil
}

// UpsertGoal inserts or updates a goal by name.
func (s *Store) UpsertGoal(goal *Goal) error {
	_, err := s.db.Exec(
		`INSERT INTO goals (name, description, priority, status, progress, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			priority = excluded.priority,
			status = excluded.status,
			progress = excluded.progress,
			updated_at = excluded.updated_at`,
		goal.Name, goal.Description, goal.Priority, goal.Status, goal.Progress, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert goal %s: %w", goal.Name, err)
	}
	return nil
}

// UpdateGoalProgress persists a goal's progress and status.
func (s *Store) UpdateGoalProgress(name string, progress float64, status string) error {
	result, err := s.db.Exec(
		`UPDATE goals SET progress = ?, status = ?, updated_at = ? WHERE name = ?`,
		progress, status, time.Now().UTC(), name,
	)
	if err != nil {
		return fmt.Errorf("failed to update goal %s: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check goal update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("goal %s not found", name)
	}
	return nil
}

// --- Action log ---

// AppendActionRecord appends one executed-action outcome. Records are never
// edited after insertion.
func (s *Store) AppendActionRecord(record *ActionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO action_log (id, tick, action_type, repo, target_number, target,
			priority, reasoning, success, result, duration_ms, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Tick, record.ActionType, record.Repo, record.TargetNumber,
		record.Target, record.Priority, record.Reasoning, record.Success,
		record.Result, record.DurationMS, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append action record: %w", err)
	}
	return nil
}

// RecentActionRecords returns the most recent action outcomes, newest first.
func (s *Store) RecentActionRecords(limit int) ([]ActionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, tick, action_type, repo, target_number, target, priority,
			reasoning, success, result, duration_ms
		 FROM action_log ORDER BY executed_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query action_log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []ActionRecord
	for rows.Next() {
		var r ActionRecord
		if err := rows.Scan(&r.ID, &r.Tick, &r.ActionType, &r.Repo, &r.TargetNumber,
			&r.Target, &r.Priority, &r.Reasoning, &r.Success, &r.Result, &r.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan action record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action_log: %w", err)
	}
	return records, nil
}

// --- Learnings ---

// AppendLearning appends one reflection insight.
func (s *Store) AppendLearning(learning *Learning) error {
	_, err := s.db.Exec(
		`INSERT INTO learnings (tick, category, insight, confidence) VALUES (?, ?, ?, ?)`,
		learning.Tick, learning.Category, learning.Insight, learning.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to append learning: %w", err)
	}
	return nil
}

// RecentLearnings returns the most recent learnings, newest first.
func (s *Store) RecentLearnings(limit int) ([]Learning, error) {
	rows, err := s.db.Query(
		`SELECT id, tick, category, insight, confidence FROM learnings
		 ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query learnings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var learnings []Learning
	for rows.Next() {
		var l Learning
		if err := rows.Scan(&l.ID, &l.Tick, &l.Category, &l.Insight, &l.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan learning: %w", err)
		}
		learnings = append(learnings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate learnings: %w", err)
	}
	return learnings, nil
}

// --- Tick log ---

// AppendTickRecord appends one tick summary row.
func (s *Store) AppendTickRecord(record *TickRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO tick_log (tick, started_at, finished_at, observations,
			planned_actions, executed_actions, succeeded_actions, reasoning, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Tick, record.StartedAt.UTC(), record.FinishedAt.UTC(), record.Observations,
		record.PlannedActions, record.ExecutedActions, record.SucceededActions,
		record.Reasoning, record.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to append tick record: %w", err)
	}
	return nil
}

// LastTickNumber returns the highest recorded tick number, or 0 for a fresh
// database. Tick numbering resumes from here across restarts.
func (s *Store) LastTickNumber() (int64, error) {
	var tick int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(tick), 0) FROM tick_log`).Scan(&tick)
	if err != nil {
		return 0, fmt.Errorf("failed to query tick_log: %w", err)
	}
	return tick, nil
}

// --- PR tracking ---

// UpsertPRTracking refreshes the tracked snapshot of a pull request. The
// auto_merged flag is preserved on conflict; only MarkAutoMerged sets it.
func (s *Store) UpsertPRTracking(tracking *PRTracking) error {
	_, err := s.db.Exec(
		`INSERT INTO pr_tracking (repo, number, title, author, state, ci_status,
			version_bump, is_dependabot, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(repo, number) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			state = excluded.state,
			ci_status = excluded.ci_status,
			version_bump = excluded.version_bump,
			is_dependabot = excluded.is_dependabot,
			last_seen_at = excluded.last_seen_at`,
		tracking.Repo, tracking.Number, tracking.Title, tracking.Author, tracking.State,
		tracking.CIStatus, tracking.VersionBump, tracking.IsDependabot, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pr tracking %s#%d: %w", tracking.Repo, tracking.Number, err)
	}
	return nil
}

// IsAutoMerged reports whether a PR has already been auto-merged by the
// agent. This row is the single source of truth for merge dedup.
func (s *Store) IsAutoMerged(repo string, number int) (bool, error) {
	var autoMerged bool
	err := s.db.QueryRow(
		`SELECT auto_merged FROM pr_tracking WHERE repo = ? AND number = ?`,
		repo, number,
	).Scan(&autoMerged)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query pr_tracking: %w", err)
	}
	return autoMerged, nil
}

// MarkAutoMerged flips the auto-merged flag for a PR.
func (s *Store) MarkAutoMerged(repo string, number int) error {
	_, err := s.db.Exec(
		`INSERT INTO pr_tracking (repo, number, auto_merged, last_seen_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(repo, number) DO UPDATE SET auto_merged = 1, last_seen_at = excluded.last_seen_at`,
		repo, number, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark auto-merged %s#%d: %w", repo, number, err)
	}
	return nil
}
