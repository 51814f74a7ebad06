package planner

import (
	"fmt"
	"strings"

	"caretaker/pkg/observe"
	"caretaker/pkg/persistence"
)

const plannerSystemPrompt = `You are the planning core of a repository
caretaker agent. Given the current state of the repositories you tend,
your standing goals, and recent history, decide what to do this tick.

Reply with JSON only, in this shape:
{
  "reasoning": "one short paragraph",
  "actions": [
    {"type": "merge_pr", "repo": "owner/repo", "number": 42,
     "priority": 80, "reasoning": "why"}
  ]
}

Valid action types: merge_pr, approve_pr, review_pr, respond_issue,
notify_owner, comment_pr, refresh_context, skip. Priority is 0-100.
Only plan merge_pr for dependency-bot pull requests. Prefer a small
number of high-confidence actions over many speculative ones.`

// renderObservations produces the per-repository state block.
func renderObservations(observations []*observe.RepoObservation) string {
	var b strings.Builder
	for _, obs := range observations {
		fmt.Fprintf(&b, "## %s (%d open PRs, %d open issues, %d tracked files)\n",
			obs.Repo, len(obs.PullRequests), len(obs.Issues), obs.TrackedFileCount)
		if obs.RepoSummary != "" {
			fmt.Fprintf(&b, "%s\n", obs.RepoSummary)
		}
		for _, pr := range obs.PullRequests {
			flags := make([]string, 0, 4)
			if pr.IsDependabot {
				flags = append(flags, "dependency-bot", "bump="+string(pr.VersionBump))
			}
			if pr.Draft {
				flags = append(flags, "draft")
			}
			if pr.Mergeable {
				flags = append(flags, "mergeable")
			}
			fmt.Fprintf(&b, "- PR #%d %q by %s: ci=%s review=%s age=%.0fh %s\n",
				pr.Number, pr.Title, pr.Author, pr.CIStatus, pr.ReviewState,
				pr.AgeHours, strings.Join(flags, " "))
		}
		for _, issue := range obs.Issues {
			responded := ""
			if issue.HasResponded {
				responded = " (already responded)"
			}
			fmt.Fprintf(&b, "- Issue #%d %q by %s: labels=%s comments=%d age=%.0fh%s\n",
				issue.Number, issue.Title, issue.Author,
				strings.Join(issue.Labels, ","), issue.CommentCount,
				issue.AgeHours, responded)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderGoals(goals []persistence.Goal) string {
	if len(goals) == 0 {
		return "(no active goals)\n"
	}
	var b strings.Builder
	for _, goal := range goals {
		fmt.Fprintf(&b, "- [p%d] %s: %s (progress %.0f%%)\n",
			goal.Priority, goal.Name, goal.Description, goal.Progress*100)
	}
	return b.String()
}

func renderHistory(records []persistence.ActionRecord) string {
	if len(records) == 0 {
		return "(no recent actions)\n"
	}
	var b strings.Builder
	for _, record := range records {
		outcome := "ok"
		if !record.Success {
			outcome = "FAILED"
		}
		fmt.Fprintf(&b, "- tick %d: %s %s#%d %s: %s\n",
			record.Tick, record.ActionType, record.Repo, record.TargetNumber,
			outcome, record.Result)
	}
	return b.String()
}

func renderLearnings(learnings []persistence.Learning) string {
	if len(learnings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("# Prior learnings\n")
	for _, learning := range learnings {
		fmt.Fprintf(&b, "- [%s] %s\n", learning.Category, learning.Insight)
	}
	return b.String()
}

func renderHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("# Decision hints (heuristic scores, advisory)\n")
	for _, hint := range hints {
		fmt.Fprintf(&b, "- %s\n", hint)
	}
	return b.String()
}

func renderCommands(commands []string) string {
	if len(commands) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("# Owner commands (highest priority, but use judgment)\n")
	for _, command := range commands {
		fmt.Fprintf(&b, "- %s\n", command)
	}
	return b.String()
}
