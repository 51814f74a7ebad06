package planner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretaker/pkg/llm"
	"caretaker/pkg/observe"
	"caretaker/pkg/persistence"
)

func TestParsePlanDirect(t *testing.T) {
	content := `{"reasoning": "merge the safe bump",
		"actions": [{"type": "merge_pr", "repo": "o/r", "number": 4, "priority": 80, "reasoning": "patch bump, green CI"}]}`
	plan := ParsePlan(content, 5)

	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionMergePR, plan.Actions[0].Type)
	assert.Equal(t, 4, plan.Actions[0].Number)
	assert.Equal(t, "merge the safe bump", plan.Reasoning)
}

func TestParsePlanFenced(t *testing.T) {
	content := "Sure, here is the plan:\n```json\n" +
		`{"reasoning": "r", "actions": [{"type": "respond_issue", "repo": "o/r", "number": 7, "priority": 50}]}` +
		"\n```"
	plan := ParsePlan(content, 5)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionRespondIssue, plan.Actions[0].Type)
}

func TestParsePlanBalancedBraces(t *testing.T) {
	content := `I think we should act. {"reasoning": "r", "actions": [{"type": "skip", "priority": 1}]} Done.`
	plan := ParsePlan(content, 5)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionSkip, plan.Actions[0].Type)
}

func TestParsePlanBareActionArray(t *testing.T) {
	content := `[{"type": "merge_pr", "repo": "o/r", "number": 4, "priority": 80},
		{"type": "skip", "priority": 1}]`

	plan := ParsePlan(content, 5)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, ActionMergePR, plan.Actions[0].Type)
	assert.Equal(t, 4, plan.Actions[0].Number)
	assert.Equal(t, ActionSkip, plan.Actions[1].Type)

	fenced := "Here you go:\n```json\n" + content + "\n```"
	plan = ParsePlan(fenced, 5)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, ActionMergePR, plan.Actions[0].Type)
}

func TestParsePlanTotal(t *testing.T) {
	for _, content := range []string{"", "garbage", "{broken", "null", "[]", "42"} {
		plan := ParsePlan(content, 3)
		assert.True(t, plan.Empty(), "content %q should yield an empty plan", content)
	}
}

func TestParsePlanDropsUnknownTypes(t *testing.T) {
	content := `{"actions": [
		{"type": "merge_pr", "priority": 10},
		{"type": "launch_rocket", "priority": 99},
		{"type": "skip", "priority": 5}]}`
	plan := ParsePlan(content, 5)

	require.Len(t, plan.Actions, 2)
	assert.Equal(t, ActionMergePR, plan.Actions[0].Type)
	assert.Equal(t, ActionSkip, plan.Actions[1].Type)
}

func TestParsePlanSortsAndTruncates(t *testing.T) {
	content := `{"actions": [
		{"type": "skip", "target": "a", "priority": 10},
		{"type": "skip", "target": "b", "priority": 90},
		{"type": "skip", "target": "c", "priority": 90},
		{"type": "skip", "target": "d", "priority": 50}]}`
	plan := ParsePlan(content, 3)

	require.Len(t, plan.Actions, 3)
	// Priority descending; equal priorities keep first-seen order.
	assert.Equal(t, "b", plan.Actions[0].Target)
	assert.Equal(t, "c", plan.Actions[1].Target)
	assert.Equal(t, "d", plan.Actions[2].Target)
}

func TestParsePlanClampsPriority(t *testing.T) {
	content := `{"actions": [{"type": "skip", "priority": 900}, {"type": "skip", "priority": -5}]}`
	plan := ParsePlan(content, 5)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, 100, plan.Actions[0].Priority)
	assert.Equal(t, 0, plan.Actions[1].Priority)
}

func TestPlanRendersStateAndParses(t *testing.T) {
	model := llm.NewMockClient(llm.Result{
		Content: `{"reasoning": "ok", "actions": [{"type": "notify_owner", "target": "ci red", "priority": 70}]}`,
	})
	planner := NewPlanner(model)

	plan, err := planner.Plan(context.Background(), Input{
		Observations: []*observe.RepoObservation{{
			Repo: "o/r",
			PullRequests: []observe.PRSnapshot{{
				Number: 1, Title: "Bump x", Author: "dependabot[bot]",
				IsDependabot: true, VersionBump: observe.BumpPatch,
				CIStatus: observe.CISuccess, Mergeable: true,
			}},
			Issues: []observe.IssueSnapshot{{Number: 2, Title: "help", Labels: []string{"question"}}},
		}},
		Goals:      []persistence.Goal{{Name: "ci-green", Description: "keep ci green", Priority: 7}},
		History:    []persistence.ActionRecord{{Tick: 3, ActionType: "merge_pr", Repo: "o/r", TargetNumber: 9, Success: true, Result: "merged"}},
		Learnings:  []persistence.Learning{{Category: "merge", Insight: "majors need review"}},
		OwnerCmds:  []string{"merge o/r#1"},
		Hints:      []string{"respond issue o/r#2 (score 65)"},
		MaxActions: 4,
	})
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionNotifyOwner, plan.Actions[0].Type)

	calls := model.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Messages[len(calls[0].Messages)-1].Content
	for _, want := range []string{
		"Owner commands", "merge o/r#1",
		"## o/r", "PR #1", "dependency-bot", "bump=patch",
		"Issue #2", "ci-green", "merge_pr o/r#9 ok", "majors need review",
		"Decision hints", "respond issue o/r#2 (score 65)",
		"at most 4 actions",
	} {
		assert.True(t, strings.Contains(prompt, want), "prompt missing %q", want)
	}
}

func TestPlanBlockedYieldsEmptyPlan(t *testing.T) {
	model := llm.NewMockClient(llm.Result{Blocked: true, BlockReason: "safety"})
	plan, err := NewPlanner(model).Plan(context.Background(), Input{MaxActions: 3})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}
