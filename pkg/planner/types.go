// Package planner turns the current observation state into a bounded,
// prioritized action list via a language-model call.
package planner

import "sort"

// ActionType enumerates everything the executor knows how to do.
type ActionType string

const (
	ActionMergePR        ActionType = "merge_pr"
	ActionApprovePR      ActionType = "approve_pr"
	ActionReviewPR       ActionType = "review_pr"
	ActionRespondIssue   ActionType = "respond_issue"
	ActionNotifyOwner    ActionType = "notify_owner"
	ActionCommentPR      ActionType = "comment_pr"
	ActionRefreshContext ActionType = "refresh_context"
	ActionSkip           ActionType = "skip"
)

var knownActionTypes = map[ActionType]bool{
	ActionMergePR:        true,
	ActionApprovePR:      true,
	ActionReviewPR:       true,
	ActionRespondIssue:   true,
	ActionNotifyOwner:    true,
	ActionCommentPR:      true,
	ActionRefreshContext: true,
	ActionSkip:           true,
}

// Action is one planned unit of work. Immutable once produced.
type Action struct {
	Type      ActionType        `json:"type"`
	Repo      string            `json:"repo"`
	Number    int               `json:"number"`
	Target    string            `json:"target"`
	Priority  int               `json:"priority"`
	Reasoning string            `json:"reasoning"`
	Params    map[string]string `json:"params,omitempty"`
}

// Plan is the planner's output for one tick. An empty plan is a valid
// result, not an error.
type Plan struct {
	Actions   []Action
	Reasoning string
}

// Empty reports whether the plan contains no actions.
func (p Plan) Empty() bool {
	return len(p.Actions) == 0
}

// normalize drops unknown action types, clamps priorities into [0, 100],
// sorts by priority descending keeping first-seen order for ties, and
// truncates to maxActions.
func normalize(actions []Action, maxActions int) []Action {
	kept := make([]Action, 0, len(actions))
	for _, action := range actions {
		if !knownActionTypes[action.Type] {
			continue
		}
		if action.Priority < 0 {
			action.Priority = 0
		}
		if action.Priority > 100 {
			action.Priority = 100
		}
		kept = append(kept, action)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Priority > kept[j].Priority
	})
	if maxActions > 0 && len(kept) > maxActions {
		kept = kept[:maxActions]
	}
	return kept
}
