// Package responder generates and posts first-line responses to issues,
// routing code-heavy questions through the code-context builder.
package responder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"caretaker/pkg/codectx"
	"caretaker/pkg/forge"
	"caretaker/pkg/llm"
	"caretaker/pkg/logx"
	"caretaker/pkg/observe"
	"caretaker/pkg/persistence"
)

// codeTerms drives routing: an issue mentioning two or more of these is
// answered with source context, anything else generically.
var codeTerms = []string{
	"function", "method", "class", "struct", "interface", "api",
	"error", "panic", "exception", "crash", "stack trace", "traceback",
	"compile", "build", "test", "import", "dependency", "version",
	"config", "install", "code", "source", "implementation", "bug",
}

// Responder posts issue responses.
type Responder struct {
	forge           forge.API
	store           *persistence.Store
	model           llm.Client
	code            *codectx.Builder
	botUsername     string
	maxIssueAgeHrs  int
	dryRun          bool
	logger          *logx.Logger
}

// NewResponder creates an issue responder.
func NewResponder(api forge.API, store *persistence.Store, model llm.Client, code *codectx.Builder, botUsername string, maxIssueAgeHours int, dryRun bool) *Responder {
	return &Responder{
		forge:          api,
		store:          store,
		model:          model,
		code:           code,
		botUsername:    botUsername,
		maxIssueAgeHrs: maxIssueAgeHours,
		dryRun:         dryRun,
		logger:         logx.NewLogger("responder"),
	}
}

// NeedsCodeContext reports whether the issue text is code-heavy enough to
// warrant source-context assembly: two or more distinct code terms.
func NeedsCodeContext(text string) bool {
	lowered := strings.ToLower(text)
	count := 0
	for _, term := range codeTerms {
		if strings.Contains(lowered, term) {
			count++
			if count >= 2 {
				return true
			}
		}
	}
	return false
}

// Respond generates and posts a response to one issue. Skip conditions
// (already answered, too old) and generation failures are returned as
// errors for the outcome log; nothing here panics.
func (r *Responder) Respond(ctx context.Context, repo string, issue observe.IssueSnapshot) (string, error) {
	responded, err := r.store.HasRespondedToIssue(repo, issue.Number)
	if err != nil {
		return "", err
	}
	if responded || issue.HasResponded {
		return "", fmt.Errorf("already responded to %s#%d", repo, issue.Number)
	}
	if r.maxIssueAgeHrs > 0 && issue.AgeHours > float64(r.maxIssueAgeHrs) {
		return "", fmt.Errorf("issue %s#%d is older than the %dh ceiling", repo, issue.Number, r.maxIssueAgeHrs)
	}

	comments, err := r.forge.ListIssueComments(ctx, repo, issue.Number)
	if err != nil {
		return "", fmt.Errorf("failed to fetch comments: %w", err)
	}

	response, err := r.generate(ctx, repo, issue, comments)
	if err != nil {
		return "", err
	}

	if r.dryRun {
		return fmt.Sprintf("dry-run: would respond to %s#%d (%d chars)", repo, issue.Number, len(response)), nil
	}

	if _, err := r.forge.CreateComment(ctx, repo, issue.Number, response); err != nil {
		return "", fmt.Errorf("failed to post comment: %w", err)
	}
	if err := r.store.RecordPostedComment(repo, issue.Number, contentHash(response)); err != nil {
		return "", fmt.Errorf("posted but failed to record comment: %w", err)
	}

	r.logger.Info("Responded to %s#%d", repo, issue.Number)
	return fmt.Sprintf("responded to %s#%d", repo, issue.Number), nil
}

func (r *Responder) generate(ctx context.Context, repo string, issue observe.IssueSnapshot, comments []forge.Comment) (string, error) {
	question := issue.Title + "\n" + issue.Body

	sourceContext := ""
	if NeedsCodeContext(question) && r.code != nil {
		built, err := r.code.BuildContext(ctx, repo, question)
		if err != nil {
			// Fall back to a generic answer rather than dropping the issue.
			r.logger.Warn("Code context for %s#%d unavailable: %v", repo, issue.Number, err)
		} else {
			sourceContext = built
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a repository maintenance assistant. ", r.botUsername)
	b.WriteString("Write a helpful, concise first response to the issue below. ")
	b.WriteString("Be concrete, admit uncertainty, and never invent repository behavior.\n\n")
	fmt.Fprintf(&b, "Repository: %s\nIssue #%d: %s\n\n%s\n", repo, issue.Number, issue.Title, issue.Body)
	if len(comments) > 0 {
		b.WriteString("\nExisting discussion:\n")
		for _, comment := range comments {
			fmt.Fprintf(&b, "- %s: %s\n", comment.User.Login, truncate(comment.Body, 500))
		}
	}
	if sourceContext != "" {
		b.WriteString("\nRelevant source context:\n")
		b.WriteString(sourceContext)
	}

	result, err := r.model.Chat(ctx, llm.NewRequest([]llm.Message{llm.NewUserMessage(b.String())}, llm.ComplexityMedium))
	if err != nil {
		return "", fmt.Errorf("response generation failed: %w", err)
	}
	if result.Blocked || strings.TrimSpace(result.Content) == "" {
		return "", fmt.Errorf("no response generated for %s#%d", repo, issue.Number)
	}
	return strings.TrimSpace(result.Content), nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
