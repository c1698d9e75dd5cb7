package mail

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"boardpulse/internal/types"
)

// The bodies below are deliberately plain: transactional notices with one
// clear action link each, rendered locally so the provider only ever sees
// finished HTML.

const deletionWarningHTML = `<html>
<body>
<p>Hi {{.FirstName}},</p>
<p>Your account has been inactive for a while. Unless you sign in again,
your projects and all associated data will be permanently deleted on
<strong>{{.DeleteDate}}</strong>.</p>
<p><a href="{{.LoginURL}}">Sign in to keep your account</a></p>
<p>If you want your data gone, no action is needed.</p>
</body>
</html>`

const mentionHTML = `<html>
<body>
<p>Hi {{.FirstName}},</p>
<p><strong>{{.AuthorName}}</strong> mentioned you in a comment:</p>
<blockquote>{{.CommentText}}</blockquote>
<p><a href="{{.CommentURL}}">View the comment</a></p>
</body>
</html>`

const digestHTML = `<html>
<body>
<p>Hi {{.FirstName}},</p>
<p>Here is what happened in your projects since your last visit:</p>
<ul>
{{range .Entries}}<li><a href="{{.ProjectURL}}">{{.ProjectName}}</a>: {{.Description}} ({{.When}})</li>
{{end}}</ul>
</body>
</html>`

var (
	deletionWarningTmpl = template.Must(template.New("deletion-warning").Parse(deletionWarningHTML))
	mentionTmpl         = template.Must(template.New("mention").Parse(mentionHTML))
	digestTmpl          = template.Must(template.New("digest").Parse(digestHTML))
)

// activityDescriptions maps activity type discriminators to the phrasing used
// in digest emails. Unknown types fall back to a generic line.
var activityDescriptions = map[string]string{
	"CARD_ADDED":    "a card was added",
	"CARD_MOVED":    "a card was moved",
	"CARD_ARCHIVED": "a card was archived",
	"COMMENT_ADDED": "a new comment was posted",
	"MEMBER_JOINED": "a new member joined",
}

func describeActivity(activityType string) string {
	if d, ok := activityDescriptions[activityType]; ok {
		return d
	}
	return "there was new activity"
}

func renderDeletionWarning(baseURL string, recipient types.User, deleteAt time.Time) (subject, body string, err error) {
	var buf strings.Builder
	err = deletionWarningTmpl.Execute(&buf, map[string]any{
		"FirstName":  displayName(recipient),
		"DeleteDate": deleteAt.UTC().Format("January 2, 2006"),
		"LoginURL":   baseURL + "/login",
	})
	if err != nil {
		return "", "", fmt.Errorf("rendering deletion warning: %w", err)
	}
	return "Your account is scheduled for deletion", buf.String(), nil
}

func renderMention(baseURL string, recipient types.User, authorName string, comment types.Comment) (subject, body string, err error) {
	var buf strings.Builder
	err = mentionTmpl.Execute(&buf, map[string]any{
		"FirstName":   displayName(recipient),
		"AuthorName":  authorName,
		"CommentText": comment.Text,
		"CommentURL":  fmt.Sprintf("%s/projects/%s/cards/%s", baseURL, comment.ProjectID, comment.CardID),
	})
	if err != nil {
		return "", "", fmt.Errorf("rendering mention notification: %w", err)
	}
	return fmt.Sprintf("%s mentioned you in a comment", authorName), buf.String(), nil
}

type digestLine struct {
	ProjectName string
	ProjectURL  string
	Description string
	When        string
}

func renderDigest(baseURL string, recipient types.User, entries []types.DigestEntry) (subject, body string, err error) {
	lines := make([]digestLine, len(entries))
	for i, e := range entries {
		lines[i] = digestLine{
			ProjectName: e.ProjectName,
			ProjectURL:  baseURL + "/projects/" + e.ProjectID,
			Description: describeActivity(e.ActivityType),
			When:        e.OccurredAt.UTC().Format("Jan 2 15:04 MST"),
		}
	}
	var buf strings.Builder
	err = digestTmpl.Execute(&buf, map[string]any{
		"FirstName": displayName(recipient),
		"Entries":   lines,
	})
	if err != nil {
		return "", "", fmt.Errorf("rendering activity digest: %w", err)
	}
	return "New activity in your projects", buf.String(), nil
}

func displayName(u types.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return "there"
}
