package email

import (
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"
)

// InvitationVars are the values available to the invitation templates.
type InvitationVars struct {
	AppName   string
	FirstName string
	FullName  string
	AcceptURL string
	ExpiresAt time.Time
}

var invitationSubject = template.Must(template.New("subject").Parse(
	`You're invited to {{.AppName}}`))

var invitationText = template.Must(template.New("text").Parse(`Hi {{if .FirstName}}{{.FirstName}}{{else}}there{{end}},

You've been invited to join {{.AppName}}. Finish setting up your account here:

{{.AcceptURL}}

This link can be used once and expires {{.ExpiresAt.Format "Mon 2 Jan 2006 15:04 MST"}}.
`))

var invitationHTML = htmltemplate.Must(htmltemplate.New("html").Parse(`<!doctype html>
<html>
<body>
<p>Hi {{if .FirstName}}{{.FirstName}}{{else}}there{{end}},</p>
<p>You've been invited to join {{.AppName}}.</p>
<p><a href="{{.AcceptURL}}">Activate your account</a></p>
<p>This link can be used once and expires {{.ExpiresAt.Format "Mon 2 Jan 2006 15:04 MST"}}.</p>
</body>
</html>
`))

// RenderInvitation builds the invitation email for to.
func RenderInvitation(to string, v InvitationVars) (Message, error) {
	var subject, text, html strings.Builder

	if err := invitationSubject.Execute(&subject, v); err != nil {
		return Message{}, err
	}
	if err := invitationText.Execute(&text, v); err != nil {
		return Message{}, err
	}
	if err := invitationHTML.Execute(&html, v); err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: subject.String(),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
