package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var invitationTmpl = template.Must(template.New("invitation").Parse(`<html><body>
<h2>You're invited to {{.EventName}}</h2>
<p>Hi {{.GuestName}},</p>
{{if .CustomMessage}}<p>{{.CustomMessage}}</p>{{end}}
<p><strong>When:</strong> {{.Date}} at {{.Time}}<br>
<strong>Where:</strong> {{.Location}}</p>
{{if .MapLink}}<p><a href="{{.MapLink}}">View on map</a></p>{{end}}
<p><a href="{{.RSVPLink}}">Respond to this invitation</a></p>
</body></html>`))

type Invitation struct {
	GuestEmail    string
	GuestName     string
	EventName     string
	Date          string
	Time          string
	Location      string
	CustomMessage string
	MapLink       string
	RSVPLink      string
}

func InvitationMessage(inv Invitation) (Message, error) {
	var buf bytes.Buffer
	if err := invitationTmpl.Execute(&buf, inv); err != nil {
		return Message{}, fmt.Errorf("render invitation: %w", err)
	}
	return Message{
		To:      inv.GuestEmail,
		Subject: "Invitation: " + inv.EventName,
		Body:    buf.String(),
		HTML:    true,
	}, nil
}

type CodePurpose string

const (
	PurposeLogin         CodePurpose = "login"
	PurposePasswordReset CodePurpose = "password reset"
)

func CodeMessage(to, code string, purpose CodePurpose, validFor string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your %s code", purpose),
		Body: fmt.Sprintf("Hello!\n\nYour %s code is %s. It is valid for %s.\n"+
			"If you did not request it, ignore this email.", purpose, code, validFor),
	}
}

func AssignmentMessage(to, eventName, serviceType, status string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s booking for %s: %s", serviceType, eventName, status),
		Body: fmt.Sprintf("Hello!\n\nThe %s booking for the event %q is now %s.\n",
			serviceType, eventName, status),
	}
}
