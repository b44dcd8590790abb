package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <h2>Hello {{.Name}},</h2>
  <p>You have successfully registered for <strong>{{.EventName}}</strong>.</p>
  {{- if .OrderCompleteText}}
  <p>{{.OrderCompleteText}}</p>
  {{- end}}
  <p>Your reference number is <code>{{.ReferenceID}}</code>.</p>
</body>
</html>
`))

// Confirmation holds what the registration confirmation e-mail shows.
type Confirmation struct {
	To                string
	Name              string
	EventName         string
	OrderCompleteText string
	ReferenceID       string
}

// ConfirmationMessage renders the registration confirmation e-mail.
func ConfirmationMessage(c Confirmation) (Message, error) {
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, c); err != nil {
		return Message{}, err
	}
	return Message{
		To:      c.To,
		Subject: fmt.Sprintf("Hello %s, you have successfully registered with us!", c.Name),
		HTML:    buf.String(),
	}, nil
}

// ReportMessage wraps an attendee CSV export.
func ReportMessage(to, eventID string, csv []byte) Message {
	return Message{
		To:      to,
		Subject: "This is your generated report",
		Text:    "Please find the attached CSV report.",
		Attachments: []Attachment{{
			Filename: fmt.Sprintf("report%s.csv", eventID),
			Type:     "text/csv",
			Content:  csv,
		}},
	}
}
