package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"
)

// Message is a rendered email with both a plain-text and an HTML body.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender dispatches a message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var (
	textBody = template.Must(template.New("otp.txt").Parse(
		`Hello {{.Name}},

Your {{.Product}} {{.Action}} code is: {{.Code}}

It expires in {{.Minutes}} minutes. If you did not request it, ignore this email.
`))

	htmlBody = htmltemplate.Must(htmltemplate.New("otp.html").Parse(
		`<div style="font-family:sans-serif">
<p>Hello {{.Name}},</p>
<p>Your {{.Product}} {{.Action}} code is:</p>
<h2 style="letter-spacing:4px">{{.Code}}</h2>
<p>It expires in {{.Minutes}} minutes. If you did not request it, ignore this email.</p>
</div>`))
)

// OTPMessage renders the passcode email. action is a short phrase such as
// "verification" or "password reset".
func OTPMessage(to, name, product, action, code string, ttl time.Duration) (Message, error) {
	data := struct {
		Name, Product, Action, Code string
		Minutes                     int
	}{name, product, action, code, int(ttl.Round(time.Minute) / time.Minute)}

	var text, html bytes.Buffer
	if err := textBody.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlBody.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s %s code", product, action),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
