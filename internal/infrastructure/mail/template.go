package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"
)

const codeSubject = "Your AuraChat sign-in code"

var codeText = template.Must(template.New("code.txt").Parse(
	`Your AuraChat sign-in code is {{.Code}}

It expires in {{.Minutes}} minutes. If you didn't request it, you can ignore this email.
`))

var codeHTML = htmltemplate.Must(htmltemplate.New("code.html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Segoe UI, Roboto, sans-serif; color: #1f2328;">
  <p>Your AuraChat sign-in code is</p>
  <p style="font-size: 28px; font-weight: 600; letter-spacing: 6px;">{{.Code}}</p>
  <p>It expires in {{.Minutes}} minutes. If you didn't request it, you can ignore this email.</p>
</body>
</html>
`))

type codeData struct {
	Code    string
	Minutes int
}

// CodeMessage renders the sign-in code email for to.
func CodeMessage(to, code string, ttl time.Duration) (Message, error) {
	data := codeData{Code: code, Minutes: int(ttl.Round(time.Minute) / time.Minute)}
	if data.Minutes < 1 {
		data.Minutes = 1
	}

	var text, html bytes.Buffer
	if err := codeText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}
	if err := codeHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}
	return Message{To: to, Subject: codeSubject, Text: text.String(), HTML: html.String()}, nil
}
