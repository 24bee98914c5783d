package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

const statusTextTemplate = `Hello {{.ClientName}},

Your booking #{{.BookingID}} has been updated.

Status: {{upper .Status}}
Carer: {{.CarerName}}
Service: {{.ServiceType}}
{{if .TotalCost}}
Total Cost: {{.TotalCost}}
{{end}}
Thank you,
Reigna Care Team
`

const statusHTMLTemplate = `<h2>Booking Update</h2>
<p>Hello <strong>{{.ClientName}}</strong>,</p>
<p>Your booking #{{.BookingID}} has been updated.</p>
<p><strong>Status:</strong> {{upper .Status}}</p>
<p><strong>Carer:</strong> {{.CarerName}}</p>
<p><strong>Service:</strong> {{.ServiceType}}</p>
{{if .TotalCost}}<p><strong>Total Cost: {{.TotalCost}}</strong></p>{{end}}
<br/>
<p>Thank you,<br/>Reigna Care Team</p>
`

var templateFuncs = map[string]interface{}{"upper": strings.ToUpper}

var (
	statusText = texttemplate.Must(texttemplate.New("status_text").Funcs(texttemplate.FuncMap(templateFuncs)).Parse(statusTextTemplate))
	statusHTML = htmltemplate.Must(htmltemplate.New("status_html").Funcs(htmltemplate.FuncMap(templateFuncs)).Parse(statusHTMLTemplate))
)

// statusEmailData feeds both status templates. TotalCost is empty unless the booking is completed.
type statusEmailData struct {
	BookingID   uint64
	ClientName  string
	CarerName   string
	Status      string
	ServiceType string
	TotalCost   string
}

func statusSubject(status string, admin bool) string {
	if admin {
		return "Booking Update (Admin Action): " + status
	}
	return "Booking Updated: " + strings.ToUpper(status)
}

func renderStatusEmail(data statusEmailData) (text, html string, err error) {
	var tb, hb bytes.Buffer
	if err := statusText.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("failed to render status email text: %w", err)
	}
	if err := statusHTML.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("failed to render status email html: %w", err)
	}
	return tb.String(), hb.String(), nil
}
