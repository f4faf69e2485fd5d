package sos

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"
)

// AlertPayload is the message body handed to a notification transport.
type AlertPayload struct {
	// DispatchID correlates the notification with the report.
	DispatchID string
	// UserName is the person who triggered the alert.
	UserName string
	// Location is where the user was.
	Location Coordinate
	// IssuedAt is when the alert was raised.
	IssuedAt time.Time
}

const alertTextTemplate = `EMERGENCY SOS ALERT

{{.UserName}} has activated the emergency SOS feature.

CURRENT LOCATION:
Latitude: {{.Location.Latitude}}
Longitude: {{.Location.Longitude}}
{{- if .Location.City}}
Detected area: {{.Location.City}}
{{- end}}

VIEW LOCATION ON GOOGLE MAPS:
{{.Location.MapsLink}}

TIME OF ALERT: {{.IssuedAt.Format "2006-01-02 15:04:05 MST"}}

Please check on {{.UserName}} immediately and contact local authorities if needed.
`

const alertHTMLTemplate = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #d81b60; text-align: center;">EMERGENCY SOS ALERT</h2>
  <p><strong>{{.UserName}}</strong> has activated the emergency SOS feature.</p>
  <h3 style="color: #d81b60;">CURRENT LOCATION:</h3>
  <p>Latitude: {{.Location.Latitude}}<br>Longitude: {{.Location.Longitude}}</p>
  <p><a href="{{.Location.MapsLink}}">VIEW LOCATION ON GOOGLE MAPS</a></p>
  <p><strong>Time of Alert:</strong> {{.IssuedAt.Format "2006-01-02 15:04:05 MST"}}</p>
  <p><strong>URGENT:</strong> Please check on {{.UserName}} immediately and contact local authorities if needed.</p>
</div>
`

//nolint:gochecknoglobals // Templates are parsed once and are read-only afterwards.
var (
	textTemplate = template.Must(template.New("alert-text").Parse(alertTextTemplate))
	htmlTemplate = htmltemplate.Must(htmltemplate.New("alert-html").Parse(alertHTMLTemplate))
)

// Subject returns the notification subject line.
func (p AlertPayload) Subject() string {
	return fmt.Sprintf("EMERGENCY ALERT: %s needs help!", p.UserName)
}

// Text renders the plain-text body.
func (p AlertPayload) Text() (string, error) {
	var buf bytes.Buffer
	if err := textTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render text body: %w", err)
	}

	return buf.String(), nil
}

// HTML renders the HTML body.
func (p AlertPayload) HTML() (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render html body: %w", err)
	}

	return buf.String(), nil
}
