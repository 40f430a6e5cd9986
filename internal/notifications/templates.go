package notifications

import (
	"bytes"
	"fmt"
	"text/template"
)

// EmailData is the data available to email templates.
type EmailData struct {
	SiteName          string
	FirstName         string
	Link              string
	Reason            string
	RetentionHours    int
	TemporaryPassword string
	Email             string
	Signature         string
}

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New(name + "_subject").Parse(subject)),
		body:    template.Must(template.New(name + "_body").Parse(body)),
	}
}

var (
	confirmationTemplate = mustTemplate("confirmation",
		`{{.SiteName}}: Account confirmation.`,
		`Hi {{.FirstName}},

We've received a request for a new account at '{{.SiteName}}' using your email address.

To verify your email, please visit the following web address within the next {{.RetentionHours}} hours:

{{.Link}}

In most email clients, this link should be clickable and will lead you to the confirmation page on our website. If that doesn't work, copy the link and paste it into your web browser.

Please be aware that your access to the website is pending approval from an administrator. Once approved, you will receive an email containing a temporary password. Remember to change this password upon your first login to the platform.

For any additional assistance, feel free to reach out to our Support Team.

Best regards,
{{.Signature}}`)

	welcomeTemplate = mustTemplate("welcome",
		`{{.SiteName}}: Your account is ready.`,
		`Hi {{.FirstName}},

Your registration at '{{.SiteName}}' has been approved.

Username: {{.Email}}
Temporary password: {{.TemporaryPassword}}

Log in at {{.Link}} and change this password on your first login.

Best regards,
{{.Signature}}`)

	rejectionTemplate = mustTemplate("rejection",
		`{{.SiteName}}: Account rejection.`,
		`Hi {{.FirstName}},

We regret to inform you that your registration application has been declined.

Reason for rejection:
{{.Reason}}

Best regards,
{{.Signature}}`)

	editRequestTemplate = mustTemplate("edit_request",
		`{{.SiteName}}: Update your application.`,
		`Hi {{.FirstName}},

We appreciate your interest in our platform. Your registration application is currently pending.

Please update your application by visiting the following link:

{{.Link}}

In most email clients, this link should be clickable and will lead you to the form edit page on our website. If that doesn't work, copy the link and paste it into your web browser.

Reason for update:
{{.Reason}}

Best regards,
{{.Signature}}`)
)

// Rendered is a subject and plain-text body.
type Rendered struct {
	Subject string
	Body    string
}

func (t emailTemplate) render(data EmailData) (Rendered, error) {
	var subj, body bytes.Buffer
	if err := t.subject.Execute(&subj, data); err != nil {
		return Rendered{}, fmt.Errorf("render subject: %w", err)
	}
	if err := t.body.Execute(&body, data); err != nil {
		return Rendered{}, fmt.Errorf("render body: %w", err)
	}
	return Rendered{Subject: subj.String(), Body: body.String()}, nil
}

// RenderConfirmation renders the email carrying the confirmation link.
func RenderConfirmation(data EmailData) (Rendered, error) { return confirmationTemplate.render(data) }

// RenderWelcome renders the email carrying the temporary password of a new account.
func RenderWelcome(data EmailData) (Rendered, error) { return welcomeTemplate.render(data) }

// RenderRejection renders the rejection email; the reason is included verbatim.
func RenderRejection(data EmailData) (Rendered, error) { return rejectionTemplate.render(data) }

// RenderEditRequest renders the email asking the applicant to edit and resubmit.
func RenderEditRequest(data EmailData) (Rendered, error) { return editRequestTemplate.render(data) }

// Tenant administrator notice texts.
const (
	subjectConfirmed = "New user verified"
	bodyConfirmed    = "A user in your tenant, for which you are the administrator, has successfully verified their email address."
	subjectUpdated   = "User updated their registration application"
	bodyUpdated      = "A user in your tenant, for which you are the administrator, has updated their registration application."
)
