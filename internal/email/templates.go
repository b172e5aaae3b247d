package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// Template IDs for the notification emails the workflow sends.
const (
	TemplateQuestionReceived = "question_received"
	TemplateBuyIntent        = "buy_intent"
	TemplateOfferReceived    = "offer_received"
	TemplateCounterOffer     = "counter_offer"
	TemplateOfferAccepted    = "offer_accepted"
	TemplateOfferRejected    = "offer_rejected"
	TemplateSaleConfirmed    = "sale_confirmed"
	TemplateReviewReceived   = "review_received"
)

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(id, subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New(id + ":subject").Parse(subject)),
		body:    template.Must(template.New(id + ":body").Parse(body)),
	}
}

// The templates expect these data keys (all strings unless noted):
// SenderName, ListingName, ListingURL, Amount, Currency, Rating (int),
// ConversationURL.
var templates = map[string]emailTemplate{
	TemplateQuestionReceived: mustTemplate(TemplateQuestionReceived,
		`New question about "{{.ListingName}}"`,
		`<p>{{.SenderName}} asked a question about <a href="{{.ListingURL}}">{{.ListingName}}</a>:</p>
<blockquote>{{.Body}}</blockquote>
<p><a href="{{.ConversationURL}}">Reply in your messages</a></p>`),
	TemplateBuyIntent: mustTemplate(TemplateBuyIntent,
		`{{.SenderName}} wants to buy "{{.ListingName}}"`,
		`<p>{{.SenderName}} wants to buy <a href="{{.ListingURL}}">{{.ListingName}}</a>.</p>
<p>Confirm the sale from <a href="{{.ConversationURL}}">your messages</a> once you agree on the handover.</p>`),
	TemplateOfferReceived: mustTemplate(TemplateOfferReceived,
		`Offer of {{.Amount}} {{.Currency}} for "{{.ListingName}}"`,
		`<p>{{.SenderName}} offered <strong>{{.Amount}} {{.Currency}}</strong> for <a href="{{.ListingURL}}">{{.ListingName}}</a>.</p>
<p><a href="{{.ConversationURL}}">Accept, reject or counter the offer</a></p>`),
	TemplateCounterOffer: mustTemplate(TemplateCounterOffer,
		`Counter-offer of {{.Amount}} {{.Currency}} for "{{.ListingName}}"`,
		`<p>{{.SenderName}} countered with <strong>{{.Amount}} {{.Currency}}</strong> for <a href="{{.ListingURL}}">{{.ListingName}}</a>.</p>
<p><a href="{{.ConversationURL}}">Respond to the counter-offer</a></p>`),
	TemplateOfferAccepted: mustTemplate(TemplateOfferAccepted,
		`Your offer for "{{.ListingName}}" was accepted`,
		`<p>{{.SenderName}} accepted your offer of <strong>{{.Amount}} {{.Currency}}</strong> for <a href="{{.ListingURL}}">{{.ListingName}}</a>.</p>
<p><a href="{{.ConversationURL}}">Arrange the handover</a></p>`),
	TemplateOfferRejected: mustTemplate(TemplateOfferRejected,
		`Your offer for "{{.ListingName}}" was declined`,
		`<p>{{.SenderName}} declined your offer of <strong>{{.Amount}} {{.Currency}}</strong> for <a href="{{.ListingURL}}">{{.ListingName}}</a>.</p>
<p>You can send a new offer from <a href="{{.ConversationURL}}">your messages</a>.</p>`),
	TemplateSaleConfirmed: mustTemplate(TemplateSaleConfirmed,
		`Sale confirmed: "{{.ListingName}}"`,
		`<p>The sale of <a href="{{.ListingURL}}">{{.ListingName}}</a> is confirmed.</p>
<p>Once the handover is done you can rate each other from <a href="{{.ConversationURL}}">your messages</a>.</p>`),
	TemplateReviewReceived: mustTemplate(TemplateReviewReceived,
		`{{.SenderName}} rated you {{.Rating}}/5`,
		`<p>{{.SenderName}} left you a {{.Rating}}/5 rating{{if .ListingName}} for "{{.ListingName}}"{{end}}.</p>
<p><a href="{{.ProfileURL}}">See your profile</a></p>`),
}

// Render produces the subject and HTML body for a template ID.
func Render(templateID string, data map[string]interface{}) (subject, body string, err error) {
	tmpl, ok := templates[templateID]
	if !ok {
		return "", "", fmt.Errorf("unknown email template: %s", templateID)
	}

	var subjBuf, bodyBuf bytes.Buffer
	if err := tmpl.subject.Execute(&subjBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render subject for %s: %w", templateID, err)
	}
	if err := tmpl.body.Execute(&bodyBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render body for %s: %w", templateID, err)
	}
	return subjBuf.String(), bodyBuf.String(), nil
}

// BuildRawMessage assembles a full MIME message with HTML body.
func BuildRawMessage(from, to, subject, htmlBody string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(htmlBody)
	buf.WriteString("\r\n")
	return buf.Bytes()
}
