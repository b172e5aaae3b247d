package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderOfferReceived(t *testing.T) {
	subject, body, err := Render(TemplateOfferReceived, map[string]interface{}{
		"SenderName":      "Karel",
		"ListingName":     "Target Agora A30",
		"ListingURL":      "https://sipkoviste.cz/listing/0123456789",
		"Amount":          "500",
		"Currency":        "CZK",
		"ConversationURL": "https://sipkoviste.cz/messages",
	})
	require.NoError(t, err)
	assert.Equal(t, `Offer of 500 CZK for "Target Agora A30"`, subject)
	assert.Contains(t, body, "Karel offered")
	assert.Contains(t, body, "500 CZK")
}

func TestRenderEscapesHTML(t *testing.T) {
	_, body, err := Render(TemplateQuestionReceived, map[string]interface{}{
		"SenderName":      "<script>alert(1)</script>",
		"ListingName":     "Boards",
		"ListingURL":      "https://sipkoviste.cz/listing/x",
		"Body":            "is it <b>new</b>?",
		"ConversationURL": "https://sipkoviste.cz/messages",
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, err := Render("no_such_template", nil)
	assert.Error(t, err)
}

func TestRenderReviewReceivedWithoutListing(t *testing.T) {
	subject, body, err := Render(TemplateReviewReceived, map[string]interface{}{
		"SenderName": "Jana",
		"Rating":     4,
		"ProfileURL": "https://sipkoviste.cz/profile",
	})
	require.NoError(t, err)
	assert.Equal(t, "Jana rated you 4/5", subject)
	assert.NotContains(t, body, `for ""`)
}

func TestBuildRawMessage(t *testing.T) {
	raw := string(BuildRawMessage("noreply@sipkoviste.cz", "user@example.com", "Hello", "<p>Hi</p>"))
	assert.True(t, strings.HasPrefix(raw, "From: noreply@sipkoviste.cz\r\n"))
	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.Contains(t, raw, "Content-Type: text/html")
	assert.Contains(t, raw, "<p>Hi</p>")
}
