package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const previewMaxLength = 150

// EmailPreview derives the truncated list preview for a message, preferring
// the plain body and falling back to the stripped HTML body.
func EmailPreview(bodyText, bodyHTML string) string {
	text := strings.TrimSpace(bodyText)
	if text == "" && bodyHTML != "" {
		text = StripHTML(bodyHTML)
	}

	text = strings.Join(strings.Fields(text), " ")
	if len(text) > previewMaxLength {
		text = text[:previewMaxLength] + "..."
	}
	return text
}

// StripHTML extracts the visible text content of an HTML body.
func StripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script,style").Remove()
	return strings.TrimSpace(doc.Text())
}
