package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
)

func TestDecodeBodyData(t *testing.T) {
	// the API usually returns unpadded base64url
	unpadded := base64.RawURLEncoding.EncodeToString([]byte("hello body"))
	decoded, err := decodeBodyData(unpadded)
	require.NoError(t, err)
	assert.Equal(t, "hello body", string(decoded))

	padded := base64.URLEncoding.EncodeToString([]byte("hello body"))
	decoded, err = decodeBodyData(padded)
	require.NoError(t, err)
	assert.Equal(t, "hello body", string(decoded))

	_, err = decodeBodyData("%%%not-base64%%%")
	assert.Error(t, err)
}

func TestExtractBodies_UnpaddedParts(t *testing.T) {
	payload := &gmailapi.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmailapi.MessagePart{
			{
				MimeType: "text/plain",
				Body:     &gmailapi.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("plain text"))},
			},
			{
				MimeType: "text/html",
				Body:     &gmailapi.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("<p>html</p>"))},
			},
		},
	}

	bodyText, bodyHTML := extractBodies(payload)
	assert.Equal(t, "plain text", bodyText)
	assert.Equal(t, "<p>html</p>", bodyHTML)
}
