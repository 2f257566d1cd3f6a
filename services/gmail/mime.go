package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"
)

type mimeAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type outgoingMessage struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	BodyText    string
	BodyHTML    string
	MessageID   string
	InReplyTo   string
	References  []string
	Attachments []mimeAttachment
}

// buildMIMEMessage assembles the raw RFC 2822 message transmitted through the
// Gmail API. Plain and HTML bodies go into a multipart/alternative part;
// attachments wrap everything in multipart/mixed.
func buildMIMEMessage(msg outgoingMessage) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, "From", msg.From)
	writeHeader(&buf, "To", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		writeHeader(&buf, "Cc", strings.Join(msg.Cc, ", "))
	}
	if len(msg.Bcc) > 0 {
		writeHeader(&buf, "Bcc", strings.Join(msg.Bcc, ", "))
	}
	writeHeader(&buf, "Subject", msg.Subject)
	writeHeader(&buf, "Date", time.Now().UTC().Format(time.RFC1123Z))
	if msg.MessageID != "" {
		writeHeader(&buf, "Message-ID", msg.MessageID)
	}
	if msg.InReplyTo != "" {
		writeHeader(&buf, "In-Reply-To", msg.InReplyTo)
	}
	if len(msg.References) > 0 {
		writeHeader(&buf, "References", strings.Join(msg.References, " "))
	}
	writeHeader(&buf, "MIME-Version", "1.0")

	bodyHeader, bodyContent, err := buildBodyPart(msg)
	if err != nil {
		return nil, err
	}

	if len(msg.Attachments) == 0 {
		writeHeader(&buf, "Content-Type", bodyHeader.Get("Content-Type"))
		buf.WriteString("\r\n")
		buf.Write(bodyContent)
		return buf.Bytes(), nil
	}

	mixed := multipart.NewWriter(&buf)
	writeHeader(&buf, "Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", mixed.Boundary()))
	buf.WriteString("\r\n")

	bodyPart, err := mixed.CreatePart(bodyHeader)
	if err != nil {
		return nil, err
	}
	if _, err := bodyPart.Write(bodyContent); err != nil {
		return nil, err
	}

	for _, attachment := range msg.Attachments {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", attachment.ContentType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.Filename))

		part, err := mixed.CreatePart(header)
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(attachment.Content)
		if err := writeWrapped(part, encoded); err != nil {
			return nil, err
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// buildBodyPart returns the content-type header and bytes for the message
// body, independent of whether attachments will wrap it.
func buildBodyPart(msg outgoingMessage) (textproto.MIMEHeader, []byte, error) {
	header := textproto.MIMEHeader{}

	switch {
	case msg.BodyHTML != "" && msg.BodyText != "":
		var body bytes.Buffer
		alternative := multipart.NewWriter(&body)
		header.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", alternative.Boundary()))

		textPart, err := alternative.CreatePart(textproto.MIMEHeader{
			"Content-Type": []string{"text/plain; charset=UTF-8"},
		})
		if err != nil {
			return nil, nil, err
		}
		fmt.Fprintf(textPart, "%s\r\n", msg.BodyText)

		htmlPart, err := alternative.CreatePart(textproto.MIMEHeader{
			"Content-Type": []string{"text/html; charset=UTF-8"},
		})
		if err != nil {
			return nil, nil, err
		}
		fmt.Fprintf(htmlPart, "%s\r\n", msg.BodyHTML)

		if err := alternative.Close(); err != nil {
			return nil, nil, err
		}
		return header, body.Bytes(), nil

	case msg.BodyHTML != "":
		header.Set("Content-Type", "text/html; charset=UTF-8")
		return header, []byte(msg.BodyHTML + "\r\n"), nil

	default:
		header.Set("Content-Type", "text/plain; charset=UTF-8")
		return header, []byte(msg.BodyText + "\r\n"), nil
	}
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	fmt.Fprintf(buf, "%s: %s\r\n", key, value)
}

// writeWrapped emits base64 content at 76 characters per line per RFC 2045.
func writeWrapped(w io.Writer, encoded string) error {
	const lineLength = 76
	for len(encoded) > 0 {
		chunk := encoded
		if len(chunk) > lineLength {
			chunk = encoded[:lineLength]
		}
		if _, err := io.WriteString(w, chunk+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[len(chunk):]
	}
	return nil
}
