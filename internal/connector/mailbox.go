package connector

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"claimsync/internal/models"
)

const snippetLength = 200

// MailboxSource reads candidates from a directory of synced .eml files,
// one subdirectory per claim. The mailbox integration that downloads the
// files lives outside this pipeline.
type MailboxSource struct {
	root   string
	logger zerolog.Logger
}

// NewMailboxSource creates a source rooted at dir.
func NewMailboxSource(dir string, logger zerolog.Logger) *MailboxSource {
	return &MailboxSource{root: dir, logger: logger}
}

// ListCandidates parses every .eml file under the claim's directory whose
// date falls inside [windowStart, windowEnd). Files that fail to parse
// are logged and skipped; a broken message must not sink the run.
func (m *MailboxSource) ListCandidates(ctx context.Context, claimID string, windowStart, windowEnd time.Time) ([]models.RawCandidate, error) {
	dir := filepath.Join(m.root, claimID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// No synced mailbox for this claim yet: an empty window, not an error.
		return nil, nil
	}

	var candidates []models.RawCandidate
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".eml") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		candidate, err := ParseCandidateFile(path)
		if err != nil {
			m.logger.Warn().Err(err).Str("path", path).Msg("Skipping unparseable message")
			return nil
		}

		if candidate.OccurredAt.Before(windowStart) || !candidate.OccurredAt.Before(windowEnd) {
			return nil
		}

		candidate.SourceSystem = "mailbox"
		candidates = append(candidates, *candidate)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk mailbox directory: %w", err)
	}

	return candidates, nil
}

// ParseCandidateFile parses a single .eml file into a RawCandidate.
func ParseCandidateFile(filename string) (*models.RawCandidate, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}
	return ParseCandidate(raw)
}

// ParseCandidate parses a raw RFC 822 message. Missing headers and bodies
// degrade to empty strings; only an unreadable envelope is an error.
func ParseCandidate(raw []byte) (*models.RawCandidate, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	header := msg.Header
	sum := sha256.Sum256(raw)

	candidate := &models.RawCandidate{
		MessageID: cleanMessageID(header.Get("Message-ID")),
		Subject:   decodeHeader(header.Get("Subject")),
		Checksum:  hex.EncodeToString(sum[:]),
		Raw:       raw,
		Headers: models.CandidateHeaders{
			From:    header.Get("From"),
			To:      header.Get("To"),
			CC:      header.Get("Cc"),
			Subject: decodeHeader(header.Get("Subject")),
		},
	}

	candidate.ThreadID = threadID(header)

	// Parse date with a now() fallback so a missing Date header still
	// lands the message somewhere on the timeline.
	if dateStr := header.Get("Date"); dateStr != "" {
		if date, err := mail.ParseDate(dateStr); err == nil {
			candidate.OccurredAt = date.UTC()
		}
	}
	if candidate.OccurredAt.IsZero() {
		candidate.OccurredAt = time.Now().UTC()
	}

	text, html, attachments := extractParts(msg)
	candidate.BodyText = text
	candidate.BodyHTML = html
	candidate.Attachments = attachments
	candidate.Snippet = makeSnippet(text)

	return candidate, nil
}

// threadID derives a conversation identifier: the first Message-ID in
// References, else In-Reply-To, else the message's own ID.
func threadID(header mail.Header) string {
	if refs := strings.Fields(header.Get("References")); len(refs) > 0 {
		return cleanMessageID(refs[0])
	}
	if inReplyTo := header.Get("In-Reply-To"); inReplyTo != "" {
		return cleanMessageID(inReplyTo)
	}
	return cleanMessageID(header.Get("Message-ID"))
}

// extractParts pulls the text body, HTML body and attachment filenames
// out of a message, tolerating malformed MIME structure.
func extractParts(msg *mail.Message) (text, html string, attachments []models.CandidateAttachment) {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		body, _ := io.ReadAll(msg.Body)
		return string(body), "", nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		body, _ := io.ReadAll(msg.Body)
		return string(body), "", nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return walkMultipart(msg.Body, params["boundary"], 0)
	}

	content := decodePart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	if strings.HasPrefix(mediaType, "text/html") {
		return "", content, nil
	}
	return content, "", nil
}

// walkMultipart visits each part of a multipart body, recursing one
// level into nested multiparts (common with alternative-inside-mixed).
func walkMultipart(body io.Reader, boundary string, depth int) (text, html string, attachments []models.CandidateAttachment) {
	if boundary == "" || depth > 2 {
		return "", "", nil
	}

	var textParts, htmlParts []string
	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		filename := part.FileName()
		if filename != "" {
			attachments = append(attachments, models.CandidateAttachment{
				Filename: decodeHeader(filename),
			})
			continue
		}

		partType, partParams, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		switch {
		case strings.HasPrefix(partType, "text/plain"):
			textParts = append(textParts, decodePart(part, part.Header.Get("Content-Transfer-Encoding")))
		case strings.HasPrefix(partType, "text/html"):
			htmlParts = append(htmlParts, decodePart(part, part.Header.Get("Content-Transfer-Encoding")))
		case strings.HasPrefix(partType, "multipart/"):
			nestedText, nestedHTML, nestedAttachments := walkMultipart(part, partParams["boundary"], depth+1)
			if nestedText != "" {
				textParts = append(textParts, nestedText)
			}
			if nestedHTML != "" {
				htmlParts = append(htmlParts, nestedHTML)
			}
			attachments = append(attachments, nestedAttachments...)
		}
	}

	return strings.Join(textParts, "\n\n"), strings.Join(htmlParts, "\n\n"), attachments
}

// decodePart reads a body part, handling transfer encoding
func decodePart(body io.Reader, transferEncoding string) string {
	reader := body
	switch strings.ToLower(transferEncoding) {
	case "quoted-printable":
		reader = quotedprintable.NewReader(body)
	case "base64":
		reader = base64.NewDecoder(base64.StdEncoding, body)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return string(content)
}

func makeSnippet(text string) string {
	snippet := strings.Join(strings.Fields(text), " ")
	if len(snippet) > snippetLength {
		snippet = snippet[:snippetLength]
	}
	return snippet
}

// decodeHeader decodes MIME encoded headers
func decodeHeader(header string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// cleanMessageID removes < and > from Message-IDs
func cleanMessageID(msgID string) string {
	msgID = strings.TrimPrefix(msgID, "<")
	msgID = strings.TrimSuffix(msgID, ">")
	return msgID
}
