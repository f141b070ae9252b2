package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainMessage = `From: Jordan Reed <j.reed@acme-claims.com>
To: maria.alvarez@example.com
Subject: Re: Claim CLM-2024-118 inspection
Date: Mon, 02 Mar 2025 10:30:00 +0000
Message-ID: <msg-001@acme-claims.com>
In-Reply-To: <msg-000@acme-claims.com>

Hi Maria, following up on the inspection at 1420 Maple Ave.
`

const multipartMessage = `From: Jordan Reed <j.reed@acme-claims.com>
To: maria.alvarez@example.com
Cc: supervisor@acme-claims.com
Subject: Claim documents
Date: Tue, 03 Mar 2025 15:00:00 +0000
Message-ID: <msg-002@acme-claims.com>
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="XBOUND"

--XBOUND
Content-Type: text/plain; charset=utf-8

Please find the estimate attached.
--XBOUND
Content-Type: text/html; charset=utf-8

<p>Please find the estimate attached.</p>
--XBOUND
Content-Type: application/pdf
Content-Disposition: attachment; filename="estimate-CLM-2024-118.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQK
--XBOUND--
`

func TestParseCandidate_PlainText(t *testing.T) {
	candidate, err := ParseCandidate([]byte(plainMessage))
	require.NoError(t, err)

	assert.Equal(t, "msg-001@acme-claims.com", candidate.MessageID)
	assert.Equal(t, "msg-000@acme-claims.com", candidate.ThreadID)
	assert.Equal(t, "Re: Claim CLM-2024-118 inspection", candidate.Subject)
	assert.Equal(t, "Jordan Reed <j.reed@acme-claims.com>", candidate.Headers.From)
	assert.Contains(t, candidate.BodyText, "1420 Maple Ave")
	assert.Contains(t, candidate.Snippet, "following up")
	assert.Len(t, candidate.Checksum, 64)
	assert.Equal(t, time.Date(2025, 3, 2, 10, 30, 0, 0, time.UTC), candidate.OccurredAt)
	assert.Empty(t, candidate.Attachments)
}

func TestParseCandidate_MultipartWithAttachment(t *testing.T) {
	candidate, err := ParseCandidate([]byte(multipartMessage))
	require.NoError(t, err)

	assert.Equal(t, "msg-002@acme-claims.com", candidate.MessageID)
	// No References/In-Reply-To: the thread roots at the message itself.
	assert.Equal(t, "msg-002@acme-claims.com", candidate.ThreadID)
	assert.Contains(t, candidate.BodyText, "estimate attached")
	assert.Contains(t, candidate.BodyHTML, "<p>")
	require.Len(t, candidate.Attachments, 1)
	assert.Equal(t, "estimate-CLM-2024-118.pdf", candidate.Attachments[0].Filename)
	assert.Equal(t, "supervisor@acme-claims.com", candidate.Headers.CC)
}

func TestParseCandidate_ChecksumTracksContent(t *testing.T) {
	a, err := ParseCandidate([]byte(plainMessage))
	require.NoError(t, err)
	b, err := ParseCandidate([]byte(plainMessage))
	require.NoError(t, err)
	c, err := ParseCandidate([]byte(multipartMessage))
	require.NoError(t, err)

	assert.Equal(t, a.Checksum, b.Checksum)
	assert.NotEqual(t, a.Checksum, c.Checksum)
}

func TestParseCandidate_Garbage(t *testing.T) {
	_, err := ParseCandidate([]byte("not an email at all"))
	assert.Error(t, err)
}

func TestMailboxSource_ListCandidates(t *testing.T) {
	root := t.TempDir()
	claimDir := filepath.Join(root, "claim-1")
	require.NoError(t, os.MkdirAll(claimDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(claimDir, "a.eml"), []byte(plainMessage), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(claimDir, "b.eml"), []byte(multipartMessage), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(claimDir, "notes.txt"), []byte("ignored"), 0o644))

	source := NewMailboxSource(root, zerolog.Nop())

	// Window covering only the first message.
	windowStart := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	candidates, err := source.ListCandidates(context.Background(), "claim-1", windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "msg-001@acme-claims.com", candidates[0].MessageID)
	assert.Equal(t, "mailbox", candidates[0].SourceSystem)

	// Wider window picks up both.
	candidates, err = source.ListCandidates(context.Background(), "claim-1",
		windowStart, windowStart.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestMailboxSource_MissingClaimDirectory(t *testing.T) {
	source := NewMailboxSource(t.TempDir(), zerolog.Nop())

	candidates, err := source.ListCandidates(context.Background(), "claim-unknown",
		time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestMailboxSource_SkipsUnparseableFiles(t *testing.T) {
	root := t.TempDir()
	claimDir := filepath.Join(root, "claim-1")
	require.NoError(t, os.MkdirAll(claimDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(claimDir, "bad.eml"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(claimDir, "good.eml"), []byte(plainMessage), 0o644))

	source := NewMailboxSource(root, zerolog.Nop())

	candidates, err := source.ListCandidates(context.Background(), "claim-1",
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}
