package email

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const mboxTestMessage = "From: Alice <alice@example.com>\r\n" +
	"Subject: saved copy\r\n" +
	"Status: RO\r\n" +
	"X-Status: A\r\n" +
	"\r\n" +
	"kept body\r\n"

func TestAppendToMboxGeneratesSeparator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box")
	e := &Email{Envelope: &Envelope{
		From: []Address{{Email: "alice@example.com"}},
		Date: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
	}}

	require.NoError(t, AppendToMbox(path, e, strings.NewReader(mboxTestMessage)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(data)

	require.True(t, strings.HasPrefix(got, "From alice@example.com "), got)
	require.Contains(t, got, "Subject: saved copy")
	require.Contains(t, got, "kept body")
}

func TestAppendToMboxWeedsStatusHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box")

	require.NoError(t, AppendToMbox(path, nil, strings.NewReader(mboxTestMessage)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(data)

	require.NotContains(t, got, "Status:")
	require.NotContains(t, got, "X-Status:")
	// Without an envelope the separator falls back to the daemon sender.
	require.True(t, strings.HasPrefix(got, "From MAILER-DAEMON "), got)
}

func TestAppendToMboxKeepsExistingMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box")
	seed := "From carol@example.com Tue Mar  3 09:00:00 2026\n" +
		"From: carol@example.com\n" +
		"\n" +
		"first message"
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	e := &Email{Envelope: &Envelope{From: []Address{{Email: "alice@example.com"}}}}
	require.NoError(t, AppendToMbox(path, e, strings.NewReader(mboxTestMessage)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(data)

	// The seed lacked a trailing newline; the new From_ line still starts a
	// fresh line.
	require.Equal(t, 2, strings.Count(got, "\nFrom ")+1)
	require.Contains(t, got, "first message")
	require.Contains(t, got, "kept body")
}

func TestAppendToMboxStatusContinuationDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box")
	raw := "From: a@example.com\r\n" +
		"Status: RO\r\n" +
		"\tfolded-status-line\r\n" +
		"Subject: after\r\n" +
		"\r\n" +
		"body\r\n"

	require.NoError(t, AppendToMbox(path, nil, strings.NewReader(raw)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "folded-status-line")
	require.Contains(t, string(data), "Subject: after")
}
