package mimeops

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrintPlainTextThroughPrintCommand(t *testing.T) {
	h := newHarness(t, "")
	h.set(t, "print", "yes")
	h.set(t, "print_command", "lpr -P office")
	ctx, _ := buildCtx(t, plainMessage)

	require.NoError(t, h.runner.PrintList(ctx, 0, false))

	require.Equal(t, []string{"lpr -P office"}, h.filter.commands)
	require.Equal(t, "plain body\r\n", h.filter.stdins[0])
}

func TestPrintQuadPromptDeclined(t *testing.T) {
	h := newHarness(t, "")
	ctx, _ := buildCtx(t, plainMessage)

	// The default quad is ask-no; an unscripted prompt takes the default.
	require.NoError(t, h.runner.PrintList(ctx, 0, false))
	require.Empty(t, h.filter.commands)
	require.Contains(t, h.prompt.prompts, "Print attachment?")
}

func TestPrintMailcapEntry(t *testing.T) {
	h := newHarness(t, "application/pdf; view %s; print=pr %s\n")
	h.set(t, "print", "yes")

	raw := "From: a@example.com\r\n" +
		"Content-Type: multipart/mixed; boundary=\"PP\"\r\n" +
		"\r\n" +
		"--PP\r\n" +
		"Content-Type: application/pdf; name=\"doc.pdf\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"aGVsbG8=\r\n" +
		"--PP--\r\n"
	ctx, _ := buildCtx(t, raw)

	require.NoError(t, h.runner.PrintList(ctx, 1, false))

	require.Len(t, h.filter.interactive, 1)
	require.True(t, strings.HasPrefix(h.filter.interactive[0], "pr '"), h.filter.interactive[0])
	require.Empty(t, h.filter.commands)
}

func TestPrintUnknownTypeRefused(t *testing.T) {
	h := newHarness(t, "")
	h.set(t, "print", "yes")
	ctx, _ := buildCtx(t, mixedMessage)

	err := h.runner.PrintList(ctx, 2, false)
	require.Error(t, err)
	require.Contains(t, h.msg.errs, "I don't know how to print application/octet-stream attachments")
	require.Empty(t, h.filter.commands)
}

func TestPrintJointMixesDirectAndDecoded(t *testing.T) {
	h := newHarness(t, "")
	h.set(t, "print", "yes")
	h.set(t, "attach_split", "no")
	h.set(t, "attach_sep", "\n")

	raw := "From: a@example.com\r\n" +
		"Content-Type: multipart/mixed; boundary=\"JJ\"\r\n" +
		"\r\n" +
		"--JJ\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"page one\r\n" +
		"--JJ\r\n" +
		"Content-Type: text/x-diff\r\n" +
		"\r\n" +
		"-old\r\n" +
		"+new\r\n" +
		"--JJ--\r\n"
	ctx, _ := buildCtx(t, raw)
	tagAll(ctx, true)

	require.NoError(t, h.runner.PrintList(ctx, 0, true))

	require.Equal(t, []string{"lpr"}, h.filter.commands)
	got := h.filter.stdins[0]
	require.Contains(t, got, "page one")
	require.Contains(t, got, "+new")
	require.Contains(t, h.prompt.prompts, "Print tagged attachments?")
}
