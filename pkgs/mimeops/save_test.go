package mimeops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const messageAttachment = "From: carol@example.com\r\n" +
	"Subject: forwarded\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"ZZ\"\r\n" +
	"\r\n" +
	"--ZZ\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"see attached\r\n" +
	"--ZZ\r\n" +
	"Content-Type: message/rfc822\r\n" +
	"\r\n" +
	"From: dave@example.com\r\n" +
	"Subject: inner note\r\n" +
	"Status: RO\r\n" +
	"X-Status: A\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"inner body\r\n" +
	"--ZZ--\r\n"

func TestSaveAttachmentDecodesBase64(t *testing.T) {
	h := newHarness(t, "")
	ctx, src := buildCtx(t, mixedMessage)

	b := ctx.Idx[2].Body
	require.Equal(t, "data.bin", b.Filename)

	dest := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, h.runner.saveAttachment(src, b, dest, SaveNew))
	require.Equal(t, "hello world", readFile(t, dest))
}

func TestSaveNewRefusesExistingFile(t *testing.T) {
	h := newHarness(t, "")
	ctx, src := buildCtx(t, mixedMessage)
	b := ctx.Idx[2].Body

	dest := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(dest, []byte("precious"), 0o600))

	// The overwrite negotiation happens before the open; a file appearing
	// at the path afterwards must fail the exclusive create, not be
	// truncated.
	err := h.runner.saveAttachment(src, b, dest, SaveNew)
	require.ErrorIs(t, err, os.ErrExist)
	require.Equal(t, "precious", readFile(t, dest))

	require.NoError(t, h.runner.saveAttachment(src, b, dest, SaveOverwrite))
	require.Equal(t, "hello world", readFile(t, dest))
}

func TestSaveMessagePartAppendsToMailbox(t *testing.T) {
	h := newHarness(t, "")
	ctx, src := buildCtx(t, messageAttachment)

	var msgRow int
	for i, ap := range ctx.Idx {
		if ap.Body.IsMessage() {
			msgRow = i
		}
	}
	b := ctx.Idx[msgRow].Body
	require.True(t, hasAMessage(b))

	mbox := filepath.Join(t.TempDir(), "saved")
	seed := "From MAILER-DAEMON Thu Jan  1 10:00:00 2026\n" +
		"From: old@example.com\n" +
		"\n" +
		"old body\n"
	require.NoError(t, os.WriteFile(mbox, []byte(seed), 0o600))

	require.NoError(t, h.runner.saveAttachment(src, b, mbox, SaveAppend))

	got := readFile(t, mbox)
	require.Equal(t, 2, strings.Count(got, "\nFrom ")+1, got)
	require.Contains(t, got, "From: dave@example.com")
	require.Contains(t, got, "inner body")
	require.NotContains(t, got, "Status:")
}

func TestSaveFlowedUnstuffs(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Content-Type: text/plain; format=flowed\r\n" +
		"\r\n" +
		" From the archives\r\n" +
		"plain line\r\n"
	h := newHarness(t, "")
	ctx, src := buildCtx(t, raw)

	dest := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, h.runner.saveFlowedHelper(src, ctx.Idx[0].Body, dest, SaveNew))

	got := readFile(t, dest)
	require.True(t, strings.HasPrefix(got, "From the archives"), got)
	require.Contains(t, got, "plain line")
}

func TestCheckOverwriteExistingFile(t *testing.T) {
	h := newHarness(t, "")
	dest := filepath.Join(t.TempDir(), "exists.txt")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o600))

	h.prompt.choices = []int{2} // append
	opt := SaveNew
	fname, rc := h.runner.checkOverwrite("exists.txt", dest, &opt, nil)
	require.Equal(t, 0, rc)
	require.Equal(t, dest, fname)
	require.Equal(t, SaveAppend, opt)
	require.Contains(t, h.prompt.prompts[0], "File exists, (o)verwrite, (a)ppend, or (c)ancel?")

	h.prompt.choices = []int{3} // cancel back to the filename prompt
	opt = SaveNew
	_, rc = h.runner.checkOverwrite("exists.txt", dest, &opt, nil)
	require.Equal(t, 1, rc)
}

func TestCheckOverwriteDirectory(t *testing.T) {
	h := newHarness(t, "")
	dir := t.TempDir()

	h.prompt.choices = []int{1} // yes, save under it
	h.prompt.inputs = []string{"picked.bin"}
	opt := SaveNew
	fname, rc := h.runner.checkOverwrite("data.bin", dir, &opt, nil)
	require.Equal(t, 0, rc)
	require.Equal(t, filepath.Join(dir, "picked.bin"), fname)

	// "all" remembers the directory for the rest of a bulk save.
	h.prompt.choices = []int{3}
	var remembered string
	opt = SaveNew
	_, rc = h.runner.checkOverwrite("data.bin", dir, &opt, &remembered)
	require.Equal(t, 0, rc)
	require.Equal(t, dir, remembered)
}

func TestSaveListJointAppend(t *testing.T) {
	h := newHarness(t, "")
	h.set(t, "attach_split", "no")
	h.set(t, "attach_sep", "\n")
	ctx, _ := buildCtx(t, mixedMessage)
	tagAll(ctx, true)

	dest := filepath.Join(t.TempDir(), "joint.txt")
	h.prompt.inputs = []string{dest}
	require.NoError(t, h.runner.SaveList(ctx, 0, true))

	require.Equal(t, "first part\r\n\nhello world\n", readFile(t, dest))
	require.Contains(t, h.msg.msgs, "2 attachments saved")
}

func TestSaveListPromptsPerAttachment(t *testing.T) {
	h := newHarness(t, "")
	ctx, _ := buildCtx(t, mixedMessage)

	dest := filepath.Join(t.TempDir(), "part.bin")
	h.prompt.inputs = []string{dest}
	require.NoError(t, h.runner.SaveList(ctx, 2, false))

	require.Equal(t, "hello world", readFile(t, dest))
	require.Contains(t, h.msg.msgs, "Attachment saved")
	require.Contains(t, h.prompt.prompts[0], "Save to file: ")
}

func TestSaveWithoutPrompting(t *testing.T) {
	h := newHarness(t, "")
	dir := t.TempDir()
	h.set(t, "attach_save_without_prompting", "yes")
	h.set(t, "attach_save_dir", dir)
	ctx, _ := buildCtx(t, mixedMessage)

	require.NoError(t, h.runner.SaveList(ctx, 2, false))
	require.Equal(t, "hello world", readFile(t, filepath.Join(dir, "data.bin")))
	require.Empty(t, h.prompt.prompts)
	require.Contains(t, h.msg.msgs, "Attachment saved")
}

func TestSaveAbortedPrompt(t *testing.T) {
	h := newHarness(t, "")
	ctx, _ := buildCtx(t, mixedMessage)

	// No scripted input: the prompt aborts.
	err := h.runner.SaveList(ctx, 2, false)
	require.Error(t, err)
}
