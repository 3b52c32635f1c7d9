package mimeops

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/charset"
	"github.com/emx-mail/mimecore/pkgs/config"
	"github.com/emx-mail/mimecore/pkgs/mailcap"
)

// scriptPrompt answers prompts from pre-loaded queues. An exhausted queue
// aborts the prompt so tests fail loudly instead of looping.
type scriptPrompt struct {
	inputs  []string
	yes     []bool
	choices []int

	prompts []string
	anyKeys int
}

func (p *scriptPrompt) Input(prompt, initial string) (string, bool) {
	p.prompts = append(p.prompts, prompt)
	if len(p.inputs) == 0 {
		return "", false
	}
	a := p.inputs[0]
	p.inputs = p.inputs[1:]
	return a, true
}

func (p *scriptPrompt) YesNo(prompt string, def bool) (bool, bool) {
	p.prompts = append(p.prompts, prompt)
	if len(p.yes) == 0 {
		return def, true
	}
	a := p.yes[0]
	p.yes = p.yes[1:]
	return a, true
}

func (p *scriptPrompt) MultiChoice(prompt, letters string) int {
	p.prompts = append(p.prompts, prompt)
	if len(p.choices) == 0 {
		return 0
	}
	a := p.choices[0]
	p.choices = p.choices[1:]
	return a
}

func (p *scriptPrompt) AnyKey(msg string) { p.anyKeys++ }

// recMessenger records every status and error line.
type recMessenger struct {
	msgs []string
	errs []string
}

func (m *recMessenger) Message(text string) { m.msgs = append(m.msgs, text) }
func (m *recMessenger) Error(text string)   { m.errs = append(m.errs, text) }

// recFilter records command invocations. Stdin is drained into stdins; stdout
// receives output when set, otherwise the stdin bytes pass through.
type recFilter struct {
	status int
	output string

	commands    []string
	stdins      []string
	interactive []string
}

func (f *recFilter) Run(command string, stdin io.Reader, stdout io.Writer) (int, error) {
	f.commands = append(f.commands, command)
	var data []byte
	if stdin != nil {
		data, _ = io.ReadAll(stdin)
	}
	f.stdins = append(f.stdins, string(data))
	if stdout != nil {
		if f.output != "" {
			io.WriteString(stdout, f.output)
		} else {
			stdout.Write(data)
		}
	}
	return f.status, nil
}

func (f *recFilter) RunInteractive(command string) (int, error) {
	f.interactive = append(f.interactive, command)
	return f.status, nil
}

// scriptPager records what it was asked to show and replies with queued
// opcodes, OpNull once the queue runs dry. File contents are captured at
// show time since the caller may unlink the file afterwards.
type scriptPager struct {
	views    []PagerView
	contents []string
	ops      []Op
}

func (p *scriptPager) Show(view PagerView) (Op, error) {
	p.views = append(p.views, view)
	data, _ := os.ReadFile(view.Path)
	p.contents = append(p.contents, string(data))
	if len(p.ops) == 0 {
		return OpNull, nil
	}
	op := p.ops[0]
	p.ops = p.ops[1:]
	return op, nil
}

type harness struct {
	cfg    *config.Subset
	runner *Runner
	prompt *scriptPrompt
	msg    *recMessenger
	filter *recFilter
	pager  *scriptPager
}

func (h *harness) set(t *testing.T, name, value string) {
	t.Helper()
	require.True(t, h.cfg.SetString(name, value, nil).IsSuccess(), name)
}

// newHarness builds a Runner over fresh defaults with scripted collaborators.
// mailcapContent, when non-empty, becomes the only mailcap file on the search
// path; otherwise lookups fail with NotFoundError against an empty file.
func newHarness(t *testing.T, mailcapContent string) *harness {
	t.Helper()
	t.Setenv("TMPDIR", t.TempDir())

	cfg, err := config.NewDefaultSubset()
	require.NoError(t, err)

	mcPath := filepath.Join(t.TempDir(), "mailcap")
	require.NoError(t, os.WriteFile(mcPath, []byte(mailcapContent), 0o600))
	require.True(t, cfg.SetString("mailcap_path", mcPath, nil).IsSuccess())
	require.True(t, cfg.SetString("wait_key", "no", nil).IsSuccess())

	h := &harness{
		cfg:    cfg,
		prompt: &scriptPrompt{},
		msg:    &recMessenger{},
		filter: &recFilter{},
		pager:  &scriptPager{},
	}
	h.runner = NewRunner(cfg, Deps{
		Mailcap: mailcap.NewEngine(cfg, nil),
		Charset: charset.NewEngine(nil),
		Pager:   h.pager,
		Prompt:  h.prompt,
		Msg:     h.msg,
		Filter:  h.filter,
	})
	return h
}

// buildCtx parses a raw message and assembles its attachment index.
func buildCtx(t *testing.T, raw string) (*attach.AttachCtx, *bytes.Reader) {
	t.Helper()
	r := bytes.NewReader([]byte(raw))
	e, root, err := attach.ParseMessage(r)
	require.NoError(t, err)
	ctx := attach.NewCtx(e, r, nil)
	ctx.Generate(e, root, r, "", 0, false, nil)
	ctx.InitCollapse(root, false)
	ctx.UpdateTree()
	return ctx, r
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

const plainMessage = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: greetings\r\n" +
	"Message-Id: <p1@example.com>\r\n" +
	"Content-Type: text/plain; charset=us-ascii\r\n" +
	"\r\n" +
	"plain body\r\n"

const mixedMessage = "From: carol@example.com\r\n" +
	"Subject: two parts\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"MM\"\r\n" +
	"\r\n" +
	"--MM\r\n" +
	"Content-Type: text/plain; charset=us-ascii\r\n" +
	"\r\n" +
	"first part\r\n" +
	"--MM\r\n" +
	"Content-Type: application/octet-stream; name=\"data.bin\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"Content-Disposition: attachment; filename=\"data.bin\"\r\n" +
	"\r\n" +
	"aGVsbG8gd29ybGQ=\r\n" +
	"--MM--\r\n"

const corruptBase64Message = "From: carol@example.com\r\n" +
	"Subject: bad data\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"MM\"\r\n" +
	"\r\n" +
	"--MM\r\n" +
	"Content-Type: text/plain; charset=us-ascii\r\n" +
	"\r\n" +
	"first part\r\n" +
	"--MM\r\n" +
	"Content-Type: application/octet-stream; name=\"data.bin\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"Content-Disposition: attachment; filename=\"data.bin\"\r\n" +
	"\r\n" +
	"!!!not/base64!!!\r\n" +
	"--MM--\r\n"

// tagAll marks every leaf row tagged so tag-prefix operations cover them.
func tagAll(ctx *attach.AttachCtx, leafOnly bool) {
	for _, ap := range ctx.Idx {
		if leafOnly && (ap.Body.IsMultipart() || ap.Body.IsMessage()) {
			continue
		}
		ap.Body.Tagged = true
	}
}
