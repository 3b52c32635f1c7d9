// Package mimeops drives the user-facing MIME operations: viewing, saving,
// piping and printing attachments, plus the thin dispatchers that hand work
// to send and crypto collaborators. All interaction with the terminal, the
// pager and external processes goes through injectable interfaces so the
// operations can be exercised headless.
package mimeops

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/charset"
	"github.com/emx-mail/mimecore/pkgs/config"
	"github.com/emx-mail/mimecore/pkgs/email"
	"github.com/emx-mail/mimecore/pkgs/mailcap"
)

// FunctionRetval tells the outer dispatcher what an operation did.
type FunctionRetval int

const (
	FRUnknown  FunctionRetval = iota // not ours, delegate to a broader handler
	FRError                          // failed, message already shown
	FRNoAction                       // valid op, nothing to do
	FRSuccess                        // did its thing
	FRContinue                       // stay in the current loop
	FRDone                           // leave the current loop
)

func (fr FunctionRetval) String() string {
	switch fr {
	case FRError:
		return "error"
	case FRNoAction:
		return "no-action"
	case FRSuccess:
		return "success"
	case FRContinue:
		return "continue"
	case FRDone:
		return "done"
	default:
		return "unknown"
	}
}

// PagerFlags adjust how the pager presents a prepared file.
type PagerFlags uint8

const (
	PagerAttachment PagerFlags = 1 << iota
	PagerMessage
	PagerNoWrap
)

// PagerView is everything the pager needs to show one prepared file.
type PagerView struct {
	Banner string
	Path   string
	Flags  PagerFlags
	Body   *attach.Body
	Email  *email.Email
}

// Pager displays a prepared file and returns the keypress-derived opcode the
// caller should continue with (OpNull when none).
type Pager interface {
	Show(view PagerView) (Op, error)
}

// Prompter asks the user questions. Implementations return ok=false when the
// user aborted the prompt.
type Prompter interface {
	// Input asks for a line of text, pre-filled with initial.
	Input(prompt, initial string) (answer string, ok bool)
	// YesNo asks a yes/no question.
	YesNo(prompt string, def bool) (answer bool, ok bool)
	// MultiChoice offers one letter per choice and returns the 1-based
	// selection, or 0 when aborted.
	MultiChoice(prompt, letters string) int
	// AnyKey blocks until a key is pressed.
	AnyKey(msg string)
}

// Messenger shows one-line status and error messages.
type Messenger interface {
	Message(text string)
	Error(text string)
}

// Filter runs external commands.
type Filter interface {
	// Run pipes stdin into the command and copies its stdout to stdout
	// (either side may be nil). Returns the command's exit status.
	Run(command string, stdin io.Reader, stdout io.Writer) (int, error)
	// RunInteractive runs the command attached to the real terminal.
	RunInteractive(command string) (int, error)
}

// Terminal brackets external-program spawns: full-screen mode is torn down
// before and restored after.
type Terminal interface {
	Suspend()
	Resume()
	Columns() int
}

// Sender submits raw messages back to the transport for bounce and resend.
type Sender interface {
	Bounce(raw io.Reader, to []email.Address) error
	Resend(raw io.Reader) error
}

// Composer starts reply-class compose sessions from an attachment selection.
type Composer interface {
	Reply(e *email.Email, bodies []*attach.Body, group bool) error
	Forward(e *email.Email, bodies []*attach.Body) error
	ComposeToSender(e *email.Email) error
	ListSubscribe(e *email.Email) error
	ListUnsubscribe(e *email.Email) error
}

// Crypto covers the key-management dispatchers.
type Crypto interface {
	ExtractKeys(src attach.Stream, bodies []*attach.Body) error
	CheckTraditional(src attach.Stream, bodies []*attach.Body) bool
}

// TypeEditor lets the user rewrite a part's Content-Type line. It returns
// true when the type was changed.
type TypeEditor interface {
	EditType(e *email.Email, b *attach.Body, src attach.Stream) bool
}

// Autocrypt consumes gossip headers found in protected headers.
type Autocrypt interface {
	ProcessGossip(e *email.Email, prot *email.Envelope) error
}

// Deps carries the Runner's engines and collaborators. Mailcap and Charset
// are required; nil collaborators get inert defaults.
type Deps struct {
	Mailcap *mailcap.Engine
	Charset *charset.Engine
	Temps   *attach.TempRegistry

	Pager      Pager
	Prompt     Prompter
	Msg        Messenger
	Filter     Filter
	Term       Terminal
	Sender     Sender
	Composer   Composer
	Crypto     Crypto
	TypeEditor TypeEditor
	Autocrypt  Autocrypt

	Logger *slog.Logger
}

// Runner executes MIME operations against one configuration scope.
type Runner struct {
	cfg    *config.Subset
	mc     *mailcap.Engine
	cs     *charset.Engine
	temps  *attach.TempRegistry
	pager  Pager
	prompt Prompter
	msg    Messenger
	filter Filter
	term   Terminal
	sender Sender
	comp   Composer
	crypto Crypto
	editor TypeEditor
	acrypt Autocrypt
	logger *slog.Logger
}

// NewRunner builds a Runner over cfg with the given collaborators.
func NewRunner(cfg *config.Subset, deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Temps == nil {
		deps.Temps = attach.NewTempRegistry()
	}
	if deps.Msg == nil {
		deps.Msg = slogMessenger{deps.Logger}
	}
	if deps.Filter == nil {
		deps.Filter = ShellFilter{}
	}
	if deps.Term == nil {
		deps.Term = noTerminal{}
	}
	return &Runner{
		cfg:    cfg,
		mc:     deps.Mailcap,
		cs:     deps.Charset,
		temps:  deps.Temps,
		pager:  deps.Pager,
		prompt: deps.Prompt,
		msg:    deps.Msg,
		filter: deps.Filter,
		term:   deps.Term,
		sender: deps.Sender,
		comp:   deps.Composer,
		crypto: deps.Crypto,
		editor: deps.TypeEditor,
		acrypt: deps.Autocrypt,
		logger: deps.Logger,
	}
}

// Temps exposes the temp-file registry so callers can clean up on exit.
func (r *Runner) Temps() *attach.TempRegistry { return r.temps }

// mcBody adapts an attachment to the mailcap engine's view of it.
func mcBody(b *attach.Body, filename string) *mailcap.Body {
	return &mailcap.Body{
		Filename: filename,
		Charset:  b.Charset,
		NoConv:   b.NoConv,
		Param:    b.Parameters.Get,
	}
}

// mktemp reserves a collision-free temp path, optionally keeping the hint's
// extension so external viewers that dispatch on it behave.
func mktemp(hint string) string {
	return mailcap.ExpandFilename("", hint)
}

// waitKey pauses for the user after an external command when the command
// failed or wait_key is set.
func (r *Runner) waitKey(failed bool) {
	if r.prompt == nil {
		return
	}
	if failed || r.cfg.Bool("wait_key") {
		r.prompt.AnyKey("")
	}
}

// exportColumns sets COLUMNS to the window width so line-based renderers
// wrap correctly, and returns a restore func for the previous value.
func (r *Runner) exportColumns() func() {
	old, had := os.LookupEnv("COLUMNS")
	os.Setenv("COLUMNS", strconv.Itoa(r.term.Columns()))
	return func() {
		if had {
			os.Setenv("COLUMNS", old)
		} else {
			os.Unsetenv("COLUMNS")
		}
	}
}

// queryQuad resolves a quad-valued option, prompting only for the ask
// variants. Returns the answer and ok=false on abort.
func (r *Runner) queryQuad(prompt, name string) (bool, bool) {
	q := r.cfg.Quad(name)
	if !q.IsAsk() {
		return q.Default(), true
	}
	if r.prompt == nil {
		return q.Default(), true
	}
	return r.prompt.YesNo(prompt, q.Default())
}

// ShellFilter runs commands through /bin/sh.
type ShellFilter struct{}

func (ShellFilter) Run(command string, stdin io.Reader, stdout io.Writer) (int, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exit, ok := err.(*exec.ExitError); ok {
			return exit.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

func (ShellFilter) RunInteractive(command string) (int, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exit, ok := err.(*exec.ExitError); ok {
			return exit.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

type slogMessenger struct {
	logger *slog.Logger
}

func (m slogMessenger) Message(text string) { m.logger.Info(text) }
func (m slogMessenger) Error(text string)   { m.logger.Error(text) }

type noTerminal struct{}

func (noTerminal) Suspend() {}
func (noTerminal) Resume()  {}
func (noTerminal) Columns() int {
	if s := os.Getenv("COLUMNS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 80
}
