package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/charset"
	"github.com/emx-mail/mimecore/pkgs/config"
	"github.com/emx-mail/mimecore/pkgs/mailcap"
	"github.com/emx-mail/mimecore/pkgs/mimeops"
)

const version = "1.0.0"

// app holds global options parsed from the command line
type app struct {
	file    string
	mbox    string
	message uint32
	imap    bool
	folder  string
	rcfile  string
	verbose bool

	logger *slog.Logger
	cfg    *config.Subset
	runner *mimeops.Runner
	prompt *stdioPrompter
}

func main() {
	a := &app{}

	// Global flags
	flag.StringVarP(&a.file, "file", "f", "", "Read the message from a file (- for stdin)")
	flag.StringVar(&a.mbox, "mbox", "", "Read the message from an mbox file")
	flag.Uint32VarP(&a.message, "message", "n", 1, "Message number within the mbox or folder")
	flag.BoolVar(&a.imap, "imap", false, "Fetch the message over IMAP (settings from environment)")
	flag.StringVar(&a.folder, "folder", "INBOX", "IMAP folder containing the message")
	flag.StringVar(&a.rcfile, "rc", "", "Read settings from a YAML rc file")
	flag.BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("attachview v%s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	if cmd == "help" {
		printUsage()
		os.Exit(0)
	}

	if err := a.setup(); err != nil {
		fatal("%v", err)
	}

	ctx, err := a.loadContext()
	if err != nil {
		fatal("%v", err)
	}
	defer func() {
		ctx.Teardown(a.runner.Temps())
		a.runner.Temps().CleanAll()
	}()

	switch cmd {
	case "list":
		if err := handleList(ctx); err != nil {
			fatal("list: %v", err)
		}
	case "view":
		opts := parseViewFlags(cmdArgs)
		if err := a.handleView(ctx, opts); err != nil {
			fatal("view: %v", err)
		}
	case "save":
		opts := parseSaveFlags(cmdArgs)
		if err := a.handleSave(ctx, opts); err != nil {
			fatal("save: %v", err)
		}
	case "pipe":
		opts := parsePipeFlags(cmdArgs)
		if err := a.handlePipe(ctx, opts); err != nil {
			fatal("pipe: %v", err)
		}
	case "print":
		opts := parsePrintFlags(cmdArgs)
		if err := a.handlePrint(ctx, opts); err != nil {
			fatal("print: %v", err)
		}
	case "bounce":
		opts := parseBounceFlags(cmdArgs)
		if err := a.handleBounce(ctx, opts); err != nil {
			fatal("bounce: %v", err)
		}
	default:
		fatal("unknown command '%s'", cmd)
	}
}

// setup builds the configuration scope, the engines and the runner.
func (a *app) setup() error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	sub, err := config.NewDefaultSubset()
	if err != nil {
		return err
	}
	if a.rcfile != "" {
		if err := config.LoadFile(sub, a.rcfile); err != nil {
			return err
		}
	}
	a.cfg = sub

	cs := charset.NewEngine(a.logger)
	mc := mailcap.NewEngine(sub, a.logger)

	prompt := newStdioPrompter()
	a.runner = mimeops.NewRunner(sub, mimeops.Deps{
		Mailcap: mc,
		Charset: cs,
		Pager:   stdoutPager{},
		Prompt:  prompt,
		Msg:     stderrMessenger{},
		Sender:  senderFromEnv(),
		Logger:  a.logger,
	})
	a.prompt = prompt
	return nil
}

// loadContext reads the selected message and builds its attachment index.
func (a *app) loadContext() (*attach.AttachCtx, error) {
	src, err := a.openMessage()
	if err != nil {
		return nil, err
	}

	e, root, err := attach.ParseMessage(src)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	ctx := attach.NewCtx(e, src, a.logger)
	ctx.Generate(e, root, src, "", 0, false, nil)
	ctx.InitCollapse(root, a.cfg.Bool("digest_collapse"))
	ctx.UpdateTree()
	for _, w := range ctx.Warnings {
		fmt.Fprintln(os.Stderr, w)
	}
	return ctx, nil
}

// row maps a 1-based part number from the command line to a virtual row.
func row(ctx *attach.AttachCtx, part uint32) (int, error) {
	if part < 1 || int(part) > ctx.Vcount() {
		return 0, fmt.Errorf("no attachment %d (message has %d)", part, ctx.Vcount())
	}
	return int(part) - 1, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "attachview: "+format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `attachview v%s - MIME attachment tool

Usage:
  attachview [global options] <command> [command options]

Commands:
  list       List the attachment tree of a message
  view       View an attachment (mailcap or builtin pager)
  save       Save an attachment to a file or mailbox
  pipe       Pipe an attachment through a shell command
  print      Print an attachment
  bounce     Bounce (remail) a message part

Message Sources:
  -f, --file <path>      Read an RFC 5322 message from a file (- for stdin)
      --mbox <path>      Read message -n from an mbox file
      --imap             Fetch message -n from --folder over IMAP
  -n, --message <num>    Message number (default: 1)
      --folder <name>    IMAP folder (default: INBOX)

Global Options:
      --rc <path>        YAML rc file with set:/reset: sections
  -v, --verbose          Verbose output
      --version          Show version information

IMAP settings come from ATTACHVIEW_IMAP_HOST, ATTACHVIEW_IMAP_PORT,
ATTACHVIEW_IMAP_USERNAME, ATTACHVIEW_IMAP_PASSWORD and
ATTACHVIEW_IMAP_STARTTLS. Bounce additionally needs ATTACHVIEW_SMTP_* and
ATTACHVIEW_FROM.

View Options:
  -p, --part <num>       Attachment number from 'list' (default: 1)
      --mailcap          Force a mailcap viewer
      --text             Show the decoded content as text

Save Options:
  -p, --part <num>       Attachment number (default: 1)
  -o, --output <path>    Destination file, mailbox or directory

Pipe Options:
  -p, --part <num>       Attachment number (default: 1)
  -c, --command <cmd>    Shell command to pipe into

Print Options:
  -p, --part <num>       Attachment number (default: 1)

Bounce Options:
  -p, --part <num>       Attachment number (default: 1)
      --to <emails>      Recipients (comma-separated)

Examples:
  attachview -f message.eml list
  attachview -f message.eml view -p 2
  attachview --mbox ~/mail/inbox -n 3 save -p 2 -o report.pdf
  attachview --imap -n 12 pipe -p 1 -c 'wc -l'
`, version)
}
