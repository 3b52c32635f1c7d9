package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/emx-mail/mimecore/pkgs/email"
	"github.com/emx-mail/mimecore/pkgs/mimeops"
)

// stdioPrompter answers prompts from the terminal. Command-line flags can
// queue answers so runs stay scriptable.
type stdioPrompter struct {
	in     *bufio.Reader
	queued []string
}

func newStdioPrompter() *stdioPrompter {
	return &stdioPrompter{in: bufio.NewReader(os.Stdin)}
}

// queue pre-answers the next Input prompts.
func (p *stdioPrompter) queue(answers ...string) {
	p.queued = append(p.queued, answers...)
}

func (p *stdioPrompter) Input(prompt, initial string) (string, bool) {
	if len(p.queued) > 0 {
		answer := p.queued[0]
		p.queued = p.queued[1:]
		return answer, true
	}
	if initial != "" {
		fmt.Fprintf(os.Stderr, "%s[%s] ", prompt, initial)
	} else {
		fmt.Fprint(os.Stderr, prompt)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		line = initial
	}
	if line == "" {
		return "", false
	}
	return line, true
}

func (p *stdioPrompter) YesNo(prompt string, def bool) (bool, bool) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(os.Stderr, "%s (%s) ", prompt, hint)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return def, true
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	case "":
		return def, true
	default:
		return def, true
	}
}

func (p *stdioPrompter) MultiChoice(prompt, letters string) int {
	fmt.Fprintf(os.Stderr, "%s [%s] ", prompt, letters)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return 0
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0
	}
	if idx := strings.IndexByte(letters, line[0]); idx >= 0 {
		return idx + 1
	}
	return 0
}

func (p *stdioPrompter) AnyKey(msg string) {
	if msg == "" {
		msg = "Press enter to continue..."
	}
	fmt.Fprint(os.Stderr, msg)
	p.in.ReadString('\n')
}

// stderrMessenger prints status lines where they don't mix with piped output.
type stderrMessenger struct{}

func (stderrMessenger) Message(text string) { fmt.Fprintln(os.Stderr, text) }
func (stderrMessenger) Error(text string)   { fmt.Fprintln(os.Stderr, text) }

// stdoutPager copies the prepared file to stdout under its banner. There is
// no keypress loop, so it never chains into another operation.
type stdoutPager struct{}

func (stdoutPager) Show(view mimeops.PagerView) (mimeops.Op, error) {
	f, err := os.Open(view.Path)
	if err != nil {
		return mimeops.OpNull, err
	}
	defer f.Close()

	if view.Banner != "" {
		fmt.Println(view.Banner)
	}
	if _, err := io.Copy(os.Stdout, f); err != nil {
		return mimeops.OpNull, err
	}
	return mimeops.OpNull, nil
}

// senderFromEnv builds the SMTP sender when the environment carries
// submission settings; bounce is refused otherwise.
func senderFromEnv() mimeops.Sender {
	host := os.Getenv("ATTACHVIEW_SMTP_HOST")
	from := os.Getenv("ATTACHVIEW_FROM")
	if host == "" || from == "" {
		return nil
	}

	port := 465
	if s := os.Getenv("ATTACHVIEW_SMTP_PORT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			port = n
		}
	}
	startTLS := os.Getenv("ATTACHVIEW_SMTP_STARTTLS") != ""

	return email.NewSMTPSender(email.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: os.Getenv("ATTACHVIEW_SMTP_USERNAME"),
		Password: os.Getenv("ATTACHVIEW_SMTP_PASSWORD"),
		SSL:      !startTLS,
		StartTLS: startTLS,
	}, email.Address{Email: from})
}
