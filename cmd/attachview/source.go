package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/emersion/go-mbox"

	"github.com/emx-mail/mimecore/pkgs/email"
)

// messageSource is what the parser and the attachment index need from a
// message: seekable for parsing, random access for content extraction.
type messageSource interface {
	io.ReadSeeker
	io.ReaderAt
}

// openMessage resolves the global source flags to one raw message.
func (a *app) openMessage() (messageSource, error) {
	switch {
	case a.imap:
		return a.openIMAP()
	case a.mbox != "":
		return a.openMbox()
	case a.file == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return bytes.NewReader(data), nil
	case a.file != "":
		data, err := os.ReadFile(a.file)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	default:
		return nil, fmt.Errorf("no message source: use --file, --mbox or --imap")
	}
}

// openMbox extracts message number a.message from an mbox file.
func (a *app) openMbox() (messageSource, error) {
	f, err := os.Open(a.mbox)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mr := mbox.NewReader(f)
	for n := uint32(1); ; n++ {
		msg, err := mr.NextMessage()
		if err == io.EOF {
			return nil, fmt.Errorf("mbox %s has no message %d", a.mbox, a.message)
		}
		if err != nil {
			return nil, fmt.Errorf("read mbox %s: %w", a.mbox, err)
		}
		if n != a.message {
			continue
		}
		data, err := io.ReadAll(msg)
		if err != nil {
			return nil, fmt.Errorf("read mbox %s: %w", a.mbox, err)
		}
		return bytes.NewReader(data), nil
	}
}

// openIMAP fetches message a.message from the configured folder.
func (a *app) openIMAP() (messageSource, error) {
	host := os.Getenv("ATTACHVIEW_IMAP_HOST")
	if host == "" {
		return nil, fmt.Errorf("--imap needs ATTACHVIEW_IMAP_HOST")
	}

	port := 993
	if s := os.Getenv("ATTACHVIEW_IMAP_PORT"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid ATTACHVIEW_IMAP_PORT: %s", s)
		}
		port = n
	}
	startTLS := os.Getenv("ATTACHVIEW_IMAP_STARTTLS") != ""

	client := email.NewIMAPClient(email.IMAPConfig{
		Host:     host,
		Port:     port,
		Username: os.Getenv("ATTACHVIEW_IMAP_USERNAME"),
		Password: os.Getenv("ATTACHVIEW_IMAP_PASSWORD"),
		SSL:      !startTLS,
		StartTLS: startTLS,
	})

	raw, err := client.FetchRaw(a.folder, a.message)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}
