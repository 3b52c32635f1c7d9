package main

import (
	flag "github.com/spf13/pflag"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/mimeops"
)

type viewFlags struct {
	part    uint32
	mailcap bool
	text    bool
}

func parseViewFlags(args []string) viewFlags {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	var f viewFlags
	fs.Uint32VarP(&f.part, "part", "p", 1, "Attachment number from 'list'")
	fs.BoolVar(&f.mailcap, "mailcap", false, "Force a mailcap viewer")
	fs.BoolVar(&f.text, "text", false, "Show the decoded content as text")
	if err := fs.Parse(args); err != nil {
		fatal("view: %v", err)
	}
	return f
}

func (a *app) handleView(ctx *attach.AttachCtx, f viewFlags) error {
	v, err := row(ctx, f.part)
	if err != nil {
		return err
	}
	ap := ctx.Current(v)

	mode := mimeops.ViewRegular
	switch {
	case f.mailcap:
		mode = mimeops.ViewMailcap
	case f.text:
		mode = mimeops.ViewAsText
	}

	_, err = a.runner.View(ap.Stream, ap.Body, mode, ctx.Email, ctx)
	return err
}
