package main

import (
	flag "github.com/spf13/pflag"

	"github.com/emx-mail/mimecore/pkgs/attach"
)

type saveFlags struct {
	part   uint32
	output string
}

func parseSaveFlags(args []string) saveFlags {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	var f saveFlags
	fs.Uint32VarP(&f.part, "part", "p", 1, "Attachment number from 'list'")
	fs.StringVarP(&f.output, "output", "o", "", "Destination file, mailbox or directory")
	if err := fs.Parse(args); err != nil {
		fatal("save: %v", err)
	}
	return f
}

func (a *app) handleSave(ctx *attach.AttachCtx, f saveFlags) error {
	v, err := row(ctx, f.part)
	if err != nil {
		return err
	}
	if f.output != "" {
		a.prompt.queue(f.output)
	}
	return a.runner.SaveList(ctx, v, false)
}
