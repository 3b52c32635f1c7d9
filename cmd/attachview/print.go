package main

import (
	flag "github.com/spf13/pflag"

	"github.com/emx-mail/mimecore/pkgs/attach"
)

type printFlags struct {
	part uint32
}

func parsePrintFlags(args []string) printFlags {
	fs := flag.NewFlagSet("print", flag.ExitOnError)
	var f printFlags
	fs.Uint32VarP(&f.part, "part", "p", 1, "Attachment number from 'list'")
	if err := fs.Parse(args); err != nil {
		fatal("print: %v", err)
	}
	return f
}

func (a *app) handlePrint(ctx *attach.AttachCtx, f printFlags) error {
	v, err := row(ctx, f.part)
	if err != nil {
		return err
	}
	return a.runner.PrintList(ctx, v, false)
}
