package main

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/emx-mail/mimecore/pkgs/attach"
)

type pipeFlags struct {
	part    uint32
	command string
}

func parsePipeFlags(args []string) pipeFlags {
	fs := flag.NewFlagSet("pipe", flag.ExitOnError)
	var f pipeFlags
	fs.Uint32VarP(&f.part, "part", "p", 1, "Attachment number from 'list'")
	fs.StringVarP(&f.command, "command", "c", "", "Shell command to pipe into")
	if err := fs.Parse(args); err != nil {
		fatal("pipe: %v", err)
	}
	return f
}

func (a *app) handlePipe(ctx *attach.AttachCtx, f pipeFlags) error {
	if f.command == "" {
		return fmt.Errorf("--command is required")
	}
	v, err := row(ctx, f.part)
	if err != nil {
		return err
	}
	a.prompt.queue(f.command)
	return a.runner.PipeList(ctx, v, false, false)
}
