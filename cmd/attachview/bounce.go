package main

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/mimeops"
)

type bounceFlags struct {
	part uint32
	to   string
}

func parseBounceFlags(args []string) bounceFlags {
	fs := flag.NewFlagSet("bounce", flag.ExitOnError)
	var f bounceFlags
	fs.Uint32VarP(&f.part, "part", "p", 1, "Attachment number from 'list'")
	fs.StringVar(&f.to, "to", "", "Recipients (comma-separated)")
	if err := fs.Parse(args); err != nil {
		fatal("bounce: %v", err)
	}
	return f
}

func (a *app) handleBounce(ctx *attach.AttachCtx, f bounceFlags) error {
	v, err := row(ctx, f.part)
	if err != nil {
		return err
	}
	if f.to != "" {
		a.prompt.queue(f.to)
	}

	switch a.runner.Bounce(mimeops.Selection{Ctx: ctx, Row: v}) {
	case mimeops.FRUnknown:
		return fmt.Errorf("bounce needs ATTACHVIEW_SMTP_HOST and ATTACHVIEW_FROM")
	case mimeops.FRError:
		return fmt.Errorf("message not bounced")
	default:
		return nil
	}
}
