package mimeops

import (
	"io"
	"strings"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/email"
)

// Op identifies an attachment-menu operation.
type Op int

const (
	OpNull Op = iota
	OpView
	OpViewMailcap
	OpViewText
	OpDisplayHeaders
	OpSave
	OpPipe
	OpPrint
	OpDelete
	OpUndelete
	OpCollapse
	OpEditType
	OpBounce
	OpReply
	OpGroupReply
	OpForward
	OpResend
	OpListSubscribe
	OpListUnsubscribe
	OpComposeToSender
	OpExtractKeys
	OpCheckTraditional
	OpNextEntry
	OpPrevEntry
)

// Selection names the attachment rows an operation acts on.
type Selection struct {
	Ctx       *attach.AttachCtx
	Row       int // virtual row of the cursor
	TagPrefix bool
	Readonly  bool
}

func (sel Selection) current() *attach.AttachPtr {
	return sel.Ctx.Current(sel.Row)
}

func (sel Selection) bodies() []*attach.Body {
	return sel.Ctx.TaggedBodies(sel.Row, sel.TagPrefix)
}

// rawMessage exposes the undecoded bytes of the message a part carries: the
// embedded message for message/rfc822 parts, the whole region otherwise.
func rawMessage(src io.ReaderAt, b *attach.Body) io.Reader {
	if hasAMessage(b) {
		return io.NewSectionReader(src, b.Offset, b.Length)
	}
	return io.NewSectionReader(src, b.HeaderOffset, b.Offset-b.HeaderOffset+b.Length)
}

// Delete marks the selected attachments deleted. Only children of multipart
// containers can be deleted; encrypted messages refuse entirely.
func (r *Runner) Delete(sel Selection) FunctionRetval {
	if sel.Readonly {
		r.msg.Error("Mailbox is read-only")
		return FRError
	}
	e := sel.Ctx.Email
	if e != nil && e.Security&email.SecEncrypt != 0 {
		r.msg.Message("Deletion of attachments from encrypted messages is unsupported")
		return FRError
	}
	if e != nil && e.Security&email.SecSign != 0 {
		r.msg.Message("Deletion of attachments from signed messages may invalidate the signature")
	}

	forSelected(sel.Ctx, sel.Row, sel.TagPrefix, func(ap *attach.AttachPtr) error {
		if strings.EqualFold(ap.ParentType, "multipart") {
			ap.Body.Deleted = true
		} else {
			r.msg.Message("Only deletion of multipart attachments is supported")
		}
		return nil
	})
	return FRSuccess
}

// Undelete clears the deleted mark on the selected attachments.
func (r *Runner) Undelete(sel Selection) FunctionRetval {
	if sel.Readonly {
		r.msg.Error("Mailbox is read-only")
		return FRError
	}
	forSelected(sel.Ctx, sel.Row, sel.TagPrefix, func(ap *attach.AttachPtr) error {
		ap.Body.Deleted = false
		return nil
	})
	return FRSuccess
}

// ToggleCollapse folds or unfolds the container under the cursor.
func (r *Runner) ToggleCollapse(sel Selection) FunctionRetval {
	cur := sel.current()
	if cur == nil {
		return FRNoAction
	}
	if cur.Body.Parts == nil && cur.Body.Nested == nil {
		r.msg.Error("There are no subparts to show")
		return FRNoAction
	}
	sel.Ctx.ToggleCollapse(sel.Row, r.cfg.Bool("digest_collapse"))
	sel.Ctx.UpdateTree()
	return FRSuccess
}

// EditType lets the user rewrite the Content-Type of the current part. The
// edit runs twice: once directly and once through the receive-side path that
// refreshes the index, mirroring longstanding dispatcher behaviour.
func (r *Runner) EditType(sel Selection) FunctionRetval {
	if r.editor == nil {
		return FRNoAction
	}
	cur := sel.current()
	if cur == nil {
		return FRNoAction
	}
	r.editor.EditType(sel.Ctx.Email, cur.Body, cur.Stream)
	return r.recvEditType(sel)
}

func (r *Runner) recvEditType(sel Selection) FunctionRetval {
	cur := sel.current()
	if cur == nil || !r.editor.EditType(sel.Ctx.Email, cur.Body, cur.Stream) {
		return FRNoAction
	}
	sel.Ctx.UpdateTree()
	return FRSuccess
}

// Bounce re-sends the selected message part verbatim to new recipients.
func (r *Runner) Bounce(sel Selection) FunctionRetval {
	if r.sender == nil || r.prompt == nil {
		return FRUnknown
	}
	cur := sel.current()
	if cur == nil || cur.Stream == nil {
		return FRNoAction
	}
	if !hasAMessage(cur.Body) && cur.Level > 0 {
		r.msg.Error("You may only bounce message/rfc822 parts")
		return FRError
	}

	answer, ok := r.prompt.Input("Bounce message to: ", "")
	if !ok || answer == "" {
		return FRNoAction
	}
	var to []email.Address
	for _, addr := range strings.Split(answer, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			to = append(to, email.Address{Email: addr})
		}
	}
	if len(to) == 0 {
		return FRNoAction
	}

	if err := r.sender.Bounce(rawMessage(cur.Stream, cur.Body), to); err != nil {
		r.msg.Error(err.Error())
		return FRError
	}
	r.msg.Message("Message bounced")
	return FRSuccess
}

// Resend feeds the selected message part back into composition.
func (r *Runner) Resend(sel Selection) FunctionRetval {
	if r.sender == nil {
		return FRUnknown
	}
	cur := sel.current()
	if cur == nil || cur.Stream == nil {
		return FRNoAction
	}
	if err := r.sender.Resend(rawMessage(cur.Stream, cur.Body)); err != nil {
		r.msg.Error(err.Error())
		return FRError
	}
	return FRSuccess
}

// Reply starts a reply based on the selected parts.
func (r *Runner) Reply(sel Selection, group bool) FunctionRetval {
	if r.comp == nil {
		return FRUnknown
	}
	if err := r.comp.Reply(sel.Ctx.Email, sel.bodies(), group); err != nil {
		r.msg.Error(err.Error())
		return FRError
	}
	return FRSuccess
}

// Forward forwards the selected parts.
func (r *Runner) Forward(sel Selection) FunctionRetval {
	if r.comp == nil {
		return FRUnknown
	}
	if err := r.comp.Forward(sel.Ctx.Email, sel.bodies()); err != nil {
		r.msg.Error(err.Error())
		return FRError
	}
	return FRSuccess
}

// ComposeToSender starts a fresh message addressed to the sender.
func (r *Runner) ComposeToSender(sel Selection) FunctionRetval {
	if r.comp == nil {
		return FRUnknown
	}
	if err := r.comp.ComposeToSender(sel.Ctx.Email); err != nil {
		r.msg.Error(err.Error())
		return FRError
	}
	return FRSuccess
}

// ListAction subscribes to or unsubscribes from the list the message came
// through.
func (r *Runner) ListAction(sel Selection, subscribe bool) FunctionRetval {
	if r.comp == nil {
		return FRUnknown
	}
	var err error
	if subscribe {
		err = r.comp.ListSubscribe(sel.Ctx.Email)
	} else {
		err = r.comp.ListUnsubscribe(sel.Ctx.Email)
	}
	if err != nil {
		r.msg.Error(err.Error())
		return FRError
	}
	return FRSuccess
}

// ExtractKeys hands the selected parts to the crypto backend for key import.
func (r *Runner) ExtractKeys(sel Selection) FunctionRetval {
	if r.crypto == nil {
		return FRUnknown
	}
	cur := sel.current()
	if cur == nil {
		return FRNoAction
	}
	if err := r.crypto.ExtractKeys(cur.Stream, sel.bodies()); err != nil {
		r.msg.Error(err.Error())
		return FRError
	}
	return FRSuccess
}

// CheckTraditional probes the selected parts for inline PGP.
func (r *Runner) CheckTraditional(sel Selection) FunctionRetval {
	if r.crypto == nil {
		return FRUnknown
	}
	cur := sel.current()
	if cur == nil {
		return FRNoAction
	}
	if r.crypto.CheckTraditional(cur.Stream, sel.bodies()) {
		if sel.Ctx.Email != nil {
			sel.Ctx.Email.Security |= email.AppPGP
		}
		return FRSuccess
	}
	return FRNoAction
}

// Dispatch routes one opcode to its operation. Opcodes this package doesn't
// own come back as FRUnknown so the outer dispatcher can take over.
func (r *Runner) Dispatch(op Op, sel Selection) FunctionRetval {
	switch op {
	case OpView, OpViewMailcap, OpViewText:
		cur := sel.current()
		if cur == nil {
			return FRNoAction
		}
		mode := ViewRegular
		if op == OpViewMailcap {
			mode = ViewMailcap
		} else if op == OpViewText {
			mode = ViewAsText
		}
		if _, err := r.View(cur.Stream, cur.Body, mode, sel.Ctx.Email, sel.Ctx); err != nil {
			r.msg.Error(err.Error())
			return FRError
		}
		return FRSuccess
	case OpSave:
		if err := r.SaveList(sel.Ctx, sel.Row, sel.TagPrefix); err != nil {
			return FRError
		}
		return FRSuccess
	case OpPipe:
		if err := r.PipeList(sel.Ctx, sel.Row, sel.TagPrefix, false); err != nil {
			return FRError
		}
		return FRSuccess
	case OpPrint:
		if err := r.PrintList(sel.Ctx, sel.Row, sel.TagPrefix); err != nil {
			return FRError
		}
		return FRSuccess
	case OpDelete:
		return r.Delete(sel)
	case OpUndelete:
		return r.Undelete(sel)
	case OpCollapse:
		return r.ToggleCollapse(sel)
	case OpEditType:
		return r.EditType(sel)
	case OpBounce:
		return r.Bounce(sel)
	case OpResend:
		return r.Resend(sel)
	case OpReply:
		return r.Reply(sel, false)
	case OpGroupReply:
		return r.Reply(sel, true)
	case OpForward:
		return r.Forward(sel)
	case OpComposeToSender:
		return r.ComposeToSender(sel)
	case OpListSubscribe:
		return r.ListAction(sel, true)
	case OpListUnsubscribe:
		return r.ListAction(sel, false)
	case OpExtractKeys:
		return r.ExtractKeys(sel)
	case OpCheckTraditional:
		return r.CheckTraditional(sel)
	default:
		return FRUnknown
	}
}

// DisplayLoop chains pager-driven operations: viewing an attachment can hand
// back another opcode (next entry, edit type, pipe, ...) which is serviced
// and followed by a redisplay. Returns the first opcode the loop doesn't
// own, plus the final cursor row.
func (r *Runner) DisplayLoop(sel Selection, op Op, recv bool) (Op, int) {
	for {
		switch op {
		case OpDisplayHeaders:
			toggleBool(r, "weed")
			op = OpView
			continue

		case OpView:
			cur := sel.current()
			if cur == nil {
				return OpNull, sel.Row
			}
			if cur.Stream == nil && cur.Body.IsMultipart() {
				// Drill down to the first leaf so something displays.
				leaf := cur.Body.Parts
				for leaf != nil && leaf.Parts != nil {
					leaf = leaf.Parts
				}
				if i := sel.Ctx.IndexOf(leaf); i >= 0 {
					cur = sel.Ctx.Idx[i]
				}
			}
			next, err := r.View(cur.Stream, cur.Body, ViewRegular, sel.Ctx.Email, sel.Ctx)
			if err != nil {
				r.msg.Error(err.Error())
				return OpNull, sel.Row
			}
			op = next

		case OpNextEntry:
			if sel.Row+1 < sel.Ctx.Vcount() {
				sel.Row++
				op = OpView
			} else {
				op = OpNull
			}

		case OpPrevEntry:
			if sel.Row > 0 {
				sel.Row--
				op = OpView
			} else {
				op = OpNull
			}

		case OpEditType:
			r.EditType(sel)
			op = OpView

		case OpPipe, OpPrint, OpSave:
			r.Dispatch(op, sel)
			op = OpView

		case OpCheckTraditional:
			if r.crypto == nil {
				op = OpNull
				continue
			}
			return op, sel.Row

		case OpCollapse:
			if recv {
				return op, sel.Row
			}
			op = OpNull

		default:
			return OpNull, sel.Row
		}

		if op == OpNull {
			return OpNull, sel.Row
		}
	}
}

// toggleBool flips a boolean config variable in place.
func toggleBool(r *Runner, name string) {
	var sb strings.Builder
	if r.cfg.Bool(name) {
		r.cfg.SetString(name, "no", &sb)
	} else {
		r.cfg.SetString(name, "yes", &sb)
	}
}
