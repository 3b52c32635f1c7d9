package attach

import (
	"io"
	"log/slog"
	"strings"

	"github.com/emx-mail/mimecore/pkgs/email"
)

// Tree glyphs used when drawing the attachment hierarchy. The values are a
// private alphabet translated to line-drawing characters at render time.
const (
	TreeLLCorner byte = iota + 1
	TreeULCorner
	TreeLTee
	TreeHLine
	TreeVLine
	TreeSpace
	TreeRArrow
	TreeStar
	TreeHidden
	TreeEquals
	TreeTTee
	TreeBTee
	TreeMissing
)

// Stream is a random-access content source, usually an *os.File.
type Stream interface {
	io.ReaderAt
}

// OwnedStream is a Stream the context opened itself and must close at
// teardown.
type OwnedStream interface {
	io.ReaderAt
	io.Closer
}

// Decrypter turns an encrypted container part into a decrypted body tree plus
// the stream backing it. Implementations shell out to the crypto helpers.
type Decrypter interface {
	// DecryptSMIME handles application/pkcs7-mime envelopes.
	DecryptSMIME(src Stream, b *Body) (*Body, OwnedStream, error)
	// DecryptPGP handles PGP multipart/encrypted containers.
	DecryptPGP(src Stream, b *Body) (*Body, OwnedStream, error)
}

// AttachPtr is one row of the flat attachment index.
type AttachPtr struct {
	Body   *Body
	Stream Stream // effective content source; differs from the root after decryption

	ParentType string // primary type of the enclosing container, "" at the root
	Level      int
	Num        int // virtual row number, assigned by UpdateTree

	Collapsed bool
	Decrypted bool
	Tree      string
}

// AttachCtx is the attachment index over one message. It owns the index rows,
// any streams and body trees produced by decryption, and nothing else: the
// root stream is borrowed.
type AttachCtx struct {
	Email *email.Email
	Root  Stream

	Idx []*AttachPtr
	V2R []int

	fps       []OwnedStream
	bodies    []*Body
	bodyIndex map[*Body]int

	// Warnings collects user-visible messages raised during generation,
	// such as decryption failures.
	Warnings []string

	logger *slog.Logger
}

// NewCtx creates an empty context over a message and its root stream.
func NewCtx(e *email.Email, root Stream, logger *slog.Logger) *AttachCtx {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttachCtx{
		Email:     e,
		Root:      root,
		bodyIndex: make(map[*Body]int),
		logger:    logger,
	}
}

// Vcount is the number of visible rows.
func (ctx *AttachCtx) Vcount() int { return len(ctx.V2R) }

// Current returns the attachment at a virtual row.
func (ctx *AttachCtx) Current(v int) *AttachPtr {
	if v < 0 || v >= len(ctx.V2R) {
		return nil
	}
	return ctx.Idx[ctx.V2R[v]]
}

// IndexOf returns the real index of a body, or -1. The map is rebuilt with
// the index, so it never dangles after a regeneration.
func (ctx *AttachCtx) IndexOf(b *Body) int {
	if i, ok := ctx.bodyIndex[b]; ok {
		return i
	}
	return -1
}

func (ctx *AttachCtx) addAttach(ap *AttachPtr) {
	ctx.bodyIndex[ap.Body] = len(ctx.Idx)
	ctx.Idx = append(ctx.Idx, ap)
}

func (ctx *AttachCtx) addStream(fp OwnedStream) {
	ctx.fps = append(ctx.fps, fp)
}

func (ctx *AttachCtx) addBody(b *Body) {
	ctx.bodies = append(ctx.bodies, b)
}

func (ctx *AttachCtx) warn(msg string) {
	ctx.Warnings = append(ctx.Warnings, msg)
	ctx.logger.Warn(msg)
}

// Generate builds the flat index from the message's body tree, decrypting
// protected containers along the way. Call with the root body, the borrowed
// root stream, parentType "" and level 0.
func (ctx *AttachCtx) Generate(e *email.Email, b *Body, src Stream, parentType string, level int, decrypted bool, dec Decrypter) {
	for bp := b; bp != nil; bp = bp.Next {
		needSecured, secured := false, false
		var newBody *Body
		var fpNew OwnedStream
		var err error

		if dec != nil && bp.IsSMIMEEnvelope() {
			needSecured = true
			newBody, fpNew, err = dec.DecryptSMIME(src, bp)
			secured = err == nil && newBody != nil

			// Failed decryption can still produce an empty text/plain
			// shell. A single top-level text/plain is indistinguishable
			// from that decoy, so only trust it when the original part
			// stood alone.
			if secured && newBody.IsType("text", "plain") && (b != bp || bp.Next != nil) {
				if fpNew != nil {
					fpNew.Close()
				}
				newBody, fpNew = nil, nil
				secured = false
			}
			if secured && bp.smimeEncrypted() {
				e.Security |= email.SMIMEEncrypt
			}
		}

		if dec != nil && bp.IsPGPEncrypted() {
			needSecured = true
			newBody, fpNew, err = dec.DecryptPGP(src, bp)
			secured = err == nil && newBody != nil
			if secured {
				e.Security |= email.PGPEncrypt
			}
		}
		if err != nil {
			ctx.logger.Debug("decrypt failed", "type", bp.ContentType(), "error", err)
		}

		if needSecured && secured {
			ctx.addStream(fpNew)
			ctx.addBody(newBody)
			ctx.Generate(e, newBody, fpNew, parentType, level, true, dec)
			continue
		}
		if needSecured {
			// The still-encrypted part is indexed anyway so its metadata
			// stays inspectable.
			ctx.warn("Can't decrypt encrypted message")
		}

		ap := &AttachPtr{
			Body:       bp,
			Stream:     src,
			ParentType: parentType,
			Level:      level,
			Decrypted:  decrypted,
		}
		ctx.addAttach(ap)

		if bp.IsMessage() && bp.Nested != nil {
			ctx.Generate(bp.Nested, bp.Parts, src, bp.Type, level+1, decrypted, dec)
			e.Security |= bp.Nested.Security
		} else if bp.Parts != nil {
			ctx.Generate(e, bp.Parts, src, bp.Type, level+1, decrypted, dec)
		}
	}
}

// smimeEncrypted reports whether an S/MIME envelope actually encrypts (as
// opposed to only signing) its payload.
func (b *Body) smimeEncrypted() bool {
	sub := strings.ToLower(b.Subtype)
	if sub != "pkcs7-mime" && sub != "x-pkcs7-mime" {
		return false
	}
	return !strings.EqualFold(b.Parameters.Get("smime-type"), "signed-data")
}

// InitCollapse applies the initial collapsed state: with digest_collapse set,
// a digest root collapses everything and inner multipart/digest containers
// collapse themselves. Tag state is cleared.
func (ctx *AttachCtx) InitCollapse(rootBody *Body, digestCollapse bool) {
	digest := rootBody != nil && strings.EqualFold(rootBody.Subtype, "digest")
	for _, ap := range ctx.Idx {
		ap.Body.Tagged = false
		ap.Collapsed = digestCollapse &&
			(digest || (ap.Body.IsMultipart() && strings.EqualFold(ap.Body.Subtype, "digest")))
	}
}

// UpdateV2R recomputes the virtual-to-real map. A collapsed row hides every
// following row whose level is strictly greater, up to its next sibling.
func (ctx *AttachCtx) UpdateV2R() {
	ctx.V2R = ctx.V2R[:0]
	rindex := 0
	for rindex < len(ctx.Idx) {
		ctx.V2R = append(ctx.V2R, rindex)
		if ctx.Idx[rindex].Collapsed {
			curlevel := ctx.Idx[rindex].Level
			rindex++
			for rindex < len(ctx.Idx) && ctx.Idx[rindex].Level > curlevel {
				rindex++
			}
		} else {
			rindex++
		}
	}
}

// UpdateTree recomputes v2r and redraws the tree glyphs, two cells per level.
// The working buffer persists across rows: a row's ancestors' columns are
// rewritten to VLINE or SPACE after the row itself is drawn.
func (ctx *AttachCtx) UpdateTree() {
	ctx.UpdateV2R()

	var buf [256]byte
	curEnd := 0
	for v, r := range ctx.V2R {
		ap := ctx.Idx[r]
		ap.Num = v

		fits := 2*(ap.Level+2) < len(buf)
		if fits {
			if ap.Level > 0 {
				s := 2 * (ap.Level - 1)
				if ap.Body.Next != nil {
					buf[s] = TreeLTee
				} else {
					buf[s] = TreeLLCorner
				}
				buf[s+1] = TreeHLine
				buf[s+2] = TreeRArrow
				curEnd = s + 3
			} else {
				curEnd = 0
			}
		}

		ap.Tree = string(buf[:curEnd])

		if fits && ap.Level > 0 {
			s := 2 * (ap.Level - 1)
			if ap.Body.Next != nil {
				buf[s] = TreeVLine
			} else {
				buf[s] = TreeSpace
			}
			buf[s+1] = TreeSpace
		}
	}
}

// ToggleCollapse flips the collapsed state of the row at virtual index v.
// Expanding cascades to the row's descendants, which all uncollapse except
// multipart/digest containers when digestCollapse is set. The caller must
// refresh the tree afterwards.
func (ctx *AttachCtx) ToggleCollapse(v int, digestCollapse bool) {
	cur := ctx.Current(v)
	if cur == nil {
		return
	}
	cur.Collapsed = !cur.Collapsed
	if cur.Collapsed {
		return
	}

	curlevel := cur.Level
	for rindex := ctx.V2R[v] + 1; rindex < len(ctx.Idx) && ctx.Idx[rindex].Level > curlevel; rindex++ {
		ap := ctx.Idx[rindex]
		ap.Collapsed = digestCollapse && ap.Body.IsMultipart() &&
			strings.EqualFold(ap.Body.Subtype, "digest")
	}
}

// TaggedBodies returns the tagged bodies in index order, or the current row's
// body when none are tagged and v is a valid row.
func (ctx *AttachCtx) TaggedBodies(v int, tagPrefix bool) []*Body {
	if tagPrefix {
		var out []*Body
		for _, ap := range ctx.Idx {
			if ap.Body.Tagged {
				out = append(out, ap.Body)
			}
		}
		return out
	}
	if cur := ctx.Current(v); cur != nil {
		return []*Body{cur.Body}
	}
	return nil
}

// Teardown releases everything the context owns: streams opened during
// decryption are closed, decrypted body trees are walked and their unlink
// temp files removed (and dropped from the registry). The root stream is left
// open.
func (ctx *AttachCtx) Teardown(temps *TempRegistry) {
	for _, fp := range ctx.fps {
		if err := fp.Close(); err != nil {
			ctx.logger.Debug("closing decrypted stream", "error", err)
		}
	}
	ctx.fps = nil

	for _, b := range ctx.bodies {
		removeUnlinkFiles(b, temps)
	}
	ctx.bodies = nil

	ctx.Idx = nil
	ctx.V2R = nil
	ctx.bodyIndex = make(map[*Body]int)
}

func removeUnlinkFiles(b *Body, temps *TempRegistry) {
	for ; b != nil; b = b.Next {
		if b.Unlink && b.Filename != "" {
			if temps != nil {
				temps.Remove(b.Filename)
			} else {
				removeFile(b.Filename)
			}
		}
		if b.Parts != nil {
			removeUnlinkFiles(b.Parts, temps)
		}
	}
}
