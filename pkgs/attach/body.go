// Package attach models a message's MIME tree and the flat attachment index
// built over it: parsing parts with their byte offsets, decoding content,
// decrypting protected containers, and maintaining the collapsed/virtual view
// the attachment menu displays.
package attach

import (
	"strings"

	"github.com/emx-mail/mimecore/pkgs/email"
)

// Encoding is a Content-Transfer-Encoding.
type Encoding int

const (
	EncOther Encoding = iota
	Enc7Bit
	Enc8Bit
	EncQuotedPrintable
	EncBase64
	EncBinary
	EncUUEncoded
)

// ParseEncoding maps a header value to an Encoding.
func ParseEncoding(s string) Encoding {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "7bit":
		return Enc7Bit
	case "8bit":
		return Enc8Bit
	case "quoted-printable":
		return EncQuotedPrintable
	case "base64":
		return EncBase64
	case "binary":
		return EncBinary
	case "x-uuencode", "x-uuencoded", "uuencode":
		return EncUUEncoded
	}
	return EncOther
}

func (e Encoding) String() string {
	switch e {
	case Enc7Bit:
		return "7bit"
	case Enc8Bit:
		return "8bit"
	case EncQuotedPrintable:
		return "quoted-printable"
	case EncBase64:
		return "base64"
	case EncBinary:
		return "binary"
	case EncUUEncoded:
		return "x-uuencoded"
	}
	return "x-unknown"
}

// Disposition is a Content-Disposition class.
type Disposition int

const (
	DispInline Disposition = iota
	DispAttach
	DispFormData
	DispNone
)

// Parameter is one Content-Type or Content-Disposition parameter. Parameters
// keep their on-the-wire order and may repeat.
type Parameter struct {
	Attribute string
	Value     string
}

// ParameterList is an ordered parameter list allowing duplicate attributes.
type ParameterList []Parameter

// Get returns the first value for an attribute, matched case-insensitively.
func (pl ParameterList) Get(attribute string) string {
	for _, p := range pl {
		if strings.EqualFold(p.Attribute, attribute) {
			return p.Value
		}
	}
	return ""
}

// Set replaces the first occurrence of attribute or appends a new parameter.
func (pl *ParameterList) Set(attribute, value string) {
	for i, p := range *pl {
		if strings.EqualFold(p.Attribute, attribute) {
			(*pl)[i].Value = value
			return
		}
	}
	*pl = append(*pl, Parameter{Attribute: attribute, Value: value})
}

// Body is one MIME part. Offset and Length locate the undecoded content in
// the stream the part was parsed from; parts never own that stream.
type Body struct {
	Type        string // primary type, lowercased, e.g. "text"
	Subtype     string // lowercased, e.g. "plain"
	XType       string // original type string for x- and unknown types
	Encoding    Encoding
	Disposition Disposition
	Parameters  ParameterList

	Filename    string // filename hint from disposition or name parameter
	Description string
	ContentID   string // without angle brackets

	HeaderOffset int64 // where the part's headers start
	Offset       int64 // where the content starts
	Length       int64 // content length in the source stream

	Parts *Body // first child for multipart and message types
	Next  *Body // next sibling

	// Nested is the decoded sub-message for message/* parts.
	Nested *email.Email
	// MimeHeaders carries protected headers found inside a crypto envelope.
	MimeHeaders *email.Envelope

	// Charset is the send-mode charset override consulted by mailcap
	// %{charset} expansion; empty for received mail.
	Charset string

	Unlink  bool // Filename is a private temp path the owner must delete
	Deleted bool
	Tagged  bool
	NoWrap  bool
	NoConv  bool
}

// ContentType returns "type/subtype".
func (b *Body) ContentType() string {
	return b.Type + "/" + b.Subtype
}

// IsType reports whether the part has the given type and subtype,
// case-insensitively.
func (b *Body) IsType(typ, subtype string) bool {
	return strings.EqualFold(b.Type, typ) && strings.EqualFold(b.Subtype, subtype)
}

// IsMultipart reports whether the part is a multipart container.
func (b *Body) IsMultipart() bool {
	return strings.EqualFold(b.Type, "multipart")
}

// IsMessage reports whether the part embeds a full message (message/rfc822
// or message/news).
func (b *Body) IsMessage() bool {
	return strings.EqualFold(b.Type, "message") &&
		(strings.EqualFold(b.Subtype, "rfc822") || strings.EqualFold(b.Subtype, "news") ||
			strings.EqualFold(b.Subtype, "global"))
}

// IsFlowed reports whether the part is format=flowed text.
func (b *Body) IsFlowed() bool {
	return b.IsType("text", "plain") &&
		strings.EqualFold(b.Parameters.Get("format"), "flowed")
}

// CharsetParam returns the declared charset parameter, or the fallback for
// unlabelled text.
func (b *Body) CharsetParam() string {
	if cs := b.Parameters.Get("charset"); cs != "" {
		return cs
	}
	return "us-ascii"
}

// Ancestor returns the closest enclosing part of target, within the tree at
// root, whose subtype matches. Returns nil when target is not under root or
// no such container exists.
func Ancestor(root, target *Body, subtype string) *Body {
	var found *Body
	var walk func(b, nearest *Body) bool
	walk = func(b, nearest *Body) bool {
		for ; b != nil; b = b.Next {
			if b == target {
				found = nearest
				return true
			}
			next := nearest
			if strings.EqualFold(b.Subtype, subtype) {
				next = b
			}
			if walk(b.Parts, next) {
				return true
			}
		}
		return false
	}
	walk(root, nil)
	return found
}

// CanDecode reports whether the builtin handlers can render the part as text.
func (b *Body) CanDecode() bool {
	switch strings.ToLower(b.Type) {
	case "text", "message":
		return true
	case "multipart":
		sub := strings.ToLower(b.Subtype)
		if sub == "signed" || sub == "encrypted" {
			return true
		}
		for part := b.Parts; part != nil; part = part.Next {
			if part.CanDecode() {
				return true
			}
		}
	}
	return false
}

// IsSMIMEEnvelope reports whether the part is an application/pkcs7 S/MIME
// envelope that must be decrypted before its content is visible.
func (b *Body) IsSMIMEEnvelope() bool {
	if !strings.EqualFold(b.Type, "application") {
		return false
	}
	sub := strings.ToLower(b.Subtype)
	return sub == "pkcs7-mime" || sub == "x-pkcs7-mime" ||
		sub == "pkcs7-signature" || sub == "x-pkcs7-signature"
}

// IsPGPEncrypted reports whether the part is a PGP multipart/encrypted
// container, including the malformed variant whose protocol parameter is
// missing but whose children look right.
func (b *Body) IsPGPEncrypted() bool {
	if !b.IsType("multipart", "encrypted") {
		return false
	}
	if strings.EqualFold(b.Parameters.Get("protocol"), "application/pgp-encrypted") {
		return true
	}
	// Malformed: no protocol parameter, but the first child is
	// application/pgp-encrypted or application/octet-stream.
	first := b.Parts
	if first == nil {
		return false
	}
	return strings.EqualFold(first.Type, "application") &&
		(strings.EqualFold(first.Subtype, "pgp-encrypted") ||
			strings.EqualFold(first.Subtype, "octet-stream"))
}
