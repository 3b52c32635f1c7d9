package attach

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/emx-mail/mimecore/pkgs/email"
)

// ParseMessage reads a whole message from r and returns its envelope and body
// tree. Every Body's HeaderOffset/Offset/Length index into r's byte stream,
// so content can later be re-read without keeping the tree's bytes in memory.
func ParseMessage(r io.ReadSeeker) (*email.Email, *Body, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("seek message start: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read message: %w", err)
	}
	p := &parser{data: data}
	return p.parseMessage(0, int64(len(data)))
}

type parser struct {
	data []byte
}

// parseMessage parses envelope and content headers from the header block at
// start and the body structure after it.
func (p *parser) parseMessage(start, end int64) (*email.Email, *Body, error) {
	hdr, err := p.readHeader(start, end)
	if err != nil {
		return nil, nil, err
	}
	env := envelopeFromHeader(hdr)
	body, err := p.parseBody(start, end)
	if err != nil {
		return nil, nil, err
	}
	return &email.Email{Envelope: env}, body, nil
}

// readHeader parses the RFC 5322 header block beginning at start.
func (p *parser) readHeader(start, end int64) (textproto.Header, error) {
	bodyStart := p.headerEnd(start, end)
	br := bufio.NewReader(bytes.NewReader(p.data[start:bodyStart]))
	hdr, err := textproto.ReadHeader(br)
	if err != nil && err != io.EOF {
		return textproto.Header{}, fmt.Errorf("parse header: %w", err)
	}
	return hdr, nil
}

// headerEnd returns the offset just past the blank line terminating the
// header block at start, or end if the message has no body.
func (p *parser) headerEnd(start, end int64) int64 {
	pos := start
	for pos < end {
		nl := bytes.IndexByte(p.data[pos:end], '\n')
		if nl < 0 {
			return end
		}
		line := p.data[pos : pos+int64(nl)]
		pos += int64(nl) + 1
		if len(bytes.TrimRight(line, "\r")) == 0 {
			return pos
		}
	}
	return end
}

// parseBody builds the Body for the part whose headers start at hdrStart and
// whose region ends at end, recursing into multipart and message content.
func (p *parser) parseBody(hdrStart, end int64) (*Body, error) {
	hdr, err := p.readHeader(hdrStart, end)
	if err != nil {
		return nil, err
	}
	contentStart := p.headerEnd(hdrStart, end)

	b := &Body{
		HeaderOffset: hdrStart,
		Offset:       contentStart,
		Length:       end - contentStart,
		Encoding:     ParseEncoding(hdr.Get("Content-Transfer-Encoding")),
	}
	parseContentType(hdr.Get("Content-Type"), b)
	parseDisposition(hdr.Get("Content-Disposition"), b)
	if b.Filename == "" {
		b.Filename = decodeWord(b.Parameters.Get("name"))
	}
	b.Description = decodeWord(hdr.Get("Content-Description"))
	b.ContentID = strings.Trim(strings.TrimSpace(hdr.Get("Content-Id")), "<>")

	switch {
	case b.IsMultipart():
		boundary := b.Parameters.Get("boundary")
		if boundary != "" {
			first, err := p.parseMultipart(boundary, contentStart, end)
			if err != nil {
				return nil, err
			}
			b.Parts = first
		}
	case b.IsMessage() && decodableInPlace(b.Encoding):
		nested, nestedBody, err := p.parseMessage(contentStart, end)
		if err == nil {
			b.Nested = nested
			b.Parts = nestedBody
		}
	}
	return b, nil
}

// decodableInPlace reports whether a message part's content is plain enough
// to parse where it sits. Base64 or quoted-printable message parts stay
// opaque.
func decodableInPlace(enc Encoding) bool {
	return enc == Enc7Bit || enc == Enc8Bit || enc == EncBinary
}

// parseMultipart splits the region into child parts at the boundary
// delimiters and parses each.
func (p *parser) parseMultipart(boundary string, start, end int64) (*Body, error) {
	delim := []byte("--" + boundary)

	var first, last *Body
	var childStart int64 = -1

	flush := func(childEnd int64) error {
		if childStart < 0 {
			return nil
		}
		child, err := p.parseBody(childStart, childEnd)
		if err != nil {
			return err
		}
		if last == nil {
			first = child
		} else {
			last.Next = child
		}
		last = child
		childStart = -1
		return nil
	}

	pos := start
	for pos < end {
		nl := bytes.IndexByte(p.data[pos:end], '\n')
		lineEnd := end
		next := end
		if nl >= 0 {
			lineEnd = pos + int64(nl)
			next = lineEnd + 1
		}
		line := bytes.TrimRight(p.data[pos:lineEnd], "\r")

		if bytes.HasPrefix(line, delim) {
			rest := bytes.TrimSpace(line[len(delim):])
			terminal := bytes.Equal(rest, []byte("--"))
			if terminal || len(rest) == 0 {
				if err := flush(pos); err != nil {
					return nil, err
				}
				if terminal {
					return first, nil
				}
				childStart = next
			}
		}
		pos = next
	}
	if err := flush(end); err != nil {
		return nil, err
	}
	return first, nil
}

// parseContentType fills type, subtype and the ordered parameter list from a
// Content-Type value. An absent or unparsable value defaults to text/plain as
// RFC 2045 requires.
func parseContentType(v string, b *Body) {
	media, params := splitParams(v)
	media = strings.TrimSpace(media)
	if media == "" {
		b.Type, b.Subtype = "text", "plain"
	} else if slash := strings.IndexByte(media, '/'); slash >= 0 {
		b.Type = strings.ToLower(strings.TrimSpace(media[:slash]))
		b.Subtype = strings.ToLower(strings.TrimSpace(media[slash+1:]))
	} else {
		b.Type = strings.ToLower(media)
		b.Subtype = "x-unknown"
	}
	if strings.HasPrefix(b.Type, "x-") || b.Subtype == "x-unknown" {
		b.XType = media
	}
	b.Parameters = params
}

// parseDisposition fills the disposition class and filename hint.
func parseDisposition(v string, b *Body) {
	disp, params := splitParams(v)
	switch strings.ToLower(strings.TrimSpace(disp)) {
	case "":
		b.Disposition = DispNone
	case "inline":
		b.Disposition = DispInline
	case "form-data":
		b.Disposition = DispFormData
	default:
		b.Disposition = DispAttach
	}
	if fn := params.Get("filename"); fn != "" {
		b.Filename = decodeWord(fn)
	}
}

// splitParams cuts a header value into its leading token and an ordered
// parameter list. Quoted values keep embedded semicolons and lose their
// backslash escapes; duplicate attributes are preserved in order.
func splitParams(v string) (string, ParameterList) {
	lead, rest, _ := cutUnquoted(v, ';')
	var params ParameterList
	for rest != "" {
		var item string
		item, rest, _ = cutUnquoted(rest, ';')
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		attr, val, found := strings.Cut(item, "=")
		if !found {
			continue
		}
		params = append(params, Parameter{
			Attribute: strings.TrimSpace(attr),
			Value:     unquote(strings.TrimSpace(val)),
		})
	}
	return lead, params
}

// cutUnquoted splits s at the first sep outside double quotes.
func cutUnquoted(s string, sep byte) (before, after string, found bool) {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && inQuote:
			i++
		case s[i] == '"':
			inQuote = !inQuote
		case s[i] == sep && !inQuote:
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// unquote strips surrounding double quotes and their backslash escapes.
func unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// decodeWord decodes RFC 2047 encoded words in a header token.
func decodeWord(s string) string {
	if !strings.Contains(s, "=?") {
		return s
	}
	var hdr gomessage.Header
	hdr.Set("X-Decode", s)
	if decoded, err := hdr.Text("X-Decode"); err == nil {
		return decoded
	}
	return s
}

// envelopeFromHeader extracts the envelope fields the core consults.
func envelopeFromHeader(hdr textproto.Header) *email.Envelope {
	mh := mail.Header{Header: gomessage.Header{Header: hdr}}
	env := &email.Envelope{}

	if subj, err := mh.Subject(); err == nil {
		env.Subject = subj
	} else {
		env.Subject = hdr.Get("Subject")
	}
	env.RealSubj = env.Subject

	if date, err := mh.Date(); err == nil {
		env.Date = date
	}
	if id, err := mh.MessageID(); err == nil {
		env.MessageID = id
	}
	if refs, err := mh.MsgIDList("References"); err == nil {
		env.References = refs
	}
	if irt, err := mh.MsgIDList("In-Reply-To"); err == nil && len(irt) > 0 {
		env.InReplyTo = irt[0]
	}

	env.From = addressList(mh, "From")
	env.To = addressList(mh, "To")
	env.Cc = addressList(mh, "Cc")

	fields := hdr.FieldsByKey("Autocrypt-Gossip")
	for fields.Next() {
		env.AutocryptGossip = append(env.AutocryptGossip, fields.Value())
	}
	return env
}

func addressList(mh mail.Header, key string) []email.Address {
	list, err := mh.AddressList(key)
	if err != nil || len(list) == 0 {
		return nil
	}
	out := make([]email.Address, 0, len(list))
	for _, a := range list {
		out = append(out, email.Address{Name: a.Name, Email: a.Address})
	}
	return out
}
