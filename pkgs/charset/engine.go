package charset

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrUnsupported is returned when no conversion between the requested
// character sets can be constructed, even after iconv-hook rewrites.
var ErrUnsupported = errors.New("unsupported character set")

// converterCacheSize bounds the number of open converters kept around.
// Re-opening the same pair is common when walking a multipart message, so a
// small MRU list pays for itself quickly.
const converterCacheSize = 16

// Engine owns the hook tables and the converter cache. It is a plain value
// held by whoever owns the session; the internal mutex only guards the tables
// and the cache list, not the converters themselves.
type Engine struct {
	mu      sync.Mutex
	lookups []lookup
	cache   []*Converter
	logger  *slog.Logger
}

// NewEngine returns an Engine with empty hook tables. A nil logger disables
// debug logging.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Converter transcodes bytes between two character sets by pivoting through
// UTF-8. Converters handed out by Engine.Open live in the engine's cache and
// must not be closed by callers; the engine resets their shift state each
// time they are re-acquired.
type Converter struct {
	// To and From are the canonical names the converter was opened with.
	To, From string

	decEnc encoding.Encoding // nil when From is utf-8 or us-ascii
	encEnc encoding.Encoding // nil when To is utf-8 or us-ascii

	dec *encoding.Decoder
	enc *encoding.Encoder
}

// Reset clears any shift state accumulated by a previous use.
func (c *Converter) Reset() {
	if c.dec != nil {
		c.dec.Reset()
	}
	if c.enc != nil {
		c.enc.Reset()
	}
}

// identity reports whether the converter is a no-op byte copy.
func (c *Converter) identity() bool {
	return c.decEnc == nil && c.encEnc == nil
}

// baseName strips any "/extension" suffix from a canonical charset name.
func baseName(name string) string {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return name
}

// resolveEncoding maps a canonical charset name to an x/text encoding. utf-8
// and us-ascii resolve to nil, meaning the UTF-8 pivot itself is the target.
func resolveEncoding(name string) (encoding.Encoding, error) {
	base := baseName(name)
	if base == "utf-8" || base == "us-ascii" {
		return nil, nil
	}
	enc, err := ianaindex.MIME.Encoding(base)
	if err != nil || enc == nil {
		enc, err = ianaindex.IANA.Encoding(base)
	}
	if err != nil || enc == nil {
		return nil, ErrUnsupported
	}
	return enc, nil
}

// Open returns a converter from fromcode to tocode, honouring iconv-hook
// rewrites and the converter cache. Cache hits are moved to the front of the
// MRU list and reset before being returned.
func (e *Engine) Open(tocode, fromcode string) (*Converter, error) {
	to := Canonical(tocode)
	from := Canonical(fromcode)

	e.mu.Lock()
	for i, c := range e.cache {
		if c.To == to && c.From == from {
			copy(e.cache[1:i+1], e.cache[:i])
			e.cache[0] = c
			e.mu.Unlock()
			c.Reset()
			return c, nil
		}
	}
	e.mu.Unlock()

	c, err := e.newConverter(to, from)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if len(e.cache) >= converterCacheSize {
		evicted := e.cache[len(e.cache)-1]
		e.cache = e.cache[:len(e.cache)-1]
		e.logger.Debug("evicting converter", "to", evicted.To, "from", evicted.From)
	}
	e.cache = append([]*Converter{c}, e.cache...)
	e.mu.Unlock()
	return c, nil
}

// newConverter builds a converter for the canonical pair, falling back to
// iconv-hook aliases for either side that cannot be resolved directly.
func (e *Engine) newConverter(to, from string) (*Converter, error) {
	resolve := func(name string) (encoding.Encoding, error) {
		enc, err := resolveEncoding(name)
		if err == nil {
			return enc, nil
		}
		if alias := e.Lookup(LookupIconv, name); alias != "" {
			return resolveEncoding(Canonical(alias))
		}
		return nil, err
	}

	decEnc, err := resolve(from)
	if err != nil {
		return nil, err
	}
	encEnc, err := resolve(to)
	if err != nil {
		return nil, err
	}

	c := &Converter{To: to, From: from, decEnc: decEnc, encEnc: encEnc}
	if decEnc != nil {
		c.dec = decEnc.NewDecoder()
	}
	if encEnc != nil {
		c.enc = encEnc.NewEncoder()
	}
	return c, nil
}

// OpenUncached builds a private converter that bypasses the cache. Streaming
// consumers that hold a converter across many reads use this so cache hits
// elsewhere cannot reset their shift state underneath them.
func (e *Engine) OpenUncached(tocode, fromcode string) (*Converter, error) {
	return e.newConverter(Canonical(tocode), Canonical(fromcode))
}

// Convert transcodes in from the converter's source charset to its target.
// Bytes that cannot be decoded are replaced by the first member of inrepls
// that the target accepts, advancing one input byte at a time. Runes the
// target cannot encode are replaced by outrepl ("?" when empty). Strict
// callers pass strict=true to fail instead of substituting.
func (c *Converter) Convert(in []byte, inrepls []string, outrepl string, strict bool) ([]byte, error) {
	u, err := c.decode(in, inrepls, strict)
	if err != nil {
		return nil, err
	}
	return c.encode(u, outrepl, strict)
}

// decode turns source bytes into UTF-8.
func (c *Converter) decode(in []byte, inrepls []string, strict bool) ([]byte, error) {
	if c.decEnc == nil {
		if utf8.Valid(in) {
			return in, nil
		}
		if strict {
			return nil, ErrUnsupported
		}
		return replaceInvalidUTF8(in, inrepls), nil
	}
	// x/text decoders substitute U+FFFD for undecodable bytes on their
	// own, which matches the default replacement policy.
	out, err := c.dec.Bytes(in)
	if err != nil {
		return nil, err
	}
	if strict && bytes.ContainsRune(out, utf8.RuneError) && !bytes.ContainsRune(in, utf8.RuneError) {
		return nil, ErrUnsupported
	}
	return out, nil
}

// encode turns UTF-8 into the target charset, substituting outrepl for runes
// the target cannot represent.
func (c *Converter) encode(u []byte, outrepl string, strict bool) ([]byte, error) {
	if c.encEnc == nil {
		if baseName(c.To) == "us-ascii" {
			return encodeASCII(u, outrepl, strict)
		}
		return u, nil
	}
	out, err := c.enc.Bytes(u)
	if err == nil {
		return out, nil
	}
	if strict {
		return nil, ErrUnsupported
	}
	if outrepl == "" {
		outrepl = "?"
	}
	var buf bytes.Buffer
	for _, r := range string(u) {
		rb, rerr := c.enc.Bytes([]byte(string(r)))
		if rerr != nil {
			buf.WriteString(outrepl)
			continue
		}
		buf.Write(rb)
	}
	return buf.Bytes(), nil
}

// replaceInvalidUTF8 substitutes each invalid byte, advancing exactly one
// byte per failure so a single bad octet cannot swallow its neighbours.
func replaceInvalidUTF8(in []byte, inrepls []string) []byte {
	repl := "�"
	if len(inrepls) > 0 && inrepls[0] != "" {
		repl = inrepls[0]
	}
	var buf bytes.Buffer
	for len(in) > 0 {
		r, size := utf8.DecodeRune(in)
		if r == utf8.RuneError && size == 1 {
			buf.WriteString(repl)
			in = in[1:]
			continue
		}
		buf.Write(in[:size])
		in = in[size:]
	}
	return buf.Bytes()
}

func encodeASCII(u []byte, outrepl string, strict bool) ([]byte, error) {
	if outrepl == "" {
		outrepl = "?"
	}
	var buf bytes.Buffer
	for _, r := range string(u) {
		if r < 0x80 {
			buf.WriteByte(byte(r))
			continue
		}
		if strict {
			return nil, ErrUnsupported
		}
		buf.WriteString(outrepl)
	}
	return buf.Bytes(), nil
}

// Convert transcodes in between two charsets with the default replacement
// policy: undecodable input bytes become U+FFFD (or "?" once re-encoded) and
// unencodable runes become "?".
func (e *Engine) Convert(in []byte, fromcode, tocode string) ([]byte, error) {
	conv, err := e.Open(tocode, fromcode)
	if err != nil {
		return nil, err
	}
	return conv.Convert(in, []string{"�", "?"}, "?", false)
}

// ConvertString is Convert for strings.
func (e *Engine) ConvertString(s, fromcode, tocode string) (string, error) {
	out, err := e.Convert([]byte(s), fromcode, tocode)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Check reports whether s converts losslessly from fromcode to tocode. Any
// byte or rune that would need a replacement fails the check.
func (e *Engine) Check(s []byte, fromcode, tocode string) error {
	conv, err := e.Open(tocode, fromcode)
	if err != nil {
		return err
	}
	_, err = conv.Convert(s, nil, "", true)
	return err
}

// Choose picks the member of charsets into which u (in fromcode) converts
// losslessly, preferring the shortest canonical name. Earlier members win
// ties. It returns the chosen name and the converted bytes, or ErrUnsupported
// when no candidate works.
func (e *Engine) Choose(fromcode string, charsets []string, u []byte) (string, []byte, error) {
	var (
		bestName string
		bestOut  []byte
		found    bool
	)
	for _, cs := range charsets {
		if cs == "" {
			continue
		}
		name := Canonical(cs)
		conv, err := e.Open(cs, fromcode)
		if err != nil {
			continue
		}
		out, err := conv.Convert(u, nil, "", true)
		if err != nil {
			continue
		}
		if !found || len(name) < len(bestName) {
			bestName = name
			bestOut = out
			found = true
		}
	}
	if !found {
		return "", nil, ErrUnsupported
	}
	return bestName, bestOut, nil
}

// DefaultCharsetFor applies charset-hook to the assumed-charset list before
// falling back the same way DefaultCharset does.
func (e *Engine) DefaultCharsetFor(assumedCharset []string) string {
	cs := DefaultCharset(assumedCharset)
	return e.CharsetLookup(cs)
}

// cacheLen is used by tests to observe the MRU list.
func (e *Engine) cacheLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

func (e *Engine) dropCacheLocked() {
	e.cache = nil
}
