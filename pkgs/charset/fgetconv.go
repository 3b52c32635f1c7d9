package charset

import (
	"bufio"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// FileDecoder streams bytes from a reader through a charset conversion. It
// owns a private converter so resets caused by cache hits elsewhere cannot
// disturb its shift state mid-file. Runes the target cannot represent are
// substituted rather than failing the whole read.
type FileDecoder struct {
	br *bufio.Reader
}

// NewFileDecoder wraps r, converting from fromcode to tocode as bytes are
// read.
func NewFileDecoder(e *Engine, r io.Reader, fromcode, tocode string) (*FileDecoder, error) {
	conv, err := e.OpenUncached(tocode, fromcode)
	if err != nil {
		return nil, err
	}
	out := r
	if conv.decEnc != nil {
		out = transform.NewReader(out, conv.dec)
	}
	if conv.encEnc != nil {
		out = transform.NewReader(out, encoding.ReplaceUnsupported(conv.enc))
	}
	return &FileDecoder{br: bufio.NewReader(out)}, nil
}

// Read implements io.Reader over the converted stream.
func (d *FileDecoder) Read(p []byte) (int, error) {
	return d.br.Read(p)
}

// ReadByte returns the next converted byte.
func (d *FileDecoder) ReadByte() (byte, error) {
	return d.br.ReadByte()
}

// ReadString reads converted bytes up to and including delim, mirroring
// bufio semantics: on EOF the data read so far is returned along with the
// error.
func (d *FileDecoder) ReadString(delim byte) (string, error) {
	return d.br.ReadString(delim)
}
