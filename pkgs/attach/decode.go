package attach

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"
	"os"
	"strings"

	"github.com/emx-mail/mimecore/pkgs/charset"
)

// Reader returns the part's undecoded content as it sits in the source
// stream.
func (b *Body) Reader(src io.ReaderAt) io.Reader {
	return io.NewSectionReader(src, b.Offset, b.Length)
}

// DecodedReader layers the transfer decoding for the part over its raw
// content.
func (b *Body) DecodedReader(src io.ReaderAt) io.Reader {
	raw := b.Reader(src)
	switch b.Encoding {
	case EncBase64:
		return base64.NewDecoder(base64.StdEncoding, &whitespaceFilter{r: raw})
	case EncQuotedPrintable:
		return quotedprintable.NewReader(raw)
	case EncUUEncoded:
		return newUUDecoder(raw)
	default:
		return raw
	}
}

// DecodeTo writes the part's content to w, undoing the transfer encoding and,
// for text parts, converting from the declared charset to toCharset. A nil
// engine or empty toCharset skips conversion.
func (b *Body) DecodeTo(w io.Writer, src io.ReaderAt, eng *charset.Engine, toCharset string) error {
	r := b.DecodedReader(src)
	if strings.EqualFold(b.Type, "text") && eng != nil && toCharset != "" {
		from := b.CharsetParam()
		if !charset.Chscmp(from, toCharset) {
			fd, err := charset.NewFileDecoder(eng, r, eng.CharsetLookup(from), toCharset)
			if err != nil {
				return fmt.Errorf("decode %s: %w", b.ContentType(), err)
			}
			r = fd
		}
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("decode %s: %w", b.ContentType(), err)
	}
	return nil
}

// whitespaceFilter strips CR, LF and blanks so the base64 decoder sees a
// continuous alphabet stream.
type whitespaceFilter struct {
	r io.Reader
}

func (f *whitespaceFilter) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	kept := 0
	for i := 0; i < n; i++ {
		switch p[i] {
		case '\r', '\n', ' ', '\t':
		default:
			p[kept] = p[i]
			kept++
		}
	}
	if kept == 0 && err == nil && n > 0 {
		return f.Read(p)
	}
	return kept, err
}

// uuDecoder undoes the historical uuencode format: a "begin" line, data lines
// whose first byte carries the decoded length, and an "end" line.
type uuDecoder struct {
	sc   *bufio.Scanner
	buf  bytes.Buffer
	done bool
}

func newUUDecoder(r io.Reader) *uuDecoder {
	return &uuDecoder{sc: bufio.NewScanner(r)}
}

func (d *uuDecoder) Read(p []byte) (int, error) {
	for d.buf.Len() == 0 && !d.done {
		if !d.sc.Scan() {
			d.done = true
			break
		}
		line := d.sc.Text()
		if strings.HasPrefix(line, "begin ") {
			continue
		}
		if line == "end" || line == "`" || line == "" {
			if line == "end" {
				d.done = true
			}
			continue
		}
		d.decodeLine(line)
	}
	if d.buf.Len() == 0 {
		if err := d.sc.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	return d.buf.Read(p)
}

func (d *uuDecoder) decodeLine(line string) {
	uuch := func(c byte) int { return int(c-32) & 0x3f }
	want := uuch(line[0])
	data := line[1:]
	for i := 0; i+3 < len(data)+1 && want > 0; i += 4 {
		chunk := data[i:]
		if len(chunk) < 4 {
			break
		}
		c0, c1, c2, c3 := uuch(chunk[0]), uuch(chunk[1]), uuch(chunk[2]), uuch(chunk[3])
		out := []byte{
			byte(c0<<2 | c1>>4),
			byte(c1<<4 | c2>>2),
			byte(c2<<6 | c3),
		}
		if want < 3 {
			out = out[:want]
		}
		d.buf.Write(out)
		want -= len(out)
	}
}

// UnstuffFlowed undoes RFC 3676 space-stuffing: a single leading space on a
// line was added in transit and is removed.
func UnstuffFlowed(w io.Writer, r io.Reader) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if line[0] == ' ' {
				line = line[1:]
			}
			if _, werr := bw.WriteString(line); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// UnstuffFlowedFile rewrites a file in place with space-stuffing removed.
func UnstuffFlowedFile(path string) error {
	in, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unstuff %s: %w", path, err)
	}
	var out bytes.Buffer
	if err := UnstuffFlowed(&out, bytes.NewReader(in)); err != nil {
		return fmt.Errorf("unstuff %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("unstuff %s: %w", path, err)
	}
	if err := os.WriteFile(path, out.Bytes(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("unstuff %s: %w", path, err)
	}
	return nil
}
