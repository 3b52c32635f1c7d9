package attach

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emx-mail/mimecore/pkgs/email"
)

type closeRecorder struct {
	*bytes.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

type stubDecrypter struct {
	smime func(src Stream, b *Body) (*Body, OwnedStream, error)
	pgp   func(src Stream, b *Body) (*Body, OwnedStream, error)
}

func (d *stubDecrypter) DecryptSMIME(src Stream, b *Body) (*Body, OwnedStream, error) {
	if d.smime == nil {
		return nil, nil, errors.New("smime not available")
	}
	return d.smime(src, b)
}

func (d *stubDecrypter) DecryptPGP(src Stream, b *Body) (*Body, OwnedStream, error) {
	if d.pgp == nil {
		return nil, nil, errors.New("pgp not available")
	}
	return d.pgp(src, b)
}

// buildCtx parses raw and generates the full index over it.
func buildCtx(t *testing.T, raw string, dec Decrypter) *AttachCtx {
	t.Helper()
	r := bytes.NewReader([]byte(raw))
	e, body, err := ParseMessage(r)
	require.NoError(t, err)
	ctx := NewCtx(e, r, nil)
	ctx.Generate(e, body, r, "", 0, false, dec)
	ctx.UpdateTree()
	return ctx
}

// countBodies walks a tree counting every node, including nested message
// content.
func countBodies(b *Body) int {
	n := 0
	for ; b != nil; b = b.Next {
		n++
		n += countBodies(b.Parts)
	}
	return n
}

const nestedTree = "Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"cover note\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"plain\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html\r\n" +
	"\r\n" +
	"<p>html</p>\r\n" +
	"--inner--\r\n" +
	"--outer--\r\n"

func TestGenerateIndexesEveryPart(t *testing.T) {
	r := bytes.NewReader([]byte(nestedTree))
	_, body, err := ParseMessage(r)
	require.NoError(t, err)

	ctx := buildCtx(t, nestedTree, nil)
	require.Len(t, ctx.Idx, countBodies(body))
	require.Len(t, ctx.Idx, 5)

	require.Equal(t, "multipart/mixed", ctx.Idx[0].Body.ContentType())
	require.Equal(t, 0, ctx.Idx[0].Level)
	require.Equal(t, "", ctx.Idx[0].ParentType)
	require.Equal(t, "text/plain", ctx.Idx[1].Body.ContentType())
	require.Equal(t, 1, ctx.Idx[1].Level)
	require.Equal(t, "multipart", ctx.Idx[1].ParentType)
	require.Equal(t, 2, ctx.Idx[3].Level)
	require.Equal(t, 2, ctx.Idx[4].Level)
}

func TestV2RIdentityWhenUncollapsed(t *testing.T) {
	ctx := buildCtx(t, nestedTree, nil)
	require.Equal(t, len(ctx.Idx), ctx.Vcount())
	for v, r := range ctx.V2R {
		require.Equal(t, v, r)
		require.Equal(t, v, ctx.Idx[r].Num)
	}
}

func TestCollapseHidesDescendantSpan(t *testing.T) {
	ctx := buildCtx(t, nestedTree, nil)

	// Collapse the multipart/alternative at virtual row 2. Its two children
	// vanish; nothing else moves.
	ctx.ToggleCollapse(2, false)
	ctx.UpdateTree()
	require.Equal(t, []int{0, 1, 2}, ctx.V2R)
	require.Equal(t, 2, ctx.Current(2).Num)

	// Expanding restores the identity map.
	ctx.ToggleCollapse(2, false)
	ctx.UpdateTree()
	require.Equal(t, []int{0, 1, 2, 3, 4}, ctx.V2R)
}

func TestCollapseRootHidesEverything(t *testing.T) {
	ctx := buildCtx(t, nestedTree, nil)
	ctx.ToggleCollapse(0, false)
	ctx.UpdateTree()
	require.Equal(t, []int{0}, ctx.V2R)
}

func TestUpdateTreeGlyphs(t *testing.T) {
	ctx := buildCtx(t, nestedTree, nil)

	require.Equal(t, "", ctx.Idx[0].Tree)
	require.Equal(t, string([]byte{TreeLTee, TreeHLine, TreeRArrow}), ctx.Idx[1].Tree)
	require.Equal(t, string([]byte{TreeLLCorner, TreeHLine, TreeRArrow}), ctx.Idx[2].Tree)
	require.Equal(t, string([]byte{TreeSpace, TreeSpace, TreeLTee, TreeHLine, TreeRArrow}), ctx.Idx[3].Tree)
	require.Equal(t, string([]byte{TreeSpace, TreeSpace, TreeLLCorner, TreeHLine, TreeRArrow}), ctx.Idx[4].Tree)
}

func TestInitCollapseDigest(t *testing.T) {
	raw := "Content-Type: multipart/digest; boundary=D\r\n" +
		"\r\n" +
		"--D\r\n" +
		"Content-Type: message/rfc822\r\n" +
		"\r\n" +
		"Subject: one\r\n" +
		"\r\n" +
		"first\r\n" +
		"--D--\r\n"
	r := bytes.NewReader([]byte(raw))
	e, body, err := ParseMessage(r)
	require.NoError(t, err)
	ctx := NewCtx(e, r, nil)
	ctx.Generate(e, body, r, "", 0, false, nil)

	ctx.InitCollapse(body, true)
	for _, ap := range ctx.Idx {
		require.True(t, ap.Collapsed, ap.Body.ContentType())
	}

	ctx.InitCollapse(body, false)
	for _, ap := range ctx.Idx {
		require.False(t, ap.Collapsed)
	}
}

func TestExpandCascadeKeepsDigestsCollapsed(t *testing.T) {
	raw := "Content-Type: multipart/mixed; boundary=M\r\n" +
		"\r\n" +
		"--M\r\n" +
		"Content-Type: multipart/digest; boundary=D\r\n" +
		"\r\n" +
		"--D\r\n" +
		"Content-Type: message/rfc822\r\n" +
		"\r\n" +
		"Subject: one\r\n" +
		"\r\n" +
		"first\r\n" +
		"--D--\r\n" +
		"--M--\r\n"
	ctx := buildCtx(t, raw, nil)

	ctx.ToggleCollapse(0, true) // collapse the root
	ctx.UpdateTree()
	require.Equal(t, 1, ctx.Vcount())

	ctx.ToggleCollapse(0, true) // expand; the inner digest stays collapsed
	ctx.UpdateTree()
	require.False(t, ctx.Idx[0].Collapsed)
	require.True(t, ctx.Idx[1].Collapsed)
	require.Equal(t, []int{0, 1}, ctx.V2R)
}

const smimeMessage = "From: s@example.com\r\n" +
	"Subject: sealed\r\n" +
	"Content-Type: application/pkcs7-mime; smime-type=enveloped-data; name=\"smime.p7m\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"AAAA\r\n"

const decryptedPayload = "Content-Type: multipart/mixed; boundary=P\r\n" +
	"\r\n" +
	"--P\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"the secret\r\n" +
	"--P\r\n" +
	"Content-Type: image/png\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"AAAA\r\n" +
	"--P--\r\n"

// decryptResult parses a plaintext payload into a body tree backed by a
// close-recording stream.
func decryptResult(t *testing.T, raw string) (*Body, *closeRecorder) {
	t.Helper()
	rec := &closeRecorder{Reader: bytes.NewReader([]byte(raw))}
	_, body, err := ParseMessage(rec.Reader)
	require.NoError(t, err)
	return body, rec
}

func TestGenerateDecryptsSMIME(t *testing.T) {
	var rec *closeRecorder
	dec := &stubDecrypter{
		smime: func(src Stream, b *Body) (*Body, OwnedStream, error) {
			body, r := decryptResult(t, decryptedPayload)
			rec = r
			return body, r, nil
		},
	}
	ctx := buildCtx(t, smimeMessage, dec)

	require.Len(t, ctx.Idx, 3)
	require.Equal(t, "multipart/mixed", ctx.Idx[0].Body.ContentType())
	for _, ap := range ctx.Idx {
		require.True(t, ap.Decrypted)
		require.Same(t, rec, ap.Stream)
	}
	require.NotZero(t, ctx.Email.Security&email.SMIMEEncrypt)
	require.Empty(t, ctx.Warnings)

	ctx.Teardown(nil)
	require.True(t, rec.closed)
	require.Empty(t, ctx.Idx)
}

func TestGenerateDecryptFailureKeepsEncryptedPart(t *testing.T) {
	dec := &stubDecrypter{} // every attempt errors
	ctx := buildCtx(t, smimeMessage, dec)

	require.Len(t, ctx.Idx, 1)
	require.Equal(t, "application/pkcs7-mime", ctx.Idx[0].Body.ContentType())
	require.False(t, ctx.Idx[0].Decrypted)
	require.Contains(t, ctx.Warnings, "Can't decrypt encrypted message")
}

func TestGenerateRejectsDecryptionDecoy(t *testing.T) {
	// An encrypted part among siblings that "decrypts" to a bare text/plain
	// is the failure shell, not a payload.
	raw := "Content-Type: multipart/mixed; boundary=M\r\n" +
		"\r\n" +
		"--M\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"cover\r\n" +
		"--M\r\n" +
		"Content-Type: application/pkcs7-mime; smime-type=enveloped-data\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"AAAA\r\n" +
		"--M--\r\n"
	var rec *closeRecorder
	dec := &stubDecrypter{
		smime: func(src Stream, b *Body) (*Body, OwnedStream, error) {
			body, r := decryptResult(t, "Content-Type: text/plain\r\n\r\n\r\n")
			rec = r
			return body, r, nil
		},
	}
	ctx := buildCtx(t, raw, dec)

	require.True(t, rec.closed)
	require.Contains(t, ctx.Warnings, "Can't decrypt encrypted message")
	require.Len(t, ctx.Idx, 3)
	require.Equal(t, "application/pkcs7-mime", ctx.Idx[2].Body.ContentType())
	require.Zero(t, ctx.Email.Security&email.SMIMEEncrypt)
}

func TestGenerateTrustsLoneTextPlainResult(t *testing.T) {
	dec := &stubDecrypter{
		smime: func(src Stream, b *Body) (*Body, OwnedStream, error) {
			body, r := decryptResult(t, "Content-Type: text/plain\r\n\r\nthe secret\r\n")
			return body, r, nil
		},
	}
	ctx := buildCtx(t, smimeMessage, dec)

	require.Len(t, ctx.Idx, 1)
	require.Equal(t, "text/plain", ctx.Idx[0].Body.ContentType())
	require.True(t, ctx.Idx[0].Decrypted)
	require.Empty(t, ctx.Warnings)
}

func TestGenerateDecryptsPGP(t *testing.T) {
	raw := "Content-Type: multipart/encrypted; protocol=\"application/pgp-encrypted\"; boundary=E\r\n" +
		"\r\n" +
		"--E\r\n" +
		"Content-Type: application/pgp-encrypted\r\n" +
		"\r\n" +
		"Version: 1\r\n" +
		"--E\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"\r\n" +
		"-----BEGIN PGP MESSAGE-----\r\n" +
		"--E--\r\n"
	dec := &stubDecrypter{
		pgp: func(src Stream, b *Body) (*Body, OwnedStream, error) {
			body, r := decryptResult(t, decryptedPayload)
			return body, r, nil
		},
	}
	ctx := buildCtx(t, raw, dec)

	require.Len(t, ctx.Idx, 3)
	require.Equal(t, "multipart/mixed", ctx.Idx[0].Body.ContentType())
	require.NotZero(t, ctx.Email.Security&email.PGPEncrypt)
}

func TestIndexOfSurvivesRegeneration(t *testing.T) {
	ctx := buildCtx(t, nestedTree, nil)
	b := ctx.Idx[3].Body
	require.Equal(t, 3, ctx.IndexOf(b))
	require.Equal(t, -1, ctx.IndexOf(&Body{}))

	ctx.Teardown(nil)
	require.Equal(t, -1, ctx.IndexOf(b))
}

func TestTaggedBodies(t *testing.T) {
	ctx := buildCtx(t, nestedTree, nil)

	got := ctx.TaggedBodies(1, false)
	require.Len(t, got, 1)
	require.Same(t, ctx.Idx[1].Body, got[0])

	ctx.Idx[3].Body.Tagged = true
	ctx.Idx[4].Body.Tagged = true
	got = ctx.TaggedBodies(0, true)
	require.Len(t, got, 2)
	require.Same(t, ctx.Idx[3].Body, got[0])
	require.Same(t, ctx.Idx[4].Body, got[1])
}

func TestTeardownRemovesUnlinkTemps(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "decrypted.txt")
	require.NoError(t, os.WriteFile(tmp, []byte("x"), 0o600))

	dec := &stubDecrypter{
		smime: func(src Stream, b *Body) (*Body, OwnedStream, error) {
			body, r := decryptResult(t, decryptedPayload)
			body.Parts.Unlink = true
			body.Parts.Filename = tmp
			return body, r, nil
		},
	}
	ctx := buildCtx(t, smimeMessage, dec)

	temps := NewTempRegistry()
	temps.Add(tmp)
	ctx.Teardown(temps)

	_, err := os.Stat(tmp)
	require.True(t, os.IsNotExist(err))
	require.Empty(t, temps.Paths())
}

func TestTempRegistry(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o400))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o600))

	reg := NewTempRegistry()
	reg.Add(a)
	reg.Add(b)
	reg.Add("")
	require.Equal(t, []string{a, b}, reg.Paths())

	reg.Remove(a)
	_, err := os.Stat(a)
	require.True(t, os.IsNotExist(err))
	require.Equal(t, []string{b}, reg.Paths())

	reg.CleanAll()
	_, err = os.Stat(b)
	require.True(t, os.IsNotExist(err))
	require.Empty(t, reg.Paths())
}
