package mimeops

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/email"
)

type recAutocrypt struct {
	gossip []*email.Envelope
}

func (a *recAutocrypt) ProcessGossip(e *email.Email, prot *email.Envelope) error {
	a.gossip = append(a.gossip, prot)
	return nil
}

func signedFixture(protSubject string) (*email.Email, *attach.Body) {
	e := &email.Email{
		Envelope: &email.Envelope{Subject: "Encrypted Message", RealSubj: "Encrypted Message"},
		Security: email.SecSign | email.SecGoodSign,
	}
	b := &attach.Body{
		Type: "multipart", Subtype: "signed",
		Parts: &attach.Body{
			Type: "text", Subtype: "plain",
			MimeHeaders: &email.Envelope{Subject: protSubject},
		},
	}
	return e, b
}

func TestProtectedHeadersRewriteSubject(t *testing.T) {
	h := newHarness(t, "")
	h.set(t, "crypt_protected_headers_save", "yes")

	e, b := signedFixture("Re: quarterly numbers")
	m := &MailboxState{Subjects: email.NewSubjectIndex()}
	m.Subjects.Add(e)

	h.runner.ProcessProtectedHeaders(m, e, b)

	require.Equal(t, "Re: quarterly numbers", e.Envelope.Subject)
	require.Equal(t, "quarterly numbers", e.Envelope.RealSubj)
	require.True(t, e.Dirty)
	require.True(t, m.Changed)
	require.Len(t, m.Subjects.Lookup("quarterly numbers"), 1)
	require.Empty(t, m.Subjects.Lookup("Encrypted Message"))
}

func TestProtectedHeadersNotPersistedByDefault(t *testing.T) {
	h := newHarness(t, "")

	e, b := signedFixture("real topic")
	m := &MailboxState{Subjects: email.NewSubjectIndex()}
	m.Subjects.Add(e)

	h.runner.ProcessProtectedHeaders(m, e, b)

	require.Equal(t, "real topic", e.Envelope.Subject)
	require.False(t, e.Dirty)
	require.False(t, m.Changed)
}

func TestProtectedHeadersIgnoredOnBadSignature(t *testing.T) {
	h := newHarness(t, "")

	e, b := signedFixture("real topic")
	e.Security = email.SecSign // verification failed

	h.runner.ProcessProtectedHeaders(nil, e, b)
	require.Equal(t, "Encrypted Message", e.Envelope.Subject)
}

func TestProtectedHeadersGateOff(t *testing.T) {
	h := newHarness(t, "")
	h.set(t, "crypt_protected_headers_read", "no")

	e, b := signedFixture("real topic")
	h.runner.ProcessProtectedHeaders(nil, e, b)
	require.Equal(t, "Encrypted Message", e.Envelope.Subject)
}

func TestProtectedHeadersFromEncryptedEnvelope(t *testing.T) {
	h := newHarness(t, "")

	e := &email.Email{
		Envelope: &email.Envelope{Subject: "..."},
		Security: email.PGPEncrypt,
	}
	b := &attach.Body{
		Type: "multipart", Subtype: "encrypted",
		Parameters:  attach.ParameterList{{Attribute: "protocol", Value: "application/pgp-encrypted"}},
		MimeHeaders: &email.Envelope{Subject: "hidden subject"},
	}

	h.runner.ProcessProtectedHeaders(nil, e, b)
	require.Equal(t, "hidden subject", e.Envelope.Subject)
}

func TestProtectedHeadersAutocryptGossip(t *testing.T) {
	h := newHarness(t, "")
	h.set(t, "crypt_protected_headers_read", "no")
	h.set(t, "autocrypt", "yes")
	ac := &recAutocrypt{}
	h.runner.acrypt = ac

	e := &email.Email{
		Envelope: &email.Envelope{Subject: "outer"},
		Security: email.PGPEncrypt,
	}
	b := &attach.Body{
		Type: "multipart", Subtype: "encrypted",
		MimeHeaders: &email.Envelope{
			Subject:         "inner",
			AutocryptGossip: []string{"addr=peer@example.com; keydata=AAAA"},
		},
	}

	h.runner.ProcessProtectedHeaders(nil, e, b)

	require.Len(t, ac.gossip, 1)
	require.Equal(t, "inner", ac.gossip[0].Subject)
	// Subject replacement stays off while only autocrypt opened the gate.
	require.Equal(t, "outer", e.Envelope.Subject)
}

const noisyMessage = "Return-Path: <bounce@example.com>\r\n" +
	"Received: from relay.example.com by mx.example.com\r\n" +
	"\tfor <bob@example.com>; Tue, 3 Mar 2026 10:00:00 +0000\r\n" +
	"From: Alice <alice@example.com>\r\n" +
	"Subject: weeding test\r\n" +
	"Message-Id: <w1@example.com>\r\n" +
	"Status: RO\r\n" +
	"Content-Type: text/plain; charset=us-ascii\r\n" +
	"\r\n" +
	"visible body\r\n"

func TestEmailToFileWeedsHeaders(t *testing.T) {
	h := newHarness(t, "")
	ctx, src := buildCtx(t, noisyMessage)

	dest := filepath.Join(t.TempDir(), "pager.txt")
	require.NoError(t, h.runner.EmailToFile(src, ctx.Email, ctx.Idx[0].Body, dest))

	got := readFile(t, dest)
	require.Contains(t, got, "From: Alice <alice@example.com>")
	require.Contains(t, got, "Subject: weeding test")
	require.Contains(t, got, "visible body")
	require.NotContains(t, got, "Received:")
	require.NotContains(t, got, "relay.example.com")
	require.NotContains(t, got, "Status:")
	require.NotContains(t, got, "Message-Id:")
	require.NotContains(t, got, "Return-Path:")
}

func TestEmailToFileKeepsHeadersWithoutWeed(t *testing.T) {
	h := newHarness(t, "")
	h.set(t, "weed", "no")
	ctx, src := buildCtx(t, noisyMessage)

	dest := filepath.Join(t.TempDir(), "pager.txt")
	require.NoError(t, h.runner.EmailToFile(src, ctx.Email, ctx.Idx[0].Body, dest))

	got := readFile(t, dest)
	require.Contains(t, got, "Received: from relay.example.com")
	require.Contains(t, got, "Status: RO")
}

func TestEmailToFileDisplayFilter(t *testing.T) {
	h := newHarness(t, "")
	h.set(t, "display_filter", "render-message")
	h.filter.output = "rendered output\n"
	ctx, src := buildCtx(t, plainMessage)

	dest := filepath.Join(t.TempDir(), "pager.txt")
	require.NoError(t, h.runner.EmailToFile(src, ctx.Email, ctx.Idx[0].Body, dest))

	require.Equal(t, []string{"render-message"}, h.filter.commands)
	require.Equal(t, "rendered output\n", readFile(t, dest))
}

func TestEmailToFileRefusesExistingPath(t *testing.T) {
	h := newHarness(t, "")
	ctx, src := buildCtx(t, plainMessage)

	dest := filepath.Join(t.TempDir(), "pager.txt")
	require.NoError(t, h.runner.EmailToFile(src, ctx.Email, ctx.Idx[0].Body, dest))

	err := h.runner.EmailToFile(src, ctx.Email, ctx.Idx[0].Body, dest)
	require.Error(t, err)
	require.Contains(t, h.msg.errs, "Could not copy message")
}
