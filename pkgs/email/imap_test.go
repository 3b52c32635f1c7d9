package email

import (
	"net"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// IMAP mock server helper
// ---------------------------------------------------------------------------

const (
	imapTestUser = "testuser"
	imapTestPass = "testpass"
)

// newTestIMAPServer starts an in-memory IMAP server and returns the listen
// address.
func newTestIMAPServer(t *testing.T) string {
	t.Helper()

	memSrv := imapmemserver.New()
	user := imapmemserver.NewUser(imapTestUser, imapTestPass)
	user.Create("INBOX", nil)
	memSrv.AddUser(user)

	srv := imapserver.New(&imapserver.Options{
		NewSession: func(_ *imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return memSrv.NewSession(), nil, nil
		},
		InsecureAuth: true,
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
		},
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	return ln.Addr().String()
}

// appendTestMail appends a raw RFC 5322 message to the given mailbox via
// a direct IMAP client (not through our wrapper).
func appendTestMail(t *testing.T, addr, mailbox, rawMsg string) {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	c := imapclient.New(conn, nil)
	require.NoError(t, c.Login(imapTestUser, imapTestPass).Wait())

	appendCmd := c.Append(mailbox, int64(len(rawMsg)), nil)
	_, err = appendCmd.Write([]byte(rawMsg))
	require.NoError(t, err)
	require.NoError(t, appendCmd.Close())
	_, err = appendCmd.Wait()
	require.NoError(t, err)
	c.Close()
}

func newTestIMAPClient(t *testing.T, addr string) *IMAPClient {
	t.Helper()
	host, port := splitHostPort(t, addr)
	return NewIMAPClient(IMAPConfig{
		Host:     host,
		Port:     port,
		Username: imapTestUser,
		Password: imapTestPass,
	})
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestIMAPConnect_BadCredentials(t *testing.T) {
	addr := newTestIMAPServer(t)
	host, port := splitHostPort(t, addr)

	client := NewIMAPClient(IMAPConfig{
		Host:     host,
		Port:     port,
		Username: "wrong",
		Password: "wrong",
	})
	err := client.Connect()
	require.Error(t, err)
}

func TestIMAPFetchRaw(t *testing.T) {
	addr := newTestIMAPServer(t)
	appendTestMail(t, addr, "INBOX", rawTestMessage)

	client := newTestIMAPClient(t, addr)
	raw, err := client.FetchRaw("INBOX", 1)
	require.NoError(t, err)

	require.Contains(t, string(raw), "Subject: original subject")
	require.Contains(t, string(raw), "original body")
}

func TestIMAPFetchRaw_DefaultFolder(t *testing.T) {
	addr := newTestIMAPServer(t)
	appendTestMail(t, addr, "INBOX", rawTestMessage)

	client := newTestIMAPClient(t, addr)
	raw, err := client.FetchRaw("", 1)
	require.NoError(t, err)
	require.Contains(t, string(raw), "original body")
}

func TestIMAPFetchRaw_Missing(t *testing.T) {
	addr := newTestIMAPServer(t)
	appendTestMail(t, addr, "INBOX", rawTestMessage)

	client := newTestIMAPClient(t, addr)
	_, err := client.FetchRaw("INBOX", 99)
	require.Error(t, err)
}

func TestIMAPFetchRaw_LeavesMessageUnseen(t *testing.T) {
	addr := newTestIMAPServer(t)
	appendTestMail(t, addr, "INBOX", rawTestMessage)

	client := newTestIMAPClient(t, addr)
	_, err := client.FetchRaw("INBOX", 1)
	require.NoError(t, err)

	// Inspect flags with a direct client; the peek fetch must not have set
	// \Seen.
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	c := imapclient.New(conn, nil)
	defer c.Close()
	require.NoError(t, c.Login(imapTestUser, imapTestPass).Wait())
	_, err = c.Select("INBOX", nil).Wait()
	require.NoError(t, err)

	msgs, err := c.Fetch(imap.SeqSetNum(1), &imap.FetchOptions{Flags: true}).Collect()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	for _, f := range msgs[0].Flags {
		require.NotEqual(t, imap.FlagSeen, f)
	}
}

func TestIMAPClose(t *testing.T) {
	addr := newTestIMAPServer(t)
	client := newTestIMAPClient(t, addr)

	require.NoError(t, client.Connect())
	require.NoError(t, client.Close())
	// Second close should be fine
	require.NoError(t, client.Close())
}
