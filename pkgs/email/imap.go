package email

import (
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPClient fetches raw messages for local MIME processing.
type IMAPClient struct {
	config IMAPConfig
	client *imapclient.Client
}

// IMAPConfig holds IMAP configuration
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
	StartTLS bool
}

// NewIMAPClient creates a new IMAP client
func NewIMAPClient(config IMAPConfig) *IMAPClient {
	return &IMAPClient{
		config: config,
	}
}

// Connect establishes a connection to the IMAP server
func (c *IMAPClient) Connect() error {
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)

	var client *imapclient.Client
	var err error

	if c.config.SSL {
		client, err = imapclient.DialTLS(addr, &imapclient.Options{})
	} else if c.config.StartTLS {
		client, err = imapclient.DialStartTLS(addr, &imapclient.Options{})
	} else {
		client, err = imapclient.DialInsecure(addr, &imapclient.Options{})
	}
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server %s: %w", addr, err)
	}

	// Authenticate
	if err := client.Login(c.config.Username, c.config.Password).Wait(); err != nil {
		client.Close()
		return fmt.Errorf("IMAP authentication failed: %w", err)
	}

	c.client = client
	return nil
}

// Close closes the IMAP connection
func (c *IMAPClient) Close() error {
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// ensureConnected ensures the client is connected, returns a cleanup func
func (c *IMAPClient) ensureConnected() (func(), error) {
	if c.client != nil {
		return func() {}, nil
	}
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return func() { c.Close() }, nil
}

// FetchRaw downloads one message by sequence number without marking it seen.
// The returned bytes are the full RFC 5322 message.
func (c *IMAPClient) FetchRaw(folder string, seq uint32) ([]byte, error) {
	cleanup, err := c.ensureConnected()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if folder == "" {
		folder = "INBOX"
	}

	if _, err := c.client.Select(folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("failed to select folder %s: %w", folder, err)
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: true, // don't mark as read
	}
	fetchOptions := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	seqSet := imap.SeqSetNum(seq)
	msgs, err := c.client.Fetch(seqSet, fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", seq, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %d not found in %s", seq, folder)
	}

	raw := msgs[0].FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message %d has no body section", seq)
	}
	return raw, nil
}
