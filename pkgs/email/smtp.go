package email

import (
	"bytes"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPConfig holds SMTP submission settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
	StartTLS bool
}

// SMTPSender redistributes received messages over SMTP. Bounce forwards a
// message verbatim to new recipients with Resent-* headers prepended; Resend
// resubmits it to the recipients named in its own headers.
type SMTPSender struct {
	config SMTPConfig
	from   Address
	client *smtp.Client
}

// NewSMTPSender creates a sender submitting on behalf of from.
func NewSMTPSender(config SMTPConfig, from Address) *SMTPSender {
	return &SMTPSender{
		config: config,
		from:   from,
	}
}

// Connect establishes a connection to the SMTP server
func (s *SMTPSender) Connect() error {
	var dialFn func(addr string, tlsConfig *tls.Config) (*smtp.Client, error)

	tlsCfg := &tls.Config{ServerName: s.config.Host}

	if s.config.SSL {
		dialFn = smtp.DialTLS
	} else if s.config.StartTLS {
		dialFn = smtp.DialStartTLS
	} else {
		dialFn = func(addr string, tlsConfig *tls.Config) (*smtp.Client, error) {
			return smtp.Dial(addr)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	client, err := dialFn(addr, tlsCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	// Authenticate
	if s.config.Password != "" {
		auth := sasl.NewPlainClient("", s.config.Username, s.config.Password)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	s.client = client
	return nil
}

// Close closes the SMTP connection
func (s *SMTPSender) Close() error {
	if s.client != nil {
		err := s.client.Close()
		s.client = nil
		return err
	}
	return nil
}

// ensureConnected ensures the sender is connected, returns a cleanup func
func (s *SMTPSender) ensureConnected() (func(), error) {
	if s.client != nil {
		return func() {}, nil
	}
	if err := s.Connect(); err != nil {
		return nil, err
	}
	return func() { s.Close() }, nil
}

// Bounce submits raw to the given recipients. The message body is forwarded
// byte for byte; only Resent-* headers are prepended, so existing signatures
// stay valid.
func (s *SMTPSender) Bounce(raw io.Reader, to []Address) error {
	if len(to) == 0 {
		return fmt.Errorf("no bounce recipients")
	}

	cleanup, err := s.ensureConnected()
	if err != nil {
		return err
	}
	defer cleanup()

	var hdr bytes.Buffer
	fmt.Fprintf(&hdr, "Resent-From: %s\r\n", formatAddress(s.from))
	fmt.Fprintf(&hdr, "Resent-Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&hdr, "Resent-Message-ID: %s\r\n", GenerateMessageID(s.from.Email))
	fmt.Fprintf(&hdr, "Resent-To: %s\r\n", formatAddressList(to))

	rcpts := make([]string, 0, len(to))
	for _, addr := range to {
		rcpts = append(rcpts, addr.Email)
	}

	if err := s.client.SendMail(s.from.Email, rcpts, io.MultiReader(&hdr, raw)); err != nil {
		return fmt.Errorf("failed to bounce message: %w", err)
	}
	return nil
}

// Resend resubmits raw to the recipients named in its To, Cc and Bcc
// headers.
func (s *SMTPSender) Resend(raw io.Reader) error {
	data, err := io.ReadAll(raw)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	rcpts, err := recipientsFromRaw(data)
	if err != nil {
		return err
	}
	if len(rcpts) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	cleanup, err := s.ensureConnected()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := s.client.SendMail(s.from.Email, rcpts, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to resend message: %w", err)
	}
	return nil
}

// recipientsFromRaw extracts the envelope recipients from the message's own
// header block.
func recipientsFromRaw(data []byte) ([]string, error) {
	mr, err := mail.CreateReader(bytes.NewReader(data))
	if err != nil && mr == nil {
		return nil, fmt.Errorf("failed to parse message header: %w", err)
	}
	defer mr.Close()

	var rcpts []string
	for _, field := range []string{"To", "Cc", "Bcc"} {
		addrs, err := mr.Header.AddressList(field)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			rcpts = append(rcpts, a.Address)
		}
	}
	return rcpts, nil
}

func formatAddress(a Address) string {
	ma := netmail.Address{Name: a.Name, Address: a.Email}
	return ma.String()
}

func formatAddressList(addrs []Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, formatAddress(a))
	}
	return strings.Join(parts, ", ")
}

// GenerateMessageID produces a RFC 5322 compliant Message-ID using the
// domain extracted from the sender's email address.
// Format: <timestamp.random@domain>
func GenerateMessageID(fromEmail string) string {
	domain := "localhost"
	if idx := strings.Index(fromEmail, "@"); idx >= 0 {
		domain = fromEmail[idx+1:]
	}

	b := make([]byte, 8)
	_, _ = rand.Read(b)
	randomPart := hex.EncodeToString(b)

	return fmt.Sprintf("<%d.%s@%s>", time.Now().UnixNano(), randomPart, domain)
}
