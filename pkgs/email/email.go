// Package email holds the message-level model: envelopes, security state,
// subject indexing, and mailbox append/fetch plumbing.
package email

import (
	"strings"
	"time"

	"github.com/emx-mail/mimecore/pkgs/config"
)

// SecurityFlags records what crypto treatment a message carries.
type SecurityFlags uint16

const (
	SecEncrypt SecurityFlags = 1 << iota
	SecSign
	SecGoodSign
	SecBadSign
	AppPGP
	AppSMIME
)

// Composite flags for the two encryption stacks.
const (
	PGPEncrypt   = AppPGP | SecEncrypt
	SMIMEEncrypt = AppSMIME | SecEncrypt
)

// Address is one RFC 5322 mailbox.
type Address struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Envelope holds the parsed message headers the core cares about. A Body's
// protected headers (the copy carried inside a signed or encrypted envelope)
// use the same type.
type Envelope struct {
	From       []Address
	To         []Address
	Cc         []Address
	Subject    string
	RealSubj   string // Subject with reply prefixes stripped
	Date       time.Time
	MessageID  string
	InReplyTo  string
	References []string

	// AutocryptGossip carries Autocrypt-Gossip header values found inside
	// an encrypted envelope.
	AutocryptGossip []string
}

// Email is one message in a mailbox.
type Email struct {
	Envelope *Envelope
	Security SecurityFlags

	// Dirty marks pending metadata changes that should be written back to
	// the mailbox on next sync.
	Dirty bool

	UID    uint32
	SeqNum uint32
}

// SetSubject replaces the envelope subject and recomputes RealSubj using the
// user's reply_regex.
func (e *Email) SetSubject(subject string, replyRegex *config.Regex) {
	if e.Envelope == nil {
		e.Envelope = &Envelope{}
	}
	e.Envelope.Subject = subject
	e.Envelope.RealSubj = StripReplyPrefix(subject, replyRegex)
}

// StripReplyPrefix removes a leading reply prefix ("Re:", "Aw:", ...) matched
// by the user's reply_regex. Only a match anchored at the start counts.
func StripReplyPrefix(subject string, replyRegex *config.Regex) string {
	if replyRegex == nil || replyRegex.Re == nil {
		return subject
	}
	loc := replyRegex.Re.FindStringIndex(subject)
	if loc == nil || loc[0] != 0 {
		return subject
	}
	return strings.TrimLeft(subject[loc[1]:], " \t")
}

// SubjectIndex groups emails by stripped subject. The protected-header
// rewrite path removes a message under its old subject and re-inserts it
// under the new one.
type SubjectIndex struct {
	m map[string][]*Email
}

// NewSubjectIndex returns an empty index.
func NewSubjectIndex() *SubjectIndex {
	return &SubjectIndex{m: make(map[string][]*Email)}
}

func (si *SubjectIndex) key(e *Email) string {
	if e.Envelope == nil {
		return ""
	}
	if e.Envelope.RealSubj != "" {
		return e.Envelope.RealSubj
	}
	return e.Envelope.Subject
}

// Add indexes the email under its current subject.
func (si *SubjectIndex) Add(e *Email) {
	k := si.key(e)
	si.m[k] = append(si.m[k], e)
}

// Remove drops the email from under its current subject.
func (si *SubjectIndex) Remove(e *Email) {
	k := si.key(e)
	list := si.m[k]
	for i, other := range list {
		if other == e {
			si.m[k] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(si.m[k]) == 0 {
		delete(si.m, k)
	}
}

// Lookup returns the emails indexed under a subject.
func (si *SubjectIndex) Lookup(subject string) []*Email {
	return si.m[subject]
}
