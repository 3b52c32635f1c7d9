package config

import (
	"os"
)

// defaultMailcapPath is used when the MAILCAPS environment variable is unset.
const defaultMailcapPath = "~/.mailcap:/usr/share/neomutt/mailcap:/etc/mailcap:/usr/etc/mailcap:/usr/local/etc/mailcap"

// CoreVariables returns the definitions consulted by the MIME pipeline.
// mailcap_path is seeded from $MAILCAPS when that is set.
func CoreVariables() []*Def {
	mailcapPath := defaultMailcapPath
	if env := os.Getenv("MAILCAPS"); env != "" {
		mailcapPath = env
	}

	return []*Def{
		{Name: "assumed_charset", Type: TypeSlist, Initial: "", Data: SepColon,
			Docs: "Charsets to try for unlabelled 8-bit text"},
		{Name: "attach_save_dir", Type: TypePath, Initial: "./",
			Docs: "Default directory for saving attachments"},
		{Name: "attach_save_without_prompting", Type: TypeBool, Initial: false,
			Docs: "Save attachments without asking for a filename"},
		{Name: "attach_sep", Type: TypeString, Initial: "\n",
			Docs: "Separator written between attachments piped as one stream"},
		{Name: "attach_split", Type: TypeBool, Initial: true,
			Docs: "Operate on tagged attachments one-by-one"},
		{Name: "autocrypt", Type: TypeBool, Initial: false,
			Docs: "Enable autocrypt header processing"},
		{Name: "charset", Type: TypeString, Initial: "utf-8",
			Validator: validateCharset,
			Docs:      "Character set for the terminal"},
		{Name: "crypt_protected_headers_read", Type: TypeBool, Initial: true,
			Docs: "Replace outer headers from protected headers when reading"},
		{Name: "crypt_protected_headers_save", Type: TypeBool, Initial: false,
			Docs: "Persist the replaced subject to the mailbox"},
		{Name: "crypt_verify_sig", Type: TypeQuad, Initial: QuadYes,
			Docs: "Verify PGP/SMIME signatures automatically"},
		{Name: "digest_collapse", Type: TypeBool, Initial: true,
			Docs: "Collapse multipart/digest containers in the attachment list"},
		{Name: "display_filter", Type: TypeCommand, Initial: "",
			Docs: "External command to filter messages before display"},
		{Name: "followup_to_poster", Type: TypeQuad, Initial: QuadAskYes,
			Docs: "Honour Followup-To: poster when replying to news"},
		{Name: "forward_attachments", Type: TypeQuad, Initial: QuadAskYes,
			Docs: "Forward attachments of the original message"},
		{Name: "mailcap_path", Type: TypeSlist, Initial: mailcapPath, Data: SepColon,
			Docs: "Colon-separated list of mailcap files"},
		{Name: "mailcap_sanitize", Type: TypeBool, Initial: true,
			Docs: "Strip hostile characters from mailcap expansion parameters"},
		{Name: "message_format", Type: TypeString, Initial: "%s",
			Docs: "Format of message attachment descriptions"},
		{Name: "pager", Type: TypeCommand, Initial: "",
			Docs: "External pager; empty selects the builtin pager"},
		{Name: "print", Type: TypeQuad, Initial: QuadAskNo,
			Docs: "Confirm before printing"},
		{Name: "print_command", Type: TypeCommand, Initial: "lpr",
			Docs: "Command piped printed attachments"},
		{Name: "reply_regex", Type: TypeRegex, Initial: `^((re|aw|sv)(\[[0-9]+\])*:[ \t]*)*`,
			Docs: "Pattern recognising reply prefixes in Subject"},
		{Name: "resolve", Type: TypeBool, Initial: true,
			Docs: "Advance the cursor after an operation"},
		{Name: "wait_key", Type: TypeBool, Initial: true,
			Docs: "Prompt for a key after running external commands"},
		{Name: "weed", Type: TypeBool, Initial: true,
			Docs: "Filter uninteresting headers when displaying"},
	}
}

// validateCharset refuses charset names that contain whitespace, which would
// otherwise corrupt generated Content-Type headers.
func validateCharset(def *Def, value any) error {
	s, _ := value.(string)
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' {
			return errCharsetSpace(def.Name)
		}
	}
	return nil
}

type errCharsetSpace string

func (e errCharsetSpace) Error() string {
	return "charset value for " + string(e) + " may not contain whitespace"
}

// NewDefaultSubset builds a root subset with the standard types and the core
// variables registered. Most callers want this.
func NewDefaultSubset() (*Subset, error) {
	cs := NewSet(nil)
	if err := cs.Register(CoreVariables()); err != nil {
		return nil, err
	}
	return NewSubset(nil, cs, ""), nil
}
