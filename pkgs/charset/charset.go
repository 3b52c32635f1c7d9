// Package charset canonicalises character-set names, applies user-configured
// rewrites (charset-hook, iconv-hook) and dispenses cached byte-level
// transcoders backed by golang.org/x/text.
package charset

import (
	"strings"
)

// preferredMIMENames maps legacy charset aliases to their preferred MIME
// names. Keys are matched case-insensitively (stored lowercase). The table
// covers the IANA registrations that carry a preferred MIME name, plus
// aliases seen in the wild (glibc locale data, Sun, and common typos).
var preferredMIMENames = map[string]string{
	"ansi_x3.4-1968":   "us-ascii",
	"iso-ir-6":         "us-ascii",
	"iso_646.irv:1991": "us-ascii",
	"ascii":            "us-ascii",
	"iso646-us":        "us-ascii",
	"us":               "us-ascii",
	"ibm367":           "us-ascii",
	"cp367":            "us-ascii",
	"csascii":          "us-ascii",
	"646":              "us-ascii",

	"csiso2022kr":  "iso-2022-kr",
	"cseuckr":      "euc-kr",
	"csiso2022jp":  "iso-2022-jp",
	"csiso2022jp2": "iso-2022-jp-2",

	"iso_8859-1:1987": "iso-8859-1",
	"iso-ir-100":      "iso-8859-1",
	"iso_8859-1":      "iso-8859-1",
	"latin1":          "iso-8859-1",
	"l1":              "iso-8859-1",
	"ibm819":          "iso-8859-1",
	"cp819":           "iso-8859-1",
	"csisolatin1":     "iso-8859-1",

	"iso_8859-2:1987": "iso-8859-2",
	"iso-ir-101":      "iso-8859-2",
	"iso_8859-2":      "iso-8859-2",
	"latin2":          "iso-8859-2",
	"l2":              "iso-8859-2",
	"csisolatin2":     "iso-8859-2",

	"iso_8859-3:1988": "iso-8859-3",
	"iso-ir-109":      "iso-8859-3",
	"iso_8859-3":      "iso-8859-3",
	"latin3":          "iso-8859-3",
	"l3":              "iso-8859-3",
	"csisolatin3":     "iso-8859-3",

	"iso_8859-4:1988": "iso-8859-4",
	"iso-ir-110":      "iso-8859-4",
	"iso_8859-4":      "iso-8859-4",
	"latin4":          "iso-8859-4",
	"l4":              "iso-8859-4",
	"csisolatin4":     "iso-8859-4",

	"iso_8859-5:1988":    "iso-8859-5",
	"iso-ir-144":         "iso-8859-5",
	"iso_8859-5":         "iso-8859-5",
	"cyrillic":           "iso-8859-5",
	"csisolatincyrillic": "iso-8859-5",

	"iso_8859-6:1987":  "iso-8859-6",
	"iso-ir-127":       "iso-8859-6",
	"iso_8859-6":       "iso-8859-6",
	"ecma-114":         "iso-8859-6",
	"asmo-708":         "iso-8859-6",
	"arabic":           "iso-8859-6",
	"csisolatinarabic": "iso-8859-6",

	"iso_8859-7:1987": "iso-8859-7",
	"iso-ir-126":      "iso-8859-7",
	"iso_8859-7":      "iso-8859-7",
	"elot_928":        "iso-8859-7",
	"ecma-118":        "iso-8859-7",
	"greek":           "iso-8859-7",
	"greek8":          "iso-8859-7",
	"csisolatingreek": "iso-8859-7",

	"iso_8859-8:1988":  "iso-8859-8",
	"iso-ir-138":       "iso-8859-8",
	"iso_8859-8":       "iso-8859-8",
	"hebrew":           "iso-8859-8",
	"csisolatinhebrew": "iso-8859-8",

	"iso_8859-9:1989": "iso-8859-9",
	"iso-ir-148":      "iso-8859-9",
	"iso_8859-9":      "iso-8859-9",
	"latin5":          "iso-8859-9",
	"l5":              "iso-8859-9",
	"csisolatin5":     "iso-8859-9",

	"iso_8859-10:1992": "iso-8859-10",
	"iso-ir-157":       "iso-8859-10",
	"latin6":           "iso-8859-10",
	"l6":               "iso-8859-10",
	"csisolatin6":      "iso-8859-10",

	"iso_8859-13": "iso-8859-13",
	"iso-ir-179":  "iso-8859-13",
	"latin7":      "iso-8859-13",
	"l7":          "iso-8859-13",

	"iso_8859-14": "iso-8859-14",
	"latin8":      "iso-8859-14",
	"l8":          "iso-8859-14",

	"iso_8859-15": "iso-8859-15",
	"latin9":      "iso-8859-15",
	"latin0":      "iso-8859-15",

	"iso_8859-16": "iso-8859-16",
	"latin10":     "iso-8859-16",

	"cskoi8r": "koi8-r",

	"ms_kanji":   "Shift_JIS",
	"csshiftjis": "Shift_JIS",
	"sjis":       "Shift_JIS",
	"pck":        "Shift_JIS",

	"extended_unix_code_packed_format_for_japanese": "euc-jp",
	"cseucpkdfmtjapanese":                            "euc-jp",
	"eucjp":                                          "euc-jp",
	"euc-jp-ms":                                      "eucJP-ms",

	"ko_kr-euc": "euc-kr",

	"csgb2312":  "gb2312",
	"csbig5":    "big5",
	"zh_tw-big5": "big5",
}

// Canonical rewrites a charset name to its preferred MIME form. Any
// "/extension" suffix (such as "//TRANSLIT") is preserved verbatim. Common
// iso-8859 misspellings are repaired before the alias lookup, and utf8 folds
// to utf-8.
func Canonical(name string) string {
	if name == "" {
		return ""
	}
	in := name
	ext := ""
	if i := strings.IndexByte(in, '/'); i >= 0 {
		ext = in[i:]
		in = in[:i]
	}

	var canon string
	lower := strings.ToLower(in)
	switch {
	case lower == "utf-8" || lower == "utf8":
		canon = "utf-8"
	default:
		scratch := repairPrefix(lower)
		if pref, ok := preferredMIMENames[strings.ToLower(scratch)]; ok {
			canon = pref
		} else {
			canon = strings.ToLower(scratch)
		}
	}
	return canon + ext
}

// repairPrefix catches common iso-8859 misspellings before the alias lookup.
func repairPrefix(in string) string {
	switch {
	case strings.HasPrefix(in, "8859-"):
		return "iso-8859-" + in[len("8859-"):]
	case strings.HasPrefix(in, "8859"):
		return "iso-8859-" + in[len("8859"):]
	case strings.HasPrefix(in, "iso8859-"):
		return "iso_8859-" + in[len("iso8859-"):]
	case strings.HasPrefix(in, "iso8859"):
		return "iso_8859-" + in[len("iso8859"):]
	}
	return in
}

// IsUTF8 reports whether the name canonicalises to utf-8 (ignoring any
// extension suffix).
func IsUTF8(name string) bool {
	c := Canonical(name)
	if i := strings.IndexByte(c, '/'); i >= 0 {
		c = c[:i]
	}
	return c == "utf-8"
}

// Chscmp compares two charset names for equivalence. Extensions that
// Canonical leaves intact are tolerated: the shorter canonical name may be a
// prefix of the longer one. cs2 is expected to come from code, not user
// input, and carries no extension.
func Chscmp(cs1, cs2 string) bool {
	if cs1 == "" || cs2 == "" {
		return false
	}
	c1 := Canonical(cs1)
	if len(c1) < len(cs2) {
		return strings.EqualFold(cs2[:len(c1)], c1)
	}
	return strings.EqualFold(c1[:len(cs2)], cs2)
}

// DefaultCharset returns the charset assumed for unlabelled text: the first
// member of $assumed_charset, or us-ascii.
func DefaultCharset(assumedCharset []string) string {
	if len(assumedCharset) > 0 && assumedCharset[0] != "" {
		return assumedCharset[0]
	}
	return "us-ascii"
}

// KnownCharset reports whether the name appears in the preferred-names table
// (as key or value) or is utf-8. It is a cheap pre-check before attempting to
// open a converter.
func KnownCharset(name string) bool {
	if IsUTF8(name) {
		return true
	}
	lower := strings.ToLower(name)
	if _, ok := preferredMIMENames[lower]; ok {
		return true
	}
	for _, pref := range preferredMIMENames {
		if strings.EqualFold(pref, name) {
			return true
		}
	}
	return false
}
