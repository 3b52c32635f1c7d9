package mailcap

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

// ExpandFilename builds a temp-file path for an attachment from a mailcap
// nametemplate and the attachment's original filename. Leading directories of
// both inputs are ignored. When the template contains %s the original name is
// substituted there, except that template text already matched by the
// original name on either side of the %s is not duplicated. The result is
// placed in the system temp directory with collision avoidance.
func ExpandFilename(nametemplate, oldfile string) string {
	nametemplate = filepath.Base(strings.TrimSuffix(nametemplate, "/"))
	if nametemplate == "." {
		nametemplate = ""
	}
	if oldfile != "" {
		oldfile = filepath.Base(oldfile)
	}

	var newfile string
	switch {
	case nametemplate == "":
		newfile = oldfile
	case oldfile == "":
		newfile = strings.ReplaceAll(nametemplate, "%s", "mimecore")
	default:
		newfile = mergeTemplate(nametemplate, oldfile)
	}
	return advMktemp(os.TempDir(), newfile)
}

// mergeTemplate substitutes oldfile into the template's %s, trimming template
// text that oldfile already carries. "%s.gif" applied to "sample.gif" yields
// "sample.gif", not "sample.gif.gif".
func mergeTemplate(nametemplate, oldfile string) string {
	ps := strings.Index(nametemplate, "%s")
	if ps < 0 {
		return nametemplate
	}

	// Left side: does oldfile already start with the text before %s?
	lmatch := len(oldfile) >= ps && nametemplate[:ps] == oldfile[:ps]

	// Right side: does oldfile already end with the text after %s? Text
	// counted by the left match is not counted again.
	right := nametemplate[ps+2:]
	floor := 0
	if lmatch {
		floor = ps
	}
	rmatch := len(oldfile)-floor >= len(right) && strings.HasSuffix(oldfile[floor:], right)

	var b strings.Builder
	if !lmatch {
		b.WriteString(nametemplate[:ps])
	}
	b.WriteString(oldfile)
	if !rmatch {
		b.WriteString(right)
	}
	return b.String()
}

// advMktemp joins a sanitised name onto dir, appending a random infix when
// the plain path already exists. An empty name produces a fully random one.
// The path is only reserved, not created; callers open it exclusively.
func advMktemp(dir, name string) string {
	if name == "" {
		return filepath.Join(dir, fmt.Sprintf("mimecore-%d-%x", os.Getpid(), rand.Uint64()))
	}
	name = SanitizeFilename(name, true)
	path := filepath.Join(dir, name)
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return path
	}

	prefix, suffix, found := strings.Cut(name, ".")
	if found {
		suffix = "." + suffix
	}
	for {
		path = filepath.Join(dir, fmt.Sprintf("%s-%x%s", prefix, rand.Uint64(), suffix))
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return path
		}
	}
}
