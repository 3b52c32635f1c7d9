package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// rcFile is the YAML shape of a user rc file: a flat map of variable names to
// values under "set", plus optional lists of names to reset or unset.
//
//	set:
//	  mailcap_path: ~/.mailcap:/etc/mailcap
//	  weed: yes
//	reset:
//	  - wait_key
type rcFile struct {
	Set   map[string]string `yaml:"set"`
	Reset []string          `yaml:"reset"`
}

// LoadFile applies a YAML rc file to the subset. Every value passes through
// the typed SetString path, so malformed values are reported with the
// variable name and the type's own error text.
func LoadFile(sub *Subset, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rc file: %w", err)
	}
	return applyRc(sub, data, path)
}

func applyRc(sub *Subset, data []byte, path string) error {
	expanded := os.ExpandEnv(string(data))

	var rc rcFile
	if err := yaml.Unmarshal([]byte(expanded), &rc); err != nil {
		return fmt.Errorf("failed to parse rc file %s: %w", path, err)
	}

	var errbuf strings.Builder
	for name, value := range rc.Set {
		errbuf.Reset()
		var res Result
		switch {
		case strings.HasPrefix(name, "my_"):
			res = setMyVar(sub, name, value, &errbuf)
		case strings.HasSuffix(name, "+"):
			res = sub.PlusEquals(strings.TrimSuffix(name, "+"), value, &errbuf)
		case strings.HasSuffix(name, "-"):
			res = sub.MinusEquals(strings.TrimSuffix(name, "-"), value, &errbuf)
		default:
			res = sub.SetString(name, value, &errbuf)
		}
		if !res.IsSuccess() {
			return fmt.Errorf("%s: set %s: %s: %s", path, name, res, errbuf.String())
		}
	}

	for _, name := range rc.Reset {
		errbuf.Reset()
		if res := sub.Reset(name, &errbuf); !res.IsSuccess() {
			return fmt.Errorf("%s: reset %s: %s: %s", path, name, res, errbuf.String())
		}
	}
	return nil
}

// setMyVar creates the user-defined variable on first set.
func setMyVar(sub *Subset, name, value string, err *strings.Builder) Result {
	if sub.Lookup(name) == nil {
		_, res := sub.Set().CreateVariable(name, value, err)
		return res
	}
	return sub.SetString(name, value, err)
}
