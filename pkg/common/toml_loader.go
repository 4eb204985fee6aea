package common

import (
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/alecthomas/kong"
)

var DefaultConfigPaths = []string{"/etc/respd/respd.toml", "~/.respd.toml"}

// TomlConfigLoader is a kong.ConfigurationLoader. Flag names map onto TOML keys:
// "metrics.enable" is looked up as the key "enable" in the [metrics] table, and
// either dashes or underscores may be used in key names.
func TomlConfigLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if _, err := toml.NewDecoder(r).Decode(&values); err != nil {
		return nil, err
	}
	return kong.ResolverFunc(func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		if v, ok := lookupTomlKey(values, flag.Name); ok {
			return v, nil
		}
		return nil, nil
	}), nil
}

func lookupTomlKey(values map[string]any, name string) (any, bool) {
	for _, key := range []string{name, strings.ReplaceAll(name, "-", "_")} {
		if v, ok := values[key]; ok {
			return v, true
		}
		parts := strings.Split(key, ".")
		table := values
		for i, part := range parts {
			v, ok := table[part]
			if !ok {
				break
			}
			if i == len(parts)-1 {
				return v, true
			}
			next, isTable := v.(map[string]any)
			if !isTable {
				break
			}
			table = next
		}
	}
	return nil, false
}
