package config

import "fmt"

// KeyInfo is one row of `talentscout config show`.
type KeyInfo struct {
	Key   string
	Env   string
	Value string
}

// ShowAll lists the current value of every setting except secrets.
func ShowAll(cfg Config) []KeyInfo {
	out := make([]KeyInfo, 0, len(settings))
	for _, s := range settings {
		if !s.secret {
			out = append(out, KeyInfo{Key: s.key, Env: s.env, Value: format(s.field(&cfg))})
		}
	}
	return out
}

// SetKey validates value against the type of key and saves it to the
// config file.
func SetKey(key, value string) error {
	f, err := openYAMLFile(FilePath())
	if err != nil {
		return err
	}
	return setKey(f, key, value)
}

func setKey(st Store, key, value string) error {
	s, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("%s is a secret; set it with the %s environment variable", key, s.env)
	}
	var scratch Config
	if err := assign(s.field(&scratch), value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return st.Set(key, value)
}

// ValidKeys returns the settings `config set` accepts.
func ValidKeys() []string {
	var keys []string
	for _, s := range settings {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
