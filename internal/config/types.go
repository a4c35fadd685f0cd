package config

import "encoding/json"

const redacted = "[REDACTED]"

// Secret is a string that never prints its value. Formatting, JSON and text
// encodings all yield "[REDACTED]" (or "" when unset); call Value to read it.
type Secret string

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string   { return s.masked() }
func (s Secret) GoString() string { return "config.Secret(" + redacted + ")" }

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a value was configured.
func (s Secret) IsSet() bool { return s != "" }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.masked()) }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.masked()), nil }

// UnmarshalText accepts the raw value so the koanf decoder can populate
// secrets from YAML and the environment.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
