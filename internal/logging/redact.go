package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	redactedValue   = "[REDACTED]"
	redactedPattern = "[REDACTED:pattern]"
)

// RedactedString logs only the length of val.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder masks fields whose key is listed in the redaction config
// and string values matching one of its patterns.
type RedactingEncoder struct {
	zapcore.Encoder
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

// NewRedactingEncoder wraps base. A disabled config yields a pass-through.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	e := &RedactingEncoder{Encoder: base}
	if !cfg.Enabled {
		return e, nil
	}

	e.keys = make(map[string]struct{}, len(cfg.Fields))
	for _, f := range cfg.Fields {
		e.keys[strings.ToLower(f)] = struct{}{}
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		e.patterns = append(e.patterns, re)
	}
	return e, nil
}

func (e *RedactingEncoder) sensitiveKey(key string) bool {
	_, ok := e.keys[strings.ToLower(key)]
	return ok
}

// maskString returns the replacement for val, or "" when it can be logged.
func (e *RedactingEncoder) maskString(key, val string) string {
	if e.sensitiveKey(key) {
		return redactedValue
	}
	for _, re := range e.patterns {
		if re.MatchString(val) {
			return redactedPattern
		}
	}
	return ""
}

func (e *RedactingEncoder) AddString(key, val string) {
	if masked := e.maskString(key, val); masked != "" {
		val = masked
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.sensitiveKey(key) {
		val = []byte(redactedValue)
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.sensitiveKey(key) {
		val = []byte(redactedValue)
	}
	e.Encoder.AddBinary(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val any) error {
	if e.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), keys: e.keys, patterns: e.patterns}
}

// EncodeEntry masks the per-entry fields. Fields attached with Logger.With
// reach the encoder through the Add methods instead.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if len(e.keys) == 0 && len(e.patterns) == 0 {
		return e.Encoder.EncodeEntry(ent, fields)
	}
	masked := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		masked[i] = f
		switch {
		case e.sensitiveKey(f.Key):
			masked[i] = zap.String(f.Key, redactedValue)
		case f.Type == zapcore.StringType:
			if m := e.maskString(f.Key, f.String); m != "" {
				masked[i] = zap.String(f.Key, m)
			}
		}
	}
	return e.Encoder.EncodeEntry(ent, masked)
}
