// Package secrets redacts credentials from document text before it is
// embedded and stored.
//
// Detection uses the gitleaks default rule set. Matches of the optional
// allow list are kept verbatim.
package secrets

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// DefaultReplacement replaces every detected secret.
const DefaultReplacement = "[REDACTED]"

// Config configures the scrubber.
type Config struct {
	// Enabled controls whether scrubbing is active.
	Enabled bool `koanf:"enabled"`

	// Replacement is the text substituted for each secret (default: "[REDACTED]").
	Replacement string `koanf:"replacement"`

	// AllowList holds regular expressions; secrets matching any of them
	// are left in place.
	AllowList []string `koanf:"allow_list"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Replacement == "" {
		c.Replacement = DefaultReplacement
	}
}

// Validate checks that every allow list entry compiles.
func (c Config) Validate() error {
	for i, pattern := range c.AllowList {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("allow_list %d: invalid pattern: %w", i, err)
		}
	}
	return nil
}

// Finding is one detected secret. The secret itself is never retained.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Line        int    `json:"line"`
}

// Result is the outcome of scrubbing one text.
type Result struct {
	Text     string    `json:"-"`
	Findings []Finding `json:"findings"`
}

// RuleIDs returns the distinct rule ids that fired, sorted.
func (r Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		ids = append(ids, f.RuleID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Scrubber detects and redacts secrets. It is safe for concurrent use.
type Scrubber struct {
	replacement string
	allow       []*regexp.Regexp

	// gitleaks detectors keep per-scan state.
	mu       sync.Mutex
	detector *detect.Detector
}

// New creates a Scrubber. Loading the gitleaks rule set compiles several
// hundred patterns, so create one Scrubber per process.
func New(cfg Config) (*Scrubber, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", err)
	}

	s := &Scrubber{replacement: cfg.Replacement, detector: detector}
	for _, pattern := range cfg.AllowList {
		s.allow = append(s.allow, regexp.MustCompile(pattern))
	}
	return s, nil
}

// Scrub replaces every detected secret in text. Text without findings is
// returned unchanged.
func (s *Scrubber) Scrub(text string) Result {
	res := Result{Text: text, Findings: []Finding{}}
	if strings.TrimSpace(text) == "" {
		return res
	}

	s.mu.Lock()
	found := s.detector.DetectString(text)
	s.mu.Unlock()

	var secrets []string
	for _, f := range found {
		if f.Secret == "" || s.allowed(f.Secret) {
			continue
		}
		res.Findings = append(res.Findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
		})
		secrets = append(secrets, f.Secret)
	}
	if len(secrets) == 0 {
		return res
	}

	// Longest first so a secret containing another is replaced whole.
	slices.SortFunc(secrets, func(a, b string) int { return len(b) - len(a) })
	for _, secret := range secrets {
		res.Text = strings.ReplaceAll(res.Text, secret, s.replacement)
	}
	return res
}

func (s *Scrubber) allowed(secret string) bool {
	for _, re := range s.allow {
		if re.MatchString(secret) {
			return true
		}
	}
	return false
}
