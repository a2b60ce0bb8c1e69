package mute

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules is the parsed rule file.
type Rules struct {
	// Keywords hide statuses whose text contains any of them (case-insensitive).
	Keywords []string `yaml:"keywords" json:"keywords"`

	// Accounts hide content authored by these accts (user@domain or user).
	Accounts []string `yaml:"accounts" json:"accounts"`

	// Domains hide content authored by accounts on these instances.
	Domains []string `yaml:"domains" json:"domains"`
}

// LoadRules reads and parses a rule file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mute rules %q: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse mute rules %q: %w", path, err)
	}
	r.normalize()
	return &r, nil
}

func (r *Rules) normalize() {
	for i, k := range r.Keywords {
		r.Keywords[i] = strings.ToLower(k)
	}
	for i, a := range r.Accounts {
		r.Accounts[i] = strings.ToLower(strings.TrimPrefix(a, "@"))
	}
	for i, d := range r.Domains {
		r.Domains[i] = strings.ToLower(d)
	}
}

// MutesAccount reports whether acct is muted by account or domain.
func (r *Rules) MutesAccount(acct string) bool {
	acct = strings.ToLower(strings.TrimPrefix(acct, "@"))
	if acct == "" {
		return false
	}
	for _, a := range r.Accounts {
		if a == acct {
			return true
		}
	}
	if _, domain, ok := strings.Cut(acct, "@"); ok {
		for _, d := range r.Domains {
			if d == domain {
				return true
			}
		}
	}
	return false
}

// MutesText reports whether text contains a muted keyword.
func (r *Rules) MutesText(text string) bool {
	text = strings.ToLower(text)
	for _, k := range r.Keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
