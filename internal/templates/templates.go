// Package templates renders user-facing replies from the YAML template
// file. Placeholders use {creator_handle} / {discount_code} syntax.
package templates

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template keys used by the agent.
const (
	KeyOutOfScope   = "out_of_scope"
	KeyAskCreator   = "ask_creator"
	KeyIssueCode    = "issue_code"
	KeyAlreadySent  = "already_sent_no_resend"
	KeyErrorGeneric = "error_generic"
)

// requiredKeys must all be present for the agent to operate.
var requiredKeys = []string{KeyOutOfScope, KeyAskCreator, KeyIssueCode, KeyAlreadySent, KeyErrorGeneric}

// Templates holds the reply templates as an immutable snapshot.
type Templates struct {
	replies map[string]string
}

type templatesFile struct {
	Replies map[string]string `yaml:"replies"`
}

// Load reads and validates the templates file.
func Load(path string) (*Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return Parse(data)
}

// Parse parses templates from raw YAML.
func Parse(data []byte) (*Templates, error) {
	var f templatesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for _, key := range requiredKeys {
		if f.Replies[key] == "" {
			return nil, fmt.Errorf("templates missing required key %q", key)
		}
	}
	return &Templates{replies: f.Replies}, nil
}

// Render returns the template for key with placeholders substituted.
func (t *Templates) Render(key string, vars map[string]string) (string, error) {
	tmpl, ok := t.replies[key]
	if !ok {
		return "", fmt.Errorf("unknown template %q", key)
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl), nil
}
