package domain

import (
	"fmt"
	"strings"
)

// Creator is one campaign registry entry. Declaration order in the campaign
// config is significant: exact matching and fuzzy tie-breaks resolve in
// registry order.
type Creator struct {
	Handle  string   `json:"handle"  yaml:"handle"`
	Aliases []string `json:"aliases" yaml:"aliases"`
	Code    string   `json:"code"    yaml:"code"`
}

// Thresholds holds the fuzzy matching thresholds on a 0-1 scale.
type Thresholds struct {
	// FuzzyAccept is the similarity score at or above which a fuzzy match
	// is accepted. Must be in (0, 1].
	FuzzyAccept float64 `json:"fuzzy_accept" yaml:"fuzzy_accept"`
	// FuzzyReject is an optional floor below FuzzyAccept; scores between
	// the two are logged as near-misses but never accepted.
	FuzzyReject float64 `json:"fuzzy_reject" yaml:"fuzzy_reject"`
}

// Flags holds the campaign feature flags.
type Flags struct {
	EnableFuzzyMatching bool `json:"enable_fuzzy_matching" yaml:"enable_fuzzy_matching"`
	EnableLLMFallback   bool `json:"enable_llm_fallback"   yaml:"enable_llm_fallback"`
}

// Campaign is the full creator registry plus matching configuration.
// Treated as an immutable snapshot once constructed; reloads build a new
// Campaign rather than mutating a shared one.
type Campaign struct {
	Creators   []Creator  `json:"creators"   yaml:"creators"`
	Thresholds Thresholds `json:"thresholds" yaml:"thresholds"`
	Flags      Flags      `json:"flags"      yaml:"flags"`
}

// Validate checks registry invariants. Called once at construction; a
// failure here is fatal for the instance.
func (c *Campaign) Validate() error {
	if len(c.Creators) == 0 {
		return fmt.Errorf("campaign has no creators")
	}
	seen := make(map[string]bool, len(c.Creators))
	for i := range c.Creators {
		cr := &c.Creators[i]
		if cr.Handle == "" {
			return fmt.Errorf("creator %d has empty handle", i)
		}
		if seen[cr.Handle] {
			return fmt.Errorf("duplicate creator handle %q", cr.Handle)
		}
		seen[cr.Handle] = true
		if cr.Code == "" {
			return fmt.Errorf("creator %q has no discount code", cr.Handle)
		}
		for _, a := range cr.Aliases {
			if strings.TrimSpace(a) == "" {
				return fmt.Errorf("creator %q has an empty alias", cr.Handle)
			}
		}
	}
	if c.Thresholds.FuzzyAccept <= 0 || c.Thresholds.FuzzyAccept > 1 {
		return fmt.Errorf("fuzzy_accept %.3f outside (0,1]", c.Thresholds.FuzzyAccept)
	}
	if c.Thresholds.FuzzyReject < 0 || c.Thresholds.FuzzyReject > c.Thresholds.FuzzyAccept {
		return fmt.Errorf("fuzzy_reject %.3f outside [0, fuzzy_accept]", c.Thresholds.FuzzyReject)
	}
	return nil
}

// Handles returns the creator handles in declaration order.
func (c *Campaign) Handles() []string {
	handles := make([]string, len(c.Creators))
	for i := range c.Creators {
		handles[i] = c.Creators[i].Handle
	}
	return handles
}

// CodeFor returns the discount code for a handle.
func (c *Campaign) CodeFor(handle string) (string, bool) {
	for i := range c.Creators {
		if c.Creators[i].Handle == handle {
			return c.Creators[i].Code, true
		}
	}
	return "", false
}
