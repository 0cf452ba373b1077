package detect

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/jonesrussell/discount-agent/internal/domain"
	"github.com/jonesrussell/discount-agent/internal/logging"
)

// partialRatioScale converts the 0-100 PartialRatio score to the 0-1 scale
// used by the thresholds.
const partialRatioScale = 100.0

// aliasEntry is one (alias, creator) pair in registry declaration order.
type aliasEntry struct {
	alias   string
	creator string
}

// handleEntry keeps a creator handle in declared and lowercased form.
type handleEntry struct {
	lower    string
	declared string
}

// Matcher performs exact and fuzzy creator matching against an immutable
// campaign snapshot. Safe for concurrent use.
type Matcher struct {
	handles    []handleEntry // declaration order
	aliases    []aliasEntry
	thresholds domain.Thresholds
	fuzzyOn    bool
	stopwords  map[string]bool
	logger     logging.Logger
}

// NewMatcher builds a matcher from a validated campaign.
func NewMatcher(campaign *domain.Campaign, logger logging.Logger) *Matcher {
	m := &Matcher{
		thresholds: campaign.Thresholds,
		fuzzyOn:    campaign.Flags.EnableFuzzyMatching,
		stopwords:  buildStopwords(),
		logger:     logger,
	}
	for i := range campaign.Creators {
		cr := &campaign.Creators[i]
		m.handles = append(m.handles, handleEntry{
			lower:    strings.ToLower(cr.Handle),
			declared: cr.Handle,
		})
		for _, alias := range cr.Aliases {
			m.aliases = append(m.aliases, aliasEntry{
				alias:   strings.ToLower(alias),
				creator: cr.Handle,
			})
		}
	}
	return m
}

// ExactMatch tests every creator handle, then every alias, as a literal
// substring of the normalized text. First match in declaration order wins.
// This is a plain contains-test, not token-boundary aware: an alias that
// happens to be a substring of an unrelated word will match.
func (m *Matcher) ExactMatch(text string) (creator string, ok bool) {
	for _, h := range m.handles {
		if strings.Contains(text, h.lower) {
			return h.declared, true
		}
	}
	for _, e := range m.aliases {
		if strings.Contains(text, e.alias) {
			m.logger.Debug("exact alias match",
				logging.String("alias", e.alias),
				logging.String("creator", e.creator))
			return e.creator, true
		}
	}
	return "", false
}

// FuzzyMatch scores the normalized text against every known alias with
// partial-ratio similarity and accepts the single best pair iff its score
// reaches the accept threshold. The returned confidence is the raw score
// used in the threshold comparison.
//
// Returns immediately when fuzzy matching is disabled or when the text has
// no candidate creator token (nothing worth a similarity pass).
func (m *Matcher) FuzzyMatch(text string) (creator string, score float64, ok bool) {
	if !m.fuzzyOn || !m.hasCandidateToken(text) {
		return "", 0, false
	}

	var bestScore float64
	var bestAlias string
	var bestCreator string
	for _, e := range m.aliases {
		s := float64(fuzzy.PartialRatio(text, e.alias)) / partialRatioScale
		// strictly-greater keeps the first-seen pair on ties
		if s > bestScore {
			bestScore = s
			bestAlias = e.alias
			bestCreator = e.creator
		}
	}

	if bestScore >= m.thresholds.FuzzyAccept {
		m.logger.Info("fuzzy match accepted",
			logging.String("alias", bestAlias),
			logging.String("creator", bestCreator),
			logging.Float64("score", bestScore))
		return bestCreator, bestScore, true
	}
	if bestScore >= m.thresholds.FuzzyReject && bestCreator != "" {
		m.logger.Debug("fuzzy near-miss below accept threshold",
			logging.String("alias", bestAlias),
			logging.Float64("score", bestScore))
	}
	return "", 0, false
}

// hasCandidateToken reports whether the text contains at least one token
// that could plausibly name a creator: three or more characters and not one
// of the intent/greeting keywords. Without such a token the similarity pass
// can only produce false positives.
func (m *Matcher) hasCandidateToken(text string) bool {
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, "@#.,!?;:'\"")
		if len(word) >= minAliasSignalLen && !m.stopwords[word] {
			return true
		}
	}
	return false
}

func buildStopwords() map[string]bool {
	words := make(map[string]bool)
	for _, kw := range discountKeywords {
		for _, w := range strings.Fields(kw) {
			words[w] = true
		}
	}
	for _, kw := range outOfScopeKeywords {
		for _, w := range strings.Fields(kw) {
			words[w] = true
		}
	}
	for _, w := range []string{
		"the", "and", "for", "you", "your", "can", "get", "got",
		"please", "need", "want", "have", "send", "give", "me",
	} {
		words[w] = true
	}
	return words
}
