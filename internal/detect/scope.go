package detect

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/jonesrussell/discount-agent/internal/domain"
)

// Keywords indicating discount-related intent.
var discountKeywords = []string{
	"discount", "code", "coupon", "promo", "creator", "sent me",
	"story", "from @",
}

// Common greetings and pleasantries with no discount signal.
var outOfScopeKeywords = []string{
	"hello", "hi", "how are you", "what's up", "good morning",
	"good evening", "thank you", "thanks", "bye", "goodbye",
}

// Aliases shorter than this are too noisy as scope signals ("mk" would
// match inside unrelated words).
const minAliasSignalLen = 3

// ScopeGate decides whether a normalized message is discount-related at
// all, before any matching effort is spent. It is conservative-deny: a
// message with neither discount nor creator signal is rejected.
type ScopeGate struct {
	discount   *ahocorasick.Matcher
	greetings  *ahocorasick.Matcher
	creatorSig *ahocorasick.Matcher
	hasSignals bool
}

// NewScopeGate builds the keyword automata for a campaign snapshot.
func NewScopeGate(campaign *domain.Campaign) *ScopeGate {
	signals := creatorSignalTokens(campaign)
	g := &ScopeGate{
		discount:   ahocorasick.NewStringMatcher(discountKeywords),
		greetings:  ahocorasick.NewStringMatcher(outOfScopeKeywords),
		hasSignals: len(signals) > 0,
	}
	if g.hasSignals {
		g.creatorSig = ahocorasick.NewStringMatcher(signals)
	}
	return g
}

// creatorSignalTokens collects every handle and usable alias, lowercased,
// as scope-gate signal substrings.
func creatorSignalTokens(campaign *domain.Campaign) []string {
	tokens := make([]string, 0, len(campaign.Creators)*4)
	for i := range campaign.Creators {
		cr := &campaign.Creators[i]
		tokens = append(tokens, strings.ToLower(cr.Handle))
		for _, alias := range cr.Aliases {
			a := strings.ToLower(alias)
			if len(a) >= minAliasSignalLen {
				tokens = append(tokens, a)
			}
		}
	}
	return tokens
}

// InScope reports whether the normalized text has discount intent.
//
// Policy, in order:
//  1. if the text contains a greeting keyword and zero discount keywords,
//     it is out of scope;
//  2. if it contains any discount keyword or any creator handle/alias as a
//     substring, it is in scope;
//  3. otherwise it is out of scope. Unknown free text with no signal is
//     not actionable.
func (g *ScopeGate) InScope(text string) bool {
	if text == "" {
		return false
	}
	b := []byte(text)

	discountHits := len(g.discount.Match(b))
	greetingHits := len(g.greetings.Match(b))

	if greetingHits >= 1 && discountHits == 0 {
		return false
	}
	if discountHits > 0 {
		return true
	}
	if g.hasSignals && len(g.creatorSig.Match(b)) > 0 {
		return true
	}
	return false
}

// HasCreatorSignal reports whether any creator handle or alias occurs in
// the text. The fuzzy matcher uses this as its pre-filter.
func (g *ScopeGate) HasCreatorSignal(text string) bool {
	if !g.hasSignals || text == "" {
		return false
	}
	return len(g.creatorSig.Match([]byte(text))) > 0
}
