package entity

// MatchTier orders the text-matching fallback used both by the resolver's
// plausibility check and by the browser's element lookup. Lower tiers are
// stricter; the browser starts at the given tier and falls through to the
// looser ones.
type MatchTier int

const (
	TierExact MatchTier = iota
	TierFold
	TierSubstring
	TierNone
)

func (t MatchTier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierFold:
		return "fold"
	case TierSubstring:
		return "substring"
	default:
		return "none"
	}
}
