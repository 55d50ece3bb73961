package domain

type MatchOutcome int

const (
	// MatchWaiting means the caller stays in the pool.
	MatchWaiting MatchOutcome = iota + 1
	// MatchMatched means the caller's request committed a pairing.
	MatchMatched
	// MatchClaimed means a concurrent request paired the caller first.
	// That request is responsible for notifying both sides.
	MatchClaimed
)

type MatchResult struct {
	Outcome   MatchOutcome
	PartnerID string
}

func Waiting() MatchResult {
	return MatchResult{Outcome: MatchWaiting}
}

func Matched(partnerID string) MatchResult {
	return MatchResult{Outcome: MatchMatched, PartnerID: partnerID}
}

func Claimed(partnerID string) MatchResult {
	return MatchResult{Outcome: MatchClaimed, PartnerID: partnerID}
}
