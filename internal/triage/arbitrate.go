package triage

// Vote is a tri-state boolean signal. VoteAbsent means the source was
// unavailable and must not influence the result in either direction.
type Vote int

const (
	VoteAbsent Vote = iota
	VoteNo
	VoteYes
)

// VoteOf converts a call result into a vote.
func VoteOf(v bool, err error) Vote {
	switch {
	case err != nil:
		return VoteAbsent
	case v:
		return VoteYes
	default:
		return VoteNo
	}
}

func (v Vote) String() string {
	switch v {
	case VoteYes:
		return "yes"
	case VoteNo:
		return "no"
	}
	return ""
}

// Ballot holds every vote that reached arbitration. Zero values mean absent.
type Ballot struct {
	Lexical     []string
	Record      Record
	Urgency     Urgency
	Emergency   Vote
	Recommended []string
	// RecommenderAvailable is true when the classifier produced a
	// recommendation vote, even an empty one.
	RecommenderAvailable bool
	Language             Language
}

// Arbitrate merges every vote into the final outcome under a
// severity-maximizing policy. It is pure and deterministic.
func Arbitrate(b Ballot) Outcome {
	rec := cloneRecord(b.Record)
	if !rec.UrgencyLevel.Valid() {
		rec.UrgencyLevel = UrgencyMedium
	}

	rec.UrgencyLevel = MaxUrgency(rec.UrgencyLevel, b.Urgency)

	isEmergency := len(b.Lexical) > 0 ||
		b.Emergency == VoteYes ||
		b.Record.UrgencyLevel == UrgencyEmergency
	if isEmergency {
		rec.UrgencyLevel = UrgencyEmergency
	}

	if b.RecommenderAvailable && len(b.Recommended) > 0 && onlySentinel(rec.Recommendations, b.Language) {
		rec.Recommendations = capList(dedupFold(b.Recommended), maxRecommendations)
	}

	rec.EmergencyFlags = dedupFold(append(append([]string{}, rec.EmergencyFlags...), b.Lexical...))
	rec.RiskScore = clampRisk(rec.RiskScore)
	fillSentinels(&rec, b.Language)

	return Outcome{
		Record:      rec,
		IsEmergency: isEmergency,
		Language:    b.Language,
	}
}

func onlySentinel(recs []string, lang Language) bool {
	if len(recs) == 0 {
		return true
	}
	if len(recs) != 1 {
		return false
	}
	return recs[0] == SentinelRecommendation(lang) || recs[0] == SentinelRecommendation(LangEN)
}

func cloneRecord(r Record) Record {
	return Record{
		PossibleConditions: append([]string(nil), r.PossibleConditions...),
		UrgencyLevel:       r.UrgencyLevel,
		Recommendations:    append([]string(nil), r.Recommendations...),
		RiskScore:          r.RiskScore,
		EmergencyFlags:     append([]string(nil), r.EmergencyFlags...),
	}
}
