package triage

import (
	"slices"
	"testing"
)

func baseRecord(u Urgency) Record {
	return Record{
		PossibleConditions: []string{"Migraine"},
		UrgencyLevel:       u,
		Recommendations:    []string{"Rest"},
		RiskScore:          4,
		EmergencyFlags:     []string{},
	}
}

func TestArbitrate_UrgencyMaxMerge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		record    Urgency
		validator Urgency
		want      Urgency
	}{
		{"validator raises", UrgencyLow, UrgencyHigh, UrgencyHigh},
		{"validator cannot lower", UrgencyMedium, UrgencyLow, UrgencyMedium},
		{"absent validator", UrgencyHigh, UrgencyNone, UrgencyHigh},
		{"validator emergency urgency alone does not flag emergency", UrgencyLow, UrgencyEmergency, UrgencyEmergency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := Arbitrate(Ballot{Record: baseRecord(tt.record), Urgency: tt.validator, Language: LangEN})
			if out.UrgencyLevel != tt.want {
				t.Errorf("urgency = %s, want %s", out.UrgencyLevel, tt.want)
			}
			if out.IsEmergency {
				t.Error("IsEmergency = true, want false")
			}
		})
	}
}

func TestArbitrate_EmergencyOR(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ballot Ballot
		want   bool
	}{
		{"nothing", Ballot{Record: baseRecord(UrgencyLow)}, false},
		{"lexical only", Ballot{Record: baseRecord(UrgencyLow), Lexical: []string{"chest pain"}}, true},
		{"validator only", Ballot{Record: baseRecord(UrgencyLow), Emergency: VoteYes}, true},
		{"validator says no", Ballot{Record: baseRecord(UrgencyLow), Emergency: VoteNo}, false},
		{"record emergency", Ballot{Record: baseRecord(UrgencyEmergency)}, true},
		{"validator no cannot veto lexical", Ballot{Record: baseRecord(UrgencyLow), Lexical: []string{"stroke"}, Emergency: VoteNo}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.ballot.Language = LangEN
			out := Arbitrate(tt.ballot)
			if out.IsEmergency != tt.want {
				t.Errorf("IsEmergency = %v, want %v", out.IsEmergency, tt.want)
			}
			if out.IsEmergency && out.UrgencyLevel != UrgencyEmergency {
				t.Errorf("emergency outcome has urgency %s", out.UrgencyLevel)
			}
		})
	}
}

func TestArbitrate_FlagsIncludeLexical(t *testing.T) {
	t.Parallel()

	rec := baseRecord(UrgencyHigh)
	rec.EmergencyFlags = []string{"Chest pain", "syncope"}
	out := Arbitrate(Ballot{Record: rec, Lexical: []string{"chest pain", "difficulty breathing"}, Language: LangEN})
	want := []string{"Chest pain", "syncope", "difficulty breathing"}
	if !slices.Equal(out.EmergencyFlags, want) {
		t.Errorf("flags = %v, want %v", out.EmergencyFlags, want)
	}
}

func TestArbitrate_RecommendationReplacement(t *testing.T) {
	t.Parallel()

	sentinel := baseRecord(UrgencyMedium)
	sentinel.Recommendations = []string{SentinelRecommendation(LangES)}

	tests := []struct {
		name   string
		ballot Ballot
		want   []string
	}{
		{
			"sentinel replaced",
			Ballot{Record: sentinel, Recommended: []string{"Descanse", "Beba agua"}, RecommenderAvailable: true, Language: LangES},
			[]string{"Descanse", "Beba agua"},
		},
		{
			"real recommendations kept",
			Ballot{Record: baseRecord(UrgencyMedium), Recommended: []string{"Other"}, RecommenderAvailable: true, Language: LangEN},
			[]string{"Rest"},
		},
		{
			"recommender unavailable keeps sentinel",
			Ballot{Record: sentinel, Language: LangES},
			[]string{SentinelRecommendation(LangES)},
		},
		{
			"empty vote keeps sentinel",
			Ballot{Record: sentinel, RecommenderAvailable: true, Language: LangES},
			[]string{SentinelRecommendation(LangES)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := Arbitrate(tt.ballot)
			if !slices.Equal(out.Recommendations, tt.want) {
				t.Errorf("recommendations = %v, want %v", out.Recommendations, tt.want)
			}
		})
	}
}

func TestArbitrate_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	rec := baseRecord(UrgencyLow)
	_ = Arbitrate(Ballot{Record: rec, Lexical: []string{"seizure"}, Language: LangEN})
	if rec.UrgencyLevel != UrgencyLow || len(rec.EmergencyFlags) != 0 {
		t.Errorf("input record mutated: %+v", rec)
	}
}

// Losing a vote never lowers severity relative to a present but
// non-emergency, low-confidence vote.
func TestArbitrate_MonotoneUnderSignalLoss(t *testing.T) {
	t.Parallel()

	for _, u := range []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency} {
		for _, lexical := range [][]string{nil, {"chest pain"}} {
			present := Arbitrate(Ballot{Record: baseRecord(u), Lexical: lexical, Urgency: UrgencyLow, Emergency: VoteNo, Language: LangEN})
			absent := Arbitrate(Ballot{Record: baseRecord(u), Lexical: lexical, Language: LangEN})
			if absent.UrgencyLevel < present.UrgencyLevel {
				t.Errorf("urgency %s lexical=%v: absent %s < present %s", u, lexical, absent.UrgencyLevel, present.UrgencyLevel)
			}
			if present.IsEmergency && !absent.IsEmergency {
				t.Errorf("urgency %s lexical=%v: losing votes cleared emergency", u, lexical)
			}
		}
	}
}

func TestArbitrate_InvalidRecordUrgencyDefaultsToMedium(t *testing.T) {
	t.Parallel()

	out := Arbitrate(Ballot{Record: Record{}, Language: LangEN})
	if out.UrgencyLevel != UrgencyMedium {
		t.Errorf("urgency = %s, want MEDIUM", out.UrgencyLevel)
	}
	if len(out.PossibleConditions) == 0 || len(out.Recommendations) == 0 {
		t.Errorf("lists must never be empty: %+v", out.Record)
	}
}
