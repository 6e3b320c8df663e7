package triage

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Strategy names the extraction path that produced a Record.
type Strategy string

const (
	StrategyStructured Strategy = "structured"
	StrategyPattern    Strategy = "pattern"
	StrategyDefault    Strategy = "default"
)

const (
	maxConditions      = 5
	maxRecommendations = 3

	riskBaseline = 5.0
	riskMin      = 0.0
	riskMax      = 10.0
	wordShift    = 1.0
)

var urgencyRiskOffset = map[Urgency]float64{
	UrgencyLow:       -2,
	UrgencyMedium:    0,
	UrgencyHigh:      2,
	UrgencyEmergency: 3,
}

var (
	severityWords   = wordsPattern("severe", "critical", "life-threatening", "grave", "severo", "severa", "crítico", "crítica")
	mitigatingWords = wordsPattern("mild", "minor", "occasional", "leve", "menor", "ocasional")
)

// wordsPattern matches any of words as a whole word. \b is ASCII-only in RE2,
// so boundaries are spelled out with Unicode letter classes.
func wordsPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}])`)
}

var sentinelCondition = map[Language]string{
	LangEN: "Common illness",
	LangES: "Enfermedad común",
}

var sentinelRecommendation = map[Language]string{
	LangEN: "Consult a healthcare provider",
	LangES: "Consulte a un profesional de la salud",
}

// SentinelCondition returns the placeholder condition for lang.
func SentinelCondition(lang Language) string {
	if s, ok := sentinelCondition[lang]; ok {
		return s
	}
	return sentinelCondition[LangEN]
}

// SentinelRecommendation returns the generic recommendation for lang.
func SentinelRecommendation(lang Language) string {
	if s, ok := sentinelRecommendation[lang]; ok {
		return s
	}
	return sentinelRecommendation[LangEN]
}

// DefaultRecord is the fixed safe record used when nothing can be extracted.
func DefaultRecord(lang Language) Record {
	return Record{
		PossibleConditions: []string{SentinelCondition(lang)},
		UrgencyLevel:       UrgencyMedium,
		Recommendations:    []string{SentinelRecommendation(lang)},
		RiskScore:          riskBaseline,
		EmergencyFlags:     []string{},
	}
}

// Extractor recovers structured records from raw model output.
type Extractor struct {
	lexicon    *Lexicon
	strategies []strategy
}

type extractInput struct {
	raw      string
	symptoms string
	lang     Language
}

type strategy struct {
	name Strategy
	run  func(in extractInput) (Record, bool)
}

// NewExtractor builds an extractor using lx for condition vocabulary.
func NewExtractor(lx *Lexicon) *Extractor {
	if lx == nil {
		lx = DefaultLexicon()
	}
	x := &Extractor{lexicon: lx}
	x.strategies = []strategy{
		{StrategyStructured, x.structured},
		{StrategyPattern, x.pattern},
		{StrategyDefault, func(in extractInput) (Record, bool) { return DefaultRecord(in.lang), true }},
	}
	return x
}

// Extract runs the strategy chain left to right and returns the first success.
func (x *Extractor) Extract(raw, symptoms string, lang Language) (Record, Strategy) {
	in := extractInput{raw: strings.TrimSpace(raw), symptoms: symptoms, lang: lang}
	for _, s := range x.strategies {
		if rec, ok := s.run(in); ok {
			return rec, s.name
		}
	}
	// unreachable: the default strategy always succeeds
	return DefaultRecord(lang), StrategyDefault
}

// structured decodes the expected JSON shape. The three mandatory fields must
// be present and well-typed; optional fields are decoded leniently.
func (x *Extractor) structured(in extractInput) (Record, bool) {
	obj, ok := decodeObject(in.raw)
	if !ok {
		return Record{}, false
	}

	var conditions, recommendations []string
	var urgencyToken string
	if !decodeField(obj, &conditions, "possible_conditions", "conditions") ||
		!decodeField(obj, &urgencyToken, "urgency_level", "urgency") ||
		!decodeField(obj, &recommendations, "recommendations") {
		return Record{}, false
	}

	rec := Record{
		PossibleConditions: cleanList(conditions, maxConditions),
		UrgencyLevel:       NormalizeUrgency(urgencyToken),
		Recommendations:    cleanList(recommendations, maxRecommendations),
		EmergencyFlags:     []string{},
	}

	var flags []string
	if decodeField(obj, &flags, "emergency_flags") {
		rec.EmergencyFlags = cleanList(flags, len(flags))
	}

	var score float64
	if decodeField(obj, &score, "risk_score") {
		rec.RiskScore = clampRisk(score)
	} else {
		rec.RiskScore = synthesizeRisk(rec.UrgencyLevel, in.raw, in.symptoms)
	}

	fillSentinels(&rec, in.lang)
	return rec, true
}

var (
	conditionSections = []string{
		"possible conditions", "possible_conditions", "posibles condiciones", "condiciones posibles",
		"posibles afecciones", "conditions", "condiciones", "diagnosis", "diagnóstico",
	}
	recommendationSections = []string{
		"recommendations", "recommendation", "recommended actions", "recomendaciones", "recomendación", "advice", "consejos",
	}

	urgencyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)["']?urgency[ _]level["']?\s*[:=\-]\s*\**\s*["']?([\p{L}]+)`),
		regexp.MustCompile(`(?i)["']?nivel[ _]de[ _]urgencia["']?\s*[:=\-]\s*\**\s*["']?([\p{L}]+)`),
		regexp.MustCompile(`(?i)["']?(?:urgency|urgencia)["']?\s*[:=\-]\s*\**\s*["']?([\p{L}]+)`),
	}
	riskPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)["']?risk[ _]?score["']?\s*[:=\-]\s*\**\s*(-?\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)puntuaci[oó]n[ _]de[ _]riesgo\s*[:=\-]\s*\**\s*(-?\d+(?:\.\d+)?)`),
	}

	// Inline keys inside broken JSON, most specific first. The list may be
	// cut off before its closing bracket.
	conditionInlinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)["']?(?:possible[ _]conditions|posibles[ _](?:condiciones|afecciones)|condiciones[ _]posibles)["']?\s*:\s*\[(.*?)(?:\]|$)`),
		regexp.MustCompile(`(?is)["']?(?:conditions|condiciones|diagnosis|diagn[oó]stico)["']?\s*:\s*\[(.*?)(?:\]|$)`),
	}
	recommendationInlinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)["']?(?:recommendations|recommended[ _]actions|recomendaciones)["']?\s*:\s*\[(.*?)(?:\]|$)`),
		regexp.MustCompile(`(?is)["']?(?:recommendation|recomendaci[oó]n|advice|consejos)["']?\s*:\s*\[(.*?)(?:\]|$)`),
	}

	labelLineRe  = regexp.MustCompile(`^\s*[#*_"']*\s*([\p{L}][\p{L} _]*?)\s*[*_"']*\s*[:=]\s*(.*)$`)
	bulletLineRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
	splitRe      = regexp.MustCompile(`[,;\n•]`)
	itemTrimSet  = " \t\"'`*_[]{}-•."
)

// pattern recovers labeled sections from free text. It succeeds only if at
// least one field (or a known condition name) was recovered; otherwise the
// chain falls through to the default record.
func (x *Extractor) pattern(in extractInput) (Record, bool) {
	if in.raw == "" {
		return Record{}, false
	}

	var recovered bool
	rec := Record{EmergencyFlags: []string{}}

	if items, ok := inlineList(in.raw, conditionInlinePatterns); ok {
		rec.PossibleConditions = cleanList(items, maxConditions)
	}
	if len(rec.PossibleConditions) == 0 {
		if section, ok := labeledSection(in.raw, conditionSections); ok {
			rec.PossibleConditions = cleanList(splitItems(section), maxConditions)
		}
	}
	if len(rec.PossibleConditions) == 0 {
		rec.PossibleConditions = capList(x.lexicon.Conditions(in.raw, in.lang), maxConditions)
	}
	recovered = len(rec.PossibleConditions) > 0

	if items, ok := inlineList(in.raw, recommendationInlinePatterns); ok {
		rec.Recommendations = cleanList(items, maxRecommendations)
	}
	if len(rec.Recommendations) == 0 {
		if section, ok := labeledSection(in.raw, recommendationSections); ok {
			rec.Recommendations = cleanList(splitItems(section), maxRecommendations)
		}
	}
	recovered = recovered || len(rec.Recommendations) > 0

	rec.UrgencyLevel = UrgencyMedium
	if token, ok := firstSubmatch(in.raw, urgencyPatterns); ok {
		rec.UrgencyLevel = NormalizeUrgency(token)
		recovered = true
	}

	if s, ok := firstSubmatch(in.raw, riskPatterns); ok {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			rec.RiskScore = clampRisk(v)
			recovered = true
		} else {
			rec.RiskScore = synthesizeRisk(rec.UrgencyLevel, in.raw, in.symptoms)
		}
	} else {
		rec.RiskScore = synthesizeRisk(rec.UrgencyLevel, in.raw, in.symptoms)
	}

	if !recovered {
		return Record{}, false
	}
	fillSentinels(&rec, in.lang)
	return rec, true
}

// ExtractAssessment recovers the generative emergency claim. ok is false when
// no claim could be recovered, which callers treat as an absent signal.
func (x *Extractor) ExtractAssessment(raw string, lang Language) (a Assessment, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Assessment{}, false
	}

	if obj, decoded := decodeObject(raw); decoded {
		var isEmergency bool
		if decodeField(obj, &isEmergency, "is_emergency") {
			a.IsEmergency = isEmergency
			_ = decodeField(obj, &a.EmergencyType, "emergency_type")
			_ = decodeField(obj, &a.Message, "message")
			a.EmergencyType = strings.TrimSpace(a.EmergencyType)
			return a, true
		}
		var token string
		if decodeField(obj, &token, "is_emergency") {
			if v, known := parseYesNo(token); known {
				a.IsEmergency = v
				_ = decodeField(obj, &a.EmergencyType, "emergency_type")
				_ = decodeField(obj, &a.Message, "message")
				return a, true
			}
		}
	}

	if token, found := firstSubmatch(raw, []*regexp.Regexp{isEmergencyRe}); found {
		if v, known := parseYesNo(token); known {
			a.IsEmergency = v
			if t, typed := firstSubmatch(raw, []*regexp.Regexp{emergencyTypeRe}); typed {
				a.EmergencyType = strings.Trim(strings.TrimSpace(t), itemTrimSet)
			}
			return a, true
		}
	}
	return Assessment{}, false
}

var (
	isEmergencyRe   = regexp.MustCompile(`(?i)["']?(?:is[ _]emergency|es[ _]emergencia)["']?\s*[:=\-]\s*\**\s*["']?([\p{L}]+)`)
	emergencyTypeRe = regexp.MustCompile(`(?i)["']?(?:emergency[ _]type|tipo[ _]de[ _]emergencia)["']?\s*[:=\-]\s*["']?([^"'\n,}]+)`)
)

func parseYesNo(s string) (value, known bool) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'*.`)) {
	case "true", "yes", "sí", "si", "y":
		return true, true
	case "false", "no", "n":
		return false, true
	}
	return false, false
}

// decodeObject strips markdown fences and surrounding prose, then decodes the
// outermost JSON object.
func decodeObject(raw string) (map[string]json.RawMessage, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// decodeField decodes the first present key into dst, reporting whether the
// value was present, non-null, and of the right type.
func decodeField(obj map[string]json.RawMessage, dst any, keys ...string) bool {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || string(v) == "null" {
			continue
		}
		return json.Unmarshal(v, dst) == nil
	}
	return false
}

// labeledSection returns the text following the first matching label line,
// up to the next blank line or the next non-bullet label line.
func labeledSection(text string, labels []string) (string, bool) {
	lines := strings.Split(text, "\n")
	for _, want := range labels {
		for i, line := range lines {
			if bulletLineRe.MatchString(line) {
				continue
			}
			m := labelLineRe.FindStringSubmatch(line)
			if m == nil || !strings.EqualFold(strings.TrimSpace(m[1]), want) {
				continue
			}
			parts := []string{m[2]}
			for _, next := range lines[i+1:] {
				if strings.TrimSpace(next) == "" {
					if strings.TrimSpace(strings.Join(parts, "")) == "" {
						continue
					}
					break
				}
				if !bulletLineRe.MatchString(next) && labelLineRe.MatchString(next) {
					break
				}
				parts = append(parts, next)
			}
			section := strings.TrimSpace(strings.Join(parts, "\n"))
			if section != "" {
				return section, true
			}
		}
	}
	return "", false
}

// inlineList returns the items of the first `key: [ ... ]` list matched by
// patterns. A body that is a valid JSON string list keeps commas inside items.
func inlineList(text string, patterns []*regexp.Regexp) ([]string, bool) {
	body, ok := firstSubmatch(text, patterns)
	if !ok {
		return nil, false
	}
	var items []string
	if err := json.Unmarshal([]byte("["+body+"]"), &items); err == nil {
		return items, true
	}
	return splitItems(body), true
}

func splitItems(section string) []string {
	section = strings.Trim(strings.TrimSpace(section), "[]")
	var out []string
	for _, line := range strings.Split(section, "\n") {
		line = bulletLineRe.ReplaceAllString(line, "")
		out = append(out, splitRe.Split(line, -1)...)
	}
	return out
}

// cleanList trims, drops empties, de-duplicates case-insensitively, and caps.
func cleanList(items []string, limit int) []string {
	cleaned := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(strings.Trim(strings.TrimSpace(it), itemTrimSet))
		if it != "" {
			cleaned = append(cleaned, it)
		}
	}
	return capList(dedupFold(cleaned), limit)
}

func capList(items []string, limit int) []string {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func dedupFold(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		k := strings.ToLower(strings.TrimSpace(it))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, strings.TrimSpace(it))
	}
	return out
}

func firstSubmatch(text string, patterns []*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func fillSentinels(rec *Record, lang Language) {
	if len(rec.PossibleConditions) == 0 {
		rec.PossibleConditions = []string{SentinelCondition(lang)}
	}
	if len(rec.Recommendations) == 0 {
		rec.Recommendations = []string{SentinelRecommendation(lang)}
	}
	if rec.EmergencyFlags == nil {
		rec.EmergencyFlags = []string{}
	}
}

// synthesizeRisk derives a score when none is recoverable: baseline, urgency
// offset, then a one-point nudge per severity/mitigating vocabulary hit.
func synthesizeRisk(u Urgency, raw, symptoms string) float64 {
	score := riskBaseline + urgencyRiskOffset[u]
	text := raw + "\n" + symptoms
	if severityWords.MatchString(text) {
		score += wordShift
	}
	if mitigatingWords.MatchString(text) {
		score -= wordShift
	}
	return clampRisk(score)
}

func clampRisk(v float64) float64 {
	if math.IsNaN(v) {
		return riskBaseline
	}
	return math.Max(riskMin, math.Min(riskMax, v))
}
