package triage

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the per-language keyword lists used by the lexical matcher and
// the condition vocabulary used by pattern extraction. It is immutable after
// construction and safe for concurrent use.
type Lexicon struct {
	emergency  map[Language][]string
	conditions map[Language][]conditionTerm
}

type conditionTerm struct {
	name string
	re   *regexp.Regexp
}

// LexiconFile is the on-disk YAML shape for lexicon overrides.
type LexiconFile struct {
	// Mode is "merge" (default) to extend the built-in lists or "replace" to
	// drop them for every language present in the file.
	Mode      string                       `yaml:"mode,omitempty"`
	Languages map[Language]LexiconLanguage `yaml:"languages"`
}

// LexiconLanguage is one language's keyword lists.
type LexiconLanguage struct {
	Emergency  []string `yaml:"emergency"`
	Conditions []string `yaml:"conditions"`
}

var defaultLexicon = LexiconFile{
	Languages: map[Language]LexiconLanguage{
		LangEN: {
			Emergency: []string{
				"chest pain", "difficulty breathing", "shortness of breath", "can't breathe", "cannot breathe",
				"unconscious", "unresponsive", "severe bleeding", "heavy bleeding", "heart attack", "stroke",
				"seizure", "choking", "suicidal", "overdose", "poisoning", "coughing blood", "vomiting blood",
				"severe allergic reaction", "anaphylaxis", "paralysis", "slurred speech",
			},
			Conditions: []string{
				"Common cold", "Influenza", "Migraine", "Tension headache", "Gastroenteritis", "Food poisoning",
				"Allergies", "Sinusitis", "Bronchitis", "Pneumonia", "Urinary tract infection", "Dehydration",
				"Hypertension", "Asthma", "COVID-19", "Strep throat", "Anxiety",
			},
		},
		LangES: {
			Emergency: []string{
				"dolor de pecho", "dolor en el pecho", "dificultad para respirar", "falta de aire", "no puedo respirar",
				"inconsciente", "sangrado abundante", "hemorragia", "ataque al corazón", "infarto", "derrame cerebral",
				"convulsión", "convulsiones", "asfixia", "atragantamiento", "suicida", "sobredosis", "envenenamiento",
				"tos con sangre", "vómito con sangre", "reacción alérgica grave", "anafilaxia", "parálisis",
			},
			Conditions: []string{
				"Resfriado común", "Gripe", "Migraña", "Cefalea tensional", "Gastroenteritis", "Intoxicación alimentaria",
				"Alergia", "Sinusitis", "Bronquitis", "Neumonía", "Infección urinaria", "Deshidratación",
				"Hipertensión", "Asma", "COVID-19", "Faringitis", "Ansiedad",
			},
		},
	},
}

// DefaultLexicon returns the built-in lexicon.
func DefaultLexicon() *Lexicon {
	return buildLexicon(defaultLexicon)
}

// LoadLexicon reads a YAML override file and applies it on top of the
// built-in lexicon. An empty path returns the defaults.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	return ParseLexicon(data)
}

// ParseLexicon applies YAML override bytes on top of the built-in lexicon.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var f LexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}

	merged := LexiconFile{Languages: make(map[Language]LexiconLanguage, len(Languages))}
	for _, l := range Languages {
		merged.Languages[l] = defaultLexicon.Languages[l]
	}

	switch f.Mode {
	case "", "merge", "replace":
	default:
		return nil, fmt.Errorf("parse lexicon: unknown mode %q (want merge or replace)", f.Mode)
	}

	for lang, over := range f.Languages {
		if !lang.Supported() {
			return nil, fmt.Errorf("parse lexicon: unsupported language %q", string(lang))
		}
		if f.Mode == "replace" {
			merged.Languages[lang] = over
			continue
		}
		base := merged.Languages[lang]
		merged.Languages[lang] = LexiconLanguage{
			Emergency:  append(append([]string{}, base.Emergency...), over.Emergency...),
			Conditions: append(append([]string{}, base.Conditions...), over.Conditions...),
		}
	}
	return buildLexicon(merged), nil
}

func buildLexicon(f LexiconFile) *Lexicon {
	lx := &Lexicon{
		emergency:  make(map[Language][]string, len(f.Languages)),
		conditions: make(map[Language][]conditionTerm, len(f.Languages)),
	}
	for lang, ll := range f.Languages {
		lx.emergency[lang] = normalizeKeywords(ll.Emergency)
		for _, name := range dedupFold(ll.Conditions) {
			lx.conditions[lang] = append(lx.conditions[lang], conditionTerm{
				name: name,
				re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`),
			})
		}
	}
	return lx
}

// normalizeKeywords lowercases, trims, and de-duplicates while keeping order.
func normalizeKeywords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		lw := strings.ToLower(strings.TrimSpace(w))
		if lw == "" {
			continue
		}
		if _, dup := seen[lw]; dup {
			continue
		}
		seen[lw] = struct{}{}
		out = append(out, lw)
	}
	return out
}

// Matches returns the emergency keywords found in text, in lexicon order.
// Unsupported languages match nothing.
func (lx *Lexicon) Matches(text string, lang Language) []string {
	keywords, ok := lx.emergency[lang]
	if !ok || text == "" {
		return nil
	}
	lc := strings.ToLower(text)
	var found []string
	for _, k := range keywords {
		if strings.Contains(lc, k) {
			found = append(found, k)
		}
	}
	return found
}

// ContainsEmergencySignal reports whether any emergency keyword for lang occurs in text.
func (lx *Lexicon) ContainsEmergencySignal(text string, lang Language) bool {
	return len(lx.Matches(text, lang)) > 0
}

// Conditions scans text for known condition names of lang (falling back to
// every language, since models sometimes answer in English regardless).
func (lx *Lexicon) Conditions(text string, lang Language) []string {
	var found []string
	scan := func(l Language) {
		for _, c := range lx.conditions[l] {
			if c.re.MatchString(text) {
				found = append(found, c.name)
			}
		}
	}
	scan(lang)
	if len(found) == 0 {
		for _, l := range Languages {
			if l != lang {
				scan(l)
			}
		}
	}
	return dedupFold(found)
}

// File returns the effective lexicon in its YAML file shape.
func (lx *Lexicon) File() LexiconFile {
	f := LexiconFile{Mode: "replace", Languages: make(map[Language]LexiconLanguage, len(lx.emergency))}
	for _, l := range Languages {
		ll := LexiconLanguage{Emergency: append([]string{}, lx.emergency[l]...)}
		for _, c := range lx.conditions[l] {
			ll.Conditions = append(ll.Conditions, c.name)
		}
		f.Languages[l] = ll
	}
	return f
}
