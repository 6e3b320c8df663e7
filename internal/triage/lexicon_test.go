package triage

import (
	"slices"
	"testing"
)

func TestLexicon_Matches(t *testing.T) {
	t.Parallel()

	lx := DefaultLexicon()
	tests := []struct {
		name string
		text string
		lang Language
		want []string
	}{
		{"english keywords", "I have Chest Pain and DIFFICULTY BREATHING", LangEN, []string{"chest pain", "difficulty breathing"}},
		{"spanish keywords", "Tengo dolor de pecho y dificultad para respirar", LangES, []string{"dolor de pecho", "dificultad para respirar"}},
		{"no match", "mild headache for one day", LangEN, nil},
		{"wrong language list", "chest pain", LangES, nil},
		{"unsupported language fails closed", "chest pain", Language("fr"), nil},
		{"empty text", "", LangEN, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := lx.Matches(tt.text, tt.lang)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Matches(%q, %s) = %v, want %v", tt.text, tt.lang, got, tt.want)
			}
			if lx.ContainsEmergencySignal(tt.text, tt.lang) != (len(tt.want) > 0) {
				t.Errorf("ContainsEmergencySignal disagrees with Matches")
			}
		})
	}
}

func TestLexicon_Conditions(t *testing.T) {
	t.Parallel()

	lx := DefaultLexicon()

	got := lx.Conditions("This looks like a migraine, possibly sinusitis.", LangEN)
	if !slices.Equal(got, []string{"Migraine", "Sinusitis"}) {
		t.Errorf("Conditions = %v", got)
	}

	// word boundaries: "asthmatic" must not match "Asthma"
	if got := lx.Conditions("an asthmatic reaction", LangEN); len(got) != 0 {
		t.Errorf("Conditions matched inside a word: %v", got)
	}

	// spanish narrative answered in english falls back across languages
	got = lx.Conditions("Most likely Influenza", LangES)
	if !slices.Equal(got, []string{"Influenza"}) {
		t.Errorf("cross-language fallback = %v", got)
	}
}

func TestParseLexicon_Merge(t *testing.T) {
	t.Parallel()

	lx, err := ParseLexicon([]byte(`
languages:
  en:
    emergency: ["Blue Lips", "chest pain"]
    conditions: ["Vertigo"]
`))
	if err != nil {
		t.Fatalf("ParseLexicon: %v", err)
	}

	if !lx.ContainsEmergencySignal("his lips look blue lips", LangEN) {
		t.Error("merged keyword not matched")
	}
	if !lx.ContainsEmergencySignal("chest pain", LangEN) {
		t.Error("built-in keyword lost in merge mode")
	}
	if !lx.ContainsEmergencySignal("dolor de pecho", LangES) {
		t.Error("untouched language lost its defaults")
	}

	f := lx.File()
	n := 0
	for _, k := range f.Languages[LangEN].Emergency {
		if k == "chest pain" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("duplicate keyword kept %d times, want 1", n)
	}
	if !slices.Contains(f.Languages[LangEN].Conditions, "Vertigo") {
		t.Error("merged condition missing from File()")
	}
}

func TestParseLexicon_Replace(t *testing.T) {
	t.Parallel()

	lx, err := ParseLexicon([]byte(`
mode: replace
languages:
  es:
    emergency: ["auxilio"]
`))
	if err != nil {
		t.Fatalf("ParseLexicon: %v", err)
	}
	if lx.ContainsEmergencySignal("dolor de pecho", LangES) {
		t.Error("replace mode kept a built-in keyword")
	}
	if !lx.ContainsEmergencySignal("¡Auxilio!", LangES) {
		t.Error("replacement keyword not matched")
	}
	if !lx.ContainsEmergencySignal("chest pain", LangEN) {
		t.Error("replace mode must only affect listed languages")
	}
}

func TestParseLexicon_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "languages: [unclosed"},
		{"unknown mode", "mode: append\nlanguages: {}"},
		{"unsupported language", "languages:\n  fr:\n    emergency: [\"douleur\"]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseLexicon([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadLexicon_EmptyPath(t *testing.T) {
	t.Parallel()

	lx, err := LoadLexicon("")
	if err != nil {
		t.Fatalf("LoadLexicon: %v", err)
	}
	if !lx.ContainsEmergencySignal("stroke", LangEN) {
		t.Error("defaults not loaded")
	}
}

func TestLoadLexicon_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadLexicon("/nonexistent/lexicon.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
