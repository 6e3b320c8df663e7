package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linnemanlabs/triageline/internal/triage"
)

func execute(t *testing.T, env func(*flag.FlagSet), args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(env)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTriage_NoCollaborators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		args          []string
		wantEmergency bool
	}{
		{"english emergency", []string{"triage", "--generator", "none", "I", "have", "chest", "pain"}, true},
		{"spanish emergency", []string{"triage", "--generator", "none", "--lang", "es", "tengo dolor de pecho"}, true},
		{"routine", []string{"triage", "--generator", "none", "runny nose since yesterday"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := execute(t, nil, tt.args...)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			var res struct {
				Outcome struct {
					UrgencyLevel string `json:"urgency_level"`
					IsEmergency  bool   `json:"is_emergency"`
				} `json:"outcome"`
				RaiseAlert bool `json:"raise_alert"`
			}
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("decode %q: %v", out, err)
			}
			if res.Outcome.IsEmergency != tt.wantEmergency || res.RaiseAlert != tt.wantEmergency {
				t.Errorf("outcome = %+v raise = %v, want emergency %v", res.Outcome, res.RaiseAlert, tt.wantEmergency)
			}
		})
	}
}

func TestTriage_InvalidLanguage(t *testing.T) {
	t.Parallel()

	_, err := execute(t, nil, "triage", "--generator", "none", "--lang", "fr", "toux")
	if !errors.Is(err, triage.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestTriage_MissingAPIKey(t *testing.T) {
	t.Parallel()

	_, err := execute(t, nil, "triage", "--generator", "claude", "headache")
	if err == nil || !strings.Contains(err.Error(), "Claude") {
		t.Fatalf("err = %v, want claude init failure", err)
	}
}

func TestLexiconCheck(t *testing.T) {
	t.Parallel()

	out, err := execute(t, nil, "lexicon", "check", "sudden", "chest", "pain", "and", "shortness", "of", "breath")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"chest pain", "shortness of breath"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	out, err = execute(t, nil, "lexicon", "check", "mild", "headache")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "no emergency keywords matched") {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, nil, "lexicon", "check", "--lang", "de", "x"); err == nil {
		t.Error("expected error for unsupported language")
	}
}

func TestLexiconDump_WithOverrideFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	data := "languages:\n  en:\n    emergency: [\"blue lips\"]\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, nil, "lexicon", "dump", "--lexicon-file", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	lx, err := triage.ParseLexicon([]byte(out))
	if err != nil {
		t.Fatalf("dump is not a loadable lexicon: %v\n%s", err, out)
	}
	for _, text := range []string{"his lips are blue lips", "chest pain"} {
		if !lx.ContainsEmergencySignal(text, triage.LangEN) {
			t.Errorf("dumped lexicon does not flag %q", text)
		}
	}

	out, err = execute(t, nil, "lexicon", "check", "--lexicon-file", path, "she has blue lips")
	if err != nil || !strings.Contains(out, "blue lips") {
		t.Errorf("check with override = %q, %v", out, err)
	}
}

func TestEnvHookAppliesBeforeFlags(t *testing.T) {
	t.Parallel()

	env := func(fs *flag.FlagSet) {
		if err := fs.Set("generator", "gpt"); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if _, err := execute(t, env, "triage", "headache"); err == nil {
		t.Fatal("expected env-provided generator to be rejected")
	}
	if _, err := execute(t, env, "triage", "--generator", "none", "headache"); err != nil {
		t.Fatalf("flag should override env: %v", err)
	}
}
