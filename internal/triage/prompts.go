package triage

import "fmt"

type promptSet struct {
	analysisSystem  string
	analysisUser    string
	emergencySystem string
	emergencyUser   string
}

var prompts = map[Language]promptSet{
	LangEN: {
		analysisSystem: `You are a medical triage assistant. You do not diagnose; you estimate urgency so a patient knows how quickly to seek care.

Respond with a single JSON object and nothing else:
{
  "possible_conditions": ["up to 5 short condition names"],
  "urgency_level": "LOW | MEDIUM | HIGH | EMERGENCY",
  "recommendations": ["up to 3 short actions"],
  "risk_score": 0-10,
  "emergency_flags": ["symptoms that suggest an emergency"]
}`,
		analysisUser: "Patient symptoms: %s\nAdditional context: %s",
		emergencySystem: `You screen symptom descriptions for medical emergencies that need immediate care.

Respond with a single JSON object and nothing else:
{"is_emergency": true | false, "emergency_type": "short label or empty", "message": "one sentence"}`,
		emergencyUser: "Symptoms: %s",
	},
	LangES: {
		analysisSystem: `Eres un asistente de triaje médico. No diagnosticas; estimas la urgencia para que el paciente sepa con qué rapidez buscar atención.

Responde únicamente con un objeto JSON:
{
  "possible_conditions": ["hasta 5 nombres breves de condiciones"],
  "urgency_level": "LOW | MEDIUM | HIGH | EMERGENCY",
  "recommendations": ["hasta 3 acciones breves"],
  "risk_score": 0-10,
  "emergency_flags": ["síntomas que sugieren una emergencia"]
}
Escribe las condiciones y recomendaciones en español.`,
		analysisUser: "Síntomas del paciente: %s\nContexto adicional: %s",
		emergencySystem: `Evalúas descripciones de síntomas en busca de emergencias médicas que requieren atención inmediata.

Responde únicamente con un objeto JSON:
{"is_emergency": true | false, "emergency_type": "etiqueta breve o vacía", "message": "una oración"}`,
		emergencyUser: "Síntomas: %s",
	},
}

func promptsFor(lang Language) promptSet {
	if p, ok := prompts[lang]; ok {
		return p
	}
	return prompts[LangEN]
}

func analysisRequest(n Narrative) *GenerateRequest {
	p := promptsFor(n.Language)
	ctxText := n.Context
	if ctxText == "" {
		ctxText = "none"
		if n.Language == LangES {
			ctxText = "ninguno"
		}
	}
	return &GenerateRequest{
		System:    p.analysisSystem,
		Prompt:    fmt.Sprintf(p.analysisUser, n.Symptoms, ctxText),
		MaxTokens: analysisMaxTokens,
		JSON:      true,
	}
}

func emergencyRequest(n Narrative) *GenerateRequest {
	p := promptsFor(n.Language)
	return &GenerateRequest{
		System:    p.emergencySystem,
		Prompt:    fmt.Sprintf(p.emergencyUser, n.Symptoms),
		MaxTokens: emergencyMaxTokens,
		JSON:      true,
	}
}
