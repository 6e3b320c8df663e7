package triage

var messages = map[Language][2]string{
	// index 0: routine, index 1: emergency
	LangEN: {
		"Based on your symptoms, please follow the recommendations below and consult a healthcare provider if they persist or worsen.",
		"Your symptoms may indicate a medical emergency. Call emergency services or go to the nearest emergency room now.",
	},
	LangES: {
		"Según sus síntomas, siga las recomendaciones a continuación y consulte a un profesional de la salud si persisten o empeoran.",
		"Sus síntomas pueden indicar una emergencia médica. Llame a los servicios de emergencia o acuda a la sala de emergencias más cercana ahora.",
	},
}

// Message returns the localized outcome message for (isEmergency, lang).
func Message(isEmergency bool, lang Language) string {
	m, ok := messages[lang]
	if !ok {
		m = messages[LangEN]
	}
	if isEmergency {
		return m[1]
	}
	return m[0]
}

// assemble attaches the localized message and builds the emergency
// assessment returned alongside the outcome.
func assemble(out Outcome, claim Assessment, claimed bool, signals Signals) RunResult {
	out.Message = Message(out.IsEmergency, out.Language)
	out.Signals = signals

	a := Assessment{
		IsEmergency: out.IsEmergency,
		Message:     out.Message,
	}
	if out.IsEmergency {
		switch {
		case claimed && claim.EmergencyType != "":
			a.EmergencyType = claim.EmergencyType
		case len(signals.LexicalMatches) > 0:
			a.EmergencyType = signals.LexicalMatches[0]
		case len(out.EmergencyFlags) > 0:
			a.EmergencyType = out.EmergencyFlags[0]
		}
	}

	return RunResult{
		Outcome:    out,
		Assessment: a,
		RaiseAlert: out.IsEmergency,
	}
}
