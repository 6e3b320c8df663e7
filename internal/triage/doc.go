// Package triage provides the business boundary for triageline's symptom triage.
// It defines the Engine (collaborator fan-out, extraction, arbitration), the
// Service (validation, persistence, alert dispatch), the Store interface, and
// the domain models shared by the adapters.
package triage
