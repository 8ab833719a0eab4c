// Package metrics holds the Prometheus collectors each binary registers. A
// nil registerer yields collectors whose methods are no-ops.
package metrics

const namespace = "dropship"

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return OutcomeError
}
