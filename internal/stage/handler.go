package stage

import "context"

// Checker is implemented by long-lived stages that can report readiness.
type Checker interface {
	HealthCheck(context.Context) Health
}

// Collect gathers health from every checker in order, skipping nil entries.
func Collect(ctx context.Context, checkers ...Checker) []Health {
	out := make([]Health, 0, len(checkers))
	for _, c := range checkers {
		if c == nil {
			continue
		}
		out = append(out, c.HealthCheck(ctx))
	}
	return out
}
