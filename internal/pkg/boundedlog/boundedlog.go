// Package boundedlog implements a fixed-capacity append-only sequence: once
// full, appending evicts the oldest entry. Contractor standing histories are
// bounded this way instead of ad hoc slice trimming at every call site.
package boundedlog

// Append adds entry to log, evicting from the front when len would exceed
// capacity. A non-positive capacity leaves the log unbounded.
func Append[T any](log []T, entry T, capacity int) []T {
	log = append(log, entry)
	if capacity > 0 && len(log) > capacity {
		log = log[len(log)-capacity:]
	}
	return log
}
