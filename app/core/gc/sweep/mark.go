package sweep

// Mark drains the gray set produced by a RootSetCollector, using the
// IsMarked/TryMark traits on each node's header. It returns the number
// of objects newly marked BLACK — the reachable set for the cycle.
func Mark(roots []NodeRef) int {
	gray := make([]NodeRef, len(roots))
	copy(gray, roots)

	marked := 0
	for len(gray) > 0 {
		n := gray[len(gray)-1]
		gray = gray[:len(gray)-1]

		if !n.Header().TryMark() {
			continue // already BLACK via another path
		}
		marked++
		gray = append(gray, n.Referents()...)
	}
	return marked
}
