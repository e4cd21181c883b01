package node

import "fmt"

// CircularDependencyError reports a cycle in the depends_on graph.
type CircularDependencyError struct {
	JobID string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected at job %s", e.JobID)
}
