// Package app wires the pipeline end to end: configuration, task graph
// construction, external tool execution, consensus selection, iterative
// refinement and the final reports.
package app
