// Package pipeline defines the task model of the recovery pipeline and turns
// the declarative task catalog into a validated dependency graph.
//
// A Task declares its inputs (raw files or other tasks' outputs), outputs,
// sentinel marker, thread requirement, failure policy and external
// invocation. The builder derives edges by matching inputs against declared
// outputs, the branch selector picks exactly one variant among mutually
// exclusive tasks keyed by the resolved read mode, and the generic dag
// package validates acyclicity.
package pipeline
