// Package executor runs a validated task graph to completion. It dispatches
// ready tasks in declaration order under a weighted global thread budget,
// launches their external invocations, evaluates each task's failure policy
// against the typed invocation result, and records completion markers.
//
// Task state is modeled as an explicit enum so the scheduling logic is
// testable without a filesystem; the marker files remain the durable
// contract at the process boundary. A task whose markers already exist is
// never restarted, which makes interrupted runs resumable for free.
package executor
