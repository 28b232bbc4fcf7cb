// Package pipeline plans and executes document conversions. A planner
// turns a project's pending file targets into tasks with resolved
// input and output paths, and a runner drives each task through
// extraction, conversion, and validation while keeping the job ledger
// and artifact rows current.
package pipeline
