// Package workflow runs fixed, ordered lists of named steps.
//
// A Workflow is built once and reused for every run; it holds no per-run
// data. All per-run data lives in the Context handed to each step:
//   - Payload: the immutable input snapshot, validated before the run starts
//   - State: typed scratch written by earlier steps and read by later ones
//
// Execution model:
//   - Steps run strictly in declaration order, one at a time
//   - Each step returns a Result (Ok or Err); the first Err stops the run
//   - No compensation: effects of earlier steps are not rolled back
//   - A panicking step is recovered and reported as that step's Err
//
// Modes: Context.Mode is EXECUTE, DRY_RUN or PLAN. The mode is the only
// thing a step may branch on for side effects; previewing modes skip the
// effect but still report what would happen. Decision computation itself
// must not depend on the mode.
//
// The engine provides no sub-step deduplication. Steps with externally
// visible effects must be safe to retry; whole runs are deduplicated by the
// idempotency ledger.
package workflow
