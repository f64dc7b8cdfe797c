// Package resource bounds the resources the ancestry cache and its checkpoints consume.
//
// A Controller enforces a memory budget for slot storage (growth that would
// exceed the budget is refused), throttles checkpoint IO to a byte rate, and
// limits how many checkpoints are written concurrently.
//
// A nil *Controller is valid and imposes no limits.
package resource
