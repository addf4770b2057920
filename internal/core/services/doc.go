// Package services implements the driving port interfaces.
// Services contain the core orchestration logic: routing queries to the
// right index, hydrating matches from storage, and rebuilding indexes
// in throttled batches over the driven ports.
package services
