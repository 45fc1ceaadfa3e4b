// Package task manages background recipe generation: queuing, bounded
// concurrent processing, status polling and the retention of finished tasks.
// Submissions return immediately with a task ID; a single worker loop pulls
// task IDs from a bounded queue and runs each through the configured Pipeline
// on its own goroutine, so a slow generation never blocks the request path.
package task
