package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to keep hydration snapshots fresh.
// Example usage:
//
//	scheduler := NewScheduler(configCache, feedRepo, snapshotRepo, pipeline, workerCount, interval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewRefreshFeedTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
