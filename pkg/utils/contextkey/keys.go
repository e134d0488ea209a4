package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

const (
	WorkerID key = "worker_id"
	JobID    key = "job_id"
	TaskID   key = "task_id"
)
