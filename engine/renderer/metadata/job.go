package metadata

/** Definition for jobs. Runs on a worker and returns the result handed to OnSuccess. */
type JobStart func(params interface{}) (interface{}, error)

/** Definition for completion of a job. */
type JobOnComplete func(result interface{})

/** Definition for the failure of a job. */
type JobOnFail func(err error)

/**
 * @brief Determines which job queue a job uses. The high-priority queue is always
 * drained before the normal-priority one.
 */
type JobPriority int

const (
	/** @brief A normal-priority job. Should be used for medium-priority tasks such as loading assets. */
	JOB_PRIORITY_NORMAL JobPriority = iota
	/** @brief The highest-priority job. Should be used sparingly, and only for time-critical operations.*/
	JOB_PRIORITY_HIGH
)

/**
 * @brief Describes a job to be run.
 */
type JobInfo struct {
	/** @brief The priority of this job. Higher priority jobs obviously run sooner. */
	Priority JobPriority
	/** @brief A function pointer to be invoked when the job starts. Required. */
	EntryPoint JobStart
	/**
	 * @brief Invoked from JobSystem.Update with the entry point result when the
	 * job succeeds. Optional.
	 */
	OnSuccess JobOnComplete
	/** @brief Invoked from JobSystem.Update when the job fails. Optional. */
	OnFail JobOnFail
	/** @brief Data to be passed to the entry point upon execution. */
	ParamData interface{}
}

// The max number of job results that can be waiting for Update at once.
const MAX_JOB_RESULTS int = 512
