package systems

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

// JobSystem runs jobs on a fixed pool of workers. Completion callbacks are
// collected and invoked by Update on the caller's thread, so they may touch
// state owned by the render loop.
type JobSystem struct {
	numWorkers int
	high       chan metadata.JobInfo
	normal     chan metadata.JobInfo
	wg         sync.WaitGroup

	resultsMu sync.Mutex
	results   []func()

	closeOnce sync.Once
}

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		high:       make(chan metadata.JobInfo, channelSize),
		normal:     make(chan metadata.JobInfo, channelSize),
	}
	js.start()
	core.LogDebug("Job system started with %d workers.", numWorkers)
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for {
				job, ok := js.next()
				if !ok {
					return
				}
				js.run(job)
			}
		}()
	}
}

// next prefers the high priority queue. It reports false once both queues
// are closed and drained.
func (js *JobSystem) next() (metadata.JobInfo, bool) {
	high, normal := js.high, js.normal
	for high != nil || normal != nil {
		if high != nil {
			select {
			case job, ok := <-high:
				if ok {
					return job, true
				}
				high = nil
				continue
			default:
			}
		}
		select {
		case job, ok := <-high:
			if ok {
				return job, true
			}
			high = nil
		case job, ok := <-normal:
			if ok {
				return job, true
			}
			normal = nil
		}
	}
	return metadata.JobInfo{}, false
}

func (js *JobSystem) run(job metadata.JobInfo) {
	result, err := job.EntryPoint(job.ParamData)
	if err != nil {
		core.LogError("job failed: %s", err)
		if job.OnFail != nil {
			js.pushResult(func() { job.OnFail(err) })
		}
		return
	}
	if job.OnSuccess != nil {
		js.pushResult(func() { job.OnSuccess(result) })
	}
}

func (js *JobSystem) pushResult(fn func()) {
	js.resultsMu.Lock()
	defer js.resultsMu.Unlock()
	js.results = append(js.results, fn)
	if len(js.results) == metadata.MAX_JOB_RESULTS {
		core.LogWarn("%d job results are waiting, is the job system updated?", metadata.MAX_JOB_RESULTS)
	}
}

/**
 * @brief Shuts the job system down. Queued jobs still run, and their
 * callbacks are delivered by the next Update.
 */
func (js *JobSystem) Shutdown() error {
	js.closeOnce.Do(func() {
		close(js.high)
		close(js.normal)
	})
	js.wg.Wait()
	return nil
}

/**
 * @brief Updates the job system. Should happen once an update cycle.
 * Invokes the callbacks of every job that finished since the last update.
 */
func (js *JobSystem) Update() {
	js.resultsMu.Lock()
	results := js.results
	js.results = nil
	js.resultsMu.Unlock()

	for _, fn := range results {
		fn()
	}
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @param info The description of the job to be executed.
 */
func (js *JobSystem) Submit(info metadata.JobInfo) error {
	if info.EntryPoint == nil {
		return core.InvalidDataf("job has no entry point")
	}
	if info.Priority == metadata.JOB_PRIORITY_HIGH {
		js.high <- info
	} else {
		js.normal <- info
	}
	return nil
}
