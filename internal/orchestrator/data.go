package orchestrator

import "time"

/*
Orchestrator Loop (spec §4.14)

Runs the SELECT -> FETCH -> ROUTE -> PROCESS -> CHECKPOINT -> FLUSH?
state machine to termination (DONE), owning every piece of shared
mutable state (Dedup Index, Scheduler, family counters, SimHash
registry) as the single sequential consumer spec §5 requires. The
fetch pipeline (pipeline.go) runs up to concurrency Fetch calls in
parallel, but every response is routed, processed and applied on Run's
own goroutine, so no additional locking is needed here.
*/

// checkpointEveryN caps how often a checkpoint is written: every
// iteration would make the atomic-rename churn dominate runtime on a
// fast, uncontended crawl, so a checkpoint is forced at this cadence
// and on every terminal (stop/DONE) event regardless.
const checkpointEveryN = 10

// RunResult is what Run returns once the loop reaches DONE.
type RunResult struct {
	Stats      Counts
	StopReason string
	Duration   time.Duration
}

// Counts tracks budget consumption and error volume across the run;
// it's also the source for scheduler.Metrics on every SELECT.
type Counts struct {
	Pages   int
	JS      int
	API     int
	Errors  int
	Skipped int
	Fetches int
}
