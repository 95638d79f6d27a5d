package digitize

// SubmittingProgress is shown between submission and the first server
// response. It stays below Estimate(StatusPending) so progress never drops.
const SubmittingProgress = 1

// Estimate maps a job status to a progress percentage.
//
// This is a pure function; keeping progress non-decreasing for one job id
// is the Session's job.
func Estimate(status Status) int {
	switch status {
	case StatusPending:
		return 5
	case StatusProcessing:
		return 50
	case StatusCompleted, StatusFailed:
		return 100
	default:
		return 0
	}
}
