package stats

// UpdateAverage folds a new sample into a running mean without access to
// the full sample history. currentAverage is the mean of the n samples
// folded so far; the result is the mean of all n+1 samples. With n == 0
// the new value is returned exactly, so an uninitialized average never
// bleeds into the result. Every running statistic in the system goes
// through this function.
func UpdateAverage(currentAverage, newValue float64, n int) float64 {
	if n <= 0 {
		return newValue
	}
	return currentAverage + (newValue-currentAverage)/float64(n+1)
}
