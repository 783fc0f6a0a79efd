package ingest

import "time"

// Bucket grid: money-flow observations are keyed by a discretized
// seconds-to-start value. The grid is coarse far from the start and tightens
// as the race approaches, then continues at one-minute resolution past the
// advertised start for delayed races. A key is the lower edge of its bucket;
// keys after the start are negative.
func bucketWidth(secondsToStart int64) int64 {
	switch {
	case secondsToStart < 0:
		return 60
	case secondsToStart < 300:
		return 30
	case secondsToStart < 3600:
		return 60
	default:
		return 300
	}
}

// BucketKey discretizes a time-to-start onto the grid. Larger keys are
// further from the start, i.e. chronologically earlier observations.
func BucketKey(timeToStart time.Duration) int64 {
	s := int64(timeToStart / time.Second)
	w := bucketWidth(s)
	return floorDiv(s, w) * w
}

// floorDiv rounds toward negative infinity so post-start keys land on the
// lower bucket edge like pre-start ones do.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
