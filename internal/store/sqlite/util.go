package sqlite

import "time"

func unixToTime(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}
