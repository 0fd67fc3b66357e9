package schedule

import "time"

// InWindow reports whether t falls inside the posting window
// [startHour, endHour) in approximate marketplace local time.
//
// Local time is derived from UTC with a fixed offset: +2h April through
// October, +1h otherwise. The approximation drifts by one hour for a few
// days around the DST switches, which is acceptable for a posting window.
func InWindow(t time.Time, startHour, endHour int) bool {
	h := localHour(t)
	return h >= startHour && h < endHour
}

func localHour(t time.Time) int {
	u := t.UTC()
	off := 1
	if m := u.Month(); m >= time.April && m <= time.October {
		off = 2
	}
	return u.Add(time.Duration(off) * time.Hour).Hour()
}
