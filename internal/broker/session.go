package broker

import "time"

// KST is the Korean Standard Time location the broker's session windows are
// anchored to, grounded on the teacher's internal/market/calendar.go IST
// anchoring for the same kind of exchange-local wallclock check.
var KST *time.Location

func init() {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		// Fixed UTC+9 offset fallback — KST observes no daylight saving.
		loc = time.FixedZone("KST", 9*60*60)
	}
	KST = loc
}

// DetectSession is a pure function of wallclock time.
//
// Boundaries are inclusive on both ends of each named window (B2: 15:30:00
// is DAY, 15:30:01 is CLOSED; B3: 18:00:00 and 06:00:00 are both NIGHT).
func DetectSession(now time.Time) Session {
	t := now.In(KST)

	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return SessionClosed
	}

	secondsOfDay := t.Hour()*3600 + t.Minute()*60 + t.Second()

	const (
		dayOpen    = 9 * 3600
		dayClose   = 15*3600 + 30*60
		nightOpen  = 18 * 3600
		nightClose = 6 * 3600
	)

	if secondsOfDay >= dayOpen && secondsOfDay <= dayClose {
		return SessionDay
	}
	if secondsOfDay >= nightOpen || secondsOfDay <= nightClose {
		return SessionNight
	}
	return SessionClosed
}
