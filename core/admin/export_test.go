package admin

import "time"

// SetNow replaces the clock until the returned func is called.
func SetNow(now func() time.Time) (reset func()) {
	nowFunc = now
	return func() { nowFunc = time.Now }
}
