package jobs

import "time"

// Schedule decides when a job runs next
type Schedule interface {
	Next(after time.Time) time.Time
}

// Every runs a job at a fixed interval
type Every time.Duration

func (e Every) Next(after time.Time) time.Time {
	return after.Add(time.Duration(e))
}

// DailyAt runs a job once a day at Hour:Minute wall-clock time in Loc
type DailyAt struct {
	Hour   int
	Minute int
	Loc    *time.Location
}

func (d DailyAt) Next(after time.Time) time.Time {
	loc := d.Loc
	if loc == nil {
		loc = time.UTC
	}
	local := after.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}
