package chrono

import "time"

// API is an abstraction over the clock.
//
// note: fault injection point
type API interface {
	Now() time.Time
	Location() *time.Location
}

type StandardImpl struct {
	location *time.Location
}

func NewStandardImpl(location *time.Location) StandardImpl {
	if location == nil {
		location = time.UTC
	}
	return StandardImpl{location: location}
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// FixedImpl always returns the same instant, it is meant for tests.
type FixedImpl struct {
	Time time.Time
}

func (f FixedImpl) Now() time.Time {
	return f.Time
}

func (f FixedImpl) Location() *time.Location {
	return f.Time.Location()
}
