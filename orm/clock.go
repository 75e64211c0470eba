package orm

import (
	"context"
	"time"
)

// Clock supplies the time stamped into created_at and updated_at.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Fixed returns a Clock that always reports t. A loader uses it so
// every row written during one run carries the run's start time.
func Fixed(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

type clockKey struct{}

// WithClock makes Create, CreateAll, Update and Upsert running under
// ctx take their timestamps from c.
func WithClock(ctx context.Context, c Clock) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, clockKey{}, c)
}

// ClockFrom reports the Clock carried by ctx, if any.
func ClockFrom(ctx context.Context) (Clock, bool) {
	c, ok := ctx.Value(clockKey{}).(Clock)
	return c, ok
}

func now(ctx context.Context) time.Time {
	if c, ok := ClockFrom(ctx); ok {
		return c.Now()
	}
	return time.Now()
}
