package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Component field helpers for common component names
func Component(name string) Field {
	return String("component", name)
}

// Simulation field helpers

// SimTime records the elapsed simulation clock, in whole seconds.
func SimTime(t time.Duration) Field {
	return Int64("sim_time_s", int64(t/time.Second))
}

func Node(id string) Field {
	return String("node", id)
}

func Link(id string) Field {
	return String("link", id)
}

func Trials(n int) Field {
	return Int("trials", n)
}

func Flow(q float64) Field {
	return Float64("flow", q)
}

func Head(h float64) Field {
	return Float64("head", h)
}

func Count(n int) Field {
	return Int("count", n)
}
