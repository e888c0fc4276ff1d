package config

import "sync/atomic"

// Runtime publishes the current Settings snapshot. Readers always see a
// complete snapshot; updates swap the pointer, they never mutate in place,
// so a toggle takes effect on the next evaluation without locking.
type Runtime struct {
	v atomic.Pointer[Settings]
}

func NewRuntime(s Settings) *Runtime {
	r := &Runtime{}
	r.v.Store(&s)
	return r
}

func (r *Runtime) Current() Settings {
	return *r.v.Load()
}

func (r *Runtime) Replace(s Settings) {
	r.v.Store(&s)
}
