// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package base

import "sync/atomic"

// Flag is a small atomic boolean gate, used for the loop's running/quitting
// style one-way state transitions.
type Flag struct {
	v atomic.Bool
}

func (f *Flag) Set(b bool)                        { f.v.Store(b) }
func (f *Flag) Get() bool                         { return f.v.Load() }
func (f *Flag) CompareAndSwap(old, new bool) bool { return f.v.CompareAndSwap(old, new) }
