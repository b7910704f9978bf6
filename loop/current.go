// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package loop

import "github.com/momentics/goreactor/base"

var loopsByGoroutine = base.NewLoopRegistry[*EventLoop]()

// CurrentLoop returns the EventLoop owning the calling goroutine, if any.
// Handlers and RunInLoop callbacks can use this to assert they are running
// on the loop they expect instead of threading an explicit loop argument
// through every call.
func CurrentLoop() (*EventLoop, bool) {
	return loopsByGoroutine.Get(base.GoroutineID())
}
