//go:build windows

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package loop

import "errors"

// newWakeFD is never called on Windows: windowsReactor implements
// reactor.Waker directly via PostQueuedCompletionStatus, so waker.go never
// falls back to a registered-fd wakeup on this platform.
func newWakeFD() (wakeFD, error) {
	return nil, errors.New("loop: no fd-based wakeup on windows, use reactor.Waker")
}
