// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package base

import (
	"bytes"
	"runtime"
	"strconv"
)

// GoroutineID recovers the calling goroutine's numeric id by parsing the
// header line of runtime.Stack. Go exposes no native thread/goroutine-id
// primitive to library code, so this is the same approach used to give a
// cooperative-scheduling loop a fixed "owning thread" identity.
func GoroutineID() uint64 {
	var scratch [64]byte
	n := runtime.Stack(scratch[:], false)
	b := scratch[:n]

	b = bytes.TrimPrefix(b, []byte("goroutine "))
	idx := bytes.IndexByte(b, ' ')
	if idx < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(b[:idx]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
