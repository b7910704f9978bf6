// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the platform-neutral readiness multiplexer the
// event loop polls, plus epoll (Linux), kqueue (BSD/Darwin), and IOCP
// (Windows) implementations.
package reactor
