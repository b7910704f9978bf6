// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package loop

import "github.com/momentics/goreactor/base"

type config struct {
	logger base.Logger
}

func defaultConfig() *config {
	return &config{logger: base.Default()}
}

// Option configures an EventLoop at construction. There is no CLI or
// config-file surface owned by the core; tunables are plain functional
// options, the same shape the teacher library's DefaultConfig constructors
// use for their own client/server configuration.
type Option func(*config)

// WithLogger overrides the loop's logger sink.
func WithLogger(l base.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
