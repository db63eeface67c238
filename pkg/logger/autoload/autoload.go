// Package autoload configures the global logger from LOG_* variables when
// imported for its side effect.
package autoload

import (
	configx "github.com/tanpawarit/Chative-Cancellation-Feedback/pkg/config"
	logx "github.com/tanpawarit/Chative-Cancellation-Feedback/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
