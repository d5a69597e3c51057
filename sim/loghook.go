package sim

import (
	"log"
)

// A LogHook is a hook that writes what it observes into a logger.
type LogHook interface {
	Hook
}

// LogHookBase provides the logger shared by all LogHooks.
type LogHookBase struct {
	*log.Logger
}
