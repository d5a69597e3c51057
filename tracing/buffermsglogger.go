package tracing

import (
	"log"
	"reflect"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/sim"
)

// BufferMsgLogger is a hook for logging messages as they go through a buffer.
type BufferMsgLogger struct {
	sim.LogHookBase
}

// NewBufferMsgLogger returns a new BufferMsgLogger which will write into the
// logger.
func NewBufferMsgLogger(logger *log.Logger) *BufferMsgLogger {
	h := new(BufferMsgLogger)
	h.Logger = logger
	return h
}

// Func writes the message information into the logger.
func (h *BufferMsgLogger) Func(ctx sim.HookCtx) {
	msg, ok := ctx.Item.(vm.Msg)
	if !ok {
		return
	}

	bufName := ""
	if named, ok := ctx.Domain.(sim.Named); ok {
		bufName = named.Name()
	}

	h.Logger.Printf("%s,%s,%s,%d,%s",
		bufName,
		ctx.Pos.Name,
		reflect.TypeOf(msg),
		msg.Meta().PID,
		msg.Meta().ID)
}
