// Package vm provides the models for processes, page tables and physical
// frames, and the messages processes send to the MMU.
package vm

import (
	"time"

	"github.com/sarchlab/pagesim/sim"
)

// MsgMeta carries the fields shared by all the messages sent to the MMU.
type MsgMeta struct {
	ID       string
	PID      PID
	SendTime time.Time
}

// A Msg is anything a process can send to the MMU.
type Msg interface {
	Meta() MsgMeta
}

// A PageAccessReq asks the MMU to access a page on behalf of a process.
type PageAccessReq struct {
	MsgMeta
	PageNum uint64
}

// Meta returns the meta data associated with the message.
func (r *PageAccessReq) Meta() MsgMeta {
	if r == nil {
		return MsgMeta{}
	}

	return r.MsgMeta
}

// A ProcessCompletedMsg tells the MMU that a process will not send any more
// requests.
type ProcessCompletedMsg struct {
	MsgMeta
}

// Meta returns the meta data associated with the message.
func (m *ProcessCompletedMsg) Meta() MsgMeta {
	if m == nil {
		return MsgMeta{}
	}

	return m.MsgMeta
}

// PageAccessReqBuilder can build page access requests.
type PageAccessReqBuilder struct {
	pid      PID
	pageNum  uint64
	sendTime time.Time
}

// WithPID sets the process that sends the request.
func (b PageAccessReqBuilder) WithPID(pid PID) PageAccessReqBuilder {
	b.pid = pid
	return b
}

// WithPageNum sets the page to access.
func (b PageAccessReqBuilder) WithPageNum(pageNum uint64) PageAccessReqBuilder {
	b.pageNum = pageNum
	return b
}

// WithSendTime sets the time the request is sent.
func (b PageAccessReqBuilder) WithSendTime(t time.Time) PageAccessReqBuilder {
	b.sendTime = t
	return b
}

// Build creates a new PageAccessReq.
func (b PageAccessReqBuilder) Build() *PageAccessReq {
	return &PageAccessReq{
		MsgMeta: MsgMeta{
			ID:       sim.GetIDGenerator().Generate(),
			PID:      b.pid,
			SendTime: b.sendTime,
		},
		PageNum: b.pageNum,
	}
}

// ProcessCompletedMsgBuilder can build process completion markers.
type ProcessCompletedMsgBuilder struct {
	pid      PID
	sendTime time.Time
}

// WithPID sets the process that completes.
func (b ProcessCompletedMsgBuilder) WithPID(pid PID) ProcessCompletedMsgBuilder {
	b.pid = pid
	return b
}

// WithSendTime sets the time the marker is sent.
func (b ProcessCompletedMsgBuilder) WithSendTime(
	t time.Time,
) ProcessCompletedMsgBuilder {
	b.sendTime = t
	return b
}

// Build creates a new ProcessCompletedMsg.
func (b ProcessCompletedMsgBuilder) Build() *ProcessCompletedMsg {
	return &ProcessCompletedMsg{
		MsgMeta: MsgMeta{
			ID:       sim.GetIDGenerator().Generate(),
			PID:      b.pid,
			SendTime: b.sendTime,
		},
	}
}
