package ipc

/*
#include <sys/ipc.h>
#include <sys/msg.h>
#include <string.h>
#include <errno.h>

struct bridge_msg {
	long mtype;
	char data[8192];
};

static int bridge_msgget(int key) {
	return msgget(key, 0600 | IPC_CREAT);
}

static int bridge_msgsnd(int msgid, const void *data, size_t len) {
	struct bridge_msg m;
	m.mtype = 1;
	memset(m.data, 0, sizeof(m.data));
	if (len > sizeof(m.data)) {
		len = sizeof(m.data);
	}
	memcpy(m.data, data, len);
	return msgsnd(msgid, &m, sizeof(m.data), IPC_NOWAIT);
}

static int bridge_msgrcv(int msgid, void *out, size_t outlen) {
	struct bridge_msg m;
	ssize_t n = msgrcv(msgid, &m, sizeof(m.data), 0, IPC_NOWAIT);
	if (n < 0) {
		return -1;
	}
	if (outlen > sizeof(m.data)) {
		outlen = sizeof(m.data);
	}
	memcpy(out, m.data, outlen);
	return 0;
}

static int bridge_msgctl_rmid(int msgid) {
	return msgctl(msgid, IPC_RMID, 0);
}
*/
import "C"

import (
	"errors"
	"unsafe"

	"go.uber.org/zap"

	"github.com/justyntemme/vst2bridge/pkg/log"
)

// CallbackFrameSize is the fixed message size FrameQueue uses, chosen
// to match the platform's default maximum message size (spec.md §3).
const CallbackFrameSize = 8192

var errMsgget = errors.New("ipc: msgget failed")

// Queue is a kernel message queue used as a lossy, non-blocking
// backchannel for audio-thread-originated callbacks (spec.md §4.B). It
// is intentionally asymmetric with Port: pushes never block and silently
// drop on a full queue, because the only caller is a real-time thread
// that must never stall waiting on callback delivery.
type Queue struct {
	id     int
	owner  bool
	logger *zap.Logger
}

// NewQueue constructs an unconnected Queue. logger may be nil.
func NewQueue(logger *zap.Logger) *Queue {
	if logger == nil {
		logger = log.Nop()
	}
	return &Queue{logger: logger}
}

// Connect opens or creates a queue keyed by id with permissions 0600
// (spec.md §4.B). The bridge always passes the owning control port's
// shared-memory id here, reusing one id across two kernel namespaces
// (spec.md §9).
func (q *Queue) Connect(id int, owner bool) error {
	msgid := int(C.bridge_msgget(C.int(id)))
	if msgid < 0 {
		return errMsgget
	}
	q.id = msgid
	q.owner = owner
	return nil
}

// PushFrame sends one fixed-size message, non-blocking. On a full
// queue the frame is dropped and a diagnostic is logged (spec.md §4.B,
// §7 QueueOverflow) rather than returned as a hard error, since the
// caller is the real-time audio thread.
func (q *Queue) PushFrame(payload []byte) error {
	var ptr unsafe.Pointer
	if len(payload) > 0 {
		ptr = unsafe.Pointer(&payload[0])
	} else {
		var zero byte
		ptr = unsafe.Pointer(&zero)
	}
	rc := C.bridge_msgsnd(C.int(q.id), ptr, C.size_t(len(payload)))
	if rc != 0 {
		log.Warn(q.logger, "frame queue full, dropping frame", log.Port(q.id))
		return ErrQueueFull
	}
	return nil
}

// PopFrame performs a non-blocking receive into out (which must be at
// least CallbackFrameSize bytes), returning false if the queue is
// empty.
func (q *Queue) PopFrame(out []byte) bool {
	if len(out) < CallbackFrameSize {
		buf := make([]byte, CallbackFrameSize)
		ok := C.bridge_msgrcv(C.int(q.id), unsafe.Pointer(&buf[0]), C.size_t(len(buf))) == 0
		if ok {
			copy(out, buf)
		}
		return ok
	}
	return C.bridge_msgrcv(C.int(q.id), unsafe.Pointer(&out[0]), C.size_t(len(out))) == 0
}

// Close removes the queue from the kernel if this instance created it.
func (q *Queue) Close() {
	if q.owner {
		C.bridge_msgctl_rmid(C.int(q.id))
	}
	q.id = 0
	q.owner = false
}
