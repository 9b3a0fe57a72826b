package ipc

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/justyntemme/vst2bridge/pkg/log"
	"github.com/justyntemme/vst2bridge/pkg/wire"
)

// SoftLimitMillis is the default bound substituted for a caller's
// unbounded (-1) wait (spec.md §4.A, §9 "Soft limit"): unbounded waits
// on the audio thread would hang the host DAW, so they never actually
// happen; they are capped here and logged on timeout.
const SoftLimitMillis = 30000

type portState int

const (
	stateNull portState = iota
	stateCreated
	stateConnected
)

// Port is a shared-memory DataPort: a ControlBlock header followed by a
// single fixed-size Frame, used for synchronous request/response
// transactions between the bridge and the child (spec.md §4.A).
type Port struct {
	state     portState
	id        int
	seg       []byte
	frameSize int
	softLimit int
	logger    *zap.Logger
}

// NewPort constructs a Null port. logger may be nil, in which case
// timeout diagnostics are discarded.
func NewPort(logger *zap.Logger) *Port {
	if logger == nil {
		logger = log.Nop()
	}
	return &Port{logger: logger, softLimit: SoftLimitMillis}
}

// SetSoftLimit overrides the default 30s bound used for a caller's
// unbounded wait (endpoint.WithSoftLimit plumbs this through).
func (p *Port) SetSoftLimit(msecs int) { p.softLimit = msecs }

// IsNull reports whether the port holds no segment.
func (p *Port) IsNull() bool { return p.state == stateNull }

// ID returns the kernel-assigned shared memory identifier.
func (p *Port) ID() int { return p.id }

// FrameSize returns the size of the frame region (wire header plus
// payload) negotiated at creation or discovered at connect time.
func (p *Port) FrameSize() int { return p.frameSize }

// Create allocates a private segment of ControlBlockSize+frameSize
// bytes, attaches it, and constructs the two semaphores in place
// (spec.md §4.A).
func (p *Port) Create(frameSize int) error {
	total := ControlBlockSize + frameSize
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, total, unix.IPC_CREAT|0600)
	if err != nil {
		return fmt.Errorf("%w: shmget: %v", ErrAllocation, err)
	}
	seg, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return fmt.Errorf("%w: shmat: %v", ErrAttach, err)
	}
	cb := (*ControlBlock)(unsafe.Pointer(&seg[0]))
	if err := cb.Request.Init(); err != nil {
		_ = unix.SysvShmDetach(seg)
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return err
	}
	if err := cb.Response.Init(); err != nil {
		_ = unix.SysvShmDetach(seg)
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return err
	}
	p.id = id
	p.seg = seg
	p.frameSize = frameSize
	p.state = stateCreated
	return nil
}

// Connect attaches to a segment created by the peer, inferring
// frameSize from the kernel-reported segment size (spec.md §4.A).
func (p *Port) Connect(id int) error {
	seg, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return fmt.Errorf("%w: shmat: %v", ErrAttach, err)
	}
	var desc unix.SysvShmDesc
	if _, err := unix.SysvShmCtl(id, unix.IPC_STAT, &desc); err != nil {
		_ = unix.SysvShmDetach(seg)
		return fmt.Errorf("%w: shmctl: %v", ErrStat, err)
	}
	p.id = id
	p.seg = seg
	p.frameSize = int(desc.Segsz) - ControlBlockSize
	p.state = stateConnected
	return nil
}

// Disconnect detaches the segment; if this side was the creator, it
// also marks the segment for removal, even if the peer is still
// attached (spec.md §9: this is a deliberately preserved quirk — the
// peer sees a segment marked for deletion whose memory stays valid
// until it too detaches). Always returns the port to Null.
func (p *Port) Disconnect() error {
	if p.state == stateNull {
		return nil
	}
	wasCreated := p.state == stateCreated
	id := p.id
	var err error
	if e := unix.SysvShmDetach(p.seg); e != nil {
		err = fmt.Errorf("%w: shmdt: %v", ErrAttach, e)
	}
	if wasCreated {
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
	}
	p.seg = nil
	p.id = 0
	p.frameSize = 0
	p.state = stateNull
	return err
}

// IsConnected reports whether the kernel sees more than one attachment
// to this segment, i.e. the peer is still alive (spec.md §3, §4.A).
func (p *Port) IsConnected() bool {
	if p.state == stateNull {
		return false
	}
	var desc unix.SysvShmDesc
	if _, err := unix.SysvShmCtl(p.id, unix.IPC_STAT, &desc); err != nil {
		return false
	}
	return desc.Nattch > 1
}

func (p *Port) controlBlock() *ControlBlock {
	return (*ControlBlock)(unsafe.Pointer(&p.seg[0]))
}

// Frame returns a typed view of the payload region. Only valid while
// the port is non-Null.
func (p *Port) Frame() *wire.Frame {
	return wire.View(p.seg[ControlBlockSize:])
}

// SendRequest posts the request semaphore.
func (p *Port) SendRequest() { p.controlBlock().Request.Post() }

// SendResponse posts the response semaphore.
func (p *Port) SendResponse() { p.controlBlock().Response.Post() }

// WaitRequest waits on the request semaphore. See Port.wait for the
// msecs convention.
func (p *Port) WaitRequest(tag string, msecs int) bool {
	return p.wait(&p.controlBlock().Request, tag, msecs)
}

// WaitResponse waits on the response semaphore. See Port.wait for the
// msecs convention.
func (p *Port) WaitResponse(tag string, msecs int) bool {
	return p.wait(&p.controlBlock().Response, tag, msecs)
}

// wait implements the msecs convention from spec.md §4.A: msecs >= 0
// waits exactly that long; msecs == -1 is bounded by the port's soft
// limit instead, and a timeout in that case is logged with tag. Every
// soft-limit wait is timed through the default profiler, keyed by tag,
// so a host application can watch round-trip latency against the soft
// limit without instrumenting every call site itself.
func (p *Port) wait(e *Event, tag string, msecs int) bool {
	if msecs >= 0 {
		return e.Wait(msecs)
	}
	stop := log.Start(tag)
	ok := e.Wait(p.softLimit)
	stop()
	if ok {
		return true
	}
	log.Warn(p.logger, "soft-limit wait timed out", log.Tag(tag))
	return false
}
