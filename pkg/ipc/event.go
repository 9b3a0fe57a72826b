package ipc

/*
#include <semaphore.h>
#include <time.h>
#include <errno.h>

static int bridge_event_init(sem_t *s) {
	return sem_init(s, 1, 0);
}

static int bridge_event_post(sem_t *s) {
	return sem_post(s);
}

static int bridge_event_wait(sem_t *s) {
	int rc;
	do {
		rc = sem_wait(s);
	} while (rc != 0 && errno == EINTR);
	return rc;
}

static int bridge_event_timedwait(sem_t *s, long msecs) {
	struct timespec ts;
	if (clock_gettime(CLOCK_REALTIME, &ts) != 0) {
		return -1;
	}
	ts.tv_sec += msecs / 1000;
	ts.tv_nsec += (msecs % 1000) * 1000000L;
	if (ts.tv_nsec >= 1000000000L) {
		ts.tv_nsec -= 1000000000L;
		ts.tv_sec += 1;
	}
	int rc;
	do {
		rc = sem_timedwait(s, &ts);
	} while (rc != 0 && errno == EINTR);
	return rc;
}
*/
import "C"

import "errors"

// EventSize is sizeof(sem_t) on this platform: the space a ControlBlock
// must reserve for each Event it embeds.
const EventSize = C.sizeof_sem_t

// errSemInit is returned only if sem_init itself fails (e.g. the kernel
// refuses a process-shared semaphore), which in practice means the
// segment backing it isn't valid shared memory.
var errSemInit = errors.New("ipc: sem_init failed")

// Event is a binary semaphore constructed in place inside shared memory
// (spec.md §4.C, §9). It must never be copied: every access goes through
// a pointer into the shared segment that backs it, which is why Init is
// called once by the creator and never again by a connecting peer.
type Event struct {
	sem C.sem_t
}

// Init constructs the semaphore with pshared=1 so it remains valid
// across the fork boundary to the child process.
func (e *Event) Init() error {
	if C.bridge_event_init(&e.sem) != 0 {
		return errSemInit
	}
	return nil
}

// Post increments the semaphore, waking at most one waiter.
func (e *Event) Post() {
	C.bridge_event_post(&e.sem)
}

// Wait blocks until the semaphore is signalled or msecs elapses, and
// reports whether it was signalled. msecs < 0 waits unboundedly; callers
// on the bridge side never pass that directly, always going through a
// Port's soft limit first (spec.md §4.A).
func (e *Event) Wait(msecs int) bool {
	if msecs < 0 {
		return C.bridge_event_wait(&e.sem) == 0
	}
	return C.bridge_event_timedwait(&e.sem, C.long(msecs)) == 0
}
