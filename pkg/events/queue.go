package events

import (
	"sort"
	"sync"
)

// Queue buffers MIDI events for one process call, sorted by sample
// offset so ProcessPath can slice out exactly the events that fall
// within the current block before marshaling them into effProcessEvents
// (spec.md §4.E).
type Queue struct {
	events []Event
	mu     sync.RWMutex
	sorted bool
}

func NewQueue() *Queue {
	return &Queue{events: make([]Event, 0, 128), sorted: true}
}

func (q *Queue) Add(event Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	q.sorted = false
}

func (q *Queue) AddMultiple(events []Event) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, events...)
	q.sorted = false
}

func (q *Queue) GetEventsInRange(startSample, endSample int32) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.sorted {
		q.sortEvents()
	}

	if len(q.events) == 0 {
		return nil
	}

	startIdx := sort.Search(len(q.events), func(i int) bool {
		return q.events[i].SampleOffset() >= startSample
	})
	if startIdx >= len(q.events) {
		return nil
	}

	endIdx := startIdx
	for endIdx < len(q.events) && q.events[endIdx].SampleOffset() < endSample {
		endIdx++
	}
	if startIdx == endIdx {
		return nil
	}

	result := make([]Event, endIdx-startIdx)
	copy(result, q.events[startIdx:endIdx])
	return result
}

func (q *Queue) GetAllEvents() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.sorted {
		q.sortEvents()
	}
	result := make([]Event, len(q.events))
	copy(result, q.events)
	return result
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = q.events[:0]
	q.sorted = true
}

func (q *Queue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.events)
}

func (q *Queue) IsEmpty() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.events) == 0
}

func (q *Queue) sortEvents() {
	sort.SliceStable(q.events, func(i, j int) bool {
		return q.events[i].SampleOffset() < q.events[j].SampleOffset()
	})
	q.sorted = true
}

// Buffer pairs an input and output Queue, mirroring the two directions
// effProcessEvents (host to child) and audioMasterProcessEvents (child
// to host) flow events in.
type Buffer struct {
	Input  *Queue
	Output *Queue
}

func NewBuffer() *Buffer {
	return &Buffer{Input: NewQueue(), Output: NewQueue()}
}

func (b *Buffer) ClearAll() {
	b.Input.Clear()
	b.Output.Clear()
}
