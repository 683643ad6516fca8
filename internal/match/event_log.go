package match

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	SinkBufferSize     = 1024                   // Pending events per file sink
	BatchFlushSize     = 64                     // Events per batch write
	BatchFlushInterval = 100 * time.Millisecond // How often to flush
)

// EventLog is the ordered, append-only history of committed events. Only the
// commit step appends; readers may call Events or Since concurrently.
type EventLog struct {
	mu     sync.RWMutex
	events []Event
	sink   *FileSink
}

// NewEventLog creates an empty log.
func NewEventLog() *EventLog {
	return &EventLog{events: make([]Event, 0, 4096)}
}

// Attach forwards every subsequently committed event to sink.
func (l *EventLog) Attach(sink *FileSink) {
	l.mu.Lock()
	l.sink = sink
	l.mu.Unlock()
}

func (l *EventLog) append(e Event) {
	l.mu.Lock()
	e.Seq = uint64(len(l.events)) + 1
	l.events = append(l.events, e)
	sink := l.sink
	l.mu.Unlock()

	// File backpressure drops from the sink only, never from history.
	if sink != nil {
		sink.Push(e)
	}
}

// Len returns the number of committed events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Events returns a copy of the whole history.
func (l *EventLog) Events() []Event {
	return l.Since(0)
}

// Since returns a copy of the events with Seq > seq.
func (l *EventLog) Since(seq uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq >= uint64(len(l.events)) {
		return nil
	}
	out := make([]Event, len(l.events)-int(seq))
	copy(out, l.events[seq:])
	return out
}

// CountKind returns how many committed events have kind k.
func (l *EventLog) CountKind(k EventKind) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for i := range l.events {
		if l.events[i].Kind == k {
			n++
		}
	}
	return n
}

// FileSink writes events to a newline-delimited JSON file from a background
// goroutine. It holds a bounded buffer; when the writer falls behind, the
// oldest pending events are dropped and counted.
type FileSink struct {
	mu      sync.Mutex
	buffer  [SinkBufferSize]Event
	head    uint64 // next write position
	tail    uint64 // next read position
	file    *os.File
	w       *bufio.Writer
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup

	dropped atomic.Uint64
	written atomic.Uint64
}

// OpenFileSink opens path for append and starts the writer.
func OpenFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	s := &FileSink{
		file: file,
		w:    bufio.NewWriter(file),
		stop: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writerLoop()
	return s, nil
}

// Push queues an event. It returns false if an older event had to be dropped.
func (s *FileSink) Push(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := true
	if s.head-s.tail >= SinkBufferSize {
		s.tail++
		s.dropped.Add(1)
		ok = false
	}
	s.buffer[s.head%SinkBufferSize] = e
	s.head++
	return ok
}

// Close flushes pending events and closes the file.
func (s *FileSink) Close() error {
	var err error
	s.stopped.Do(func() {
		close(s.stop)
		s.wg.Wait()
		err = s.file.Close()
	})
	return err
}

// Dropped returns how many events never reached the file.
func (s *FileSink) Dropped() uint64 { return s.dropped.Load() }

// Written returns how many events reached the file.
func (s *FileSink) Written() uint64 { return s.written.Load() }

func (s *FileSink) writerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-s.stop:
			// Final flush
			for {
				batch = s.collectBatch(batch[:0])
				if len(batch) == 0 {
					break
				}
				s.flushBatch(batch)
			}
			s.w.Flush()
			return

		case <-ticker.C:
			batch = s.collectBatch(batch[:0])
			if len(batch) > 0 {
				s.flushBatch(batch)
				s.w.Flush()
			}
		}
	}
}

func (s *FileSink) collectBatch(batch []Event) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.tail < s.head && len(batch) < BatchFlushSize {
		batch = append(batch, s.buffer[s.tail%SinkBufferSize])
		s.tail++
	}
	return batch
}

func (s *FileSink) flushBatch(batch []Event) {
	enc := json.NewEncoder(s.w)
	for i := range batch {
		if err := enc.Encode(&batch[i]); err != nil {
			s.dropped.Add(1)
			continue
		}
		s.written.Add(1)
	}
}
