// Package queue implements the bounded hand-off of drawing commands from the network side
// to the renderer.
//
// The queue is a fixed ring allocated once: it never grows, and neither side ever blocks on
// it. Any number of producers may enqueue concurrently; a single consumer drains it. The
// mutex only guards the ring cursors, never the frame buffer.
package queue

import (
	"errors"
	"sync"

	"github.com/BeatGlow/drawbridge/command"
)

// ErrFull is returned when a command is dropped because the queue is at capacity.
var ErrFull = errors.New("queue: full")

// Channel is a bounded FIFO of commands.
type Channel struct {
	mu   sync.Mutex
	ring []command.Command
	head int // index of the oldest command
	size int // number of pending commands
}

// New returns a channel holding at most capacity commands.
func New(capacity int) *Channel {
	if capacity < 1 {
		panic("queue: capacity must be at least 1")
	}
	return &Channel{
		ring: make([]command.Command, capacity),
	}
}

// TryEnqueue appends cmd, or returns ErrFull and drops cmd when the channel is full.
func (c *Channel) TryEnqueue(cmd command.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size == len(c.ring) {
		return ErrFull
	}
	c.ring[(c.head+c.size)%len(c.ring)] = cmd
	c.size++
	return nil
}

// DrainUpTo removes up to n of the oldest commands, appending them to dst in FIFO order.
// A non-positive n drains everything pending. It returns dst unchanged if nothing is pending.
func (c *Channel) DrainUpTo(n int, dst []command.Command) []command.Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n <= 0 || n > c.size {
		n = c.size
	}
	for i := 0; i < n; i++ {
		dst = append(dst, c.ring[c.head])
		c.ring[c.head] = command.Command{}
		c.head = (c.head + 1) % len(c.ring)
	}
	c.size -= n
	if c.size == 0 {
		c.head = 0
	}
	return dst
}

// Len is the number of pending commands.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Cap is the fixed capacity.
func (c *Channel) Cap() int {
	return len(c.ring)
}
