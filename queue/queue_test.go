package queue

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeatGlow/drawbridge/command"
	"github.com/BeatGlow/drawbridge/pixel"
)

func testCommand(i int) command.Command {
	return command.SetPixel(image.Pt(i%128, i/128), pixel.CRGB16{V: uint16(i)})
}

func TestChannelFIFO(t *testing.T) {
	c := New(4)
	assert.Equal(t, 4, c.Cap())
	assert.Empty(t, c.DrainUpTo(10, nil))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.TryEnqueue(testCommand(i)))
	}
	assert.Equal(t, 3, c.Len())

	got := c.DrainUpTo(2, nil)
	assert.Equal(t, []command.Command{testCommand(0), testCommand(1)}, got)

	// wrap around the ring
	for i := 3; i < 6; i++ {
		require.NoError(t, c.TryEnqueue(testCommand(i)))
	}
	got = c.DrainUpTo(0, got[:0])
	assert.Equal(t, []command.Command{testCommand(2), testCommand(3), testCommand(4), testCommand(5)}, got)
	assert.Zero(t, c.Len())
}

func TestChannelFull(t *testing.T) {
	c := New(2)
	require.NoError(t, c.TryEnqueue(testCommand(0)))
	require.NoError(t, c.TryEnqueue(testCommand(1)))

	done := make(chan error, 1)
	go func() { done <- c.TryEnqueue(testCommand(2)) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrFull)
	case <-time.After(time.Second):
		t.Fatal("enqueue into a full channel blocked")
	}

	// drop-newest: the pending commands are untouched
	assert.Equal(t, []command.Command{testCommand(0), testCommand(1)}, c.DrainUpTo(0, nil))
	assert.NoError(t, c.TryEnqueue(testCommand(3)))
}

func TestChannelCapacity(t *testing.T) {
	assert.Panics(t, func() { New(0) })
}

func TestChannelConcurrentProducers(t *testing.T) {
	const (
		producers = 8
		perWorker = 500
	)
	c := New(producers * perWorker)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				assert.NoError(t, c.TryEnqueue(testCommand(p*perWorker+i)))
			}
		}(p)
	}

	var drained []command.Command
	stop := make(chan struct{})
	consumer := make(chan struct{})
	go func() {
		defer close(consumer)
		for {
			select {
			case <-stop:
				drained = c.DrainUpTo(0, drained)
				return
			default:
				drained = c.DrainUpTo(16, drained)
			}
		}
	}()
	wg.Wait()
	close(stop)
	<-consumer

	require.Len(t, drained, producers*perWorker)

	// per producer order is preserved
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for _, cmd := range drained {
		i := int(cmd.Color.V)
		p := i / perWorker
		assert.Greater(t, i, last[p])
		last[p] = i
	}
}
