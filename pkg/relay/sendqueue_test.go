package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendQueueDropsOldest(t *testing.T) {
	queue := newSendQueue(3)

	for _, frame := range []string{"a", "b", "c"} {
		assert.False(t, queue.push([]byte(frame)))
	}
	assert.True(t, queue.push([]byte("d")))
	assert.True(t, queue.push([]byte("e")))
	assert.Equal(t, 2, queue.droppedCount())

	queue.close()

	var drained []string
	for {
		frame, ok := queue.next()
		if !ok {
			break
		}
		drained = append(drained, string(frame))
	}
	assert.Equal(t, []string{"c", "d", "e"}, drained)

	assert.False(t, queue.push([]byte("late")), "closed queue ignores pushes")
}

func TestSendQueueNextBlocksUntilPush(t *testing.T) {
	queue := newSendQueue(2)

	received := make(chan string)
	go func() {
		frame, _ := queue.next()
		received <- string(frame)
	}()

	select {
	case <-received:
		t.Fatal("next returned before anything was queued")
	case <-time.After(20 * time.Millisecond):
	}

	queue.push([]byte("hello"))

	select {
	case frame := <-received:
		assert.Equal(t, "hello", frame)
	case <-time.After(time.Second):
		t.Fatal("next did not wake up")
	}
}

func TestSendQueueCloseWakesReader(t *testing.T) {
	queue := newSendQueue(2)

	finished := make(chan bool)
	go func() {
		_, ok := queue.next()
		finished <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	queue.close()

	select {
	case ok := <-finished:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("close did not wake the reader")
	}
}
