package ipc_test

import (
	"errors"
	"testing"
	"time"

	"github.com/redstone-os/redstone/internal/ipc"
	"github.com/redstone-os/redstone/internal/mm"
)

func TestPortSendRecvRoundTrip(t *testing.T) {
	p := ipc.NewPort(2)

	if err := p.Send(ipc.Message{Payload: []byte("hi")}, false, nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	msg, err := p.Recv(false, nil)
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}

	if string(msg.Payload) != "hi" {
		t.Fatalf("Recv() payload = %q, want %q", msg.Payload, "hi")
	}
}

func TestPortNonblockFullAndEmpty(t *testing.T) {
	p := ipc.NewPort(1)

	if err := p.Send(ipc.Message{}, true, nil); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}

	err := p.Send(ipc.Message{}, true, nil)
	if !errors.Is(err, ipc.ErrPortFull) {
		t.Fatalf("Send() on full port nonblocking error = %v, want ErrPortFull", err)
	}

	p2 := ipc.NewPort(1)

	_, err = p2.Recv(true, nil)
	if !errors.Is(err, ipc.ErrNoMessage) {
		t.Fatalf("Recv() on empty port nonblocking error = %v, want ErrNoMessage", err)
	}
}

func TestPortMessageTooLarge(t *testing.T) {
	p := ipc.NewPort(1)

	err := p.Send(ipc.Message{Payload: make([]byte, ipc.MaxMessageSize+1)}, true, nil)
	if !errors.Is(err, ipc.ErrMessageTooLarge) {
		t.Fatalf("Send() oversized payload error = %v, want ErrMessageTooLarge", err)
	}
}

func TestPortCloseFailsWaiters(t *testing.T) {
	p := ipc.NewPort(1)

	done := make(chan error, 1)
	go func() {
		_, err := p.Recv(false, nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ipc.ErrPortClosed) {
			t.Fatalf("blocked Recv() after Close() error = %v, want ErrPortClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv() did not unblock after Close()")
	}
}

func TestChannelPairCrossWiring(t *testing.T) {
	a, b := ipc.NewChannelPair(4)

	if err := a.Send(ipc.Message{Payload: []byte("ping")}, false, nil); err != nil {
		t.Fatalf("a.Send() error = %v", err)
	}

	msg, err := b.Recv(false, nil)
	if err != nil {
		t.Fatalf("b.Recv() error = %v", err)
	}

	if string(msg.Payload) != "ping" {
		t.Fatalf("b.Recv() payload = %q, want %q", msg.Payload, "ping")
	}

	if err := b.Send(ipc.Message{Payload: []byte("pong")}, false, nil); err != nil {
		t.Fatalf("b.Send() error = %v", err)
	}

	msg, err = a.Recv(false, nil)
	if err != nil {
		t.Fatalf("a.Recv() error = %v", err)
	}

	if string(msg.Payload) != "pong" {
		t.Fatalf("a.Recv() payload = %q, want %q", msg.Payload, "pong")
	}
}

func TestPipeWriteRead(t *testing.T) {
	r, w := ipc.NewPipe()

	if err := w.Write(ipc.Message{Payload: []byte("stream")}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	msg, err := r.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if string(msg.Payload) != "stream" {
		t.Fatalf("Read() payload = %q, want %q", msg.Payload, "stream")
	}
}

func TestSharedMemoryFreesFramesOnFinalRelease(t *testing.T) {
	pmm := mm.NewPMM(0, 16)

	shm, err := ipc.NewSharedMemory(pmm, mm.PageSize*3)
	if err != nil {
		t.Fatalf("NewSharedMemory() error = %v", err)
	}

	if shm.NumFrames() != 3 {
		t.Fatalf("NumFrames() = %d, want 3", shm.NumFrames())
	}

	before := pmm.Stats().UsedFrames
	if before != 3 {
		t.Fatalf("UsedFrames = %d, want 3", before)
	}

	shm.OnFinalRelease()

	after := pmm.Stats().UsedFrames
	if after != 0 {
		t.Fatalf("UsedFrames after release = %d, want 0", after)
	}
}

func TestFutexWaitExpectedMismatchReturnsImmediately(t *testing.T) {
	f := ipc.NewFutex()

	word := uint32(5)
	waited := f.Wait(0x1000, 99, func() uint32 { return word }, nil)
	if waited {
		t.Fatal("Wait() should return immediately when the expected value doesn't match")
	}
}

func TestFutexWakeReleasesWaiters(t *testing.T) {
	f := ipc.NewFutex()
	word := uint32(0)

	var done [3]chan bool
	for i := range done {
		done[i] = make(chan bool, 1)

		go func(ch chan bool) {
			f.Wait(0x2000, 0, func() uint32 { return word }, nil)
			ch <- true
		}(done[i])
	}

	time.Sleep(20 * time.Millisecond)

	woken := f.Wake(0x2000, 2)
	if woken != 2 {
		t.Fatalf("Wake() woke %d, want 2", woken)
	}

	awoken := 0
	timeout := time.After(time.Second)

	for awoken < 2 {
		select {
		case <-done[0]:
			awoken++
		case <-done[1]:
			awoken++
		case <-done[2]:
			awoken++
		case <-timeout:
			t.Fatal("timed out waiting for woken futex waiters")
		}
	}
}
