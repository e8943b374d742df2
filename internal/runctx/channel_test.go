package runctx

import (
	"context"
	"testing"

	"zerostack-chat/internal/logging"
)

func testLogger() *logging.Logger {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

func TestRecvOrDone(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	v, ok := RecvOrDone(context.Background(), "test", testLogger(), ch)
	if !ok || v != 7 {
		t.Fatalf("RecvOrDone() = %d, %v; want 7, true", v, ok)
	}

	close(ch)
	if _, ok := RecvOrDone(context.Background(), "test", testLogger(), ch); ok {
		t.Fatal("RecvOrDone() on closed channel reported ok")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := RecvOrDone(ctx, "test", testLogger(), make(chan int)); ok {
		t.Fatal("RecvOrDone() after cancel reported ok")
	}
}

func TestSendOrDone_CanceledDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if SendOrDone(ctx, "test", testLogger(), make(chan int), 1) {
		t.Fatal("SendOrDone() on canceled ctx reported sent")
	}
}

func TestSendLatest_DropsOldest(t *testing.T) {
	ch := make(chan string, 2)
	for _, v := range []string{"a", "b", "c"} {
		if !SendLatest(ch, v) {
			t.Fatalf("SendLatest(%q) = false", v)
		}
	}
	if got := <-ch; got != "b" {
		t.Fatalf("first = %q, want b", got)
	}
	if got := <-ch; got != "c" {
		t.Fatalf("second = %q, want c", got)
	}
}
