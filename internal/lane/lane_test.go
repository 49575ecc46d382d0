package lane

import (
	"testing"

	"github.com/crab2313/pcie-tlp/internal/tlp"
)

func TestPairDeliversInOrder(t *testing.T) {
	a, b := Pair()

	want := []tlp.Packet{
		{Header: tlp.Header{Type: tlp.Config0Read, Config: &tlp.ConfigExtra{Tag: 1}}},
		{Header: tlp.Header{Type: tlp.Config0Read, Config: &tlp.ConfigExtra{Tag: 2}}},
		{Header: tlp.Header{Type: tlp.Config0Read, Config: &tlp.ConfigExtra{Tag: 3}}},
	}
	for _, p := range want {
		a.Send(p)
	}

	for i, w := range want {
		got, ok := b.Recv()
		if !ok {
			t.Fatalf("Recv() #%d: ok = false, want true", i)
		}
		if got.Header.Config.Tag != w.Header.Config.Tag {
			t.Fatalf("Recv() #%d tag = %d, want %d", i, got.Header.Config.Tag, w.Header.Config.Tag)
		}
	}
}

func TestCloseSignalsShutdown(t *testing.T) {
	a, b := Pair()
	a.Close()

	_, ok := b.Recv()
	if ok {
		t.Fatalf("Recv() after peer close: ok = true, want false")
	}
}

func TestSendDoesNotBlock(t *testing.T) {
	a, _ := Pair()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			a.Send(tlp.Packet{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-make(chan struct{}):
		t.Fatalf("unreachable")
	}
}
