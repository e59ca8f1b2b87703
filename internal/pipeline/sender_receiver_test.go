package pipeline

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/draftxfer/draft/internal/bufpool"
	"github.com/draftxfer/draft/internal/queue"
)

func TestSenderReceiver_RoundTrip(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	pool := bufpool.New(4096, 8)
	rxOut := queue.New[BlockDescriptor](8)
	receiver := NewReceiver(listener, pool, rxOut, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recvDone := make(chan error, 1)
	go func() { recvDone <- receiver.Run(ctx) }()

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	txIn := queue.New[BlockDescriptor](8)
	sender := NewSender(conn, txIn, nil)
	sendDone := make(chan error, 1)
	go func() { sendDone <- sender.Run(ctx) }()

	payload := bytes.Repeat([]byte{0x42}, 2048)
	buf, ok := pool.Get()
	if !ok {
		t.Fatalf("pool.Get failed")
	}
	copy(buf.Slice(len(payload)), payload)
	desc := NewDescriptor(buf, 3, 1024, len(payload))
	if txIn.TryPut(desc) != queue.PutOK {
		t.Fatalf("TryPut failed")
	}

	got, ok := rxOut.GetTimeout(2 * time.Second)
	if !ok {
		t.Fatalf("receiver produced nothing within deadline")
	}
	defer got.Release()

	if got.FileID != 3 || got.Offset != 1024 || got.Length != len(payload) {
		t.Fatalf("got descriptor %+v, want FileID=3 Offset=1024 Length=%d", got, len(payload))
	}
	if !bytes.Equal(got.Payload(), payload) {
		t.Fatalf("received payload does not match sent payload")
	}

	cancel()
	conn.Close()
	<-sendDone
	<-recvDone
}
