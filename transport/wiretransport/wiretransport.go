// Package wiretransport is a length-prefixed, optionally compressed
// binary transport over a plain net.Conn. It satisfies
// ensemble.SessionTransport for a real TCP ensemble connection, the
// way transport/memtransport satisfies it for tests: one frame per
// Op submitted, one frame per Reply received, with a background
// goroutine feeding Receive from the socket.
//
// Frame layout: a 4-byte big-endian length prefix, a 1-byte flags
// byte (bit 0 set if the payload is zstd-compressed), then a
// gob-encoded payload. Payloads above compressThreshold bytes are
// compressed before framing; the peer is expected to decompress
// based on the flags byte rather than on size, since compression can
// grow small payloads.
//
// Dialing and reconnecting consult an internal/hostselect.Picker built
// from the parsed connection string, so a multi-host ensemble and the
// randomize_hosts/timeout options actually drive which host is tried
// and when a dropped host is deprioritized.
package wiretransport

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/r3e-network/ensemble"
	"github.com/r3e-network/ensemble/internal/backoff"
	"github.com/r3e-network/ensemble/internal/hostselect"
)

const (
	flagCompressed    = 1 << 0
	compressThreshold = 512
	maxFrameSize      = 16 << 20

	defaultDialTimeout = 10 * time.Second
)

// Transport dials an ensemble host list and frames Op/Reply values
// over whichever connection is currently live, redialing through the
// host picker when the connection drops.
type Transport struct {
	writeMu sync.Mutex
	conn    net.Conn
	bw      *bufio.Writer
	enc     *zstd.Encoder

	inbox chan ensemble.Reply
	errc  chan error

	picker      *hostselect.Picker
	dialTimeout time.Duration
	backoff     *backoff.Reconnector

	lifecycle    atomic.Pointer[ensemble.LifecycleCallback]
	released     atomic.Bool
	reconnecting atomic.Bool
}

// Dial connects to a single host. It is a convenience wrapper around
// DialEnsemble for callers that have one address and no need for host
// selection or randomization.
func Dial(ctx context.Context, addr string) (*Transport, error) {
	return DialEnsemble(ctx, ensemble.ConnectionParams{Hosts: []string{addr}})
}

// DialEnsemble connects to one host from params.Hosts -- ordered and
// deprioritized by internal/hostselect according to
// params.RandomizeHosts -- and starts the background read loop. A
// dropped connection is redialed automatically through the same host
// picker; the caller observes this only through the lifecycle
// callback registered with OnLifecycle.
func DialEnsemble(ctx context.Context, params ensemble.ConnectionParams) (*Transport, error) {
	if len(params.Hosts) == 0 {
		return nil, fmt.Errorf("wiretransport: connection params have no hosts")
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("wiretransport: init compressor: %w", err)
	}

	dialTimeout := params.Timeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	t := &Transport{
		enc:         enc,
		inbox:       make(chan ensemble.Reply, 256),
		errc:        make(chan error, 1),
		picker:      hostselect.New(params.Hosts, params.RandomizeHosts),
		dialTimeout: dialTimeout,
		backoff:     backoff.New(backoff.Config{}),
	}

	if err := t.dialNext(ctx); err != nil {
		return nil, err
	}

	go t.readLoop()

	return t, nil
}

// dialNext tries every host in the picker's current order, in turn,
// marking each failure before moving to the next candidate, and wins
// on the first host that accepts a connection.
func (t *Transport) dialNext(ctx context.Context) error {
	d := net.Dialer{}
	var lastErr error
	for _, host := range t.picker.Order() {
		dialCtx, cancel := context.WithTimeout(ctx, t.dialTimeout)
		conn, err := d.DialContext(dialCtx, "tcp", host)
		cancel()
		if err != nil {
			t.picker.MarkFailed(host)
			lastErr = fmt.Errorf("dial %s: %w", host, err)
			continue
		}

		t.writeMu.Lock()
		t.conn = conn
		t.bw = bufio.NewWriter(conn)
		t.writeMu.Unlock()
		return nil
	}
	return fmt.Errorf("wiretransport: no reachable host: %w", lastErr)
}

func (t *Transport) Submit(ctx context.Context, op ensemble.Op) error {
	payload, err := encodeGob(op)
	if err != nil {
		return fmt.Errorf("wiretransport: encode op: %w", err)
	}

	flags := byte(0)
	if len(payload) > compressThreshold {
		payload = t.enc.EncodeAll(payload, nil)
		flags |= flagCompressed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.bw == nil {
		return fmt.Errorf("wiretransport: no live connection")
	}

	var header [5]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
	header[4] = flags

	if _, err := t.bw.Write(header[:]); err != nil {
		return fmt.Errorf("wiretransport: write header: %w", err)
	}
	if _, err := t.bw.Write(payload); err != nil {
		return fmt.Errorf("wiretransport: write payload: %w", err)
	}
	return t.bw.Flush()
}

func (t *Transport) Receive(ctx context.Context, buf []ensemble.Reply) (int, error) {
	select {
	case r, ok := <-t.inbox:
		if !ok {
			return 0, io.EOF
		}
		buf[0] = r
		n := 1
		for n < len(buf) {
			select {
			case r, ok := <-t.inbox:
				if !ok {
					return n, nil
				}
				buf[n] = r
				n++
			default:
				return n, nil
			}
		}
		return n, nil
	case err := <-t.errc:
		return 0, err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (t *Transport) OnLifecycle(cb ensemble.LifecycleCallback) {
	t.lifecycle.Store(&cb)
}

func (t *Transport) NativeHandle() int {
	// Extracting the raw fd from a net.Conn requires a SyscallConn
	// type switch per platform; external event-loop integration is
	// out of scope for this transport, so there is nothing to return.
	return -1
}

func (t *Transport) Release() error {
	if !t.released.CompareAndSwap(false, true) {
		return nil
	}
	t.writeMu.Lock()
	var err error
	if t.conn != nil {
		err = t.conn.Close()
	}
	t.writeMu.Unlock()
	close(t.inbox)
	return err
}

func (t *Transport) fireLifecycle(state ensemble.SessionState) {
	if cb := t.lifecycle.Load(); cb != nil {
		(*cb)(state)
	}
}

func (t *Transport) readLoop() {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.fail(fmt.Errorf("wiretransport: init decompressor: %w", err))
		return
	}
	defer dec.Close()

	t.writeMu.Lock()
	conn := t.conn
	t.writeMu.Unlock()

	r := bufio.NewReader(conn)
	var header [5]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			t.fail(err)
			return
		}
		size := binary.BigEndian.Uint32(header[:4])
		if size > maxFrameSize {
			t.fail(fmt.Errorf("wiretransport: frame of %d bytes exceeds max %d", size, maxFrameSize))
			return
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			t.fail(err)
			return
		}
		if header[4]&flagCompressed != 0 {
			payload, err = dec.DecodeAll(payload, nil)
			if err != nil {
				t.fail(fmt.Errorf("wiretransport: decompress frame: %w", err))
				return
			}
		}

		var reply ensemble.Reply
		if err := decodeGob(payload, &reply); err != nil {
			t.fail(fmt.Errorf("wiretransport: decode reply: %w", err))
			return
		}
		t.inbox <- reply
	}
}

// fail reports a dead connection upstream and kicks off a redial
// through the host picker. The picker remembers the host that just
// dropped, so the next ordering tries an alternative first when one is
// available.
func (t *Transport) fail(err error) {
	t.writeMu.Lock()
	if t.conn != nil {
		t.conn.Close()
	}
	t.writeMu.Unlock()

	t.fireLifecycle(ensemble.StateConnecting)
	select {
	case t.errc <- err:
	default:
	}

	if !t.released.Load() {
		go t.reconnectLoop()
	}
}

// reconnectLoop retries dialNext through the host picker, pacing
// attempts with backoff.Reconnector and re-reporting StateConnecting
// on every failed attempt so the engine's own escalation window (see
// Engine.onLifecycle) can eventually give up and expire the session if
// every host stays unreachable.
func (t *Transport) reconnectLoop() {
	if !t.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer t.reconnecting.Store(false)

	for !t.released.Load() {
		time.Sleep(t.backoff.NextDelay())
		if t.released.Load() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), t.dialTimeout)
		err := t.dialNext(ctx)
		cancel()
		if err != nil {
			t.fireLifecycle(ensemble.StateConnecting)
			continue
		}

		t.backoff.Reset()
		t.fireLifecycle(ensemble.StateConnected)
		go t.readLoop()
		return
	}
}

func encodeGob(v any) ([]byte, error) {
	var buf sliceWriter
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.data, nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(&byteReader{data: data}).Decode(v)
}

// sliceWriter and byteReader avoid pulling in bytes.Buffer just to
// satisfy gob's io.Writer/io.Reader requirement for a slice that is
// already fully materialized.
type sliceWriter struct{ data []byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

type byteReader struct{ data []byte }

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}
