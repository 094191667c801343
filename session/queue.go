package session

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/opentn3270/tn3270/errs"
	"github.com/opentn3270/tn3270/ps"
	"github.com/opentn3270/tn3270/telnet"
)

// record is one decoded data-stream record read off the wire, paired with
// its TN3270E header (nil if TN3270E wasn't negotiated) and any error
// encountered reading it.
type record struct {
	data   []byte
	header *telnet.RecordHeader
	err    error
}

// loop is the session's task loop: it reads host records on one
// goroutine and applies them, together with queued commands, on a second
// dispatch goroutine, communicating only through channels, so all
// presentation-space mutation happens on that one goroutine (spec.md §5).
// When either goroutine stops, the session is closed.
func (s *Session) loop(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	records := make(chan record, 1)

	g.Go(func() error {
		defer close(records)
		for {
			data, header, err := s.eng.ReadRecord(gctx)
			select {
			case records <- record{data: data, header: header, err: err}:
			case <-gctx.Done():
				return nil
			}
			if err != nil {
				return nil
			}
		}
	})

	g.Go(func() error {
		return s.dispatch(gctx, records)
	})

	_ = g.Wait()
	_ = s.Close()
}

func (s *Session) dispatch(ctx context.Context, records <-chan record) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-records:
			if !ok {
				return nil
			}
			if rec.err != nil {
				return rec.err
			}
			if err := s.handleRecord(ctx, rec.data, rec.header); err != nil {
				return err
			}

		case fn, ok := <-s.cmds:
			if !ok {
				return nil
			}
			fn()
		}
	}
}

func (s *Session) handleRecord(ctx context.Context, data []byte, header *telnet.RecordHeader) error {
	resp, err := s.in.ApplyRecord(data)
	if err != nil {
		s.respondToError(ctx, header, err)
		return err
	}
	if resp != nil {
		if err := s.eng.WriteRecord(ctx, resp, nil); err != nil {
			return err
		}
	}
	s.setState(StateIdle)
	s.events.fireHostWrite()
	if !s.in.Space.KeyboardLocked() {
		s.events.fireKeyboardUnlock()
	}
	s.xfer.OnHostWrite(s.opts.Codepage.Decode)
	return nil
}

// respondToError locks the keyboard on a protocol violation and, when the
// RESPONSES function was negotiated and the inbound record asked for a
// definite response, transmits a TN3270E negative response record ahead
// of the session close that follows (spec.md §4.5, "Unrecognized orders
// abort the record... a negative response is sent if TN3270E RESPONSES
// is active"; spec.md's ProtocolError row).
func (s *Session) respondToError(ctx context.Context, header *telnet.RecordHeader, cause error) {
	if errs.Is(cause, errs.KindProtocol) {
		s.in.Space.LockKeyboard(ps.KeyboardSystemLocked)
	}
	if !s.eng.Negotiated().Functions[telnet.FuncResponses] {
		return
	}
	if header == nil || header.RequestFlag == telnet.ResponseFlagNoResponse {
		return
	}
	respHeader := &telnet.RecordHeader{
		DataType:     telnet.DataTypeResponse,
		ResponseFlag: telnet.ResponseFlagErrorResp,
		SeqNumber:    header.SeqNumber,
	}
	_ = s.eng.WriteRecord(ctx, []byte{telnet.NegativeResponse}, respHeader)
}

// Submit enqueues fn to run on the session's task-loop goroutine,
// serializing it with record handling -- the thread-safe command queue
// spec.md §5 describes for external callers.
func (s *Session) Submit(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}
