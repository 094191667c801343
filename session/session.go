// Package session implements the session controller: the lifecycle state
// machine, command queue, and public operations a UI or automation layer
// drives a TN3270(E) connection through (spec.md §4.6).
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opentn3270/tn3270/codec"
	"github.com/opentn3270/tn3270/datastream"
	"github.com/opentn3270/tn3270/errs"
	"github.com/opentn3270/tn3270/ps"
	"github.com/opentn3270/tn3270/session/filexfer"
	"github.com/opentn3270/tn3270/telnet"
	"github.com/opentn3270/tn3270/transport"
)

// State is a session lifecycle state (spec.md §4.6).
type State int

const (
	StateInit State = iota
	StateConnecting
	StateNegotiating
	StateBound
	StateIdle
	StatePendingInput
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConnecting:
		return "CONNECTING"
	case StateNegotiating:
		return "NEGOTIATING"
	case StateBound:
		return "BOUND"
	case StateIdle:
		return "IDLE"
	case StatePendingInput:
		return "PENDING_INPUT"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// FileTransferState reports IND$FILE sub-state, per spec.md §4.6.
type FileTransferState int

const (
	FileTransferIdle FileTransferState = iota
	FileTransferInProgress
	FileTransferDownloadsAvailable
)

// Options configures a new Session.
type Options struct {
	Host     string
	Port     int
	TermType string
	Size     ps.Size
	Alt      ps.Size
	Codepage codec.Codepage
	Transport transport.Options
	Telnet    telnet.Options

	FileTransferCapable bool

	Log *logrus.Entry
}

// Session is a single TN3270(E) connection: transport, telnet engine,
// presentation space, and data-stream interpreter, plus the lifecycle
// and queue machinery wrapping them (spec.md §4.6).
type Session struct {
	id   uuid.UUID
	opts Options
	log  *logrus.Entry

	mu    sync.Mutex
	state State

	tr  transport.Transport
	eng *telnet.Engine
	in  *datastream.Interpreter

	cmds   chan func()
	events events

	xfer *filexfer.Transfer

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// New constructs a Session in the INIT state. It performs no I/O.
func New(opts Options) *Session {
	if opts.Size.Rows == 0 {
		opts.Size = ps.Size24x80
	}
	if opts.Codepage == nil {
		opts.Codepage = codec.CP037
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	s := &Session{
		id:    uuid.New(),
		opts:  opts,
		log:   log,
		state: StateInit,
		cmds:  make(chan func(), 32),
		done:  make(chan struct{}),
	}
	Register(s)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Connect dials host:port, negotiates TN3270(E), and starts the session's
// task loop. It blocks until the session reaches BOUND or negotiation
// fails.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(StateConnecting)

	tr, err := transport.Dial(ctx, s.addr(), s.opts.Transport)
	if err != nil {
		s.setState(StateClosed)
		return errs.Transport(err, "connect")
	}
	s.tr = tr

	s.setState(StateNegotiating)
	topts := s.opts.Telnet
	if topts.TerminalType == "" {
		topts.TerminalType = s.opts.TermType
	}
	topts.Log = s.log
	eng := telnet.New(tr, topts)
	if err := eng.Negotiate(ctx); err != nil {
		_ = tr.Close()
		s.setState(StateClosed)
		return errs.Negotiation(err.Error())
	}
	s.eng = eng

	space := ps.New(s.opts.Size, s.log)
	in := datastream.New(space, s.opts.Size, s.opts.Alt, s.log)
	in.FileTransferCapable = s.opts.FileTransferCapable
	s.in = in
	s.xfer = filexfer.New(space, s.opts.FileTransferCapable, s.log)
	in.OnInboundFileChunk = func(payload []byte) {
		if len(payload) == 0 {
			s.xfer.CompleteDownload()
			return
		}
		s.xfer.Accept(payload)
	}

	s.setState(StateBound)
	s.setState(StateIdle)

	go s.loop(ctx)
	return nil
}

func (s *Session) addr() string {
	host := s.opts.Host
	port := s.opts.Port
	if port == 0 {
		port = transport.DefaultPort(s.opts.Transport.UseTLS)
	}
	return hostPort(host, port)
}

// Space exposes the presentation space for read-only inspection by
// higher layers (e.g. a UI renderer); mutation should go through
// SendKeys/SendAID.
func (s *Session) Space() *ps.PresentationSpace { return s.in.Space }

// ScreenText returns the decoded Unicode text of rows (or the whole
// screen, if rows is empty), per spec.md §4.6.
func (s *Session) ScreenText(rows ...int) string {
	space := s.in.Space
	size := space.Size()
	cells := space.Cells()

	rowSet := rows
	if len(rowSet) == 0 {
		rowSet = make([]int, size.Rows)
		for i := range rowSet {
			rowSet[i] = i
		}
	}

	var out []byte
	for _, r := range rowSet {
		for c := 0; c < size.Cols; c++ {
			cell := cells[r*size.Cols+c]
			if cell.IsFieldAttribute {
				out = append(out, 0x40) // EBCDIC space
				continue
			}
			out = append(out, cell.CodePoint)
		}
		if r != rowSet[len(rowSet)-1] {
			out = append(out, '\n')
		}
	}
	return s.opts.Codepage.Decode(out)
}

// SendKeys translates text through the active codepage into presentation
// space edits honoring field rules. It does not transmit (spec.md §4.6).
// The edits run on the session's task-loop goroutine via Submit, so they
// never race with a concurrent host write applying to the same
// presentation space (spec.md §5).
func (s *Session) SendKeys(text string) error {
	encoded, err := s.opts.Codepage.Encode(text)
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	s.Submit(func() {
		for _, b := range encoded {
			if _, err := s.in.Space.Type(b); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	})
	select {
	case err := <-done:
		return err
	case <-s.done:
		return errs.SessionClosed()
	}
}

// SendAID builds and transmits the Read response for aid, locking the
// keyboard until the next host write unlocks it (spec.md §4.6). Like
// SendKeys, the presentation-space mutation and the keyboard lock run on
// the task-loop goroutine via Submit (spec.md §5).
func (s *Session) SendAID(ctx context.Context, aid datastream.AID) error {
	done := make(chan error, 1)
	s.Submit(func() {
		if s.in.Space.KeyboardLocked() {
			done <- errs.New(errs.KindKeyboardLocked, "")
			return
		}
		s.in.SetLastAID(aid)
		s.in.Space.SetLastAID(byte(aid))

		var resp []byte
		if aid.IsPAOrClear() {
			resp = s.in.BuildReadModified(false)
		} else {
			resp = s.in.BuildReadModified(false)
		}
		s.in.Space.LockKeyboard(ps.KeyboardLockedWaiting)

		if err := s.eng.WriteRecord(ctx, resp, nil); err != nil {
			done <- errs.Transport(err, "send aid")
			return
		}
		s.setState(StatePendingInput)
		done <- nil
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errs.Timeout("send aid: " + ctx.Err().Error())
	case <-s.done:
		return errs.SessionClosed()
	}
}

// FileTransferState reports the IND$FILE sub-state (spec.md §4.6).
func (s *Session) FileTransferState() FileTransferState {
	return FileTransferState(s.xfer.State())
}

// engineSender adapts *telnet.Engine to filexfer's sender interface.
type engineSender struct{ eng *telnet.Engine }

func (e engineSender) WriteRecord(ctx context.Context, data []byte) error {
	return e.eng.WriteRecord(ctx, data, nil)
}

// UploadFile streams localPath to the host via IND$FILE (spec.md §4.6's
// upload operation).
func (s *Session) UploadFile(ctx context.Context, localPath string) error {
	return s.xfer.Upload(ctx, localPath, engineSender{eng: s.eng})
}

// ReceiveFile pops the next pending IND$FILE download and writes it to
// localPath (spec.md §4.6's receive operation).
func (s *Session) ReceiveFile(localPath string) (bool, error) {
	return s.xfer.Receive(localPath)
}

// Wait blocks until predicate(s) is true, the session closes, or timeout
// elapses (spec.md §4.6).
func (s *Session) Wait(ctx context.Context, timeout time.Duration, predicate func(*Session) bool) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if predicate(s) {
			return nil
		}
		select {
		case <-s.done:
			return errs.SessionClosed()
		case <-ctx.Done():
			return errs.Timeout("wait: " + ctx.Err().Error())
		case <-ticker.C:
			if timeout > 0 && time.Now().After(deadline) {
				return errs.Timeout("wait predicate")
			}
		}
	}
}

// Close tears down the transport and marks the session CLOSED.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		if s.tr != nil {
			s.closeErr = s.tr.Close()
		}
		s.setState(StateClosed)
		close(s.done)
		s.events.fireClose(s.closeErr)
		Unregister(s.id)
	})
	return s.closeErr
}
