// Package filexfer implements the IND$FILE sub-state machine layered on
// top of normal 3270 flow (spec.md §4.6/§9): detect via structured-field
// capability first, falling back to the "File transfer in progress"
// operator-area banner text only when the host lacks the structured
// field.
package filexfer

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opentn3270/tn3270/datastream"
	"github.com/opentn3270/tn3270/ps"
)

// State is the IND$FILE sub-state (spec.md §4.6).
type State int

const (
	Idle State = iota
	InProgress
	DownloadsAvailable
)

const banner = "FILE TRANSFER IN PROGRESS"

// chunkSize is the payload size per outbound structured-field chunk.
// IND$FILE's real DFT/CUT record-size negotiation is out of scope; a
// fixed conservative size keeps every chunk within one 3270 record.
const chunkSize = 1024

// Transfer tracks one session's IND$FILE state: whether a transfer
// looks active (detected either via structured-field negotiation or the
// banner-text fallback) and the FIFO of completed downloads waiting to
// be claimed with Receive.
type Transfer struct {
	space              *ps.PresentationSpace
	structuredCapable  bool
	log                *logrus.Entry

	mu               sync.Mutex
	active           bool
	pending          [][]byte
	downloadComplete bool
}

// New builds a Transfer over space. structuredCapable reflects whether
// IND$FILE support is advertised in this terminal's Query Reply
// (datastream.QCodeIBMFileTransfer, set from the session's
// FileTransferCapable option); when false, detection falls back to the
// operator-area banner.
func New(space *ps.PresentationSpace, structuredCapable bool, log *logrus.Entry) *Transfer {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Transfer{space: space, structuredCapable: structuredCapable, log: log}
}

// OnHostWrite re-evaluates transfer state after a host write lands. When
// structured-field capability wasn't negotiated, it scans the last row
// (the conventional operator-information area) for the banner text.
func (t *Transfer) OnHostWrite(decode func([]byte) string) {
	if t.structuredCapable {
		return
	}
	size := t.space.Size()
	cells := t.space.Cells()
	lastRow := make([]byte, 0, size.Cols)
	for c := 0; c < size.Cols; c++ {
		lastRow = append(lastRow, cells[(size.Rows-1)*size.Cols+c].CodePoint)
	}
	text := strings.ToUpper(decode(lastRow))

	t.mu.Lock()
	t.active = strings.Contains(text, banner)
	t.mu.Unlock()
}

// State reports the current IND$FILE sub-state.
func (t *Transfer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case len(t.pending) > 0:
		return DownloadsAvailable
	case t.active:
		return InProgress
	default:
		return Idle
	}
}

// sender abstracts the session's outbound record transmission so this
// package doesn't depend on the session package (which depends on this
// one), avoiding an import cycle.
type sender interface {
	WriteRecord(ctx context.Context, data []byte) error
}

// Upload reads localPath and streams it to the host as a sequence of
// Outbound-3270DS structured-field chunks terminated by a zero-length
// marker (spec.md §4.6's "streams chunked records... until an end
// marker").
func (t *Transfer) Upload(ctx context.Context, localPath string, send sender) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}

	for len(data) > 0 {
		n := chunkSize
		if n > len(data) {
			n = len(data)
		}
		if err := send.WriteRecord(ctx, buildChunk(data[:n])); err != nil {
			return err
		}
		data = data[n:]
	}
	return send.WriteRecord(ctx, buildChunk(nil))
}

// Accept appends a chunk received from the host (PUT direction) to the
// in-progress download in the pending FIFO, starting a new download after
// CompleteDownload. An empty chunk is ignored; the end of a download is
// marked by calling CompleteDownload.
func (t *Transfer) Accept(chunk []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(chunk) == 0 {
		return
	}
	if len(t.pending) == 0 || t.downloadComplete {
		t.pending = append(t.pending, append([]byte{}, chunk...))
		t.downloadComplete = false
		return
	}
	last := len(t.pending) - 1
	t.pending[last] = append(t.pending[last], chunk...)
}

// CompleteDownload marks the most recent pending download as finished
// (an end marker arrived), so the next Accept call starts a new one.
func (t *Transfer) CompleteDownload() {
	t.mu.Lock()
	t.downloadComplete = true
	t.mu.Unlock()
}

// Receive pops the oldest completed download and writes it to localPath,
// reporting ok=false if no completed download is pending.
func (t *Transfer) Receive(localPath string) (ok bool, err error) {
	t.mu.Lock()
	// Only the newest entry can still be receiving chunks.
	if len(t.pending) == 0 || (len(t.pending) == 1 && !t.downloadComplete) {
		t.mu.Unlock()
		return false, nil
	}
	data := t.pending[0]
	t.pending = t.pending[1:]
	t.mu.Unlock()

	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func buildChunk(data []byte) []byte {
	total := 2 + 1 + len(data)
	out := make([]byte, 0, total+1)
	out = append(out, byte(datastream.CmdWriteStructured))
	lenHi := byte((3 + len(data)) >> 8)
	lenLo := byte(3 + len(data))
	out = append(out, lenHi, lenLo, byte(datastream.SFOutbound3270DS))
	out = append(out, data...)
	return out
}
