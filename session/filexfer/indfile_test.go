package filexfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentn3270/tn3270/ps"
)

type fakeSender struct {
	chunks [][]byte
}

func (f *fakeSender) WriteRecord(ctx context.Context, data []byte) error {
	f.chunks = append(f.chunks, append([]byte{}, data...))
	return nil
}

func TestUploadChunksFileAndSendsEndMarker(t *testing.T) {
	space := ps.New(ps.Size24x80, nil)
	tr := New(space, true, nil)

	dir := t.TempDir()
	path := filepath.Join(dir, "payload.txt")
	content := make([]byte, chunkSize+10)
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, content, 0o644))

	sender := &fakeSender{}
	require.NoError(t, tr.Upload(context.Background(), path, sender))

	require.Len(t, sender.chunks, 3) // two data chunks + end marker
	last := sender.chunks[len(sender.chunks)-1]
	assert.Len(t, last, 4) // command + 2-byte length + SFID, no payload
}

func TestAcceptAndReceiveRoundTrip(t *testing.T) {
	space := ps.New(ps.Size24x80, nil)
	tr := New(space, true, nil)

	tr.Accept([]byte("hello "))
	tr.Accept([]byte("world"))
	tr.CompleteDownload()

	assert.Equal(t, DownloadsAvailable, tr.State())

	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	ok, err := tr.Receive(path)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	assert.Equal(t, Idle, tr.State())
}

func TestBannerFallbackDetection(t *testing.T) {
	space := ps.New(ps.Size24x80, nil)
	tr := New(space, false, nil)

	size := space.Size()
	banner := "FILE TRANSFER IN PROGRESS"
	for i, r := range banner {
		space.WriteCell((size.Rows-1)*size.Cols+i, byte(r), ps.ExtendedAttrs{})
	}

	identity := func(b []byte) string {
		out := make([]rune, len(b))
		for i, c := range b {
			out[i] = rune(c)
		}
		return string(out)
	}

	tr.OnHostWrite(identity)
	assert.Equal(t, InProgress, tr.State())
}
