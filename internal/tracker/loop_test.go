package tracker

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gnss-tracker/internal/gps"
	"gnss-tracker/internal/recorder"
	"gnss-tracker/internal/status"
	"gnss-tracker/internal/storage"
)

// syncBuffer is a bytes.Buffer safe to read while Run writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runAsync(ctx context.Context, c *Controller) <-chan error {
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return done
}

func fileContains(path, want string) func() bool {
	return func() bool {
		b, err := os.ReadFile(path)
		return err == nil && strings.Contains(string(b), want)
	}
}

func TestRun_RecordsSentencesAndSamples(t *testing.T) {
	root := t.TempDir()
	text := "NmeaOutUart=TRUE\nNmeaOutFile=TRUE\nSensorOutUart=TRUE\n; EOF"
	require.NoError(t, os.WriteFile(filepath.Join(root, "tracker.ini"), []byte(text), 0o644))

	g := &fakeGNSS{
		ch: make(chan string, 4),
		snap: gps.Snapshot{
			Valid:      true,
			Position:   orb.Point{139.7, 35.6},
			FixTime:    time.Now().UTC(),
			ReceivedAt: time.Now(),
		},
	}
	stubGNSS(t, g)
	stubSensors(t, nil)

	board := testBoard(root)
	board.GPS.Enable = true
	board.I2C.Enable = true
	console := &syncBuffer{}
	c := New(board, testOptions(console))
	require.NoError(t, c.Setup(context.Background()))
	assert.Equal(t, status.Sampling, c.Machine().State())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, c)

	g.ch <- "$GPRMC,first"
	g.ch <- "$GPGGA,second"

	nma := filepath.Join(root, "00000001.NMA")
	csv := filepath.Join(root, "00000001.CSV")
	require.Eventually(t, fileContains(nma, "$GPRMC,first\n$GPGGA,second\n"), 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, fileContains(csv, ",0.0100,-0.0200,1.0000,1013.25,21.50\n"), 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	out := console.String()
	assert.Contains(t, out, "$GPRMC,first\n")
	assert.Contains(t, out, ",1013.25,21.50\n")
	assert.Equal(t, status.Sampling, c.Machine().State())
	assert.False(t, c.Machine().Halted())
}

func TestRun_AwaitingFixWithoutFix(t *testing.T) {
	g := &fakeGNSS{ch: make(chan string)}
	stubGNSS(t, g)

	board := testBoard(t.TempDir())
	board.GPS.Enable = true
	ind := &recordingIndicator{}
	opts := testOptions(nil)
	opts.Indicator = ind
	c := New(board, opts)
	require.NoError(t, c.Setup(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx))

	assert.Equal(t, status.AwaitingFix, c.Machine().State())
	assert.Equal(t, status.LED2, c.Machine().Pattern())
}

func TestRun_WriteFailureHalts(t *testing.T) {
	v, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	fv := &failingVolume{Volume: v}
	prev := openVolumeFn
	openVolumeFn = func(string) (recorder.Volume, error) { return fv, nil }
	t.Cleanup(func() { openVolumeFn = prev })
	stubSensors(t, nil)

	board := testBoard("unused")
	board.I2C.Enable = true
	ind := &recordingIndicator{}
	opts := testOptions(nil)
	opts.Indicator = ind
	c := New(board, opts)
	require.NoError(t, c.Setup(context.Background()))

	fv.fail.Store(true)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = c.Run(ctx)

	var herr *status.HaltError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, status.FatalWriteError, herr.State)
	assert.Equal(t, status.LED3, herr.Pattern)
	require.ErrorIs(t, err, storage.ErrShortWrite)

	// A halted controller stays halted.
	require.ErrorAs(t, c.Run(context.Background()), &herr)
	assert.Equal(t, status.LED3, c.Machine().Pattern())
}

func TestRun_RotatesFiles(t *testing.T) {
	root := t.TempDir()
	board := testBoard(root)
	board.Sampling.FileInterval = 20 * time.Millisecond
	c := New(board, testOptions(nil))
	require.NoError(t, c.Setup(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, c)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(root, "00000003.CSV"))
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, c.rec.Number(), uint32(3))
	assert.Equal(t, status.Sampling, c.Machine().State())
}
