package recorder

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gnss-tracker/internal/storage"
)

type memFS struct {
	files   map[string][]byte
	shortOn string
	writes  int
}

func newMemFS() *memFS { return &memFS{files: map[string][]byte{}} }

func (m *memFS) Read(name string, p []byte) (int, error) {
	return copy(p, m.files[name]), nil
}

func (m *memFS) Write(name string, p []byte, mode storage.Mode) (int, error) {
	m.writes++
	if m.shortOn != "" && strings.HasSuffix(name, m.shortOn) {
		return len(p) / 2, nil
	}
	if mode == storage.ModeTruncate {
		m.files[name] = nil
	}
	m.files[name] = append(m.files[name], p...)
	return len(p), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var t0 = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func TestIndex_NextPersists(t *testing.T) {
	fs := newMemFS()
	ix := NewIndex(fs, "")
	assert.Equal(t, uint32(0), ix.Current())

	n, err := ix.Next()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
	n, err = ix.Next()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)
	assert.Equal(t, "2", string(fs.files[IndexFileName]))
}

func TestIndex_GarbageReadsAsZero(t *testing.T) {
	fs := newMemFS()
	fs.files[IndexFileName] = []byte("not a number")
	assert.Equal(t, uint32(0), NewIndex(fs, "").Current())

	fs.files[IndexFileName] = []byte(" 41\r\n")
	assert.Equal(t, uint32(41), NewIndex(fs, "").Current())
}

func TestIndex_ShortWrite(t *testing.T) {
	fs := newMemFS()
	fs.shortOn = IndexFileName
	_, err := NewIndex(fs, "").Next()
	require.ErrorIs(t, err, storage.ErrShortWrite)
}

func TestRecorder_RotateNamesFiles(t *testing.T) {
	fs := newMemFS()
	fs.files[IndexFileName] = []byte("7")
	r := New(fs, Config{NMEA: true, Sensor: true, Session: "abc"}, quietLogger())

	require.NoError(t, r.Rotate(t0))
	nmea, sensor := r.Files()
	assert.Equal(t, "00000008.NMA", nmea)
	assert.Equal(t, "00000008.CSV", sensor)
	assert.Equal(t, uint32(8), r.Number())

	header := string(fs.files[sensor])
	assert.True(t, strings.HasPrefix(header, "# session=abc file=8 started=2024-06-01T09:30:00Z\n"))
	assert.True(t, strings.HasSuffix(header, csvHeader))
}

func TestRecorder_BuffersSamples(t *testing.T) {
	fs := newMemFS()
	r := New(fs, Config{Sensor: true, StoreRecords: 3}, quietLogger())
	require.NoError(t, r.Rotate(t0))
	_, sensor := r.Files()
	headerLen := len(fs.files[sensor])

	s := Sample{Time: t0, Ax: 0.01, Ay: -0.02, Az: 1, PressureHPa: 1013.25, TempC: 21.5}
	require.NoError(t, r.AddSample(s))
	require.NoError(t, r.AddSample(s))
	assert.Len(t, fs.files[sensor], headerLen, "rows stay buffered")

	require.NoError(t, r.AddSample(s))
	body := string(fs.files[sensor][headerLen:])
	assert.Equal(t, 3, strings.Count(body, "\n"))
	assert.Contains(t, body, "2024-06-01T09:30:00.000Z,0.0100,-0.0200,1.0000,1013.25,21.50\n")
}

func TestRecorder_RotateFlushesPending(t *testing.T) {
	fs := newMemFS()
	r := New(fs, Config{Sensor: true, StoreRecords: 10}, quietLogger())
	require.NoError(t, r.Rotate(t0))
	_, first := r.Files()
	require.NoError(t, r.AddSample(Sample{Time: t0}))

	require.NoError(t, r.Rotate(t0.Add(30*time.Minute)))
	assert.Contains(t, string(fs.files[first]), "2024-06-01T09:30:00.000Z,")
	_, second := r.Files()
	assert.NotEqual(t, first, second)
}

func TestRecorder_Sentences(t *testing.T) {
	fs := newMemFS()
	r := New(fs, Config{NMEA: true}, quietLogger())
	require.ErrorIs(t, r.AddSentence("$GPRMC"), ErrNotOpen)

	require.NoError(t, r.Rotate(t0))
	require.NoError(t, r.AddSentence("$GPRMC,1"))
	require.NoError(t, r.AddSentence("$GPGGA,2"))
	nmea, sensor := r.Files()
	assert.Empty(t, sensor)
	assert.Equal(t, "$GPRMC,1\n$GPGGA,2\n", string(fs.files[nmea]))

	// Disabled outputs are silently skipped.
	require.NoError(t, r.AddSample(Sample{}))
}

func TestRecorder_ShortWriteIsFatal(t *testing.T) {
	fs := newMemFS()
	r := New(fs, Config{NMEA: true, Sensor: true, StoreRecords: 1}, quietLogger())
	require.NoError(t, r.Rotate(t0))

	fs.shortOn = ".NMA"
	err := r.AddSentence("$GPRMC,1")
	require.ErrorIs(t, err, storage.ErrShortWrite)

	fs.shortOn = ".CSV"
	err = r.AddSample(Sample{Time: t0})
	require.ErrorIs(t, err, storage.ErrShortWrite)
}

func TestRecorder_OnWrite(t *testing.T) {
	fs := newMemFS()
	r := New(fs, Config{NMEA: true}, quietLogger())
	var kinds []string
	total := 0
	r.OnWrite(func(kind string, n int) { kinds = append(kinds, kind); total += n })
	require.NoError(t, r.Rotate(t0))
	require.NoError(t, r.AddSentence("$X"))
	assert.Equal(t, []string{"nmea"}, kinds)
	assert.Equal(t, 3, total)
}

func TestRotator_Signals(t *testing.T) {
	r, err := NewRotator(20*time.Millisecond, quietLogger())
	require.NoError(t, err)
	r.Start()
	defer func() { require.NoError(t, r.Stop()) }()

	select {
	case <-r.C():
	case <-time.After(2 * time.Second):
		t.Fatal("no rotation signal")
	}
}

func TestRotator_RejectsZeroInterval(t *testing.T) {
	_, err := NewRotator(0, quietLogger())
	require.Error(t, err)
}
