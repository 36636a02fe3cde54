package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var openSerialFn = openSerial

// Config controls the GPS reader.
//
// Device may be empty to auto-detect /dev/ttyACM* and /dev/ttyUSB*. Baud
// defaults to 9600.
type Config struct {
	Device string
	Baud   int

	// Constellations and Interval are sent to the receiver on start.
	Constellations Constellations
	Interval       time.Duration

	// SentenceBuffer bounds the forwarded sentence queue. Sentences are
	// dropped while it is full.
	SentenceBuffer int
}

type Service struct {
	cfg Config
	log *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last      atomic.Value // Snapshot
	sentences chan string
	dropped   atomic.Uint64

	mu     sync.Mutex
	closer io.Closer
}

func New(cfg Config, logger *slog.Logger) *Service {
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.SentenceBuffer <= 0 {
		cfg.SentenceBuffer = 64
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{cfg: cfg, log: logger, sentences: make(chan string, cfg.SentenceBuffer)}
	s.last.Store(Snapshot{Device: cfg.Device, Baud: cfg.Baud})
	return s
}

// Sentences delivers raw NMEA lines, one positioning interval at a time.
func (s *Service) Sentences() <-chan string { return s.sentences }

// Dropped is the number of sentences discarded because the queue was full.
func (s *Service) Dropped() uint64 { return s.dropped.Load() }

// Start opens the receiver, sends the configuration sentences and starts
// reading. It fails if the device cannot be opened or configured.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gps service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			s.setErrorLocked("gps auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
			return fmt.Errorf("gps auto-detect failed")
		}
	}
	baud := s.cfg.Baud

	port, err := openSerialFn(device, baud)
	if err != nil {
		s.setErrorLocked(fmt.Sprintf("gps open failed device=%s baud=%d: %v", device, baud, err))
		return fmt.Errorf("gps open %s: %w", device, err)
	}
	for _, cmd := range ConfigSentences(s.cfg.Constellations, s.cfg.Interval) {
		if _, err := io.WriteString(port, cmd); err != nil {
			_ = port.Close()
			s.setErrorLocked(fmt.Sprintf("gps configure failed: %v", err))
			return fmt.Errorf("gps configure %s: %w", device, err)
		}
	}
	s.closer = port

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.last.Store(Snapshot{Device: device, Baud: baud})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = port.Close() }()
		s.log.Info("gps enabled", "device", device, "baud", baud,
			"constellations", s.cfg.Constellations.String(), "interval", s.cfg.Interval)
		s.read(childCtx, port, device, baud)
	}()
	return nil
}

func (s *Service) read(ctx context.Context, r io.Reader, device string, baud int) {
	reader := bufio.NewScanner(r)
	// NMEA sentences are < 83 chars; allow headroom for PMTK acks.
	reader.Buffer(make([]byte, 0, 256), 4096)

	st := nmeaState{device: device, baud: baud}
	var (
		forwarding  bool
		lastForward time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !reader.Scan() {
			err := reader.Err()
			if err == nil {
				err = io.EOF
			}
			if ctx.Err() == nil && !errors.Is(err, os.ErrClosed) {
				s.setError(fmt.Sprintf("gps read stopped: %v", err))
				s.log.Warn("gps read stopped", "device", device, "error", err)
			}
			return
		}

		line := strings.TrimSpace(reader.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sent, perr := parseNMEASentence(line)
		if perr != nil {
			s.setError(perr.Error())
			continue
		}

		now := time.Now().UTC()
		if sent.Type == "RMC" {
			// An RMC opens a new epoch; forward the whole epoch or none of it.
			forwarding = lastForward.IsZero() || now.Sub(lastForward) >= s.cfg.Interval-s.cfg.Interval/10
			if forwarding {
				lastForward = now
			}
		}
		if forwarding || lastForward.IsZero() {
			s.forward(line)
		}

		if st.apply(now, sent) {
			s.last.Store(st.snapshot())
		}
	}
}

func (s *Service) forward(line string) {
	select {
	case s.sentences <- line:
	default:
		s.dropped.Add(1)
	}
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	return v.(Snapshot)
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErrorLocked(msg)
}

func (s *Service) setErrorLocked(msg string) {
	cur := s.Snapshot()
	cur.LastError = msg
	s.last.Store(cur)
}

func autoDetectDevice() string {
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
