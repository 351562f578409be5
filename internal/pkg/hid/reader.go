package hid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/gethiox/strummer/internal/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var log = logger.GetLogger()

var ErrDeviceGone = errors.New("device gone")

// Device is an opened report source. Read returns 0 bytes when no report is pending.
type Device interface {
	Read(p []byte) (int, error)
	Close() error
}

type ReaderConfig struct {
	ReportSize int
	PollSleep  time.Duration
	Backoff    time.Duration
	// ReportID is an expected value of the first report byte, negative disables validation.
	ReportID int
}

var DefaultReaderConfig = ReaderConfig{
	ReportSize: 64,
	PollSleep:  time.Millisecond,
	Backoff:    100 * time.Millisecond,
	ReportID:   2,
}

type Report struct {
	Raw    []byte
	Sample Sample
}

type Reader struct {
	name    string
	device  Device
	config  ReaderConfig
	decoder atomic.Value // *Decoder

	warned   bool
	warnings chan string
}

func NewReader(name string, device Device, decoder *Decoder, config ReaderConfig) *Reader {
	if config.ReportSize <= 0 {
		config.ReportSize = DefaultReaderConfig.ReportSize
	}
	if config.PollSleep <= 0 {
		config.PollSleep = DefaultReaderConfig.PollSleep
	}
	if config.Backoff <= 0 {
		config.Backoff = DefaultReaderConfig.Backoff
	}
	r := &Reader{
		name:     name,
		device:   device,
		config:   config,
		warnings: make(chan string, 1),
	}
	r.decoder.Store(decoder)
	return r
}

// SetDecoder swaps mappings used for subsequent reports, safe to call during Process.
func (r *Reader) SetDecoder(d *Decoder) {
	r.decoder.Store(d)
}

// Warnings delivers at most one report-id mismatch warning per reader, closed when Process ends.
func (r *Reader) Warnings() <-chan string {
	return r.warnings
}

// IsDisconnect tells if error means the device is not coming back.
func IsDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, ErrDeviceGone) ||
		errors.Is(err, unix.ENODEV) ||
		errors.Is(err, unix.ENXIO)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Reader) validate(report []byte) {
	if r.config.ReportID < 0 || r.warned || len(report) == 0 {
		return
	}
	if int(report[0]) == r.config.ReportID {
		return
	}
	r.warned = true
	msg := fmt.Sprintf(
		"unexpected report id: %d (expected %d), device may not be compatible with current configuration",
		report[0], r.config.ReportID,
	)
	log.Info(msg, logger.Warning, zap.String("device", r.name))
	select {
	case r.warnings <- msg:
	default:
	}
}

// Process polls the device until ctx is cancelled or the device disconnects.
// Returned channel is closed when reading stops, device is closed afterwards.
func (r *Reader) Process(ctx context.Context) <-chan Report {
	var reports = make(chan Report, 64)

	go func() {
		defer close(r.warnings)
		defer close(reports)
		defer func() {
			err := r.device.Close()
			if err != nil && !errors.Is(err, os.ErrClosed) {
				log.Info(fmt.Sprintf("device close failed: %v", err), logger.Warning, zap.String("device", r.name))
			}
		}()

		log.Info("Reading reports", logger.Debug, zap.String("device", r.name))
		var buf = make([]byte, r.config.ReportSize)
		for {
			select {
			case <-ctx.Done():
				log.Info("Reading reports finished", logger.Debug, zap.String("device", r.name))
				return
			default:
			}

			n, err := r.device.Read(buf)
			if err != nil {
				if IsDisconnect(err) {
					log.Info(fmt.Sprintf("device disconnected: %v", err), logger.Warning, zap.String("device", r.name))
					return
				}
				log.Info(fmt.Sprintf("reading report failed: %v", err), logger.Error, zap.String("device", r.name))
				if !sleep(ctx, r.config.Backoff) {
					return
				}
				continue
			}
			if n == 0 {
				if !sleep(ctx, r.config.PollSleep) {
					return
				}
				continue
			}

			raw := make([]byte, n)
			copy(raw, buf[:n])
			r.validate(raw)

			decoder := r.decoder.Load().(*Decoder)
			report := Report{Raw: raw, Sample: decoder.Decode(raw)}
			select {
			case reports <- report:
			case <-ctx.Done():
				return
			}
		}
	}()

	return reports
}
