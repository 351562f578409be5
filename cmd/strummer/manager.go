package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gethiox/strummer/internal/pkg/config"
	"github.com/gethiox/strummer/internal/pkg/hid"
	"github.com/gethiox/strummer/internal/pkg/logger"
	"go.uber.org/zap"
)

const discoveryRate = time.Second

func buildDecoder(store *config.Store) *hid.Decoder {
	mappings, errs := hid.ParseMappings(store.Mappings())
	for _, err := range errs {
		log.Info(fmt.Sprintf("skipping mapping: %v", err), logger.Warning)
	}
	return hid.NewDecoder(mappings)
}

type deviceManager struct {
	cfg        config.DaemonConfig
	store      *config.Store
	devicePath string
	warn       func(string)

	mu     sync.Mutex
	reader *hid.Reader
}

// UpdateDecoder rebuilds mappings of currently read device.
func (m *deviceManager) UpdateDecoder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reader != nil {
		m.reader.SetDecoder(buildDecoder(m.store))
	}
}

func (m *deviceManager) locate() (string, error) {
	if m.devicePath != "" {
		return m.devicePath, nil
	}
	info, err := hid.Find(hid.DefaultSysfsRoot, hid.DefaultDevRoot, m.store.Settings().Device)
	if err != nil {
		return "", err
	}
	return info.Path, nil
}

func wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (m *deviceManager) locateEvdev() ([]string, error) {
	if m.devicePath != "" {
		return strings.Split(m.devicePath, ","), nil
	}
	return hid.FindEvdev(m.store.Settings().Device)
}

// attach opens configured tablet source and forwards its reports until it disconnects.
func (m *deviceManager) attach(ctx context.Context, reports chan<- hid.Report) error {
	if m.cfg.Strummer.Source == config.SourceEvdev {
		paths, err := m.locateEvdev()
		if err != nil {
			return err
		}
		tablet, err := hid.OpenEvdev(paths, m.cfg.Strummer.Grab)
		if err != nil {
			return err
		}
		log.Info("Device connected", logger.Info, zap.String("device", tablet.Name()))
		m.forward(ctx, tablet.Process(ctx), nil, reports)
		log.Info("Device disconnected", logger.Info, zap.String("device", tablet.Name()))
		return nil
	}

	path, err := m.locate()
	if err != nil {
		return err
	}
	dev, err := hid.OpenHidraw(path)
	if err != nil {
		return err
	}
	m.process(ctx, filepath.Base(path), dev, reports)
	return nil
}

// run keeps a tablet attached: discovers it, forwards its reports and starts over after
// disconnection. Reports channel is closed when ctx is done.
func (m *deviceManager) run(ctx context.Context, reports chan<- hid.Report) {
	defer close(reports)

	log.Info(fmt.Sprintf("Run manager, %s source", m.cfg.Strummer.Source), logger.Debug)
	var lastErr string
	for {
		err := m.attach(ctx, reports)
		switch {
		case err == nil:
			lastErr = ""
		case err.Error() != lastErr:
			lastErr = err.Error()
			if errors.Is(err, hid.ErrDeviceNotFound) {
				log.Info("tablet not available, waiting for it (MIDI input still works)", logger.Info)
			} else {
				log.Info(fmt.Sprintf("tablet unavailable: %v", err), logger.Warning)
			}
		}
		if !wait(ctx, discoveryRate) {
			break
		}
	}
	log.Info("Exit manager", logger.Debug)
}

func (m *deviceManager) process(ctx context.Context, name string, dev hid.Device, reports chan<- hid.Report) {
	reader := hid.NewReader(name, dev, buildDecoder(m.store), hid.ReaderConfig{
		ReportSize: m.cfg.Strummer.ReportSize,
		PollSleep:  m.cfg.Strummer.PollSleep,
		Backoff:    m.cfg.Strummer.Backoff,
		ReportID:   m.store.ReportID(),
	})
	m.mu.Lock()
	m.reader = reader
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.reader = nil
		m.mu.Unlock()
	}()

	log.Info("Device connected", logger.Info, zap.String("device", name))
	m.forward(ctx, reader.Process(ctx), reader.Warnings(), reports)
	log.Info("Device disconnected", logger.Info, zap.String("device", name))
}

// forward passes reports on until both incoming channels are closed.
func (m *deviceManager) forward(ctx context.Context, incoming <-chan hid.Report, warnings <-chan string, reports chan<- hid.Report) {
	for incoming != nil || warnings != nil {
		select {
		case report, ok := <-incoming:
			if !ok {
				incoming = nil
				continue
			}
			select {
			case reports <- report:
			case <-ctx.Done():
			}
		case msg, ok := <-warnings:
			if !ok {
				warnings = nil
				continue
			}
			if m.warn != nil {
				m.warn(msg)
			}
		}
	}
}
