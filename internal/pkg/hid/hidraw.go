package hid

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Hidraw is a non-blocking reader of a /dev/hidrawN node.
type Hidraw struct {
	path string

	mu     sync.Mutex
	fd     int
	closed bool
}

func OpenHidraw(path string) (*Hidraw, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening \"%s\" failed: %w", path, err)
	}
	return &Hidraw{path: path, fd: fd}, nil
}

func (h *Hidraw) Path() string {
	return h.path
}

func (h *Hidraw) Read(p []byte) (int, error) {
	h.mu.Lock()
	closed, fd := h.closed, h.fd
	h.mu.Unlock()
	if closed {
		return 0, os.ErrClosed
	}

	n, err := unix.Read(fd, p)
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return 0, nil
	case errors.Is(err, unix.ENODEV), errors.Is(err, unix.EIO):
		return 0, fmt.Errorf("%w: %s: %v", ErrDeviceGone, h.path, err)
	case err != nil:
		return 0, err
	case n < 0:
		return 0, nil
	}
	return n, nil
}

func (h *Hidraw) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return os.ErrClosed
	}
	h.closed = true
	return unix.Close(h.fd)
}
