package hid

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	node, name, iface string
	desc              []byte
}

func fakeSysfs(t *testing.T, nodes ...fakeNode) string {
	root := t.TempDir()
	class := filepath.Join(root, "class", "hidraw")
	require.NoError(t, os.MkdirAll(class, 0o755))

	for i, n := range nodes {
		ifaceDir := filepath.Join(root, "devices", "usb1", n.node+"-iface")
		hidDir := filepath.Join(ifaceDir, "0003:28BD:0914.000"+string(rune('1'+i)))
		require.NoError(t, os.MkdirAll(hidDir, 0o755))
		if n.iface != "" {
			require.NoError(t, os.WriteFile(filepath.Join(ifaceDir, "bInterfaceNumber"), []byte(n.iface+"\n"), 0o644))
		}
		uevent := "DRIVER=hid-generic\nHID_ID=0003:000028BD:00000914\nHID_NAME=" + n.name + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(hidDir, "uevent"), []byte(uevent), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(hidDir, "report_descriptor"), n.desc, 0o644))

		nodeDir := filepath.Join(class, n.node)
		require.NoError(t, os.MkdirAll(nodeDir, 0o755))
		require.NoError(t, os.Symlink(hidDir, filepath.Join(nodeDir, "device")))
	}
	return class
}

var (
	// Usage Page (Digitizer), Usage (Pen)
	penDescriptor = []byte{0x05, 0x0D, 0x09, 0x02, 0xA1, 0x01, 0xC0}
	// Usage Page (Generic Desktop), Usage (Mouse)
	mouseDescriptor = []byte{0x05, 0x01, 0x09, 0x02, 0xA1, 0x01, 0xC0}
	// Usage Page (Vendor), Usage (0x01)
	vendorDescriptor = []byte{0x06, 0x00, 0xFF, 0x09, 0x01, 0xA1, 0x01, 0xC0}
)

func TestFirstUsage(t *testing.T) {
	var tests = []struct {
		name     string
		desc     []byte
		expected int
	}{
		{"pen", penDescriptor, 2},
		{"vendor page", vendorDescriptor, 1},
		{"two byte usage", []byte{0x05, 0x0C, 0x0A, 0x23, 0x02}, 0x0223},
		{"long item skipped", []byte{0xFE, 0x01, 0x00, 0xAA, 0x09, 0x05}, 5},
		{"truncated", []byte{0x05}, -1},
		{"empty", nil, -1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, firstUsage(test.desc))
		})
	}
}

func TestEnumerateAndFind(t *testing.T) {
	class := fakeSysfs(t,
		fakeNode{node: "hidraw0", name: "Logitech Mouse", iface: "00", desc: mouseDescriptor},
		fakeNode{node: "hidraw1", name: "UGTABLET Deco 640", iface: "00", desc: penDescriptor},
		fakeNode{node: "hidraw2", name: "UGTABLET Deco 640", iface: "02", desc: vendorDescriptor},
		fakeNode{node: "hidraw3", name: "Unknown", desc: nil},
	)

	devices, err := Enumerate(class, "/dev")
	require.NoError(t, err)
	require.Len(t, devices, 4)
	assert.Equal(t, DeviceInfo{Node: "hidraw2", Path: "/dev/hidraw2", Name: "UGTABLET Deco 640", Usage: 1, Interface: 2}, devices[2])
	assert.Equal(t, -1, devices[3].Interface)
	assert.Equal(t, -1, devices[3].Usage)

	d, err := Find(class, "/dev", Filter{Product: "Deco 640", Usage: 1, Interface: 2})
	require.NoError(t, err)
	assert.Equal(t, "/dev/hidraw2", d.Path)

	d, err = Find(class, "/dev", Filter{Product: "Deco 640", Interface: -1})
	require.NoError(t, err)
	assert.Equal(t, "/dev/hidraw1", d.Path)

	_, err = Find(class, "/dev", Filter{Product: "Wacom", Interface: -1})
	assert.True(t, errors.Is(err, ErrDeviceNotFound))

	_, err = Enumerate(filepath.Join(class, "missing"), "/dev")
	assert.Error(t, err)
}
