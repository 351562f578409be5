package hid

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gethiox/strummer/internal/pkg/fs"
	"github.com/gethiox/strummer/internal/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultSysfsRoot = "/sys/class/hidraw"
	DefaultDevRoot   = "/dev"
)

var ErrDeviceNotFound = errors.New("device not found")

// Filter selects a hidraw node. Usage below 1 and negative Interface match anything.
type Filter struct {
	Product   string `yaml:"product" json:"product"`
	Usage     int    `yaml:"usage" json:"usage"`
	Interface int    `yaml:"interface" json:"interface"`
}

type DeviceInfo struct {
	Node      string // e.g. hidraw3
	Path      string // e.g. /dev/hidraw3
	Name      string
	Usage     int // first usage of the report descriptor, -1 if unknown
	Interface int // usb interface number, -1 if unknown
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s \"%s\" (usage %d, interface %d)", d.Path, d.Name, d.Usage, d.Interface)
}

func (f Filter) Match(d DeviceInfo) bool {
	if f.Product != "" && !strings.Contains(d.Name, f.Product) {
		return false
	}
	if f.Usage > 0 && d.Usage != f.Usage {
		return false
	}
	if f.Interface >= 0 && d.Interface >= 0 && f.Interface != d.Interface {
		return false
	}
	return true
}

// firstUsage walks short items of a report descriptor and returns value of the first Usage item.
func firstUsage(desc []byte) int {
	for i := 0; i < len(desc); {
		prefix := desc[i]
		if prefix == 0xFE { // long item
			if i+1 >= len(desc) {
				return -1
			}
			i += 3 + int(desc[i+1])
			continue
		}
		size := int(prefix & 0b11)
		if size == 3 {
			size = 4
		}
		if i+1+size > len(desc) {
			return -1
		}
		if prefix&0b11111100 == 0x08 { // local Usage
			var v int
			for b := 0; b < size; b++ {
				v |= int(desc[i+1+b]) << (8 * b)
			}
			return v
		}
		i += 1 + size
	}
	return -1
}

// interfaceNumber climbs from hid device directory to the usb interface holding bInterfaceNumber.
func interfaceNumber(device fs.Entry) int {
	resolved, err := device.Resolved()
	if err != nil {
		return -1
	}
	parent := resolved.Child("..")
	value, err := parent.ReadAttr("bInterfaceNumber")
	if err != nil {
		return -1
	}
	n, err := strconv.ParseInt(value, 16, 32)
	if err != nil {
		return -1
	}
	return int(n)
}

// Enumerate lists hidraw nodes described under sysfsRoot.
func Enumerate(sysfsRoot, devRoot string) ([]DeviceInfo, error) {
	root := fs.NewEntry(sysfsRoot)
	nodes, err := root.Dirs()
	if err != nil {
		return nil, err
	}

	var names = make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var devices = make([]DeviceInfo, 0, len(names))
	for _, name := range names {
		node := nodes[name]
		device := node.Child("device")

		info := DeviceInfo{
			Node:      name,
			Path:      strings.Join([]string{devRoot, name}, "/"),
			Usage:     -1,
			Interface: -1,
		}

		uevent, err := device.ReadUevent()
		if err != nil {
			log.Info(fmt.Sprintf("skipping %s: %v", name, err), logger.Debug)
			continue
		}
		info.Name = uevent["HID_NAME"]

		desc, err := device.ReadBytes("report_descriptor")
		if err == nil {
			info.Usage = firstUsage(desc)
		}
		info.Interface = interfaceNumber(device)
		devices = append(devices, info)
	}
	return devices, nil
}

// Find returns first hidraw node matching filter.
func Find(sysfsRoot, devRoot string, filter Filter) (DeviceInfo, error) {
	devices, err := Enumerate(sysfsRoot, devRoot)
	if err != nil {
		return DeviceInfo{}, err
	}
	for _, d := range devices {
		if filter.Match(d) {
			log.Info("found device", logger.Info, zap.String("device", d.String()))
			return d, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: product \"%s\" usage %d interface %d", ErrDeviceNotFound, filter.Product, filter.Usage, filter.Interface)
}
