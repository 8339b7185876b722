package daemon

import (
	"net"
	"os"
	"path/filepath"
	"strings"
)

// NetworkProbe reports whether the device is on an unmetered network.
type NetworkProbe interface {
	OnWiFi() bool
}

// ProbeFunc adapts a function to NetworkProbe.
type ProbeFunc func() bool

// OnWiFi implements NetworkProbe.
func (f ProbeFunc) OnWiFi() bool {
	return f()
}

// InterfaceProbe reports WiFi when any up, non-loopback interface is
// wireless. Wireless interfaces are recognized by the kernel's
// /sys/class/net/<name>/wireless directory, or by the usual "wl" name
// prefix where sysfs is not available.
type InterfaceProbe struct {
	// SysClassNet is the sysfs network class directory (default:
	// /sys/class/net)
	SysClassNet string
}

// OnWiFi implements NetworkProbe.
func (p InterfaceProbe) OnWiFi() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if p.isWireless(iface.Name) {
			return true
		}
	}
	return false
}

func (p InterfaceProbe) isWireless(name string) bool {
	root := p.SysClassNet
	if root == "" {
		root = "/sys/class/net"
	}
	if info, err := os.Stat(filepath.Join(root, name, "wireless")); err == nil && info.IsDir() {
		return true
	}
	return strings.HasPrefix(name, "wl")
}
