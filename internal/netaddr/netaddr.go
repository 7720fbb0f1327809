package netaddr

import (
	"errors"
	"fmt"
	"net"
)

var ErrNoInterface = errors.New("no usable network interface")

// Find returns the address and hardware address announced as $localip and
// $mac. With an empty name the first interface that is up, not a loopback
// and has an address is used.
func Find(name string) (net.IP, net.HardwareAddr, error) {
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, nil, fmt.Errorf("error getting interface %s: %w", name, err)
		}
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, nil, fmt.Errorf("error getting ips of %s: %w", name, err)
		}
		return pickIP(addrs), iface.HardwareAddr, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, fmt.Errorf("error getting interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip := pickIP(addrs); ip != nil {
			return ip, iface.HardwareAddr, nil
		}
	}
	return nil, nil, ErrNoInterface
}

// pickIP prefers an IPv4 address and falls back to the first global IPv6 one.
func pickIP(addrs []net.Addr) net.IP {
	var v6 net.IP
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
		if v6 == nil {
			v6 = ip
		}
	}
	return v6
}
