package ringnet

import (
	"fmt"
	"net"
	"unsafe"

	"golang.org/x/sys/unix"
)

// resolvedAddr holds a raw sockaddr ready to be pinned and handed to an
// io_uring PrepareConnect/PrepareBind SQE, mirroring the pack reactor
// reference's own resolveTCPAddr+sockaddr split (it builds a raw sockaddr
// once up front rather than re-deriving it on every connect attempt).
type resolvedAddr struct {
	domain int
	ptr    unsafe.Pointer
	len    uint32
	// keep the backing value alive; ptr points into it
	raw any
}

func resolveTCP(address string) (*resolvedAddr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("ringnet: resolve %q: %w", address, err)
	}

	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		sa := &unix.RawSockaddrInet4{
			Family: unix.AF_INET,
			Port:   htons(uint16(tcpAddr.Port)),
		}
		copy(sa.Addr[:], ip4)
		return &resolvedAddr{
			domain: unix.AF_INET,
			ptr:    unsafe.Pointer(sa),
			len:    uint32(unsafe.Sizeof(*sa)),
			raw:    sa,
		}, nil
	}

	ip6 := tcpAddr.IP.To16()
	if ip6 == nil {
		return nil, fmt.Errorf("ringnet: unresolvable address %q", address)
	}
	sa := &unix.RawSockaddrInet6{
		Family: unix.AF_INET6,
		Port:   htons(uint16(tcpAddr.Port)),
	}
	copy(sa.Addr[:], ip6)
	return &resolvedAddr{
		domain: unix.AF_INET6,
		ptr:    unsafe.Pointer(sa),
		len:    uint32(unsafe.Sizeof(*sa)),
		raw:    sa,
	}, nil
}

func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}
