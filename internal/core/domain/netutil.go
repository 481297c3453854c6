package domain

import "net"

// SameIPv4Slash24 reports whether a and b share the same /24 block. Invalid
// or non-IPv4 input is treated as non-matching rather than erroring, since
// callers use this purely as a defensive filter.
func SameIPv4Slash24(a, b string) bool {
	ipA := net.ParseIP(a).To4()
	ipB := net.ParseIP(b).To4()
	if ipA == nil || ipB == nil {
		return false
	}
	return ipA[0] == ipB[0] && ipA[1] == ipB[1] && ipA[2] == ipB[2]
}
