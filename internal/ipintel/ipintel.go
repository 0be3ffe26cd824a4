// Package ipintel derives coarse signals from raw IPv4 addresses: a
// placeholder country band, a reserved-range VPN/datacenter flag, and the
// two-octet network prefix used as a "same network" proxy.
//
// The country banding is explicitly not real geo-IP resolution. It maps
// the first octet into historical, non-authoritative allocation bands and
// exists only so downstream aggregation has a label to work with.
package ipintel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAddress is returned when the input does not parse into exactly
// four in-range dotted-quad octets.
var ErrInvalidAddress = errors.New("invalid IPv4 address")

// Country codes returned by EstimateCountry.
const (
	CountryUS      = "US"
	CountryEU      = "EU"
	CountryAsia    = "ASIA"
	CountryUnknown = "UNKNOWN"
)

// parseOctets splits a dotted-quad string into its four octets.
func parseOctets(ip string) ([4]int, error) {
	var octets [4]int
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return octets, fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return octets, fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
		}
		octets[i] = n
	}
	return octets, nil
}

// EstimateCountry maps the first octet of an IPv4 address into one of four
// coarse region labels. Pure function of the first octet; 0, 127, and
// 224-255 fall through to UNKNOWN.
func EstimateCountry(ip string) (string, error) {
	octets, err := parseOctets(ip)
	if err != nil {
		return "", err
	}
	switch first := octets[0]; {
	case first >= 1 && first <= 126:
		return CountryUS, nil
	case first >= 128 && first <= 191:
		return CountryEU, nil
	case first >= 192 && first <= 223:
		return CountryAsia, nil
	default:
		return CountryUnknown, nil
	}
}

// vpnRange is an inclusive uint32 address range.
type vpnRange struct {
	first, last uint32
}

// Reserved/benchmark ranges commonly seen fronting datacenter and VPN
// egress. Membership is exact; there is no scoring.
var vpnRanges = []vpnRange{
	{mustAddr("192.0.2.0"), mustAddr("192.0.2.255")},     // TEST-NET-1
	{mustAddr("198.18.0.0"), mustAddr("198.19.255.255")}, // benchmarking
	{mustAddr("100.64.0.0"), mustAddr("100.127.255.255")}, // shared address space
}

// SuspectedVPN reports whether the address falls inside one of the fixed
// reserved ranges.
func SuspectedVPN(ip string) (bool, error) {
	n, err := toUint32(ip)
	if err != nil {
		return false, err
	}
	for _, r := range vpnRanges {
		if n >= r.first && n <= r.last {
			return true, nil
		}
	}
	return false, nil
}

// Prefix returns the first two octets of the address joined by '.', the
// coarse network prefix used by behavior profiles.
func Prefix(ip string) (string, error) {
	octets, err := parseOctets(ip)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(octets[0]) + "." + strconv.Itoa(octets[1]), nil
}

func toUint32(ip string) (uint32, error) {
	octets, err := parseOctets(ip)
	if err != nil {
		return 0, err
	}
	return uint32(octets[0])<<24 | uint32(octets[1])<<16 | uint32(octets[2])<<8 | uint32(octets[3]), nil
}

func mustAddr(ip string) uint32 {
	n, err := toUint32(ip)
	if err != nil {
		panic("ipintel: bad builtin range address " + ip)
	}
	return n
}
