//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// packet_ra.go - Router Advertisement options & Router Solicitation (RFC 4861, RFC 4191)
//
// Decodes the Prefix Information and Route Information options of an RA into
// route candidates and builds the Router Solicitation frames used to provoke
// RAs. Options are walked as raw TLVs so a malformed option only costs
// itself, never the rest of the advertisement.
//

package main

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
)

const (
	icmpv6OptRouteInfo layers.ICMPv6Opt = 24 // RFC 4191 Route Information option type

	prefixInfoSize   = 30 // option data without type and length octets
	routeInfoMinSize = 6  // prefix length, flags, route lifetime
)

var (
	allRouters    = net.ParseIP("ff02::2")
	allRoutersMAC = net.HardwareAddr{0x33, 0x33, 0x00, 0x00, 0x00, 0x02}
)

// DecodeError reports a malformed option. It only ever invalidates that
// option; the remaining options of the RA are still decoded.
type DecodeError struct {
	Kind   Kind
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Kind == OffLinkRoute {
		return "route information option: " + e.Reason
	}
	return "prefix information option: " + e.Reason
}

// Decoder turns RA options into route candidates.
type Decoder struct {
	log *logrus.Entry
}

// NewDecoder creates a decoder logging through log.
func NewDecoder(log *logrus.Entry) *Decoder {
	return &Decoder{log: log}
}

// DecodeOptions decodes the raw option list of an RA sent by src.
func (d *Decoder) DecodeOptions(src netip.Addr, opts layers.ICMPv6Options) []RouteCandidate {
	var result []RouteCandidate

	for _, opt := range opts {
		var (
			c   RouteCandidate
			err error
		)
		switch opt.Type {
		case layers.ICMPv6OptPrefixInfo:
			c, err = decodePrefixInfo(opt.Data)
		case icmpv6OptRouteInfo:
			c, err = decodeRouteInfo(opt.Data)
		default:
			d.log.Tracef("ignoring RA option type %d (%d bytes)", opt.Type, len(opt.Data))
			continue
		}
		if d.keep(src, &c, err) {
			result = append(result, c)
		}
	}

	return result
}

// keep finishes a decoded candidate, or logs why its option was dropped.
func (d *Decoder) keep(src netip.Addr, c *RouteCandidate, err error) bool {
	if err != nil {
		d.log.WithFields(logrus.Fields{
			"event":  evOptionInvalid,
			"router": src.String(),
		}).WithError(err).Warn("skipping malformed RA option")
		return false
	}
	c.Router = src
	switch c.Kind {
	case OnLinkPrefix:
		d.log.WithFields(candidateFields(*c)).Tracef("on-link prefix (valid %s, preferred %s)", c.ValidLifetime, c.PreferredLifetime)
	case OffLinkRoute:
		d.log.WithFields(candidateFields(*c)).Tracef("off-link route (lifetime %s)", c.RouteLifetime)
	}
	return true
}

// decodePrefixInfo parses Prefix Information option data (RFC 4861 4.6.2).
//
//	0      prefix length
//	1      flags (L, A)
//	2..5   valid lifetime
//	6..9   preferred lifetime
//	10..13 reserved
//	14..29 prefix
func decodePrefixInfo(data []byte) (RouteCandidate, error) {
	fail := func(reason string) (RouteCandidate, error) {
		return RouteCandidate{}, &DecodeError{Kind: OnLinkPrefix, Reason: reason}
	}

	switch {
	case len(data) < 1:
		return fail("missing prefix length")
	case len(data) < 6:
		return fail("missing valid lifetime")
	case len(data) < 10:
		return fail("missing preferred lifetime")
	case len(data) < prefixInfoSize:
		return fail("missing prefix")
	}

	plen := int(data[0])
	if plen > 128 {
		return fail(fmt.Sprintf("invalid prefix length %d", plen))
	}

	return RouteCandidate{
		Prefix:            netip.AddrFrom16([16]byte(data[14:30])),
		PrefixLen:         plen,
		Kind:              OnLinkPrefix,
		ValidLifetime:     Lifetime(binary.BigEndian.Uint32(data[2:6])),
		PreferredLifetime: Lifetime(binary.BigEndian.Uint32(data[6:10])),
	}, nil
}

// decodeRouteInfo parses Route Information option data (RFC 4191 2.3).
// The prefix field is 0, 8 or 16 octets long and must cover the prefix
// length.
//
//	0     prefix length
//	1     flags (Prf)
//	2..5  route lifetime
//	6..   prefix
func decodeRouteInfo(data []byte) (RouteCandidate, error) {
	fail := func(reason string) (RouteCandidate, error) {
		return RouteCandidate{}, &DecodeError{Kind: OffLinkRoute, Reason: reason}
	}

	switch {
	case len(data) < 1:
		return fail("missing prefix length")
	case len(data) < routeInfoMinSize:
		return fail("missing route lifetime")
	}

	plen := int(data[0])
	if plen > 128 {
		return fail(fmt.Sprintf("invalid prefix length %d", plen))
	}

	raw := data[routeInfoMinSize:]
	if len(raw) > 16 {
		raw = raw[:16]
	}
	if plen > len(raw)*8 {
		return fail("missing prefix")
	}

	var b [16]byte
	copy(b[:], raw)

	return RouteCandidate{
		Prefix:        netip.AddrFrom16(b),
		PrefixLen:     plen,
		Kind:          OffLinkRoute,
		RouteLifetime: Lifetime(binary.BigEndian.Uint32(data[2:6])),
	}, nil
}

// PacketInfo is the per-RA summary: the source router plus at most one
// on-link prefix and one off-link route. When an RA carries several of one
// kind, the last one wins.
type PacketInfo struct {
	Source netip.Addr
	Prefix *RouteCandidate
	Route  *RouteCandidate
}

// NewPacketInfo folds decoded candidates into a PacketInfo.
func NewPacketInfo(src netip.Addr, cands []RouteCandidate) PacketInfo {
	info := PacketInfo{Source: src}
	for i := range cands {
		c := cands[i]
		switch c.Kind {
		case OnLinkPrefix:
			info.Prefix = &c
		case OffLinkRoute:
			info.Route = &c
		}
	}
	return info
}

// BuildRouterSolicitation serializes an RS from lla/hw to the all-routers group.
func BuildRouterSolicitation(hw net.HardwareAddr, lla net.IP) ([]byte, error) {
	if len(hw) < 6 || lla == nil {
		return nil, fmt.Errorf("invalid source for RS: hw=%v lla=%v", hw, lla)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}

	ip6 := &layers.IPv6{
		Version:    6,
		HopLimit:   NdHopLimit,
		NextHeader: layers.IPProtocolICMPv6,
		SrcIP:      lla,
		DstIP:      allRouters,
	}

	icmp6 := &layers.ICMPv6{
		TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeRouterSolicitation, 0),
	}
	if err := icmp6.SetNetworkLayerForChecksum(ip6); err != nil {
		return nil, err
	}

	rs := &layers.ICMPv6RouterSolicitation{
		Options: layers.ICMPv6Options{
			{Type: layers.ICMPv6OptSourceAddress, Data: hw[:6]},
		},
	}

	err := gopacket.SerializeLayers(buf, opts,
		&layers.Ethernet{
			SrcMAC:       hw,
			DstMAC:       allRoutersMAC,
			EthernetType: layers.EthernetTypeIPv6,
		},
		ip6, icmp6, rs,
	)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
