//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// packet.go - Router Advertisement packet classification
//
// Takes a captured frame, or the ICMPv6 payload read from a raw socket, and
// separates Router Advertisements from everything else the capture may
// deliver: non-IPv6 frames, other ICMPv6 messages and RAs that fail RFC 4861
// validation (HLIM=255). Both capture sources end in the same RA layer, so
// options are decoded one way only.
//

package main

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// NdHopLimit is the required hop limit for all ND messages per RFC 4861
const NdHopLimit = 255

var (
	errNotIPv6 = errors.New("not an IPv6 packet")
	errNotRA   = errors.New("not a router advertisement")
)

// RAPacket is a validated Router Advertisement with its source address.
type RAPacket struct {
	Source netip.Addr
	RA     *layers.ICMPv6RouterAdvertisement
}

// ParseRAPacket validates pkt as a Router Advertisement. It returns
// errNotIPv6 or errNotRA for traffic that is simply not ours, and a
// descriptive error for RAs that are malformed.
func ParseRAPacket(pkt gopacket.Packet) (*RAPacket, error) {
	ip6L := pkt.Layer(layers.LayerTypeIPv6)
	if ip6L == nil {
		return nil, errNotIPv6
	}
	ip6 := ip6L.(*layers.IPv6)

	src, ok := netip.AddrFromSlice(ip6.SrcIP)
	if !ok {
		return nil, fmt.Errorf("invalid source address %v", ip6.SrcIP)
	}
	return parseRA(pkt, src, int(ip6.HopLimit))
}

// ParseRAMessage validates b, an ICMPv6 message as read from a raw socket
// (header included), as a Router Advertisement from src. A negative
// hopLimit means the kernel did not report one.
func ParseRAMessage(src netip.Addr, hopLimit int, b []byte) (*RAPacket, error) {
	pkt := gopacket.NewPacket(b, layers.LayerTypeICMPv6, gopacket.Default)
	return parseRA(pkt, src, hopLimit)
}

func parseRA(pkt gopacket.Packet, src netip.Addr, hopLimit int) (*RAPacket, error) {
	icmpL := pkt.Layer(layers.LayerTypeICMPv6)
	if icmpL == nil {
		return nil, errNotRA
	}
	icmp := icmpL.(*layers.ICMPv6)
	if icmp.TypeCode.Type() != layers.ICMPv6TypeRouterAdvertisement {
		return nil, errNotRA
	}

	// RFC 4861: Hop Limit must be 255
	if hopLimit >= 0 && hopLimit != NdHopLimit {
		return nil, fmt.Errorf("router advertisement with hop limit %d", hopLimit)
	}

	raL := pkt.Layer(layers.LayerTypeICMPv6RouterAdvertisement)
	if raL == nil {
		if el := pkt.ErrorLayer(); el != nil {
			return nil, fmt.Errorf("malformed router advertisement: %w", el.Error())
		}
		return nil, errors.New("malformed router advertisement")
	}

	return &RAPacket{
		Source: src.Unmap(),
		RA:     raL.(*layers.ICMPv6RouterAdvertisement),
	}, nil
}
