//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// port.go - Network interface abstraction with packet capture
//
// Opens the interface via PCAP with a strict BPF filter (ICMPv6, HLIM=255,
// type 134 only) and feeds every captured RA to the handler. Router
// Solicitations are injected on the same handle.
//

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/sirupsen/logrus"
)

// raFilter admits Router Advertisements only.
const raFilter = "icmp6 and ip6[7]=255 and ip6[40]=134"

// Source delivers Router Advertisements to a handler and can solicit them.
type Source interface {
	Listen(ctx context.Context, h *Handler) error
	SendRouterSolicitation() error
	Close() error
}

// Port represents a network interface with its PCAP handle and addressing info.
type Port struct {
	Name     string
	HW       net.HardwareAddr
	LLA      net.IP
	H        *pcap.Handle
	LinkType layers.LinkType
	wmu      sync.Mutex
	log      *logrus.Entry
}

// OpenPort opens a network interface for RA capture.
func OpenPort(name string, timeout time.Duration, log *logrus.Entry) (*Port, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", name, err)
	}

	ih, err := pcap.NewInactiveHandle(name)
	if err != nil {
		return nil, fmt.Errorf("pcap inactive %s: %w", name, err)
	}
	defer ih.CleanUp()

	_ = ih.SetSnapLen(1500) // RAs fit in one MTU
	_ = ih.SetPromisc(true)
	_ = ih.SetTimeout(timeout)

	h, err := ih.Activate()
	if err != nil {
		return nil, fmt.Errorf("pcap activate %s: %w", name, err)
	}
	_ = h.SetDirection(pcap.DirectionIn)

	if err := h.SetBPFFilter(raFilter); err != nil {
		h.Close()
		return nil, fmt.Errorf("installing BPF on %s failed (%w); refusing broad capture", name, err)
	}

	linkType := h.LinkType()
	log.Debugf("capturing on %s (DLT=%d, filter %q)", name, linkType, raFilter)

	return &Port{
		Name:     name,
		HW:       ifi.HardwareAddr,
		LLA:      FindLinkLocal(name),
		H:        h,
		LinkType: linkType,
		log:      log,
	}, nil
}

// Listen hands every captured packet to h until ctx is cancelled.
func (p *Port) Listen(ctx context.Context, h *Handler) error {
	ps := gopacket.NewPacketSource(p.H, p.H.LinkType())
	ps.NoCopy = true

	for {
		select {
		case <-ctx.Done():
			return nil
		case pkt, ok := <-ps.Packets():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("capture on %s stopped", p.Name)
			}
			h.HandlePacket(ctx, pkt)
		}
	}
}

// SendRouterSolicitation sends an RS to trigger an immediate RA from routers.
func (p *Port) SendRouterSolicitation() error {
	if p.LinkType != layers.LinkTypeEthernet {
		return fmt.Errorf("router solicitation on %s: unsupported link type %d", p.Name, p.LinkType)
	}

	p.wmu.Lock()
	defer p.wmu.Unlock()

	if p.LLA == nil {
		// The link-local address may show up only after DAD completes.
		p.LLA = FindLinkLocal(p.Name)
		if p.LLA == nil {
			return errors.New("router solicitation on " + p.Name + ": no link-local address")
		}
	}

	b, err := BuildRouterSolicitation(p.HW, p.LLA)
	if err != nil {
		return err
	}
	return p.H.WritePacketData(b)
}

// Close releases the PCAP handle.
func (p *Port) Close() error {
	p.H.Close()
	return nil
}

// FindLinkLocal returns the link-local IPv6 address for the given interface.
func FindLinkLocal(name string) net.IP {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	addrs, _ := ifi.Addrs()
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok && ipn.IP.To4() == nil && ipn.IP.IsLinkLocalUnicast() {
			return ipn.IP
		}
	}
	return nil
}
