//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// socket.go - RA capture over an ICMPv6 socket
//
// Alternative to PCAP for hosts without libpcap: a raw ICMPv6 socket bound to
// the interface's link-local address, with a kernel ICMP filter that passes
// Router Advertisements only. Messages are handed over as raw bytes and go
// through the same option decoder as captured frames. Router Solicitations
// are built with mdlayher/ndp.
//

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/mdlayher/ndp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"
)

// icmpv6ChecksumOffset is where the kernel places and verifies the checksum.
const icmpv6ChecksumOffset = 2

// SocketPort receives RAs and sends RSs through a raw ICMPv6 socket.
type SocketPort struct {
	Name string
	HW   net.HardwareAddr
	LLA  netip.Addr
	ifi  *net.Interface
	conn *icmp.PacketConn
	pc   *ipv6.PacketConn
	log  *logrus.Entry
}

// OpenSocket opens an ICMPv6 socket on the named interface.
func OpenSocket(name string, log *logrus.Entry) (*SocketPort, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", name, err)
	}

	ip := FindLinkLocal(name)
	lla, ok := netip.AddrFromSlice(ip)
	if !ok {
		return nil, fmt.Errorf("interface %s: no link-local address", name)
	}
	lla = lla.WithZone(ifi.Name)

	conn, err := icmp.ListenPacket("ip6:ipv6-icmp", lla.String())
	if err != nil {
		return nil, fmt.Errorf("icmp listen on %s: %w", name, err)
	}

	s := &SocketPort{
		Name: name,
		HW:   ifi.HardwareAddr,
		LLA:  lla,
		ifi:  ifi,
		conn: conn,
		pc:   conn.IPv6PacketConn(),
		log:  log,
	}
	if err := s.setup(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("socket setup on %s: %w", name, err)
	}

	log.Debugf("listening on %s (%s) for router advertisements", name, lla)
	return s, nil
}

func (s *SocketPort) setup() error {
	if err := s.pc.SetHopLimit(NdHopLimit); err != nil {
		return err
	}
	if err := s.pc.SetMulticastHopLimit(NdHopLimit); err != nil {
		return err
	}
	if err := s.pc.SetChecksum(true, icmpv6ChecksumOffset); err != nil {
		return err
	}
	if err := s.pc.SetControlMessage(ipv6.FlagHopLimit|ipv6.FlagInterface, true); err != nil {
		return err
	}

	var f ipv6.ICMPFilter
	f.SetAll(true)
	f.Accept(ipv6.ICMPTypeRouterAdvertisement)
	return s.pc.SetICMPFilter(&f)
}

// Listen hands every received message to h until ctx is cancelled.
func (s *SocketPort) Listen(ctx context.Context, h *Handler) error {
	buf := make([]byte, max(s.ifi.MTU, 1500))

	for {
		if ctx.Err() != nil {
			return nil
		}

		// Short deadline so cancellation is noticed without closing the socket.
		if err := s.pc.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return fmt.Errorf("set read deadline on %s: %w", s.Name, err)
		}

		n, cm, peer, err := s.pc.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			switch {
			case errors.As(err, &ne) && ne.Timeout():
				continue
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, net.ErrClosed):
				return fmt.Errorf("read on %s: %w", s.Name, err)
			}
			s.log.WithField("event", evPacketError).WithError(err).Warn("read failed")
			continue
		}

		hopLimit := -1
		if cm != nil {
			if cm.IfIndex != 0 && cm.IfIndex != s.ifi.Index {
				continue
			}
			hopLimit = cm.HopLimit
		}

		var src netip.Addr
		if ipa, ok := peer.(*net.IPAddr); ok {
			src, _ = netip.AddrFromSlice(ipa.IP)
		}

		msg := make([]byte, n)
		copy(msg, buf[:n])
		h.HandleMessage(ctx, src, hopLimit, msg)
	}
}

// SendRouterSolicitation sends an RS to the all-routers group.
func (s *SocketPort) SendRouterSolicitation() error {
	m := &ndp.RouterSolicitation{}
	if len(s.HW) > 0 {
		m.Options = append(m.Options, &ndp.LinkLayerAddress{
			Direction: ndp.Source,
			Addr:      s.HW,
		})
	}
	b, err := ndp.MarshalMessage(m)
	if err != nil {
		return fmt.Errorf("marshal router solicitation: %w", err)
	}

	cm := &ipv6.ControlMessage{HopLimit: NdHopLimit, IfIndex: s.ifi.Index}
	dst := &net.IPAddr{IP: allRouters, Zone: s.ifi.Name}
	if _, err := s.pc.WriteTo(b, cm, dst); err != nil {
		return fmt.Errorf("router solicitation on %s: %w", s.Name, err)
	}
	return nil
}

// Close closes the socket.
func (s *SocketPort) Close() error {
	return s.conn.Close()
}
