//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const (
	testRouter  = "fe80::85e:1f44:c26f:229"
	testRouter2 = "fe80::86f:3592:d12d:58a5"
	testPrefix  = "fd82:cd32:5ad7:ff4a::"
	testRoute   = "fd4e:a053:febd::"
	testGlobal  = "2406:e001:abcd:5600::"
)

var (
	testMAC = net.HardwareAddr{0x02, 0x00, 0x5e, 0x10, 0x00, 0x01}

	cmpAddr = cmpopts.EquateComparable(netip.Addr{})
)

func mustAddr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func newTestLog() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	return logrus.NewEntry(logger), hook
}

// events returns the "event" field of every entry, skipping entries without one.
func events(hook *test.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if ev, ok := e.Data["event"].(string); ok {
			out = append(out, ev)
		}
	}
	return out
}

// entriesFor returns all entries with the given event.
func entriesFor(hook *test.Hook, event string) []logrus.Entry {
	var out []logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Data["event"] == event {
			out = append(out, *e)
		}
	}
	return out
}

func prefixInfoOpt(prefix string, plen uint8, valid, preferred uint32) layers.ICMPv6Option {
	data := make([]byte, prefixInfoSize)
	data[0] = plen
	data[1] = 0xc0 // L, A
	binary.BigEndian.PutUint32(data[2:6], valid)
	binary.BigEndian.PutUint32(data[6:10], preferred)
	a := netip.MustParseAddr(prefix).As16()
	copy(data[14:], a[:])
	return layers.ICMPv6Option{Type: layers.ICMPv6OptPrefixInfo, Data: data}
}

func routeInfoOpt(prefix string, plen uint8, lifetime uint32) layers.ICMPv6Option {
	data := make([]byte, routeInfoMinSize+16)
	data[0] = plen
	binary.BigEndian.PutUint32(data[2:6], lifetime)
	a := netip.MustParseAddr(prefix).As16()
	copy(data[6:], a[:])
	return layers.ICMPv6Option{Type: icmpv6OptRouteInfo, Data: data}
}

func sllaOpt() layers.ICMPv6Option {
	return layers.ICMPv6Option{Type: layers.ICMPv6OptSourceAddress, Data: testMAC}
}

func serializeFrame(t *testing.T, etherType layers.EthernetType, ls ...gopacket.SerializableLayer) gopacket.Packet {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       testMAC,
		DstMAC:       net.HardwareAddr{0x33, 0x33, 0x00, 0x00, 0x00, 0x01},
		EthernetType: etherType,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, append([]gopacket.SerializableLayer{eth}, ls...)...); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func testIPv6(src string) *layers.IPv6 {
	return &layers.IPv6{
		Version:    6,
		HopLimit:   NdHopLimit,
		NextHeader: layers.IPProtocolICMPv6,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP("ff02::1"),
	}
}

// raBody encodes an RA body (RFC 4861 4.2, after the ICMPv6 header) with
// opts in the given order. gopacket's ICMPv6Options.SerializeTo prepends
// each option and so writes them reversed; tests need wire order.
func raBody(opts ...layers.ICMPv6Option) []byte {
	b := []byte{
		64,         // cur hop limit
		0,          // flags
		0x07, 0x08, // router lifetime 1800
		0, 0, 0, 0, // reachable time
		0, 0, 0, 0, // retrans timer
	}
	for _, opt := range opts {
		b = append(b, byte(opt.Type), byte((len(opt.Data)+2)/8))
		b = append(b, opt.Data...)
	}
	return b
}

// raMessage is an RA as read from a raw ICMPv6 socket.
func raMessage(opts ...layers.ICMPv6Option) []byte {
	return append([]byte{byte(layers.ICMPv6TypeRouterAdvertisement), 0, 0, 0}, raBody(opts...)...)
}

// buildRA returns a decoded Ethernet frame carrying an RA from src.
func buildRA(t *testing.T, src string, opts ...layers.ICMPv6Option) gopacket.Packet {
	t.Helper()
	ip6 := testIPv6(src)
	icmp6 := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeRouterAdvertisement, 0)}
	if err := icmp6.SetNetworkLayerForChecksum(ip6); err != nil {
		t.Fatal(err)
	}
	return serializeFrame(t, layers.EthernetTypeIPv6, ip6, icmp6, gopacket.Payload(raBody(opts...)))
}

func onLink(prefix string, plen int, router string, valid, preferred Lifetime) RouteCandidate {
	c := RouteCandidate{
		Prefix:            netip.MustParseAddr(prefix),
		PrefixLen:         plen,
		Kind:              OnLinkPrefix,
		ValidLifetime:     valid,
		PreferredLifetime: preferred,
	}
	if router != "" {
		c.Router = netip.MustParseAddr(router)
	}
	return c
}

func offLink(prefix string, plen int, router string, lifetime Lifetime) RouteCandidate {
	c := RouteCandidate{
		Prefix:        netip.MustParseAddr(prefix),
		PrefixLen:     plen,
		Kind:          OffLinkRoute,
		RouteLifetime: lifetime,
	}
	if router != "" {
		c.Router = netip.MustParseAddr(router)
	}
	return c
}

func diffCandidates(want, got []RouteCandidate) string {
	return cmp.Diff(want, got, cmpAddr, cmpopts.EquateEmpty())
}

var errFakeInstall = errors.New("exit status 1")

// fakeInstaller records calls. It fails or panics for the prefixes
// registered with setFail and setPanic.
type fakeInstaller struct {
	mu     sync.Mutex
	calls  []RouteCandidate
	fail   map[netip.Addr]bool
	panics map[netip.Addr]bool

	// block, when set, is received from before returning.
	block chan struct{}
}

func (f *fakeInstaller) Install(ctx context.Context, c RouteCandidate) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	fail := f.fail[c.Prefix]
	panics := f.panics[c.Prefix]
	f.mu.Unlock()

	if panics {
		panic("installer exploded")
	}
	if f.block != nil {
		<-f.block
	}
	if fail {
		return "", &InstallError{Candidate: c, ExitCode: 1, Stderr: "RTNETLINK answers: No such device", Err: errFakeInstall}
	}
	return "ok", nil
}

func (f *fakeInstaller) Calls() []RouteCandidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RouteCandidate(nil), f.calls...)
}

func (f *fakeInstaller) setFail(prefix string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail == nil {
		f.fail = make(map[netip.Addr]bool)
	}
	f.fail[netip.MustParseAddr(prefix)] = fail
}

func (f *fakeInstaller) setPanic(prefix string, panics bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics == nil {
		f.panics = make(map[netip.Addr]bool)
	}
	f.panics[netip.MustParseAddr(prefix)] = panics
}
