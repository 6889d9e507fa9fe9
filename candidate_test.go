//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//

package main

import (
	"math"
	"net/netip"
	"testing"
	"time"
)

func TestIsULA(t *testing.T) {
	tests := []struct {
		addr netip.Addr
		want bool
	}{
		{netip.MustParseAddr(testPrefix), true},
		{netip.MustParseAddr("fd4e:a053:febd::"), true},
		{netip.MustParseAddr("fdff:ffff:ffff:ffff::1"), true},
		{netip.MustParseAddr("fd00::"), true},
		{netip.MustParseAddr("fc00::"), false},
		{netip.MustParseAddr("fcff::1"), false},
		{netip.MustParseAddr(testGlobal), false},
		{netip.MustParseAddr("fe80::1"), false},
		{netip.MustParseAddr("::"), false},
		{netip.MustParseAddr("::ffff:253.0.0.1"), false},
		{netip.MustParseAddr("253.0.0.1"), false},
		{netip.Addr{}, false},
	}

	for _, tt := range tests {
		if got := IsULA(tt.addr); got != tt.want {
			t.Errorf("IsULA(%v) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestLifetime(t *testing.T) {
	tests := []struct {
		l    Lifetime
		str  string
		from time.Duration
	}{
		{0, "0s", 0},
		{1800, "30m0s", 30 * time.Minute},
		{InfiniteLifetime, "infinity", time.Duration(math.MaxUint32) * time.Second},
	}

	for _, tt := range tests {
		if got := tt.l.String(); got != tt.str {
			t.Errorf("Lifetime(%d).String() = %q, want %q", uint32(tt.l), got, tt.str)
		}
		if got := lifetimeFrom(tt.from); got != tt.l {
			t.Errorf("lifetimeFrom(%s) = %d, want %d", tt.from, got, tt.l)
		}
	}

	if got := lifetimeFrom(-time.Second); got != 0 {
		t.Errorf("lifetimeFrom(-1s) = %d, want 0", got)
	}
	if got := lifetimeFrom(1500 * time.Millisecond); got != 1 {
		t.Errorf("lifetimeFrom(1.5s) = %d, want 1", got)
	}
}

func TestRouteCandidateString(t *testing.T) {
	c := onLink(testPrefix, 64, testRouter, 1800, 1800)
	if got, want := c.String(), "prefix fd82:cd32:5ad7:ff4a::/64 via "+testRouter; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	r := offLink(testRoute, 64, "", 1800)
	if got, want := r.String(), "route fd4e:a053:febd::/64"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseKeyPolicy(t *testing.T) {
	for _, s := range []string{"", "router"} {
		if p, err := ParseKeyPolicy(s); err != nil || p != KeyByRouter {
			t.Errorf("ParseKeyPolicy(%q) = %v, %v; want router", s, p, err)
		}
	}
	if p, err := ParseKeyPolicy("interface"); err != nil || p != KeyByInterface {
		t.Errorf("ParseKeyPolicy(interface) = %v, %v; want interface", p, err)
	}
	if _, err := ParseKeyPolicy("prefix"); err == nil {
		t.Error("ParseKeyPolicy(prefix) succeeded")
	}
}

func TestRouteKey(t *testing.T) {
	a := onLink(testPrefix, 64, testRouter, 1800, 1800)

	sameIdentity := a
	sameIdentity.PrefixLen = 48
	sameIdentity.ValidLifetime = 60

	otherRouter := a
	otherRouter.Router = netip.MustParseAddr(testRouter2)

	asRoute := offLink(testPrefix, 64, testRouter, 1800)

	tests := []struct {
		name   string
		policy KeyPolicy
		b      RouteCandidate
		iface  string
		equal  bool
	}{
		{"router: length and lifetimes ignored", KeyByRouter, sameIdentity, "eth0", true},
		{"router: other router", KeyByRouter, otherRouter, "eth0", false},
		{"router: other kind", KeyByRouter, asRoute, "eth0", false},
		{"router: other interface", KeyByRouter, a, "eth1", false},
		{"interface: other router", KeyByInterface, otherRouter, "eth0", true},
		{"interface: other kind", KeyByInterface, asRoute, "eth0", true},
		{"interface: other interface", KeyByInterface, a, "eth1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka := tt.policy.key(a, "eth0")
			kb := tt.policy.key(tt.b, tt.iface)
			if (ka == kb) != tt.equal {
				t.Errorf("keys %+v and %+v: equal = %v, want %v", ka, kb, ka == kb, tt.equal)
			}
		})
	}
}
