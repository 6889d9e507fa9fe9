//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// candidate.go - Route candidates learned from Router Advertisements
//
// A candidate is one on-link prefix (Prefix Information option) or one
// off-link route (Route Information option) together with the router that
// advertised it. Only the ULA half fd00::/8 is ever configured.
//

package main

import (
	"fmt"
	"net/netip"
	"time"
)

// Kind tells whether a candidate came from a Prefix or a Route Information option.
type Kind uint8

const (
	OnLinkPrefix Kind = iota + 1
	OffLinkRoute
)

func (k Kind) String() string {
	switch k {
	case OnLinkPrefix:
		return "prefix"
	case OffLinkRoute:
		return "route"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Lifetime is an ND lifetime in seconds.
type Lifetime uint32

// InfiniteLifetime is the all-ones lifetime sentinel (RFC 4861 4.6.2).
const InfiniteLifetime Lifetime = 0xffffffff

// Duration converts l to a time.Duration. The infinite sentinel maps to
// the largest representable value in seconds.
func (l Lifetime) Duration() time.Duration {
	return time.Duration(l) * time.Second
}

func (l Lifetime) String() string {
	if l == InfiniteLifetime {
		return "infinity"
	}
	return l.Duration().String()
}

// lifetimeFrom converts a decoded duration back to wire seconds.
func lifetimeFrom(d time.Duration) Lifetime {
	if d < 0 {
		return 0
	}
	s := d / time.Second
	if s >= time.Duration(InfiniteLifetime) {
		return InfiniteLifetime
	}
	return Lifetime(s)
}

// RouteCandidate describes one advertised prefix or route and its source.
// Kind selects the populated lifetimes: Valid/Preferred for OnLinkPrefix,
// RouteLifetime for OffLinkRoute.
type RouteCandidate struct {
	Prefix    netip.Addr // as advertised, without length
	PrefixLen int
	Router    netip.Addr // zero when unknown
	Kind      Kind

	ValidLifetime     Lifetime
	PreferredLifetime Lifetime
	RouteLifetime     Lifetime
}

// Net returns the candidate as a CIDR prefix. Host bits are kept as
// advertised; use Masked for the network itself.
func (c RouteCandidate) Net() netip.Prefix {
	return netip.PrefixFrom(c.Prefix, c.PrefixLen)
}

func (c RouteCandidate) String() string {
	if c.Router.IsValid() {
		return fmt.Sprintf("%s %s via %s", c.Kind, c.Net(), c.Router)
	}
	return fmt.Sprintf("%s %s", c.Kind, c.Net())
}

// IsULA reports whether addr is in fd00::/8, the locally assigned half of
// the ULA range. fc00::/8 is reserved and deliberately not matched.
func IsULA(addr netip.Addr) bool {
	if !addr.Is6() || addr.Is4In6() {
		return false
	}
	return addr.As16()[0] == 0xfd
}

// KeyPolicy selects which fields identify an already configured route.
type KeyPolicy int

const (
	// KeyByRouter identifies routes by (prefix, router, interface, kind).
	KeyByRouter KeyPolicy = iota
	// KeyByInterface identifies routes by (prefix, interface) only, so the
	// first router to advertise a prefix wins.
	KeyByInterface
)

func (p KeyPolicy) String() string {
	switch p {
	case KeyByRouter:
		return "router"
	case KeyByInterface:
		return "interface"
	}
	return fmt.Sprintf("KeyPolicy(%d)", int(p))
}

// ParseKeyPolicy parses the -key-policy flag value.
func ParseKeyPolicy(s string) (KeyPolicy, error) {
	switch s {
	case "", "router":
		return KeyByRouter, nil
	case "interface":
		return KeyByInterface, nil
	}
	return 0, fmt.Errorf("unknown key policy %q (want router or interface)", s)
}

// routeKey is the identity of a configured route. Prefix length and
// lifetimes are configuration data and never part of it, so the prefix is
// keyed exactly as advertised.
type routeKey struct {
	prefix netip.Addr
	router netip.Addr
	iface  string
	kind   Kind
}

func (p KeyPolicy) key(c RouteCandidate, iface string) routeKey {
	if p == KeyByInterface {
		return routeKey{prefix: c.Prefix, iface: iface}
	}
	return routeKey{prefix: c.Prefix, router: c.Router, iface: iface, kind: c.Kind}
}
