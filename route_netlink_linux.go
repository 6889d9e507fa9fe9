//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// route_netlink_linux.go - Route installation via rtnetlink
//
// Alternative to the configuration script: programs the kernel routing table
// directly. On-link prefixes become link-scoped routes on the interface,
// off-link routes point at the advertising router.
//

package main

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

// NetlinkInstaller installs routes with RTM_NEWROUTE (replace semantics).
type NetlinkInstaller struct {
	iface string
	log   *logrus.Entry
}

// NewNetlinkInstaller creates an installer for routes on iface.
func NewNetlinkInstaller(iface string, log *logrus.Entry) *NetlinkInstaller {
	return &NetlinkInstaller{iface: iface, log: log}
}

// Install replaces the kernel route for c.
func (n *NetlinkInstaller) Install(ctx context.Context, c RouteCandidate) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &InstallError{Candidate: c, ExitCode: -1, Err: err}
	}

	route, err := n.route(c)
	if err != nil {
		return "", &InstallError{Candidate: c, ExitCode: -1, Err: err}
	}

	n.log.WithFields(candidateFields(c)).Debugf("netlink route replace %s", route)
	if err := netlink.RouteReplace(route); err != nil {
		return "", &InstallError{Candidate: c, ExitCode: -1, Err: fmt.Errorf("route replace: %w", err)}
	}
	return "route replaced: " + route.String(), nil
}

func (n *NetlinkInstaller) route(c RouteCandidate) (*netlink.Route, error) {
	link, err := netlink.LinkByName(n.iface)
	if err != nil {
		return nil, fmt.Errorf("link %s: %w", n.iface, err)
	}

	dst := c.Net().Masked()
	r := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Dst: &net.IPNet{
			IP:   dst.Addr().AsSlice(),
			Mask: net.CIDRMask(dst.Bits(), 128),
		},
	}

	switch c.Kind {
	case OnLinkPrefix:
		r.Scope = netlink.SCOPE_LINK
	case OffLinkRoute:
		if !c.Router.IsValid() {
			return nil, errors.New("off-link route without router address")
		}
		r.Gw = c.Router.WithZone("").AsSlice()
	default:
		return nil, fmt.Errorf("unknown candidate kind %v", c.Kind)
	}
	return r, nil
}
