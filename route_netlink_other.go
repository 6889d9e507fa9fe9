//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//

//go:build !linux

package main

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// NetlinkInstaller is only functional on Linux.
type NetlinkInstaller struct {
	iface string
	log   *logrus.Entry
}

// NewNetlinkInstaller creates an installer for routes on iface.
func NewNetlinkInstaller(iface string, log *logrus.Entry) *NetlinkInstaller {
	return &NetlinkInstaller{iface: iface, log: log}
}

// Install always fails outside Linux.
func (n *NetlinkInstaller) Install(_ context.Context, c RouteCandidate) (string, error) {
	return "", &InstallError{Candidate: c, ExitCode: -1, Err: errors.New("netlink installer requires linux")}
}
