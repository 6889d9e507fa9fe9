//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// log.go - Logger setup and observable event names
//
// Every log line that marks a processing decision carries an "event" field
// so operators can filter on it and tests can assert on it.
//

package main

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Observable events.
const (
	evPacketAccepted = "packet-accepted"
	evPacketIgnored  = "packet-ignored"
	evPacketError    = "packet-error"

	evOptionInvalid = "option-invalid"

	evCandidateAccepted   = "candidate-accepted"
	evCandidateIgnored    = "candidate-ignored"
	evAlreadyConfigured   = "already-configured"
	evConfiguring         = "configuring"
	evConfigured          = "configured"
	evConfigurationFailed = "configuration-failed"

	evSolicitationSent   = "solicitation-sent"
	evSolicitationFailed = "solicitation-failed"
)

// Reasons attached to ignored packets and candidates.
const (
	reasonNotIPv6 = "not-ipv6"
	reasonNotRA   = "not-ra"
	reasonNonULA  = "non-ULA"
)

// NewLogger builds the process logger. Verbose implies debug.
func NewLogger(out io.Writer, debug, verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	switch {
	case verbose:
		l.SetLevel(logrus.TraceLevel)
	case debug:
		l.SetLevel(logrus.DebugLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

func candidateFields(c RouteCandidate) logrus.Fields {
	f := logrus.Fields{
		"kind":   c.Kind.String(),
		"prefix": c.Net().String(),
	}
	if c.Router.IsValid() {
		f["router"] = c.Router.String()
	}
	return f
}
