//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// solicit.go - Periodic Router Solicitation
//
// Some border routers only advertise every few minutes. Soliciting makes
// them answer right away; the answer arrives through the normal capture path
// like any other RA. Sending is fire-and-forget and a failed send never ends
// the loop.
//

package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSolicitInterval is the RS interval when periodic solicitation is on.
const DefaultSolicitInterval = 5 * time.Second

type solicitationSender interface {
	SendRouterSolicitation() error
}

// Solicitor sends Router Solicitations once or on a fixed interval.
type Solicitor struct {
	sender   solicitationSender
	interval time.Duration
	log      *logrus.Entry
}

// NewSolicitor creates a solicitor. An interval of zero sends a single RS.
func NewSolicitor(sender solicitationSender, interval time.Duration, log *logrus.Entry) *Solicitor {
	return &Solicitor{sender: sender, interval: interval, log: log}
}

// Run sends an RS immediately, then on every tick until ctx is cancelled.
func (s *Solicitor) Run(ctx context.Context) error {
	s.send()
	if s.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.send()
		}
	}
}

func (s *Solicitor) send() {
	if err := s.sender.SendRouterSolicitation(); err != nil {
		s.log.WithField("event", evSolicitationFailed).WithError(err).Warn("failed to send router solicitation")
		return
	}
	s.log.WithField("event", evSolicitationSent).Debug("router solicitation sent")
}
