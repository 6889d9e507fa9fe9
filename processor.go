//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// processor.go - Per-candidate configuration state machine
//
// Every candidate decoded from an RA ends in exactly one outcome:
//
//	filtered-out        not in fd00::/8
//	already-configured  an equal route was installed before (or is being installed)
//	configured          the installer succeeded; the route is recorded
//	failed              the installer failed; nothing is recorded, so the
//	                    next advertisement of the same route retries
//
// Candidates of one RA are independent of each other, even when the
// installer panics.
//

package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Outcome is the terminal state of one processed candidate.
type Outcome int

const (
	FilteredOut Outcome = iota
	AlreadyConfigured
	Configured
	Failed
)

func (o Outcome) String() string {
	switch o {
	case FilteredOut:
		return "filtered-out"
	case AlreadyConfigured:
		return "already-configured"
	case Configured:
		return "configured"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Processor filters, deduplicates and installs route candidates.
type Processor struct {
	tracker   *Tracker
	installer RouteInstaller
	log       *logrus.Entry

	// initialDone flips after the first batch. It only changes how
	// duplicates are logged.
	initialDone atomic.Bool
}

// NewProcessor creates a processor recording into tracker.
func NewProcessor(tracker *Tracker, installer RouteInstaller, log *logrus.Entry) *Processor {
	return &Processor{
		tracker:   tracker,
		installer: installer,
		log:       log,
	}
}

// Tracker returns the processor's dedup tracker.
func (p *Processor) Tracker() *Tracker {
	return p.tracker
}

// ProcessBatch processes all candidates decoded from one RA.
func (p *Processor) ProcessBatch(ctx context.Context, cands []RouteCandidate) []Outcome {
	outcomes := make([]Outcome, len(cands))
	for i, c := range cands {
		outcomes[i] = p.Process(ctx, c)
	}
	p.initialDone.Store(true)
	return outcomes
}

// ProcessPacketInfo processes the prefix, then the route, of one RA. Both
// are attributed to the RA's source router.
func (p *Processor) ProcessPacketInfo(ctx context.Context, info PacketInfo) []Outcome {
	var cands []RouteCandidate
	if info.Prefix != nil {
		c := *info.Prefix
		c.Router = info.Source
		cands = append(cands, c)
	}
	if info.Route != nil {
		c := *info.Route
		c.Router = info.Source
		cands = append(cands, c)
	}
	return p.ProcessBatch(ctx, cands)
}

// Process runs one candidate through filter, dedup and install.
func (p *Processor) Process(ctx context.Context, c RouteCandidate) Outcome {
	log := p.log.WithFields(candidateFields(c))

	if !IsULA(c.Prefix) {
		log.WithFields(logrus.Fields{
			"event":  evCandidateIgnored,
			"reason": reasonNonULA,
		}).Debugf("ignoring non-ULA %s", c.Kind)
		return FilteredOut
	}
	log.WithField("event", evCandidateAccepted).Debugf("ULA %s %s", c.Kind, c.Net())

	if !p.tracker.claim(c) {
		log = log.WithField("event", evAlreadyConfigured)
		if !p.initialDone.Load() {
			log.WithField("initial", true).Infof("ULA %s already configured: %s", c.Kind, c.Net())
		} else {
			log.Debugf("ULA %s already configured, ignoring duplicate: %s", c.Kind, c.Net())
		}
		return AlreadyConfigured
	}

	log.WithField("event", evConfiguring).Infof("configuring %s for %s", c.Kind, c.Net())

	ok := false
	defer func() { p.tracker.release(c, ok) }()

	out, err := p.install(ctx, c)
	if err != nil {
		fields := logrus.Fields{"event": evConfigurationFailed}
		var ie *InstallError
		if errors.As(err, &ie) {
			fields["exit_code"] = ie.ExitCode
			if ie.Stdout != "" {
				fields["stdout"] = ie.Stdout
			}
		}
		log.WithFields(fields).WithError(err).Errorf("failed to configure %s %s", c.Kind, c.Net())
		return Failed
	}

	ok = true
	log.WithFields(logrus.Fields{
		"event":  evConfigured,
		"output": out,
	}).Infof("%s configured: %s", c.Kind, c.Net())
	return Configured
}

// install runs the installer, turning a panic into an error so the rest of
// the batch still gets processed.
func (p *Processor) install(ctx context.Context, c RouteCandidate) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InstallError{Candidate: c, ExitCode: -1, Err: fmt.Errorf("installer panic: %v", r)}
		}
	}()
	return p.installer.Install(ctx, c)
}
