//
// Copyright (c) 2025 Cedrik Pischem
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without modification,
// are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice,
//    this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice,
//    this list of conditions and the following disclaimer in the documentation
//    and/or other materials provided with the distribution.
//
// THIS SOFTWARE IS PROVIDED ``AS IS'' AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY
// AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE
// AUTHOR BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY,
// OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.
//

//
// main.go - Entry point and lifecycle management
//
// Wires capture, decoding, dedup tracking and route installation together,
// starts the optional Router Solicitation loop, and shuts down on
// SIGINT/SIGTERM.
//

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const version = "0.1.0"

func main() {
	config, err := ParseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(2)
	}

	logger := NewLogger(os.Stdout, config.Debug, config.Verbose)
	log := logger.WithField("iface", config.Interface)

	logger.Infof("ula-route-listener %s (%s): iface=%s capture=%s installer=%s key-policy=%s rs=%v debug=%v verbose=%v",
		version, runtime.Version(), config.Interface, config.Capture, config.Installer,
		config.KeyPolicy, config.EnableRS, config.Debug, config.Verbose)
	if ifs, err := net.Interfaces(); err == nil {
		names := make([]string, 0, len(ifs))
		for _, ifi := range ifs {
			names = append(names, ifi.Name)
		}
		logger.Debugf("available interfaces: %s", strings.Join(names, ", "))
	}

	src, err := openSource(config, log.WithField("component", "capture"))
	if err != nil {
		logger.Fatalf("open %s: %v", config.Interface, err)
	}
	defer src.Close()

	policy, _ := ParseKeyPolicy(config.KeyPolicy) // checked by Validate
	tracker := NewTracker(config.Interface, policy)
	proc := NewProcessor(tracker, newInstaller(config, log.WithField("component", "installer")),
		log.WithField("component", "processor"))
	handler := NewHandler(NewDecoder(log.WithField("component", "decoder")), proc,
		log.WithField("component", "handler"))

	// Setup context and signal handling
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down...")
		stop()
	}()

	g, ctx := errgroup.WithContext(ctx)

	logger.Infof("listening for router advertisements on %s", config.Interface)
	g.Go(func() error {
		return src.Listen(ctx, handler)
	})

	if config.EnableRS {
		solicitor := NewSolicitor(src, time.Duration(config.RSInterval), log.WithField("component", "solicitor"))
		g.Go(func() error {
			return solicitor.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("listener stopped")
		os.Exit(1)
	}

	logger.Infof("exit clean (%d routes configured)", tracker.Len())
}

func openSource(config *Config, log *logrus.Entry) (Source, error) {
	if config.Capture == CaptureSocket {
		s, err := OpenSocket(config.Interface, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	p, err := OpenPort(config.Interface, time.Duration(config.PcapTimeout), log)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newInstaller(config *Config, log *logrus.Entry) RouteInstaller {
	if config.Installer == InstallerNetlink {
		return NewNetlinkInstaller(config.Interface, log)
	}
	return NewScriptInstaller(config.Script, config.Interface, time.Duration(config.InstallTimeout),
		config.InstallQPS, config.InstallBurst, log)
}
