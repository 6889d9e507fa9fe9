//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// route.go - Route installation via an external script
//
// Hands each new ULA prefix or route to a configuration script and reports
// its exit status. The script receives its parameters through the
// environment (PREFIX, PREFIX_LEN, IFACE, ROUTER, IS_PREFIX). Invocations are
// rate limited and bounded by a timeout so a hanging script cannot stall the
// capture loop.
//

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RouteInstaller installs one route. A nil error means success; output is
// whatever the installer reported and is meant for logging only.
type RouteInstaller interface {
	Install(ctx context.Context, c RouteCandidate) (output string, err error)
}

// InstallError is returned when the installer ran but did not succeed.
type InstallError struct {
	Candidate RouteCandidate
	ExitCode  int // -1 when the process did not exit normally
	Stdout    string
	Stderr    string
	Err       error
}

func (e *InstallError) Error() string {
	msg := fmt.Sprintf("configure %s: %v", e.Candidate, e.Err)
	if e.Stderr != "" {
		msg += " (stderr: " + e.Stderr + ")"
	}
	return msg
}

func (e *InstallError) Unwrap() error { return e.Err }

// Environment variables understood by the configuration script.
const (
	envPrefix    = "PREFIX"
	envPrefixLen = "PREFIX_LEN"
	envIface     = "IFACE"
	envRouter    = "ROUTER"
	envIsPrefix  = "IS_PREFIX"
)

// ScriptInstaller runs an external script for every route.
type ScriptInstaller struct {
	path    string
	iface   string
	timeout time.Duration
	limiter *rate.Limiter
	log     *logrus.Entry
}

// NewScriptInstaller creates an installer running path for routes on iface,
// allowing qps invocations per second with the given burst.
func NewScriptInstaller(path, iface string, timeout time.Duration, qps, burst int, log *logrus.Entry) *ScriptInstaller {
	return &ScriptInstaller{
		path:    path,
		iface:   iface,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(max(qps, 1)), max(burst, 1)),
		log:     log,
	}
}

// Install runs the script for c and waits for it to exit.
func (s *ScriptInstaller) Install(ctx context.Context, c RouteCandidate) (string, error) {
	// Rate limit script runs to avoid route table thrashing
	if err := s.limiter.Wait(ctx); err != nil {
		return "", &InstallError{Candidate: c, ExitCode: -1, Err: err}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	env := scriptEnv(c, s.iface)
	s.log.WithFields(candidateFields(c)).Debugf("running %s with %s", s.path, strings.Join(env, " "))
	if !c.Router.IsValid() {
		s.log.WithFields(candidateFields(c)).Warn("no router address for route")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.path)
	cmd.Env = append(filterEnv(os.Environ()), env...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	if err == nil {
		return out, nil
	}

	ie := &InstallError{
		Candidate: c,
		ExitCode:  -1,
		Stdout:    out,
		Stderr:    strings.TrimSpace(stderr.String()),
		Err:       err,
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		ie.ExitCode = ee.ExitCode()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		ie.Err = fmt.Errorf("timed out after %s: %w", s.timeout, err)
	}
	return out, ie
}

// scriptEnv returns the script parameters for c. ROUTER is omitted when the
// router is unknown.
func scriptEnv(c RouteCandidate, iface string) []string {
	env := []string{
		envPrefix + "=" + c.Prefix.String(),
		envPrefixLen + "=" + strconv.Itoa(c.PrefixLen),
		envIface + "=" + iface,
	}
	if c.Router.IsValid() {
		env = append(env, envRouter+"="+c.Router.WithZone("").String())
	}
	if c.Kind == OnLinkPrefix {
		env = append(env, envIsPrefix+"=1")
	} else {
		env = append(env, envIsPrefix+"=0")
	}
	return env
}

// filterEnv drops inherited script parameters so stale values never leak
// into a run that does not set them.
func filterEnv(env []string) []string {
	out := env[:0:0]
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		switch name {
		case envPrefix, envPrefixLen, envIface, envRouter, envIsPrefix:
			continue
		}
		out = append(out, kv)
	}
	return out
}
