//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// tracker.go - Configured route tracking
//
// Remembers every route that was installed successfully so a router that
// keeps re-advertising the same prefix does not cause repeated installs.
// Entries never expire and are never removed; the set lives as long as the
// process.
//

package main

import "sync"

// Tracker records configured routes for one interface.
type Tracker struct {
	mu      sync.Mutex
	iface   string
	policy  KeyPolicy
	done    map[routeKey]struct{}
	pending map[routeKey]struct{} // installs in flight
}

// NewTracker creates an empty tracker for iface.
func NewTracker(iface string, policy KeyPolicy) *Tracker {
	return &Tracker{
		iface:   iface,
		policy:  policy,
		done:    make(map[routeKey]struct{}),
		pending: make(map[routeKey]struct{}),
	}
}

// Interface returns the interface the tracker is bound to.
func (t *Tracker) Interface() string {
	return t.iface
}

// IsConfigured reports whether a route with c's identity was installed.
func (t *Tracker) IsConfigured(c RouteCandidate) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.done[t.policy.key(c, t.iface)]
	return ok
}

// RecordConfigured marks c's identity as installed. Recording twice is a no-op.
func (t *Tracker) RecordConfigured(c RouteCandidate) {
	t.mu.Lock()
	t.done[t.policy.key(c, t.iface)] = struct{}{}
	t.mu.Unlock()
}

// Len returns the number of configured routes.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.done)
}

// claim atomically checks c and reserves it for installation. It fails
// when c is already configured or another install of it is in flight.
func (t *Tracker) claim(c RouteCandidate) bool {
	k := t.policy.key(c, t.iface)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.done[k]; ok {
		return false
	}
	if _, ok := t.pending[k]; ok {
		return false
	}
	t.pending[k] = struct{}{}
	return true
}

// release ends a claim. Only a successful install is recorded; a failed one
// leaves c eligible for the next advertisement.
func (t *Tracker) release(c RouteCandidate, ok bool) {
	k := t.policy.key(c, t.iface)
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, k)
	if ok {
		t.done[k] = struct{}{}
	}
}
