//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//

package main

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerLevel(t *testing.T) {
	tests := []struct {
		debug, verbose bool
		want           logrus.Level
	}{
		{false, false, logrus.InfoLevel},
		{true, false, logrus.DebugLevel},
		{false, true, logrus.TraceLevel},
		{true, true, logrus.TraceLevel},
	}
	for _, tt := range tests {
		if got := NewLogger(io.Discard, tt.debug, tt.verbose).GetLevel(); got != tt.want {
			t.Errorf("NewLogger(debug=%v, verbose=%v) level = %s, want %s", tt.debug, tt.verbose, got, tt.want)
		}
	}
}

func TestCandidateFields(t *testing.T) {
	f := candidateFields(offLink(testRoute, 64, "", 1800))
	if f["kind"] != "route" || f["prefix"] != "fd4e:a053:febd::/64" {
		t.Errorf("fields = %v", f)
	}
	if _, ok := f["router"]; ok {
		t.Error("router field set for unknown router")
	}
}
