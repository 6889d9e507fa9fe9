//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// handler.go - Packet handling boundary
//
// Entry point for every captured packet, from either capture source. A
// packet that is not an RA is ignored; a malformed or hostile one is logged
// and dropped. Nothing that happens while handling one packet may stop the
// listener, including a panic further down.
//

package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/sirupsen/logrus"
)

// Handler decodes RAs and feeds their candidates to a Processor.
type Handler struct {
	decoder *Decoder
	proc    *Processor
	log     *logrus.Entry
}

// NewHandler creates a handler.
func NewHandler(decoder *Decoder, proc *Processor, log *logrus.Entry) *Handler {
	return &Handler{decoder: decoder, proc: proc, log: log}
}

// HandlePacket handles one frame captured with pcap.
func (h *Handler) HandlePacket(ctx context.Context, pkt gopacket.Packet) {
	defer h.recoverPacket(pkt)

	ra, err := ParseRAPacket(pkt)
	h.handle(ctx, ra, err)
}

// HandleMessage handles one ICMPv6 message read from a raw socket. hopLimit
// is the received IPv6 hop limit, or negative when unknown.
func (h *Handler) HandleMessage(ctx context.Context, from netip.Addr, hopLimit int, msg []byte) {
	defer h.recoverPacket(from)

	ra, err := ParseRAMessage(from, hopLimit, msg)
	h.handle(ctx, ra, err)
}

func (h *Handler) handle(ctx context.Context, ra *RAPacket, err error) {
	switch {
	case errors.Is(err, errNotIPv6):
		h.ignored(reasonNotIPv6)
		return
	case errors.Is(err, errNotRA):
		h.ignored(reasonNotRA)
		return
	case err != nil:
		h.log.WithField("event", evPacketError).WithError(err).Warn("dropping packet")
		return
	}

	src := ra.Source.WithZone("")
	h.accepted(src, len(ra.RA.Options))
	h.log.Tracef("RA from %s: hop limit %d, flags %#02x, router lifetime %ds, %d options",
		src, ra.RA.HopLimit, ra.RA.Flags, ra.RA.RouterLifetime, len(ra.RA.Options))

	cands := h.decoder.DecodeOptions(src, ra.RA.Options)
	h.proc.ProcessBatch(ctx, cands)
}

func (h *Handler) accepted(src netip.Addr, options int) {
	h.log.WithFields(logrus.Fields{
		"event":   evPacketAccepted,
		"router":  src.String(),
		"options": options,
	}).Debug("received router advertisement")
}

func (h *Handler) ignored(reason string) {
	h.log.WithFields(logrus.Fields{
		"event":  evPacketIgnored,
		"reason": reason,
	}).Trace("ignoring packet")
}

func (h *Handler) recoverPacket(pkt any) {
	r := recover()
	if r == nil {
		return
	}
	log := h.log.WithField("event", evPacketError)
	if s, ok := pkt.(fmt.Stringer); ok {
		log = log.WithField("packet", s.String())
	}
	log.Errorf("error processing packet: %v", r)
}
