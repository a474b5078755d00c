//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// gRPC implementation of packet.PacketService.
//

// Package service implements the packet.PacketService RPC surface
// on top of the directory, topology, config, and router packages.
//
// Registration streams do not mutate the directory directly: every
// record flows through a channel into a single-writer apply loop,
// decoupling transport concurrency from directory mutation
// ordering while preserving per-stream order.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rbmk-project/common/errclass"
	"github.com/rs/xid"

	"github.com/ledgersim/netsplit/config"
	"github.com/ledgersim/netsplit/directory"
	"github.com/ledgersim/netsplit/router"
	"github.com/ledgersim/netsplit/wire"
)

// ErrClosed means the service is shutting down and no longer
// applies registrations.
var ErrClosed = errors.New("service: closed")

// regRequest carries one validated registration record to the
// apply loop together with its completion channel.
type regRequest struct {
	info *wire.ValidatorNodeInfo
	done chan error
}

// Service implements [wire.PacketServiceServer].
//
// Construct with [New] and remember to invoke Close to stop the
// apply loop.
type Service struct {
	// directory is the node registry.
	directory *directory.Directory

	// router is the decision engine.
	router *router.Router

	// generator produces config snapshots.
	generator *config.Generator

	// logger optionally emits structured events. May be nil.
	logger *slog.Logger

	// records feeds the apply loop.
	records chan regRequest

	// eof unblocks pending operations when the service closes.
	eof chan struct{}

	// eofOnce ensures we close just once.
	eofOnce sync.Once
}

var _ wire.PacketServiceServer = (*Service)(nil)

// New creates a [*Service] and starts its registration apply loop.
func New(dir *directory.Directory, rtr *router.Router,
	gen *config.Generator, logger *slog.Logger) *Service {
	svc := &Service{
		directory: dir,
		router:    rtr,
		generator: gen,
		logger:    logger,
		records:   make(chan regRequest),
		eof:       make(chan struct{}),
		eofOnce:   sync.Once{},
	}
	go svc.applyLoop()
	return svc
}

// Close stops the registration apply loop.
func (s *Service) Close() error {
	s.eofOnce.Do(func() { close(s.eof) })
	return nil
}

// applyLoop is the single writer mutating the directory.
func (s *Service) applyLoop() {
	for {
		select {
		case <-s.eof:
			return
		case req := <-s.records:
			_, err := s.directory.Upsert(req.info)
			req.done <- err
		}
	}
}

// SendPacket implements [wire.PacketServiceServer].
//
// Routing decisions are data, not errors: unregistered endpoints
// and partition mismatches surface as a drop verdict in the ack.
func (s *Service) SendPacket(ctx context.Context, pkt *wire.Packet) (*wire.PacketAck, error) {
	return s.router.SendPacket(ctx, pkt), nil
}

// GetConfig implements [wire.PacketServiceServer].
func (s *Service) GetConfig(ctx context.Context, req *wire.GetConfig) (*wire.Config, error) {
	return s.generator.Snapshot(), nil
}

// SendValidatorNodeInfo implements [wire.PacketServiceServer].
//
// Records apply in the order received on this stream. A malformed
// record (zero peer port) is rejected locally and the stream
// continues; only transport-level errors fail the call.
func (s *Service) SendValidatorNodeInfo(stream wire.PacketServiceSendValidatorNodeInfoServer) error {
	ctx := stream.Context()
	streamID := xid.New().String()
	accepted, rejected := 0, 0

	if s.logger != nil {
		s.logger.InfoContext(ctx, "registrationStreamStart",
			slog.String("streamID", streamID))
	}

	for {
		info, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if s.logger != nil {
				s.logger.InfoContext(ctx, "registrationStreamError",
					slog.String("streamID", streamID),
					slog.Any("err", err),
					slog.String("errClass", errclass.New(err)),
				)
			}
			return err
		}

		if info.PeerPort == 0 {
			rejected++
			if s.logger != nil {
				s.logger.WarnContext(ctx, "registrationRecordRejected",
					slog.String("streamID", streamID),
					slog.Any("err", directory.ErrMalformed),
				)
			}
			continue
		}

		if err := s.apply(ctx, info); err != nil {
			return err
		}
		accepted++
		if s.logger != nil {
			s.logger.InfoContext(ctx, "registrationRecordApplied",
				slog.String("streamID", streamID),
				slog.Uint64("peerPort", uint64(info.PeerPort)),
				slog.String("status", info.Status),
			)
		}
	}

	ackStatus := "ok"
	if rejected > 0 {
		ackStatus = fmt.Sprintf("%d records rejected", rejected)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "registrationStreamDone",
			slog.String("streamID", streamID),
			slog.Int("accepted", accepted),
			slog.Int("rejected", rejected),
			slog.String("ackStatus", ackStatus),
		)
	}
	return stream.SendAndClose(&wire.ValidatorNodeInfoAck{Status: ackStatus})
}

// apply hands one record to the apply loop and waits for it to be
// written, so a node is routable as soon as its stream is acked.
func (s *Service) apply(ctx context.Context, info *wire.ValidatorNodeInfo) error {
	req := regRequest{info: info, done: make(chan error, 1)}
	select {
	case s.records <- req:
	case <-s.eof:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-s.eof:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
