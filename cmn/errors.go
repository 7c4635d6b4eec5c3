// Package cmn provides common constants, types, and utilities shared by the
// placement, codec, cluster, and xact packages.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds the core must distinguish (spec.md §7).
var (
	ErrFileNotFound              = errors.New("file not found")
	ErrInsufficientTopology      = errors.New("insufficient topology for placement policy")
	ErrGlobalParityUnimplemented = errors.New("global parity is reserved for future extension")
	ErrReservedShadowMissing     = errors.New("reserved fast-parity shadow missing from metadata")
	ErrNodeWriteFailure          = errors.New("node write failure")
	ErrTranscodeFailure          = errors.New("transcode failure")
	ErrProtocolViolation         = errors.New("protocol violation")
	ErrBlockMiss                 = errors.New("block miss")
	ErrStripeWrongState          = errors.New("stripe is not in the required hot/cold state")
)

// NodeWriteError wraps ErrNodeWriteFailure with the offending block/node.
type NodeWriteError struct {
	BlockID string
	NodeID  string
	Ack     string
}

func (e *NodeWriteError) Error() string {
	return fmt.Sprintf("write failed for block %s on node %s: ack=%q", e.BlockID, e.NodeID, e.Ack)
}

func (e *NodeWriteError) Unwrap() error { return ErrNodeWriteFailure }

// ProtocolViolationError wraps ErrProtocolViolation with the malformed ack.
type ProtocolViolationError struct {
	NodeID string
	Ack    string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("malformed ack from %s: %q", e.NodeID, e.Ack)
}

func (e *ProtocolViolationError) Unwrap() error { return ErrProtocolViolation }

// TranscodeError wraps ErrTranscodeFailure with the offending stripe/node.
type TranscodeError struct {
	StripeID string
	NodeID   string
	Ack      string
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode of stripe %s failed: node %s acked %q", e.StripeID, e.NodeID, e.Ack)
}

func (e *TranscodeError) Unwrap() error { return ErrTranscodeFailure }

// Wrap is a thin alias kept for call-site symmetry with the rest of the
// codebase; every component boundary wraps with file/operation context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// Cause unwraps to the root cause, mirroring errors.Cause usage across
// the codebase's tests.
func Cause(err error) error { return errors.Cause(err) }
