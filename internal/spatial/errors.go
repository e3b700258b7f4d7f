// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package spatial

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDriver is returned by Initialize when the facade has no driver bound.
	ErrNoDriver = errors.New("spatial: no driver configured")
	// ErrAttachTimeout is returned when the device does not attach in time.
	ErrAttachTimeout = errors.New("spatial: device did not attach")
	// ErrNotAttached is returned by driver operations that need an attached device.
	ErrNotAttached = errors.New("spatial: device not attached")
)

// ErrorCode is an asynchronous error reported by the device while attached.
// Codes match the vendor SDK's asynchronous error numbering so raw codes can
// be passed through unchanged.
type ErrorCode uint32

const (
	ErrorNone        ErrorCode = 0
	ErrorNetwork     ErrorCode = 0x8001
	ErrorBadPassword ErrorCode = 0x8002
	ErrorBadVersion  ErrorCode = 0x8003
	ErrorOverrun     ErrorCode = 0x9002
	ErrorPacketLost  ErrorCode = 0x9003
	ErrorWrap        ErrorCode = 0x9004
	ErrorOverTemp    ErrorCode = 0x9005
	ErrorOverCurrent ErrorCode = 0x9006
	ErrorOutOfRange  ErrorCode = 0x9007
	ErrorBadPower    ErrorCode = 0x9008
)

var errorCodeNames = map[ErrorCode]string{
	ErrorNone:        "none",
	ErrorNetwork:     "network",
	ErrorBadPassword: "bad password",
	ErrorBadVersion:  "bad version",
	ErrorOverrun:     "overrun",
	ErrorPacketLost:  "packet lost",
	ErrorWrap:        "wrap",
	ErrorOverTemp:    "over temperature",
	ErrorOverCurrent: "over current",
	ErrorOutOfRange:  "out of range",
	ErrorBadPower:    "bad power",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown (0x%04X)", uint32(c))
}

// Known reports whether c is one of the named codes.
func (c ErrorCode) Known() bool {
	_, ok := errorCodeNames[c]
	return ok
}
