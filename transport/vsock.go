package transport

import (
	"fmt"
	"net"

	"github.com/mdlayher/vsock"
)

// DialVsock connects to the enclave's VSOCK listener, the production
// transport between host and enclave on AWS Nitro (spec.md §4.5; see the
// Nitro runtime conventions referenced from other_examples' enclave code).
func DialVsock(cid, port uint32) (net.Conn, error) {
	conn, err := vsock.Dial(cid, port, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: vsock dial cid=%d port=%d: %w", cid, port, err)
	}
	return conn, nil
}

// ListenVsock opens a VSOCK listener on the enclave side, accepting the
// host's single ceremony-transfer connection.
func ListenVsock(port uint32) (net.Listener, error) {
	l, err := vsock.Listen(port, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: vsock listen port=%d: %w", port, err)
	}
	return l, nil
}

// HalfCloser is satisfied by net.Conn implementations (TCP, vsock) that can
// signal "no more data" without tearing down the read side, which the
// receiver's EOF-at-header-boundary check in ReadFrames relies on.
type HalfCloser interface {
	CloseWrite() error
}

// CloseSendSide half-closes conn if it supports it, otherwise it is a no-op
// for connection types where caller-side Close() already yields a usable
// EOF on the remote end.
func CloseSendSide(conn net.Conn) error {
	if hc, ok := conn.(HalfCloser); ok {
		return hc.CloseWrite()
	}
	return nil
}
