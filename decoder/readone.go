package decoder

import (
	"bytes"
	"io"

	"github.com/hexpg/pgwire/message"
)

const readChunkSize = 8192

// ReadOneCommand pulls exactly one command out of dec, blocking on reader
// as needed. It bridges the push-driven Feed API to the handshake and
// authentication phases of the session, which need to synchronously wait
// for a single reply (e.g. the password response following an
// AuthenticationCleartextPassword challenge) before resuming the normal
// per-connection dispatch loop.
func ReadOneCommand(reader io.Reader, dec *CommandDecoder) (message.Command, []byte, error) {
	var cmd message.Command
	var raw []byte

	capture := func(c message.Command, r []byte) error {
		cmd = c
		raw = bytes.Clone(r)
		return ErrStop
	}

	if err := dec.Feed(nil, capture); err != nil {
		return nil, nil, err
	}

	buf := make([]byte, readChunkSize)
	for cmd == nil {
		n, rerr := reader.Read(buf)
		if n > 0 {
			if err := dec.Feed(buf[:n], capture); err != nil {
				return nil, nil, err
			}
		}
		if cmd != nil {
			break
		}
		if rerr != nil {
			return nil, nil, rerr
		}
	}

	return cmd, raw, nil
}

// ReadOneResponse is the ResponseDecoder analogue of ReadOneCommand, used
// by the proxy when it needs to synchronously observe a single upstream
// response (e.g. during its own handshake with the real server).
func ReadOneResponse(reader io.Reader, dec *ResponseDecoder) (message.Response, []byte, error) {
	var resp message.Response
	var raw []byte

	capture := func(r message.Response, b []byte) error {
		resp = r
		raw = bytes.Clone(b)
		return ErrStop
	}

	if err := dec.Feed(nil, capture); err != nil {
		return nil, nil, err
	}

	buf := make([]byte, readChunkSize)
	for resp == nil {
		n, rerr := reader.Read(buf)
		if n > 0 {
			if err := dec.Feed(buf[:n], capture); err != nil {
				return nil, nil, err
			}
		}
		if resp != nil {
			break
		}
		if rerr != nil {
			return nil, nil, rerr
		}
	}

	return resp, raw, nil
}
