// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gateway

import (
	"io"
	"net/http"
	"net/textproto"
	"strings"
)

// RelayBufferSize is the fixed per-request copy buffer.
const RelayBufferSize = 32 * 1024

// hopHeaders are meaningful only for a single transport-level connection.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// copyEndToEndHeaders mirrors origin headers except hop-by-hop ones,
// including any listed in the origin's Connection header.
func copyEndToEndHeaders(dst, src http.Header) {
	drop := make(map[string]struct{}, len(hopHeaders))
	for _, h := range hopHeaders {
		drop[h] = struct{}{}
	}
	for _, v := range src.Values("Connection") {
		for _, f := range strings.Split(v, ",") {
			if f = textproto.TrimString(f); f != "" {
				drop[textproto.CanonicalMIMEHeaderKey(f)] = struct{}{}
			}
		}
	}
	for k, vv := range src {
		if _, hop := drop[k]; hop {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// copyFlushing streams src to w through one RelayBufferSize buffer and
// flushes after every chunk so the player sees bytes as they arrive.
func copyFlushing(w http.ResponseWriter, src io.Reader) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, RelayBufferSize)
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
			_ = rc.Flush()
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
