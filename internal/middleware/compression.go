// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"
)

// MinCompressSize is the smallest response body that gets gzipped. Health
// probes and short JSON answers go out as written.
const MinCompressSize = 1024

var gzipPool = sync.Pool{
	New: func() interface{} {
		gz, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return gz
	},
}

// lazyGzipWriter holds the status and the first MinCompressSize bytes back
// until it knows whether the body is worth compressing.
type lazyGzipWriter struct {
	http.ResponseWriter
	status  int
	pending []byte
	gz      *gzip.Writer
	plain   bool
}

func (w *lazyGzipWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *lazyGzipWriter) Write(b []byte) (int, error) {
	switch {
	case w.gz != nil:
		return w.gz.Write(b)
	case w.plain:
		return w.ResponseWriter.Write(b)
	}

	w.pending = append(w.pending, b...)
	if len(w.pending) < MinCompressSize {
		return len(b), nil
	}

	h := w.Header()
	if h.Get("Content-Encoding") != "" {
		w.plain = true
		w.ResponseWriter.WriteHeader(w.statusOrOK())
		_, err := w.ResponseWriter.Write(w.pending)
		w.pending = nil
		return len(b), err
	}

	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	h.Del("Content-Length")
	w.ResponseWriter.WriteHeader(w.statusOrOK())

	w.gz = gzipPool.Get().(*gzip.Writer)
	w.gz.Reset(w.ResponseWriter)
	_, err := w.gz.Write(w.pending)
	w.pending = nil
	return len(b), err
}

func (w *lazyGzipWriter) statusOrOK() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// finish flushes whatever the handler left behind.
func (w *lazyGzipWriter) finish() {
	if w.gz != nil {
		_ = w.gz.Close() // client may be gone
		gzipPool.Put(w.gz)
		w.gz = nil
		return
	}
	if w.plain {
		return
	}
	w.ResponseWriter.WriteHeader(w.statusOrOK())
	if len(w.pending) > 0 {
		_, _ = w.ResponseWriter.Write(w.pending)
	}
}

// Compression gzips REST responses of at least MinCompressSize bytes for
// clients that accept it. WebSocket upgrades pass through untouched.
func Compression(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") ||
			strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next(w, r)
			return
		}

		lw := &lazyGzipWriter{ResponseWriter: w}
		defer lw.finish()
		next(lw, r)
	}
}
