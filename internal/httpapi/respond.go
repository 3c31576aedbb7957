package httpapi

import (
	"compress/gzip"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"strings"
)

// bodyWriter returns the writer to encode into, gzip-wrapped when the client
// accepts it. The returned closer must be closed after encoding.
func bodyWriter(w http.ResponseWriter, r *http.Request) io.WriteCloser {
	if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		return gzip.NewWriter(w)
	}
	return nopCloser{w}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	bw := bodyWriter(w, r)
	w.WriteHeader(status)
	_ = json.NewEncoder(bw).Encode(payload)
	_ = bw.Close()
}

func writeXML(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/xml")
	bw := bodyWriter(w, r)
	w.WriteHeader(status)
	_, _ = io.WriteString(bw, xml.Header)
	_ = xml.NewEncoder(bw).Encode(payload)
	_ = bw.Close()
}
