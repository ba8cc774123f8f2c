package rest

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/dkzef/chirp/internal/calllog"
)

// maxCapturedBody bounds how much of a request or response body the call
// log keeps per record.
const maxCapturedBody = 4 << 10

// recordingTransport wraps a RoundTripper, injecting the Authorization
// header and recording every call into the call log.
type recordingTransport struct {
	next  http.RoundTripper
	log   *calllog.Log
	token func() string // bearer header value, empty to skip
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != nil {
		if bearer := t.token(); bearer != "" {
			req.Header.Set("Authorization", bearer)
		}
	}

	rec := calllog.Record{
		Method:    req.Method,
		URL:       req.URL.Path,
		Timestamp: time.Now(),
	}
	if req.Body != nil && req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			rec.Request = captureBody(body)
		}
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	rec.Duration = time.Since(start)

	if err != nil {
		rec.Err = err.Error()
		t.log.Record(rec)
		return nil, err
	}

	rec.Status = resp.StatusCode
	rec.Response, resp.Body = captureAndRestore(resp.Body)
	t.log.Record(rec)
	return resp, nil
}

func captureBody(r io.ReadCloser) string {
	defer func() { _ = r.Close() }()
	b, _ := io.ReadAll(io.LimitReader(r, maxCapturedBody))
	return string(b)
}

// captureAndRestore reads a response body fully and hands back a fresh
// reader so the caller can still decode it.
func captureAndRestore(r io.ReadCloser) (string, io.ReadCloser) {
	defer func() { _ = r.Close() }()
	b, _ := io.ReadAll(r)
	captured := b
	if len(captured) > maxCapturedBody {
		captured = captured[:maxCapturedBody]
	}
	return string(captured), io.NopCloser(bytes.NewReader(b))
}
