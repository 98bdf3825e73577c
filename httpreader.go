package drivekit

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Default tuning for HTTPReader. Forward seeks up to the skip threshold
// drain bytes on the open connection instead of paying for a new request.
const (
	DefaultRetryBudget   = 5
	DefaultSkipThreshold = 1 << 20 // 1 MiB
)

// URLFunc resolves the download URL for a reader. It is called on every
// (re)connection so expiring links can be renewed transparently.
type URLFunc func(ctx context.Context) (string, error)

// HTTPReader turns one-shot HTTP range requests into a byte-addressable,
// retrying, optionally-seekable read stream.
//
// A reader owns a single logical cursor and must not be shared between
// goroutines. Reads that fail mid-stream reconnect at the last delivered
// offset and retry, so transient connection drops are invisible to the
// caller until the retry budget runs out.
type HTTPReader struct {
	ctx    context.Context
	client *http.Client
	urlf   URLFunc
	header http.Header
	logger *zap.Logger

	resp *http.Response
	br   *bufio.Reader

	offset   int64 // bytes delivered to the caller
	length   int64 // total length, -1 when unknown
	seekable bool
	chunked  bool
	name     string
	closed   bool

	retryBudget   int
	skipThreshold int64
}

// ReaderOption configures an HTTPReader
type ReaderOption func(*HTTPReader)

// WithHTTPClient sets the HTTP client used for range requests
func WithHTTPClient(client *http.Client) ReaderOption {
	return func(r *HTTPReader) {
		r.client = client
	}
}

// WithHeader adds a header sent on every (re)connection request
func WithHeader(key, value string) ReaderOption {
	return func(r *HTTPReader) {
		r.header.Set(key, value)
	}
}

// WithRetryBudget sets how many reconnect attempts a single read may spend
func WithRetryBudget(n int) ReaderOption {
	return func(r *HTTPReader) {
		if n > 0 {
			r.retryBudget = n
		}
	}
}

// WithSkipThreshold sets the largest forward seek served by draining the
// current connection rather than reconnecting
func WithSkipThreshold(n int64) ReaderOption {
	return func(r *HTTPReader) {
		if n >= 0 {
			r.skipThreshold = n
		}
	}
}

// WithReaderLogger sets the logger used for reconnect diagnostics
func WithReaderLogger(logger *zap.Logger) ReaderOption {
	return func(r *HTTPReader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewHTTPReader opens a reader over the URL produced by urlf. The initial
// request is issued immediately; the returned reader is positioned at
// offset 0.
func NewHTTPReader(ctx context.Context, urlf URLFunc, opts ...ReaderOption) (*HTTPReader, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &HTTPReader{
		ctx:           ctx,
		client:        http.DefaultClient,
		urlf:          urlf,
		header:        make(http.Header),
		logger:        zap.NewNop(),
		length:        -1,
		retryBudget:   DefaultRetryBudget,
		skipThreshold: DefaultSkipThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.connect(0); err != nil {
		return nil, err
	}
	return r, nil
}

// NewURLReader opens a reader over a fixed URL.
func NewURLReader(ctx context.Context, rawURL string, opts ...ReaderOption) (*HTTPReader, error) {
	return NewHTTPReader(ctx, func(context.Context) (string, error) {
		return rawURL, nil
	}, opts...)
}

// connect issues a ranged GET starting at start and swaps it in as the
// current connection. The first connection also records whether the
// server supports byte ranges at all.
func (r *HTTPReader) connect(start int64) error {
	rawURL, err := r.urlf(r.ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	// Transparent compression would break byte accounting and range math.
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	default:
		resp.Body.Close()
		return fmt.Errorf("%w: status %s", ErrProtocol, resp.Status)
	}

	if start > 0 && resp.StatusCode != http.StatusPartialContent {
		// Server ignored the range request and restarted from zero.
		resp.Body.Close()
		return fmt.Errorf("%w: range request ignored", ErrProtocol)
	}

	if r.resp != nil {
		r.resp.Body.Close()
	}
	r.resp = resp
	r.br = bufio.NewReader(resp.Body)
	r.offset = start

	r.seekable = resp.StatusCode == http.StatusPartialContent ||
		strings.Contains(resp.Header.Get("Accept-Ranges"), "bytes")
	r.chunked = isChunked(resp)

	if total, ok := contentRangeTotal(resp.Header.Get("Content-Range")); ok {
		r.length = total
	} else if !r.chunked && resp.ContentLength >= 0 {
		r.length = start + resp.ContentLength
	} else {
		r.length = -1
	}
	if r.name == "" {
		r.name = filenameOf(resp, rawURL)
	}
	return nil
}

// reconnect reopens the stream at the current logical offset.
func (r *HTTPReader) reconnect() error {
	if !r.seekable && r.offset != 0 {
		return fmt.Errorf("%w: cannot resume mid-stream", ErrNotSeekable)
	}
	return r.connect(r.offset)
}

// Read implements io.Reader. Transient failures reconnect at the last
// delivered offset and retry until the budget is exhausted.
func (r *HTTPReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.length >= 0 && r.offset >= r.length {
		return 0, io.EOF
	}
	var lastErr error
	for attempt := 0; attempt < r.retryBudget; attempt++ {
		if attempt > 0 {
			r.logger.Debug("reconnecting reader",
				zap.Int64("offset", r.offset), zap.Int("attempt", attempt))
			if err := r.reconnect(); err != nil {
				lastErr = err
				continue
			}
		}
		n, err := r.br.Read(p)
		r.offset += int64(n)
		if n > 0 {
			return n, nil
		}
		if err == io.EOF {
			if r.length < 0 || r.offset >= r.length {
				return 0, io.EOF
			}
			// Short body: the connection died before the advertised end.
			err = io.ErrUnexpectedEOF
		}
		if err == nil {
			continue
		}
		lastErr = err
	}
	return 0, fmt.Errorf("%w: %v", ErrTooManyRetries, lastErr)
}

// ReadLine reads up to and including the next newline. At end of stream
// the final unterminated line is returned with io.EOF.
func (r *HTTPReader) ReadLine() ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	var line []byte
	var lastErr error
	for attempt := 0; attempt < r.retryBudget; attempt++ {
		if attempt > 0 {
			if err := r.reconnect(); err != nil {
				lastErr = err
				continue
			}
		}
		if r.length >= 0 && r.offset >= r.length {
			if len(line) > 0 {
				return line, io.EOF
			}
			return nil, io.EOF
		}
		part, err := r.br.ReadBytes('\n')
		r.offset += int64(len(part))
		line = append(line, part...)
		if err == nil {
			return line, nil
		}
		if err == io.EOF {
			if r.length < 0 || r.offset >= r.length {
				if len(line) > 0 {
					return line, io.EOF
				}
				return nil, io.EOF
			}
			err = io.ErrUnexpectedEOF
		}
		lastErr = err
	}
	return line, fmt.Errorf("%w: %v", ErrTooManyRetries, lastErr)
}

// Seek implements io.Seeker. Only streams the server marked seekable
// accept it; SEEK_END additionally requires a known length.
func (r *HTTPReader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if !r.seekable {
		return 0, ErrNotSeekable
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = r.offset + offset
	case io.SeekEnd:
		if r.length < 0 {
			return 0, ErrUnknownLength
		}
		pos = r.length + offset
	default:
		return 0, ErrInvalidWhence
	}
	if pos < 0 || (r.length >= 0 && pos > r.length) {
		return 0, ErrInvalidOffset
	}
	if pos == r.offset {
		return pos, nil
	}
	if pos > r.offset && pos-r.offset <= r.skipThreshold && r.resp != nil {
		// Cheaper to drain a small gap than to open a new connection.
		if err := r.skip(pos - r.offset); err == nil {
			return pos, nil
		}
	}
	if err := r.connect(pos); err != nil {
		return 0, err
	}
	return pos, nil
}

// skip discards n bytes from the current connection.
func (r *HTTPReader) skip(n int64) error {
	discarded, err := io.CopyN(io.Discard, r.br, n)
	r.offset += discarded
	return err
}

// Offset returns the current logical read position.
func (r *HTTPReader) Offset() int64 {
	return r.offset
}

// Size returns the total stream length, or -1 when the server did not
// report one (chunked transfer).
func (r *HTTPReader) Size() int64 {
	return r.length
}

// Seekable reports whether the server advertised byte-range support.
func (r *HTTPReader) Seekable() bool {
	return r.seekable
}

// Name returns the file name the server suggested for the stream, or the
// final URL path segment when it suggested none.
func (r *HTTPReader) Name() string {
	return r.name
}

// Close implements io.Closer.
func (r *HTTPReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.resp != nil {
		return r.resp.Body.Close()
	}
	return nil
}

// isChunked reports whether the response uses chunked transfer encoding.
func isChunked(resp *http.Response) bool {
	for _, te := range resp.TransferEncoding {
		if te == "chunked" {
			return true
		}
	}
	return false
}

// contentRangeTotal parses the total length out of a Content-Range header
// of the form "bytes <first>-<last>/<total>".
func contentRangeTotal(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "bytes ") {
		return 0, false
	}
	idx := strings.LastIndexByte(v, '/')
	if idx < 0 {
		return 0, false
	}
	total := v[idx+1:]
	if total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// filenameOf derives a display name from Content-Disposition, falling
// back to the last URL path segment.
func filenameOf(resp *http.Response, rawURL string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if name, err := url.PathUnescape(path.Base(u.Path)); err == nil {
			return name
		}
		return path.Base(u.Path)
	}
	return ""
}

var (
	_ io.Reader = (*HTTPReader)(nil)
	_ io.Seeker = (*HTTPReader)(nil)
	_ io.Closer = (*HTTPReader)(nil)
)
