package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/klauspost/compress/gzip"

	"github.com/hyp3rd/logship"
	"github.com/hyp3rd/logship/internal/constants"
)

const maxErrorBodyBytes = 4 * 1024

// HTTPConfig configures the HTTP ingest transport.
type HTTPConfig struct {
	// Endpoint is the full ingest URL.
	Endpoint string
	// TokenProvider supplies the bearer token attached to each request.
	// Optional.
	TokenProvider logship.TokenProvider
	// Client is the HTTP client to use. Defaults to a client with a 30s
	// timeout.
	Client *http.Client
	// Compress enables gzip compression of request bodies.
	Compress bool
	// CompressionLevel is the gzip level; 0 selects the default.
	CompressionLevel int
}

// HTTPTransport delivers record batches to an HTTP ingest endpoint. It
// implements logship.Transport; live tailing goes through the websocket
// transport instead.
type HTTPTransport struct {
	config HTTPConfig
}

// ingestBody is the request envelope.
type ingestBody struct {
	Records []wireRecord `json:"records"`
}

// ingestResponse is the backend's partial-success response shape.
type ingestResponse struct {
	Accepted int `json:"accepted"`
	Failed   []struct {
		ID        string `json:"id"`
		Message   string `json:"message"`
		Permanent bool   `json:"permanent"`
	} `json:"failed"`
}

// NewHTTP creates an HTTP ingest transport.
func NewHTTP(config HTTPConfig) (*HTTPTransport, error) {
	if config.Endpoint == "" {
		return nil, ewrap.New("ingest endpoint cannot be empty")
	}

	if config.Client == nil {
		config.Client = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPTransport{config: config}, nil
}

// Send posts the batch to the ingest endpoint. HTTP statuses map onto the
// error taxonomy: 429 and 5xx are transient (with any Retry-After hint
// attached), other 4xx are permanent. A 2xx response may still reject a
// subset of the batch; the result carries the per-record failures.
func (t *HTTPTransport) Send(ctx context.Context, batch []logship.Record) (*logship.SendResult, error) {
	body, err := t.encodeBody(batch)
	if err != nil {
		return nil, logship.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.Endpoint, body)
	if err != nil {
		return nil, logship.Permanent(ewrap.Wrap(err, "building ingest request"))
	}

	req.Header.Set(constants.ContentTypeHeader, constants.ContentTypeJSON)

	if t.config.Compress {
		req.Header.Set(constants.ContentEncodingHeader, constants.EncodingGzip)
	}

	err = t.attachAuth(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := t.config.Client.Do(req)
	if err != nil {
		return nil, logship.Transient(ewrap.Wrap(err, "posting ingest batch"))
	}
	defer resp.Body.Close()

	return t.decodeResponse(resp, batch)
}

// OpenStream is not supported over plain HTTP.
func (t *HTTPTransport) OpenStream(context.Context, logship.TailRequest) (logship.StreamHandle, error) {
	return nil, logship.Permanent(ErrStreamingUnsupported)
}

// encodeBody serializes (and optionally compresses) the batch envelope.
func (t *HTTPTransport) encodeBody(batch []logship.Record) (*bytes.Reader, error) {
	envelope := ingestBody{Records: make([]wireRecord, len(batch))}
	for i, record := range batch {
		envelope.Records[i] = toWire(record)
	}

	encoded, err := json.Marshal(envelope)
	if err != nil {
		return nil, ewrap.Wrap(err, "encoding ingest body")
	}

	if !t.config.Compress {
		return bytes.NewReader(encoded), nil
	}

	var compressed bytes.Buffer

	level := t.config.CompressionLevel
	if level == 0 {
		level = gzip.DefaultCompression
	}

	writer, err := gzip.NewWriterLevel(&compressed, level)
	if err != nil {
		return nil, ewrap.Wrap(err, "initializing gzip writer")
	}

	_, err = writer.Write(encoded)
	if err != nil {
		return nil, ewrap.Wrap(err, "compressing ingest body")
	}

	err = writer.Close()
	if err != nil {
		return nil, ewrap.Wrap(err, "finalizing gzip body")
	}

	return bytes.NewReader(compressed.Bytes()), nil
}

// attachAuth adds the bearer token when a provider is configured.
func (t *HTTPTransport) attachAuth(ctx context.Context, req *http.Request) error {
	if t.config.TokenProvider == nil {
		return nil
	}

	token, err := t.config.TokenProvider.Token(ctx)
	if err != nil {
		return logship.Permanent(ewrap.Wrap(err, "acquiring auth token"))
	}

	req.Header.Set(constants.AuthorizationHeader, "Bearer "+token)

	return nil
}

// decodeResponse maps the HTTP response onto a SendResult or a classified
// error.
func (t *HTTPTransport) decodeResponse(resp *http.Response, batch []logship.Record) (*logship.SendResult, error) {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return decodeAccepted(resp, batch)
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	cause := ewrap.New("ingest rejected").
		WithMetadata("status", resp.StatusCode).
		WithMetadata("body", string(snippet))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, logship.Transient(cause).WithRetryAfter(retryAfterHint(resp))
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode >= http.StatusInternalServerError:
		return nil, logship.Transient(cause).WithRetryAfter(retryAfterHint(resp))
	default:
		return nil, logship.Permanent(cause)
	}
}

// decodeAccepted parses a 2xx body into a SendResult. An empty or
// unparseable body counts the whole batch as accepted.
func decodeAccepted(resp *http.Response, batch []logship.Record) (*logship.SendResult, error) {
	payload, err := io.ReadAll(resp.Body)
	if err != nil || len(payload) == 0 {
		return &logship.SendResult{Accepted: len(batch)}, nil
	}

	var decoded ingestResponse

	err = json.Unmarshal(payload, &decoded)
	if err != nil {
		return &logship.SendResult{Accepted: len(batch)}, nil
	}

	result := &logship.SendResult{Accepted: decoded.Accepted}
	if decoded.Accepted == 0 && len(decoded.Failed) == 0 {
		result.Accepted = len(batch)
	}

	for _, failure := range decoded.Failed {
		cause := ewrap.New(failure.Message)

		var recordErr error
		if failure.Permanent {
			recordErr = logship.Permanent(cause)
		} else {
			recordErr = logship.Transient(cause)
		}

		result.Failed = append(result.Failed, logship.RecordFailure{ID: failure.ID, Err: recordErr})
	}

	return result, nil
}

// retryAfterHint parses the Retry-After header, in seconds, when present.
func retryAfterHint(resp *http.Response) time.Duration {
	header := resp.Header.Get(constants.RetryAfterHeader)
	if header == "" {
		return 0
	}

	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}

var (
	_ logship.Transport       = (*HTTPTransport)(nil)
	_ logship.StreamTransport = (*HTTPTransport)(nil)
)
