package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/logship"
	"github.com/hyp3rd/logship/internal/constants"
)

const (
	defaultPingInterval = 30 * time.Second
	frameKindRecord     = "record"
	frameKindSuppressed = "suppression"
)

// WSConfig configures the websocket tail transport.
type WSConfig struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string
	// TokenProvider supplies the bearer token sent during the handshake.
	// Optional.
	TokenProvider logship.TokenProvider
	// Dialer overrides the websocket dialer. Defaults to one with the
	// standard dial timeout.
	Dialer *websocket.Dialer
	// PingInterval is how often keepalive pings are sent. Defaults to 30s.
	PingInterval time.Duration
}

// WSTransport opens live-tail streams over a websocket connection. It
// implements logship.StreamTransport.
type WSTransport struct {
	config WSConfig
}

// tailFrame is a single message on the tail stream.
type tailFrame struct {
	Kind    string      `json:"kind"`
	Record  *wireRecord `json:"record,omitempty"`
	Dropped int         `json:"dropped,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// NewWS creates a websocket tail transport.
func NewWS(config WSConfig) (*WSTransport, error) {
	if config.URL == "" {
		return nil, ewrap.New("websocket URL cannot be empty")
	}

	if config.Dialer == nil {
		config.Dialer = &websocket.Dialer{HandshakeTimeout: constants.DialTimeout}
	}

	if config.PingInterval <= 0 {
		config.PingInterval = defaultPingInterval
	}

	return &WSTransport{config: config}, nil
}

// OpenStream dials the tail endpoint with the request encoded as query
// parameters. Dial failures are transient; a rejected handshake with a 4xx
// status (other than 408 and 429) is permanent.
func (t *WSTransport) OpenStream(ctx context.Context, req logship.TailRequest) (logship.StreamHandle, error) {
	endpoint, err := t.buildURL(req)
	if err != nil {
		return nil, logship.Permanent(err)
	}

	header := http.Header{}

	if t.config.TokenProvider != nil {
		token, tokenErr := t.config.TokenProvider.Token(ctx)
		if tokenErr != nil {
			return nil, logship.Permanent(ewrap.Wrap(tokenErr, "acquiring auth token"))
		}

		header.Set(constants.AuthorizationHeader, "Bearer "+token)
	}

	conn, resp, err := t.config.Dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, classifyDialError(err, resp)
	}

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	stream := &wsStream{
		conn:   conn,
		doneCh: make(chan struct{}),
	}
	go stream.keepalive(t.config.PingInterval)

	return stream, nil
}

// buildURL encodes the tail request into the endpoint's query string.
func (t *WSTransport) buildURL(req logship.TailRequest) (string, error) {
	parsed, err := url.Parse(t.config.URL)
	if err != nil {
		return "", ewrap.Wrap(err, "parsing websocket URL")
	}

	query := parsed.Query()

	if req.Query != "" {
		query.Set("q", req.Query)
	}

	for _, key := range req.GroupKeys {
		query.Add("group", key)
	}

	if !req.Since.IsZero() {
		query.Set("since", strconv.FormatInt(req.Since.UnixMilli(), 10))
	}

	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

// classifyDialError maps a handshake failure onto the error taxonomy.
func classifyDialError(err error, resp *http.Response) error {
	if resp == nil {
		return logship.Transient(ewrap.Wrap(err, "dialing tail endpoint"))
	}

	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	cause := ewrap.Wrap(err, "tail handshake rejected").WithMetadata("status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return logship.Transient(cause).WithRetryAfter(retryAfterHint(resp))
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode >= http.StatusInternalServerError:
		return logship.Transient(cause)
	default:
		return logship.Permanent(cause)
	}
}

// wsStream adapts a websocket connection to logship.StreamHandle.
type wsStream struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	doneCh    chan struct{}
	closeOnce sync.Once
}

// Recv reads the next frame. A closed connection surfaces as a classified
// error: expected close codes are transient so the caller reconnects, policy
// close codes are permanent.
func (s *wsStream) Recv(ctx context.Context) (logship.StreamEvent, error) {
	if err := ctx.Err(); err != nil {
		return logship.StreamEvent{}, ewrap.Wrap(err, "tail context done")
	}

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return logship.StreamEvent{}, classifyReadError(err)
		}

		var frame tailFrame

		err = json.Unmarshal(payload, &frame)
		if err != nil {
			// Skip malformed frames rather than tearing the session down.
			continue
		}

		switch frame.Kind {
		case frameKindRecord:
			if frame.Record == nil {
				continue
			}

			record := fromWire(*frame.Record)

			return logship.StreamEvent{Record: &record}, nil
		case frameKindSuppressed:
			return logship.StreamEvent{
				Suppression: &logship.SuppressionNotice{
					Dropped: frame.Dropped,
					Reason:  frame.Reason,
				},
			}, nil
		default:
			continue
		}
	}
}

// Close tears down the connection, unblocking any pending Recv.
func (s *wsStream) Close() error {
	var err error

	s.closeOnce.Do(func() {
		close(s.doneCh)

		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()

		err = s.conn.Close()
	})

	return err
}

// keepalive sends periodic pings until the stream closes.
func (s *wsStream) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(
				websocket.PingMessage,
				nil,
				time.Now().Add(time.Second),
			)
			s.writeMu.Unlock()

			if err != nil {
				return
			}
		case <-s.doneCh:
			return
		}
	}
}

// classifyReadError maps a read failure onto the error taxonomy.
func classifyReadError(err error) error {
	if websocket.IsCloseError(err,
		websocket.ClosePolicyViolation,
		websocket.CloseUnsupportedData,
		websocket.CloseInvalidFramePayloadData,
	) {
		return logship.Permanent(ewrap.Wrap(err, "tail stream closed"))
	}

	return logship.Transient(ewrap.Wrap(err, "tail stream interrupted"))
}

var _ logship.StreamTransport = (*WSTransport)(nil)
