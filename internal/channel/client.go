package channel

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"resumeflow/internal/backend"
	"resumeflow/internal/errors"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout     = 10 * time.Second
	closeGracePeriod = time.Second
	maxFrameBytes    = 32 << 20

	defaultConnectTimeout = 10 * time.Second
)

var (
	// ErrNotConnected is returned by sends issued before Connect succeeded.
	ErrNotConnected = errors.NewTransportError(errors.ErrCodeNotConnected,
		"Not connected to the résumé service", nil)
	// ErrConnectInProgress is returned when another Connect call is still dialing.
	ErrConnectInProgress = errors.NewTransportError(errors.ErrCodeConnectBusy,
		"A connection attempt is already in progress", nil)
)

// Recorder receives channel traffic counts.
type Recorder interface {
	RecordChannelMessage(ctx context.Context, endpoint, messageType string)
	RecordMalformedFrame(ctx context.Context, endpoint string)
}

// Client is a streaming channel to one backend endpoint.
// The zero value is not usable; create one with New.
type Client struct {
	url            string
	endpoint       string
	connectTimeout time.Duration
	dialer         *websocket.Dialer
	breaker        *backend.Breaker[*websocket.Conn]
	logger         *errors.Logger
	recorder       Recorder

	mu         sync.Mutex
	conn       *websocket.Conn
	connecting bool
	handler    func(Message)
	done       chan struct{}

	writeMu sync.Mutex
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *errors.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder reports message counts.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithBreaker guards the dial with a circuit breaker.
func WithBreaker(b *backend.Breaker[*websocket.Conn]) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithConnectTimeout bounds the opening handshake.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// New creates a client for the streaming endpoint derived from baseURL.
func New(baseURL, endpoint string, opts ...Option) (*Client, error) {
	url, err := backend.WebSocketURL(baseURL, endpoint)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Invalid streaming endpoint", err)
	}

	c := &Client{
		url:            url,
		endpoint:       endpoint,
		connectTimeout: defaultConnectTimeout,
		logger:         errors.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dialer = &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.connectTimeout,
	}
	c.logger = c.logger.With("endpoint", endpoint)
	return c, nil
}

// URL returns the address the client dials.
func (c *Client) URL() string {
	return c.url
}

// Endpoint returns the logical endpoint name.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// OnMessage registers the handler receiving every inbound message in
// arrival order. Register it before sending a request.
func (c *Client) OnMessage(handler func(Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Connect opens the channel. It returns nil if the channel is already open
// and ErrConnectInProgress while another attempt is dialing.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	if c.connecting {
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	c.connecting = true
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	conn, err := c.breaker.Execute(func() (*websocket.Conn, error) {
		conn, resp, err := c.dialer.DialContext(dialCtx, c.url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, errors.NewTransportError(errors.ErrCodeConnectFailed,
				"Could not connect to the résumé service", err).WithContext("url", c.url)
		}
		return conn, nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connecting = false
	if err != nil {
		c.logger.LogError(err, "Channel connect failed")
		return err
	}

	conn.SetReadLimit(maxFrameBytes)
	c.conn = conn
	c.done = make(chan struct{})
	go c.readLoop(conn, c.done)

	c.logger.Debug("Channel connected", "url", c.url)
	return nil
}

// IsConnected reports whether the channel is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SendParse asks the backend to parse a file. The content travels base64
// encoded because the channel carries only text frames.
func (c *Client) SendParse(fileName, mimeType string, content []byte) error {
	return c.send(parseFrame{
		Type:        "parse",
		FileContent: base64.StdEncoding.EncodeToString(content),
		FileType:    mimeType,
		FileName:    fileName,
	})
}

// SendOptimize asks the backend to tailor a résumé to a job description.
func (c *Client) SendOptimize(req OptimizeRequest) error {
	jobTitle := strings.TrimSpace(req.JobTitle)
	if jobTitle == "" {
		jobTitle = defaultJobTitle
	}
	company := strings.TrimSpace(req.Company)
	if company == "" {
		company = defaultCompany
	}
	return c.send(optimizeFrame{
		Type:           "optimize",
		Resume:         req.Resume.Clone(),
		JobDescription: req.JobDescription,
		JobTitle:       jobTitle,
		Company:        company,
	})
}

func (c *Client) send(frame any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return errors.NewTransportError(errors.ErrCodeConnectionLost, "Connection to the résumé service was lost", err)
	}
	if err := conn.WriteJSON(frame); err != nil {
		return errors.NewTransportError(errors.ErrCodeConnectionLost, "Connection to the résumé service was lost", err)
	}
	return nil
}

// Disconnect closes the channel. Calling it again, or before Connect, is a no-op.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod))
	if err := conn.Close(); err != nil {
		c.logger.Debug("Channel close returned error", "error", err.Error())
	}
	c.logger.Debug("Channel disconnected")
	return nil
}

// Done is closed when the reader of the current connection exits.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.done
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ownedByCaller(conn) {
				return
			}
			// Lost without Disconnect: the pending request must still terminate.
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			_ = conn.Close()

			c.logger.Warn("Channel closed unexpectedly", "error", err.Error())
			c.deliver(Message{
				Type:    TypeError,
				Message: "Connection to the résumé service was lost",
				Err: errors.NewTransportError(errors.ErrCodeConnectionLost,
					"Connection to the résumé service was lost", err),
			})
			return
		}

		msg := decodeFrame(data)
		if msg.Type == TypeMalformed {
			c.logger.LogError(msg.Err, "Received malformed channel frame", "bytes", len(data))
			if c.recorder != nil {
				c.recorder.RecordMalformedFrame(context.Background(), c.endpoint)
			}
		}
		c.deliver(msg)
	}
}

// ownedByCaller reports whether conn was closed through Disconnect.
func (c *Client) ownedByCaller(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != conn
}

func (c *Client) deliver(msg Message) {
	if c.recorder != nil {
		c.recorder.RecordChannelMessage(context.Background(), c.endpoint, string(msg.Type))
	}
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		c.logger.Debug("No handler registered, message dropped", "type", string(msg.Type))
		return
	}
	handler(msg)
}
