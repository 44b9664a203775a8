package liveview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ErrStreamDisconnected — поток оборвался; Run переподключится и заново возьмёт снапшот.
var ErrStreamDisconnected = errors.New("liveview: stream disconnected")

const (
	snapshotPath = "/api/attendees/live"
	streamPath   = "/api/attendees/stream"
)

type Client struct {
	baseURL *url.URL
	token   string
	view    *View

	http   *http.Client
	dialer *websocket.Dialer
	log    *slog.Logger

	minBackoff  time.Duration
	maxBackoff  time.Duration
	readTimeout time.Duration

	onUpdate   func(Update)
	onSnapshot func([]Row)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithDialer(d *websocket.Dialer) Option { return func(c *Client) { c.dialer = d } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

func WithBackoff(initial, limit time.Duration) Option {
	return func(c *Client) { c.minBackoff, c.maxBackoff = initial, limit }
}

// WithReadTimeout — сколько ждать любого кадра (включая ping) до признания потока мёртвым.
func WithReadTimeout(d time.Duration) Option { return func(c *Client) { c.readTimeout = d } }

// OnUpdate вызывается для каждого обновления, изменившего строку.
func OnUpdate(fn func(Update)) Option { return func(c *Client) { c.onUpdate = fn } }

// OnSnapshot вызывается после каждой загрузки снапшота.
func OnSnapshot(fn func([]Row)) Option { return func(c *Client) { c.onSnapshot = fn } }

func NewClient(baseURL, token string, view *View, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if view == nil {
		view = NewView()
	}
	c := &Client{
		baseURL:     u,
		token:       token,
		view:        view,
		http:        &http.Client{Timeout: 15 * time.Second},
		dialer:      websocket.DefaultDialer,
		log:         slog.Default(),
		minBackoff:  500 * time.Millisecond,
		maxBackoff:  30 * time.Second,
		readTimeout: 90 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) View() *View { return c.view }

// Run держит представление в актуальном состоянии до отмены ctx:
// подписка на поток, снапшот, применение обновлений; при обрыве — backoff и всё заново.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.minBackoff
	for {
		established, err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if established {
			backoff = c.minBackoff
		}
		c.log.Warn("live stream lost, reconnecting", "err", err, "backoff", backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

// runOnce: сначала подписка, потом снапшот — события между ними ждут в очереди сессии.
func (c *Client) runOnce(ctx context.Context) (bool, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	first, err := c.read(conn)
	if err != nil {
		return false, err
	}
	if first.Type != TypeConnected {
		return false, fmt.Errorf("%w: unexpected first message %q", ErrStreamDisconnected, first.Type)
	}

	rows, err := c.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	c.view.Load(rows)
	if c.onSnapshot != nil {
		c.onSnapshot(rows)
	}

	for {
		u, err := c.read(conn)
		if err != nil {
			return true, err
		}
		if c.view.Apply(u) && c.onUpdate != nil {
			c.onUpdate(u)
		}
	}
}

func (c *Client) read(conn *websocket.Conn) (Update, error) {
	_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrStreamDisconnected, err)
	}
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		// нераспознанный кадр — не ошибка потока
		c.log.Debug("skip undecodable live message", "err", err)
		return Update{Type: TypeHeartbeat}, nil
	}
	return u, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += streamPath
	q := url.Values{}
	q.Set("access_token", c.token)
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial: %v (status %d)", ErrStreamDisconnected, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial: %v", ErrStreamDisconnected, err)
	}
	return conn, nil
}

type snapshotEnvelope struct {
	Data  []Row `json:"data"`
	Error *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// Snapshot запрашивает полный список строк.
func (c *Client) Snapshot(ctx context.Context) ([]Row, error) {
	u := *c.baseURL
	u.Path += snapshotPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer resp.Body.Close()

	var env snapshotEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if env.Error != nil {
			return nil, fmt.Errorf("snapshot: %s: %s", env.Error.Kind, env.Error.Message)
		}
		return nil, fmt.Errorf("snapshot: status %d", resp.StatusCode)
	}
	return env.Data, nil
}
