package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pickup-market/internal/general/config"
	"pickup-market/internal/general/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	minRedial = time.Second
	maxRedial = 30 * time.Second
)

// session is one live connection plus its confirm-mode publishing channel.
type session struct {
	conn     *amqp.Connection
	pub      *amqp.Channel
	confirms chan amqp.Confirmation
}

func (s *session) usable() bool {
	return s != nil && !s.conn.IsClosed() && !s.pub.IsClosed()
}

func (s *session) close() {
	if s == nil {
		return
	}
	_ = s.pub.Close()
	_ = s.conn.Close()
}

// Client keeps one session to the broker alive and redials when it drops.
type Client struct {
	url    string
	logger *logger.Logger
	logCtx context.Context

	mu   sync.RWMutex
	sess *session

	// serializes publish+confirm pairs on the shared channel
	pubMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	lost      chan struct{}
}

// ConnectRabbitMQ dials once and starts the redial loop. A failed first dial is returned
// to the caller so the agent can decide whether to run without the fanout.
func ConnectRabbitMQ(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Client, error) {
	client := &Client{
		url:    fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port),
		logger: logger,
		logCtx: context.WithoutCancel(ctx),
		closed: make(chan struct{}),
		lost:   make(chan struct{}, 1),
	}

	if err := client.dial(); err != nil {
		return nil, err
	}
	go client.redialLoop()

	return client, nil
}

// Close stops redialing and tears down the current session.
func (client *Client) Close() {
	client.closeOnce.Do(func() { close(client.closed) })

	client.mu.Lock()
	sess := client.sess
	client.sess = nil
	client.mu.Unlock()

	sess.close()
}

func (client *Client) current() *session {
	client.mu.RLock()
	defer client.mu.RUnlock()
	return client.sess
}

// dial opens a connection, declares the location exchange and installs the new session.
func (client *Client) dial() error {
	conn, err := amqp.DialConfig(client.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(15 * time.Second),
	})
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_dial_failed", "Failed to dial RabbitMQ", err, nil)
		return fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	sess, err := openSession(conn)
	if err != nil {
		_ = conn.Close()
		client.logger.Error(client.logCtx, "rabbitmq_session_failed", "Failed to prepare RabbitMQ session", err, nil)
		return err
	}

	client.mu.Lock()
	prev := client.sess
	client.sess = sess
	client.mu.Unlock()
	prev.close()

	go client.watchSession(sess)

	client.logger.Info(client.logCtx, "rabbitmq_connected", "RabbitMQ session ready", nil)
	return nil
}

func openSession(conn *amqp.Connection) (*session, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	return &session{
		conn:     conn,
		pub:      ch,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
	}, nil
}

// watchSession signals the redial loop once the session's connection or channel closes.
func (client *Client) watchSession(sess *session) {
	connClosed := sess.conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := sess.pub.NotifyClose(make(chan *amqp.Error, 1))

	var reason *amqp.Error
	select {
	case <-client.closed:
		return
	case reason = <-connClosed:
	case reason = <-chClosed:
	}

	// replaced by a newer session or closed by Close
	if client.current() != sess {
		return
	}

	if reason != nil {
		client.logger.Error(client.logCtx, "rabbitmq_session_lost", "RabbitMQ session closed", reason, nil)
	}

	select {
	case client.lost <- struct{}{}:
	default:
	}
}

func (client *Client) redialLoop() {
	for {
		select {
		case <-client.closed:
			return
		case <-client.lost:
		}

		wait := minRedial
		for {
			select {
			case <-client.closed:
				return
			default:
			}

			if err := client.dial(); err == nil {
				client.logger.Info(client.logCtx, "rabbitmq_reconnected", "Reconnected to RabbitMQ", nil)
				break
			}

			select {
			case <-client.closed:
				return
			case <-time.After(wait):
			}
			wait = min(wait*2, maxRedial)
		}
	}
}
