package subscriber

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-zeromq/zmq4"
	"github.com/redis/go-redis/v9"

	"apex-learner/internal/transport"
)

// Source yields raw published parameter messages in arrival order.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

var ErrSourceClosed = errors.New("source closed")

type ZMQSource struct {
	sock   zmq4.Socket
	reader *transport.SocketReader
	cancel context.CancelFunc
}

// NewZMQSource connects a SUB socket to endpoint and subscribes to every
// message. Messages published before the subscription propagates are lost.
func NewZMQSource(ctx context.Context, endpoint string) (*ZMQSource, error) {
	ctx, cancel := context.WithCancel(ctx)
	sock := zmq4.NewSub(ctx)
	if err := sock.Dial(endpoint); err != nil {
		cancel()
		_ = sock.Close()
		return nil, fmt.Errorf("dial sub socket %s: %w", endpoint, err)
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		cancel()
		_ = sock.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return &ZMQSource{sock: sock, reader: transport.NewSocketReader(sock), cancel: cancel}, nil
}

// Next returns the next broadcast message. A message arriving after a
// cancelled Next is returned by the following call.
func (s *ZMQSource) Next(ctx context.Context) ([]byte, error) {
	msg, err := s.reader.Recv(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("receive: %w", err)
	}
	if len(msg.Frames) == 0 {
		return nil, errors.New("receive: empty message")
	}
	return msg.Frames[0], nil
}

func (s *ZMQSource) Close() error {
	s.cancel()
	return s.sock.Close()
}

// RedisSource reads from a Redis pub/sub channel.
type RedisSource struct {
	client *redis.Client
	pubsub *redis.PubSub
	msgs   <-chan *redis.Message
}

func NewRedisSource(ctx context.Context, url, channel string) (*RedisSource, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if channel == "" {
		return nil, errors.New("redis channel is required")
	}

	client := redis.NewClient(opts)
	pubsub := client.Subscribe(ctx, channel)
	// Receive blocks until the subscription is confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return &RedisSource{client: client, pubsub: pubsub, msgs: pubsub.Channel()}, nil
}

func (s *RedisSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-s.msgs:
		if !ok {
			return nil, ErrSourceClosed
		}
		return []byte(msg.Payload), nil
	}
}

func (s *RedisSource) Close() error {
	return errors.Join(s.pubsub.Close(), s.client.Close())
}
