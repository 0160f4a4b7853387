package broker

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gmallard/stompngo"
	"github.com/sirupsen/logrus"

	"github.com/aprsworld/ingestd/internal/apperrors"
)

// reconnectBackoff is the fixed sleep after a receive error reported on the
// subscription channel. The subscription goroutine then goes on reading the
// same channel; it does not redial, reconnect or resubscribe.
const reconnectBackoff = 2 * time.Second

// stompBroker implements Broker over a single stompngo connection.
type stompBroker struct {
	addr  string
	login string
	pass  string
	conn  *stompngo.Connection
	log   *logrus.Entry
}

// Dial opens a TCP connection to addr and negotiates a STOMP session.
func Dial(ctx context.Context, addr, login, pass string, log *logrus.Entry) (Broker, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "broker.stomp")

	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeBroker, "failed to dial broker")
	}

	conn, err := stompngo.Connect(nc, stompngo.Headers{"login", login, "passcode", pass})
	if err != nil {
		nc.Close()
		return nil, apperrors.Wrap(err, apperrors.TypeBroker, "failed to connect STOMP session")
	}

	return &stompBroker{addr: addr, login: login, pass: pass, conn: conn, log: log}, nil
}

func (b *stompBroker) Subscribe(ctx context.Context, destination, subscriptionID string, prefetch int, heartBeat string) (<-chan Frame, error) {
	headers := stompngo.Headers{
		"destination", destination,
		"id", subscriptionID,
		"ack", "client-individual",
		"prefetch-count", strconv.Itoa(prefetch),
		"heart-beat", heartBeat,
	}

	msgs, err := b.conn.Subscribe(headers)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeBroker, "failed to subscribe")
	}

	out := make(chan Frame)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case md, ok := <-msgs:
				if !ok {
					return
				}
				if md.Error != nil {
					b.log.WithError(md.Error).Warn("broker receive error, retrying after backoff")
					time.Sleep(reconnectBackoff)
					continue
				}
				out <- Frame{
					Body:           string(md.Message.Body),
					MessageID:      headerValue(md.Message.Headers, "message-id"),
					SubscriptionID: subscriptionID,
				}
			}
		}
	}()
	return out, nil
}

func (b *stompBroker) Ack(ctx context.Context, messageID, subscriptionID string) error {
	err := b.conn.Ack(stompngo.Headers{"id", messageID, "subscription", subscriptionID})
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeBroker, "failed to ack frame")
	}
	return nil
}

func (b *stompBroker) Publish(ctx context.Context, destination, body string) error {
	err := b.conn.Send(stompngo.Headers{"destination", destination, "content-type", "text/plain"}, body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeBroker, "failed to publish")
	}
	return nil
}

func (b *stompBroker) Close() error {
	_ = b.conn.Disconnect(stompngo.Headers{})
	return nil
}

func headerValue(h stompngo.Headers, key string) string {
	for i := 0; i+1 < len(h); i += 2 {
		if h[i] == key {
			return h[i+1]
		}
	}
	return ""
}
