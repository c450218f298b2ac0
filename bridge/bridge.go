// Package bridge carries framed commands over MQTT. Each message on the
// command topic holds exactly one command; acknowledgements are published to
// the ack topic and a status snapshot is retained on the status topic.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/matt-g-everett/ledpanel/api"
	"github.com/matt-g-everett/ledpanel/config"
	"github.com/matt-g-everett/ledpanel/protocol"
)

var log = logging.Logger("bridge")

const qos = 1

// ConnectRetryInterval is the wait between attempts to reach the broker.
const ConnectRetryInterval = 10 * time.Second

// Executor runs decoded commands.
type Executor interface {
	Execute(cmd protocol.Command, w io.Writer) error
}

// Reporter produces status snapshots.
type Reporter interface {
	Snapshot() api.Snapshot
}

// Topics names the MQTT topics used by the bridge.
type Topics struct {
	Command string
	Ack     string
	Status  string
}

// Bridge connects an MQTT client to the command dispatcher.
type Bridge struct {
	client     mqtt.Client
	executor   Executor
	reporter   Reporter
	topics     Topics
	interval   time.Duration
	maxPayload uint32
}

// NewBridge creates a Bridge from the mqtt section of c. Call Subscribe from
// the client's connect handler.
func NewBridge(client mqtt.Client, e Executor, r Reporter, c config.Config) *Bridge {
	b := new(Bridge)
	b.client = client
	b.executor = e
	b.reporter = r
	b.topics = Topics{
		Command: c.Mqtt.Topics.Command,
		Ack:     c.Mqtt.Topics.Ack,
		Status:  c.Mqtt.Topics.Status,
	}
	b.interval = c.Mqtt.StatusInterval
	b.maxPayload = c.Server.MaxPayload
	return b
}

// ClientOptions returns paho options for the broker in c. The client keeps
// retrying the first connection as well as reconnecting after a loss.
func ClientOptions(c config.Config, onConnect mqtt.OnConnectHandler) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(c.Mqtt.URL).
		SetClientID("ledpanel-" + uuid.NewString()[:8]).
		SetUsername(c.Mqtt.Username).
		SetPassword(c.Mqtt.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(ConnectRetryInterval).
		SetOnConnectHandler(onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("connection lost: %v", err)
		})
}

// Subscribe listens on the command topic.
func (b *Bridge) Subscribe() {
	token := b.client.Subscribe(b.topics.Command, qos, b.onCommand)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Errorf("subscribe %s: %v", b.topics.Command, err)
		return
	}
	log.Infof("subscribed to %s", b.topics.Command)
}

func (b *Bridge) onCommand(_ mqtt.Client, msg mqtt.Message) {
	ack, err := b.Handle(msg.Payload())
	if err != nil {
		log.Debugf("%s: %v", msg.Topic(), err)
		return
	}
	if len(ack) == 0 {
		return
	}
	b.client.Publish(b.topics.Ack, qos, false, ack)
}

// Handle decodes and executes one framed command, returning the
// acknowledgement bytes, if any.
func (b *Bridge) Handle(payload []byte) ([]byte, error) {
	r := bytes.NewReader(payload)
	cmd, err := protocol.ReadCommand(r, b.maxPayload)
	if err != nil {
		return nil, err
	}
	if r.Len() > 0 {
		log.Warnf("%s: ignoring %d trailing bytes", cmd.Opcode, r.Len())
	}

	var ack bytes.Buffer
	if err := b.executor.Execute(cmd, &ack); err != nil {
		return nil, err
	}
	return ack.Bytes(), nil
}

// PublishStatus publishes a retained status snapshot.
func (b *Bridge) PublishStatus() error {
	data, err := json.Marshal(b.reporter.Snapshot())
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	token := b.client.Publish(b.topics.Status, qos, true, data)
	token.Wait()
	return token.Error()
}

// Run publishes the status every interval until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	if b.interval <= 0 {
		return
	}
	publishTimer := time.NewTicker(b.interval)
	defer publishTimer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-publishTimer.C:
			if !b.client.IsConnected() {
				continue
			}
			if err := b.PublishStatus(); err != nil {
				log.Warnf("publish status: %v", err)
			}
		}
	}
}
