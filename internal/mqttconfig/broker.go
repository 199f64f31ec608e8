// Package mqttconfig implements the mqtt-broker config node: a
// shared, reference-counted external connection that mqtt in/out user
// nodes attach to by id. The config node owns the connection
// exclusively; the last user's removal tears it down.
package mqttconfig

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rauldose/node-red-new-sub000/internal/rtlog"
)

// Message is the (topic, bytes, retained, qos) tuple a subscribed
// mqtt in node receives.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
	QoS      byte
}

// Broker owns one paho client shared by every mqtt in/out node that
// references it. Users are reference-counted; the underlying
// connection is closed when the last user detaches.
type Broker struct {
	ID       string
	URL      string
	ClientID string

	mu        sync.Mutex
	client    mqtt.Client
	users     int
	log       *rtlog.Logger
}

// Config is the subset of raw wire-format fields a mqtt-broker config
// node needs.
type Config struct {
	ID              string
	Broker          string // host:port
	ClientID        string
	Username        string
	Password        string
	ReconnectBackoff time.Duration
}

// New constructs (but does not yet connect) a Broker.
func New(cfg Config, log *rtlog.Logger) *Broker {
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * cfg.ReconnectBackoff).
		SetConnectRetry(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	b := &Broker{ID: cfg.ID, URL: cfg.Broker, ClientID: cfg.ClientID, log: log}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if log != nil {
			log.Warn(fmt.Sprintf("mqtt-broker %s: connection lost: %v", b.ID, err))
		}
	})
	b.client = mqtt.NewClient(opts)
	return b
}

// Attach increments the user count, connecting on the first attach.
func (b *Broker) Attach() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users++
	if b.users == 1 {
		token := b.client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			b.users--
			return fmt.Errorf("mqttconfig: connect %s: %w", b.URL, err)
		}
	}
	return nil
}

// Detach decrements the user count, disconnecting once it reaches
// zero.
func (b *Broker) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.users == 0 {
		return
	}
	b.users--
	if b.users == 0 && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
}

// Subscribe attaches a handler for topic at qos, forwarding every
// received publish to onMsg.
func (b *Broker) Subscribe(topic string, qos byte, onMsg func(Message)) error {
	token := b.client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		onMsg(Message{Topic: m.Topic(), Payload: m.Payload(), Retained: m.Retained(), QoS: m.Qos()})
	})
	token.Wait()
	return token.Error()
}

// Unsubscribe removes a previously registered subscription.
func (b *Broker) Unsubscribe(topic string) error {
	token := b.client.Unsubscribe(topic)
	token.Wait()
	return token.Error()
}

// Publish sends payload to topic at qos, optionally retained.
func (b *Broker) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := b.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

// Registry is the process-wide id->Broker lookup mqtt in/out node
// constructors use to resolve their configured broker. It is a plain
// explicit dependency, constructed once in cmd/server/main.go and
// passed to every mqtt-related constructor, never a package-level
// global.
type Registry struct {
	mu       sync.Mutex
	brokers  map[string]*Broker
	log      *rtlog.Logger
}

// NewRegistry creates an empty broker registry.
func NewRegistry(log *rtlog.Logger) *Registry {
	return &Registry{brokers: make(map[string]*Broker), log: log}
}

// Put registers (or replaces) the broker for a config node id. Called
// from the mqtt-broker node's Initialize.
func (r *Registry) Put(id string, b *Broker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brokers[id] = b
}

// Get resolves a broker by config node id.
func (r *Registry) Get(id string) (*Broker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.brokers[id]
	return b, ok
}

// Remove drops a broker from the registry (on its config node's
// removal).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.brokers, id)
}
