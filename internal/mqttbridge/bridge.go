package mqttbridge

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/freesat/internal/freesat"
	"github.com/muurk/freesat/internal/logging"
)

const (
	// DefaultPollInterval is how often power states are polled
	DefaultPollInterval = 5 * time.Second

	// commandTimeout bounds a single key or code command
	commandTimeout = 30 * time.Second

	// commandQueueSize is how many commands may wait behind the one a box
	// is executing
	commandQueueSize = 16

	qos = 1
)

// Remote is the part of the Freesat client the bridge drives
type Remote interface {
	SendKeys(ctx context.Context, identity, keys string) error
	SendCode(ctx context.Context, identity string, code int) (*freesat.KeyResponse, error)
	PowerStatus(ctx context.Context, identity string) (*freesat.PowerStatus, error)
}

// PowerMessage is the retained payload of the power topic
type PowerMessage struct {
	State           string `json:"state"`
	TransitioningTo string `json:"transitioning_to,omitempty"`
	Error           string `json:"error,omitempty"`
	Timestamp       string `json:"timestamp"`
}

// AckMessage reports the outcome of a command
type AckMessage struct {
	Command   string `json:"command"`
	Payload   string `json:"payload"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// StateUnavailable is published when the power state cannot be read
const StateUnavailable = "unavailable"

type command struct {
	kind    string
	payload []byte
}

// Bridge relays MQTT commands to Freesat boxes and publishes their power
// state
type Bridge struct {
	broker       Broker
	remote       Remote
	topics       Topics
	devices      []string
	pollInterval time.Duration

	mu   sync.Mutex
	last map[string]PowerMessage
	ctx  context.Context
}

// New creates a bridge for devices
func New(broker Broker, remote Remote, topics Topics, devices []string, pollInterval time.Duration) *Bridge {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Bridge{
		broker:       broker,
		remote:       remote,
		topics:       topics,
		devices:      devices,
		pollInterval: pollInterval,
		last:         make(map[string]PowerMessage),
		ctx:          context.Background(),
	}
}

// Run subscribes to the command topics, announces the bridge and polls
// power states until ctx is cancelled. Each box gets a worker that executes
// its commands in arrival order, so broker callbacks only queue work.
func (b *Bridge) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	workCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	for _, identity := range b.devices {
		id := identity
		queue := make(chan command, commandQueueSize)
		workers.Add(1)
		go func() {
			defer workers.Done()
			b.work(workCtx, id, queue)
		}()

		if err := b.broker.Subscribe(b.topics.KeysSet(id), qos, func(_ string, payload []byte) {
			b.enqueue(workCtx, id, queue, command{kind: "keys", payload: payload})
		}); err != nil {
			return err
		}
		if err := b.broker.Subscribe(b.topics.CodeSet(id), qos, func(_ string, payload []byte) {
			b.enqueue(workCtx, id, queue, command{kind: "code", payload: payload})
		}); err != nil {
			return err
		}
	}

	if err := b.broker.Publish(b.topics.Status(), qos, true, []byte(StatusOnline)); err != nil {
		return err
	}

	logging.Info("MQTT bridge running",
		zap.String("prefix", b.topics.Prefix),
		zap.Strings("devices", b.devices),
		zap.Duration("poll_interval", b.pollInterval),
	)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	b.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			stopWorkers()
			workers.Wait()
			if err := b.broker.Publish(b.topics.Status(), qos, true, []byte(StatusOffline)); err != nil {
				logging.Warn("Failed to publish offline status", zap.Error(err))
			}
			return nil
		case <-ticker.C:
			b.PollOnce(ctx)
		}
	}
}

// enqueue hands cmd to the box's worker without blocking the caller, which
// is the broker's delivery goroutine
func (b *Bridge) enqueue(ctx context.Context, identity string, queue chan<- command, cmd command) {
	if ctx.Err() != nil {
		return
	}
	cmd.payload = append([]byte(nil), cmd.payload...)

	select {
	case queue <- cmd:
	default:
		payload := strings.TrimSpace(string(cmd.payload))
		logging.Warn("Dropping MQTT command, queue full",
			zap.String("identity", identity),
			zap.String("command", cmd.kind),
			zap.String("payload", payload),
		)
		go b.ackError(identity, cmd.kind, payload, "too many pending commands")
	}
}

func (b *Bridge) work(ctx context.Context, identity string, queue <-chan command) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-queue:
			switch cmd.kind {
			case "keys":
				b.handleKeys(identity, cmd.payload)
			case "code":
				b.handleCode(identity, cmd.payload)
			}
		}
	}
}

// PollOnce reads every device's power state and publishes the ones that
// changed since the last publish
func (b *Bridge) PollOnce(ctx context.Context) {
	for _, identity := range b.devices {
		if ctx.Err() != nil {
			return
		}
		msg := b.readPower(ctx, identity)
		if ctx.Err() != nil {
			return
		}
		if !b.changed(identity, msg) {
			continue
		}

		data, err := json.Marshal(msg)
		if err != nil {
			logging.Error("Failed to marshal power state", zap.Error(err))
			continue
		}
		if err := b.broker.Publish(b.topics.Power(identity), qos, true, data); err != nil {
			logging.Warn("Failed to publish power state",
				zap.String("identity", identity),
				zap.Error(err),
			)
			b.forget(identity)
		}
	}
}

func (b *Bridge) readPower(ctx context.Context, identity string) PowerMessage {
	now := time.Now().UTC().Format(time.RFC3339)
	status, err := b.remote.PowerStatus(ctx, identity)
	if err != nil {
		logging.Debug("Power poll failed",
			zap.String("identity", identity),
			zap.Error(err),
		)
		return PowerMessage{State: StateUnavailable, Error: freesat.GetShortErrorMessage(err), Timestamp: now}
	}
	return PowerMessage{State: status.State(), TransitioningTo: status.Power.TransitioningTo, Timestamp: now}
}

// changed records msg as the latest state and reports whether it differs
// from the previous one
func (b *Bridge) changed(identity string, msg PowerMessage) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, ok := b.last[identity]
	if ok && prev.State == msg.State && prev.TransitioningTo == msg.TransitioningTo && prev.Error == msg.Error {
		return false
	}
	b.last[identity] = msg
	return true
}

func (b *Bridge) forget(identity string) {
	b.mu.Lock()
	delete(b.last, identity)
	b.mu.Unlock()
}

func (b *Bridge) commandContext() (context.Context, context.CancelFunc) {
	b.mu.Lock()
	parent := b.ctx
	b.mu.Unlock()
	return context.WithTimeout(parent, commandTimeout)
}

func (b *Bridge) handleKeys(identity string, payload []byte) {
	keys := strings.TrimSpace(string(payload))
	if keys == "" {
		b.ack(identity, "keys", keys, freesat.NewUnknownKeyError(identity, ""))
		return
	}

	ctx, cancel := b.commandContext()
	defer cancel()

	err := b.remote.SendKeys(ctx, identity, keys)
	b.ack(identity, "keys", keys, err)
}

func (b *Bridge) handleCode(identity string, payload []byte) {
	raw := strings.TrimSpace(string(payload))
	code, err := strconv.Atoi(raw)
	if err != nil || code < 0 {
		logging.Warn("Ignoring invalid key code",
			zap.String("identity", identity),
			zap.String("payload", raw),
		)
		b.ackError(identity, "code", raw, "invalid key code")
		return
	}

	ctx, cancel := b.commandContext()
	defer cancel()

	resp, err := b.remote.SendCode(ctx, identity, code)
	if err == nil && !resp.Accepted() {
		err = freesat.NewKeyRejectedError(identity, raw, resp.StatusCode, []byte(resp.Body))
	}
	b.ack(identity, "code", raw, err)
}

func (b *Bridge) ack(identity, command, payload string, err error) {
	if err != nil {
		logging.Warn("MQTT command failed",
			zap.String("identity", identity),
			zap.String("command", command),
			zap.String("payload", payload),
			zap.Error(err),
		)
		b.ackError(identity, command, payload, freesat.GetShortErrorMessage(err))
		return
	}
	b.publishAck(identity, AckMessage{Command: command, Payload: payload, OK: true})
}

func (b *Bridge) ackError(identity, command, payload, reason string) {
	b.publishAck(identity, AckMessage{Command: command, Payload: payload, Error: reason})
}

func (b *Bridge) publishAck(identity string, msg AckMessage) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := b.broker.Publish(b.topics.Ack(identity), qos, false, data); err != nil {
		logging.Warn("Failed to publish ack",
			zap.String("identity", identity),
			zap.Error(err),
		)
	}
}
