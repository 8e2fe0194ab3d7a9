package mqtt

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/owb.go/pkg/kb"
)

// Topic suffixes.
const (
	TopicOnline    = "online"
	TopicStatus    = "status"
	TopicEvent     = "event"
	TopicCmd       = "cmd"
	TopicCmdResult = "cmd/result"
)

// HexBytes is a byte slice encoded as a hex string in JSON.
type HexBytes []byte

// MarshalJSON implements json.Marshaler.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(str)
	if err != nil {
		return fmt.Errorf("invalid hex payload: %w", err)
	}
	*b = decoded
	return nil
}

// CommandRequest asks for a raw packet to be sent to the accessory.
type CommandRequest struct {
	ID      string   `json:"id,omitempty"`
	Payload HexBytes `json:"payload"`
	Reply   bool     `json:"reply,omitempty"`
}

// CommandResult is the outcome of a CommandRequest.
type CommandResult struct {
	ID      string   `json:"id,omitempty"`
	Payload HexBytes `json:"payload"`
	Reply   HexBytes `json:"reply,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// pubsub is the part of Queue used by Publisher.
type pubsub interface {
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
	Sub(topic string, handler MessageHandler) *Subscription
}

// Publisher publishes device events and runs remote commands.
type Publisher struct {
	ID string

	queue   pubsub
	link    kb.Transferer
	cmdCh   chan CommandRequest
	connect func(context.Context) error
}

// NewPublisher creates a Publisher on queue. link may be nil to disable
// remote commands.
func NewPublisher(queue *Queue, id string, link kb.Transferer) *Publisher {
	p := newPublisher(queue, id, link)
	p.connect = queue.Connect
	queue.OnConnect = func(*Queue) { p.pubOnline(true) }
	return p
}

func newPublisher(queue pubsub, id string, link kb.Transferer) *Publisher {
	return &Publisher{
		ID:    id,
		queue: queue,
		link:  link,
		cmdCh: make(chan CommandRequest, 8),
	}
}

// WillOptions sets the last will so the device shows offline when the
// connection drops. It's meant for NewQueueFromURL.
func WillOptions(id string) func(*paho.ClientOptions, string) {
	return func(opts *paho.ClientOptions, topicPrefix string) {
		opts.SetBinaryWill(topicPrefix+id+"/"+TopicOnline, []byte("false"), 1, true)
	}
}

func (p *Publisher) topic(suffix string) string {
	return p.ID + "/" + suffix
}

func (p *Publisher) pubJSON(suffix string, v interface{}, retain bool) {
	data, err := json.Marshal(v)
	if err != nil {
		glog.Errorf("encode %s: %v", suffix, err)
		return
	}
	var qos byte
	if retain {
		qos = 1
	}
	p.queue.PubWith(p.topic(suffix), data, qos, retain)
}

func (p *Publisher) pubOnline(online bool) paho.Token {
	return p.queue.PubWith(p.topic(TopicOnline), []byte(fmt.Sprint(online)), 1, true)
}

// Emit implements kb.EventSink.
func (p *Publisher) Emit(ctx context.Context, ev kb.Event) {
	if st, ok := ev.(*kb.StatusEvent); ok {
		p.pubJSON(TopicStatus, st.Status, true)
	}
	p.pubJSON(TopicEvent+"/"+ev.Kind(), ev, false)
}

// Run connects, serves commands until ctx is done, then goes offline.
func (p *Publisher) Run(ctx context.Context) error {
	if p.connect != nil {
		if err := p.connect(ctx); err != nil {
			return fmt.Errorf("MQTT connect: %w", err)
		}
	}
	if p.link != nil {
		sub := p.queue.Sub(p.topic(TopicCmd), p.handleCmd)
		defer sub.Close()
	}
	for {
		select {
		case req := <-p.cmdCh:
			p.pubJSON(TopicCmdResult, p.execute(ctx, req), false)
		case <-ctx.Done():
			p.pubOnline(false).Wait()
			return ctx.Err()
		}
	}
}

func (p *Publisher) handleCmd(topic string, payload []byte) {
	var req CommandRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		glog.Warningf("invalid command: %v", err)
		p.pubJSON(TopicCmdResult, &CommandResult{Error: err.Error()}, false)
		return
	}
	select {
	case p.cmdCh <- req:
	default:
		p.pubJSON(TopicCmdResult, &CommandResult{ID: req.ID, Payload: req.Payload, Error: "busy"}, false)
	}
}

func (p *Publisher) execute(ctx context.Context, req CommandRequest) *CommandResult {
	res := &CommandResult{ID: req.ID, Payload: req.Payload}
	reply, err := p.link.Transfer(ctx, req.Payload, req.Reply)
	if err != nil {
		glog.Warningf("command % x: %v", []byte(req.Payload), err)
		res.Error = err.Error()
		return res
	}
	res.Reply = reply
	return res
}
