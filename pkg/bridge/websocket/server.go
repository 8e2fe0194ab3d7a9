// Package websocket streams keyboard pack events to browsers.
package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/owb.go/pkg/framework"
	"github.com/robotalks/owb.go/pkg/kb"
)

// DefaultQueueSize is the number of events buffered per client.
const DefaultQueueSize = 64

// Message is sent to clients for each event.
type Message struct {
	Kind  string   `json:"kind"`
	Event kb.Event `json:"event"`
}

// Server is a kb.EventSink serving events over websocket on /events.
// A client which can't keep up is disconnected.
type Server struct {
	Addr      string
	QueueSize int
	// Status, if set, is sent to clients when they connect.
	Status func() kb.Status

	lock    sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	addr    string
	eventCh chan kb.Event
	once    sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.eventCh)
	})
}

// NewServer creates a Server listening on addr when run.
func NewServer(addr string) *Server {
	return &Server{
		Addr:      addr,
		QueueSize: DefaultQueueSize,
		clients:   make(map[*client]struct{}),
	}
}

// Handler returns the http.Handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/events", websocket.Handler(s.serveConn))
	return mux
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.clients)
}

// Emit implements kb.EventSink.
func (s *Server) Emit(ctx context.Context, ev kb.Event) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.clients {
		select {
		case c.eventCh <- ev:
		default:
			glog.Warningf("websocket client %s too slow, disconnect", c.addr)
			delete(s.clients, c)
			c.close()
		}
	}
}

func (s *Server) serveConn(conn *websocket.Conn) {
	size := s.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	c := &client{addr: conn.Request().RemoteAddr, eventCh: make(chan kb.Event, size)}
	if fn := s.Status; fn != nil {
		c.eventCh <- &kb.StatusEvent{Status: fn()}
	}
	s.lock.Lock()
	s.clients[c] = struct{}{}
	s.lock.Unlock()
	glog.V(1).Infof("websocket client %s connected", c.addr)

	// reading detects the client going away.
	go func() {
		var msg []byte
		for websocket.Message.Receive(conn, &msg) == nil {
		}
		s.lock.Lock()
		delete(s.clients, c)
		s.lock.Unlock()
		c.close()
	}()

	for ev := range c.eventCh {
		if err := websocket.JSON.Send(conn, &Message{Kind: ev.Kind(), Event: ev}); err != nil {
			glog.V(1).Infof("websocket send: %v", err)
			break
		}
	}
	conn.Close()
	glog.V(1).Infof("websocket client %s disconnected", c.addr)
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.Addr, Handler: s.Handler()}
	glog.Infof("websocket listening on %s", s.Addr)
	err := fx.RunWithContextCancel(ctx, func() { srv.Close() }, srv.ListenAndServe)
	if err == http.ErrServerClosed {
		return ctx.Err()
	}
	return err
}
