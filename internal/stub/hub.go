package stub

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type push struct {
	userID int
	field  string
	data   any
}

// Hub fans pushed events out to the sockets of their target user. All
// bookkeeping happens on the Run goroutine.
type Hub struct {
	log    *logrus.Entry
	conns  map[int]map[*wsConn]struct{}
	active atomic.Int64

	RegisterCh   chan *wsConn
	UnregisterCh chan *wsConn
	broadcastCh  chan push
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// NewHub returns an idle hub; start it with go hub.Run().
func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		log:          log,
		conns:        make(map[int]map[*wsConn]struct{}),
		RegisterCh:   make(chan *wsConn),
		UnregisterCh: make(chan *wsConn),
		broadcastCh:  make(chan push, 256),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Publish queues data for every subscription to field held by userID.
func (h *Hub) Publish(userID int, field string, data any) {
	select {
	case h.broadcastCh <- push{userID: userID, field: field, data: data}:
	case <-h.stopCh:
	}
}

// Stop disconnects every socket and ends Run.
func (h *Hub) Stop() {
	select {
	case <-h.stopCh:
		return
	default:
	}
	close(h.stopCh)
	<-h.doneCh
}

// Run is the hub loop.
func (h *Hub) Run() {
	defer close(h.doneCh)
	for {
		select {
		case c := <-h.RegisterCh:
			if h.conns[c.userID] == nil {
				h.conns[c.userID] = make(map[*wsConn]struct{})
			}
			h.conns[c.userID][c] = struct{}{}
			h.log.WithField("user_id", c.userID).Debug("socket registered")

		case c := <-h.UnregisterCh:
			h.remove(c)

		case p := <-h.broadcastCh:
			for c := range h.conns[p.userID] {
				if !c.push(p.field, p.data) {
					h.log.WithField("user_id", c.userID).Warn("slow socket dropped")
					h.remove(c)
				}
			}

		case <-h.stopCh:
			for _, set := range h.conns {
				for c := range set {
					c.close()
				}
			}
			h.conns = nil
			return
		}
	}
}

func (h *Hub) remove(c *wsConn) {
	set := h.conns[c.userID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.userID)
	}
	c.close()
}
