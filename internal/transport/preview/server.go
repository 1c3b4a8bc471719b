package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelkit.ai/internal/palette"
	"voxelkit.ai/internal/previewproto"
	"voxelkit.ai/internal/render/extract"
	"voxelkit.ai/internal/terrain"
	"voxelkit.ai/internal/volume"
)

// Frame is the latest terrain a viewer should draw.
type Frame struct {
	BuildID   string
	Name      string
	Revision  uint64
	Origin    [3]float32
	Extent    [3]uint32
	Palette   *palette.Palette
	Segments  []volume.Segment
	Instances []extract.Instance
}

// FrameFor extracts the merged terrain through cache, which must already
// point at t.Merged.
func FrameFor(buildID string, t *terrain.Terrain, cache *extract.Cache) Frame {
	m := t.Merged
	origin := m.Placement().Col(3).Vec3()
	ext := m.Extent()
	return Frame{
		BuildID:   buildID,
		Name:      t.Name,
		Revision:  m.Revision(),
		Origin:    [3]float32{origin[0], origin[1], origin[2]},
		Extent:    [3]uint32{ext.X, ext.Y, ext.Z},
		Palette:   t.Palette,
		Segments:  m.Segments(),
		Instances: cache.Instances(),
	}
}

type subscriber struct {
	maxInstances int
	out          chan []byte
}

type Server struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu     sync.Mutex
	latest *Frame
	subs   map[string]*subscriber
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[string]*subscriber{},
	}
}

// Publish replaces the latest frame and pushes it to every subscriber.
// Subscribers that are still busy with an earlier frame skip this one.
func (s *Server) Publish(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &f
	for id, sub := range s.subs {
		b, err := encodeFrame(f, sub.maxInstances)
		if err != nil {
			s.log.Printf("preview: encode frame: %v", err)
			return
		}
		select {
		case sub.out <- b:
		default:
			s.log.Printf("preview: %s is behind, dropped frame rev=%d", id, f.Revision)
		}
	}
}

// Subscribers reports the number of connected viewers.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		resp := previewproto.BootstrapResponse{ProtocolVersion: previewproto.Version}
		s.mu.Lock()
		if f := s.latest; f != nil {
			resp.Name = f.Name
			resp.BuildID = f.BuildID
			resp.Revision = f.Revision
			if f.Palette != nil {
				resp.Palette = make([]string, palette.Size)
				for i := range resp.Palette {
					resp.Palette[i] = f.Palette.Hex(volume.MaterialRef(i))
				}
			}
		}
		s.mu.Unlock()

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub previewproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != previewproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		normalizeSubscribe(&sub)

		sid := fmt.Sprintf("P%d", s.nextID.Add(1))
		out := make(chan []byte, 4)
		s.register(sid, &subscriber{maxInstances: sub.MaxInstances, out: out})
		defer s.unregister(sid)
		s.log.Printf("preview: %s subscribed max_instances=%d", sid, sub.MaxInstances)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var upd previewproto.SubscribeMsg
			if err := json.Unmarshal(msg, &upd); err != nil {
				continue
			}
			if upd.Type != "SUBSCRIBE" || upd.ProtocolVersion != previewproto.Version {
				continue
			}
			normalizeSubscribe(&upd)
			s.mu.Lock()
			if cur, ok := s.subs[sid]; ok {
				cur.maxInstances = upd.MaxInstances
			}
			s.mu.Unlock()
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// register adds the subscriber and queues the latest frame for it under the
// same lock, so it cannot miss or reorder a concurrent Publish.
func (s *Server) register(id string, sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id] = sub
	if s.latest == nil {
		return
	}
	b, err := encodeFrame(*s.latest, sub.maxInstances)
	if err != nil {
		s.log.Printf("preview: encode frame: %v", err)
		return
	}
	sub.out <- b
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

func encodeFrame(f Frame, maxInstances int) ([]byte, error) {
	inst := f.Instances
	if len(inst) > maxInstances {
		inst = inst[:maxInstances]
	}
	if inst == nil {
		inst = []extract.Instance{}
	}
	return json.Marshal(previewproto.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: previewproto.Version,
		BuildID:         f.BuildID,
		Name:            f.Name,
		Revision:        f.Revision,
		Origin:          f.Origin,
		Extent:          f.Extent,
		Encoding:        previewproto.SegmentEncoding,
		Segments:        previewproto.EncodeSegments(f.Segments),
		Total:           len(f.Instances),
		Instances:       inst,
	})
}

func normalizeSubscribe(sub *previewproto.SubscribeMsg) {
	if sub.MaxInstances <= 0 {
		sub.MaxInstances = 65536
	}
	if sub.MaxInstances > 1<<20 {
		sub.MaxInstances = 1 << 20
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
