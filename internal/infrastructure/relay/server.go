package relay

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/services"
	"liveclass/internal/signal"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Metrics is the hook the relay reports through. Implemented by the
// prometheus collector; a no-op implementation is used in tests.
type Metrics interface {
	ClientConnected(role domain.Role)
	ClientDisconnected(role domain.Role)
	MessageRouted(msgType signal.Type)
	RoomOpened()
	RoomClosed()
}

type noopMetrics struct{}

func (noopMetrics) ClientConnected(domain.Role)    {}
func (noopMetrics) ClientDisconnected(domain.Role) {}
func (noopMetrics) MessageRouted(signal.Type)      {}
func (noopMetrics) RoomOpened()                    {}
func (noopMetrics) RoomClosed()                    {}

// ServerConfig tunes connection keepalive and per-connection rate limits.
type ServerConfig struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	MaxStudents     int

	MessagesPerSecond float64
	MessageBurst      int
}

// Server relays signaling envelopes between the participants of a room. It
// never inspects SDP payloads; it authenticates joins, stamps senders,
// forwards targeted messages and keeps every client's roster current.
type Server struct {
	tokens  services.TokenService
	config  ServerConfig
	metrics Metrics

	rooms map[domain.RoomCode]*room
	mu    sync.RWMutex

	logger *zap.SugaredLogger
}

type room struct {
	code    domain.RoomCode
	clients map[domain.Username]*client
	live    bool
}

type client struct {
	conn  *websocket.Conn
	name  domain.Username
	role  domain.Role
	perms domain.PermissionSet

	limiter *rate.Limiter
	writeMu sync.Mutex
}

func NewServer(tokens services.TokenService, config ServerConfig, metrics Metrics, logger *zap.SugaredLogger) *Server {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.PongTimeout <= 0 {
		config.PongTimeout = 60 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	return &Server{
		tokens:  tokens,
		config:  config,
		metrics: metrics,
		rooms:   make(map[domain.RoomCode]*room),
		logger:  logger,
	}
}

// HandleWebSocket upgrades the connection and runs it until disconnect. The
// join token in the query string is the only identity the relay trusts.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		s.logger.Warnw("rejected connection with bad join token", "error", err)
		http.Error(w, "invalid join token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if s.config.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.config.MaxMessageBytes)
	}

	c := &client{
		conn: conn,
		name: claims.Username,
		role: claims.Role,
	}
	if s.config.MessagesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(s.config.MessagesPerSecond), s.config.MessageBurst)
	}

	if err := s.register(claims.Room, c); err != nil {
		s.logger.Warnw("registration refused",
			"room_code", claims.Room,
			"username", claims.Username,
			"error", err,
		)
		s.sendError(c, err.Error())
		return
	}
	defer s.unregister(claims.Room, c)

	s.metrics.ClientConnected(c.role)
	defer s.metrics.ClientDisconnected(c.role)

	s.logger.Infow("participant connected",
		"room_code", claims.Room,
		"username", c.name,
		"role", c.role,
	)

	conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.config.PingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan *signal.Envelope, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))

			env, err := signal.Decode(data)
			if err != nil {
				errorChan <- err
				return
			}
			messageChan <- env
		}
	}()

	for {
		select {
		case env := <-messageChan:
			if c.limiter != nil && !c.limiter.Allow() {
				s.logger.Warnw("rate limit exceeded, dropping message",
					"room_code", claims.Room,
					"username", c.name,
					"type", env.Type,
				)
				continue
			}
			if err := s.handleEnvelope(claims.Room, c, env); err != nil {
				s.logger.Infow("error handling message",
					"room_code", claims.Room,
					"username", c.name,
					"type", env.Type,
					"error", err,
				)
				s.sendError(c, err.Error())
			}

		case <-pingTicker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				s.logger.Infow("error sending ping", "username", c.name, "error", err)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading message", "username", c.name, "error", err)
			}
			return
		}
	}
}

func (s *Server) register(code domain.RoomCode, c *client) error {
	s.mu.Lock()
	rm, exists := s.rooms[code]
	if !exists {
		rm = &room{code: code, clients: make(map[domain.Username]*client)}
		s.rooms[code] = rm
		s.metrics.RoomOpened()
	}

	if c.role == domain.RoleStudent && s.config.MaxStudents > 0 {
		students := 0
		for _, other := range rm.clients {
			if other.role == domain.RoleStudent {
				students++
			}
		}
		if students >= s.config.MaxStudents {
			s.mu.Unlock()
			return domain.ErrPermissionDenied
		}
	}

	// A reconnecting participant replaces its old connection.
	if old, reconnect := rm.clients[c.name]; reconnect {
		old.conn.Close()
		s.logger.Infow("closing old connection for reconnecting participant",
			"room_code", code,
			"username", c.name,
		)
		c.perms = old.perms
	}
	rm.clients[c.name] = c
	live := rm.live
	s.mu.Unlock()

	joined := signal.ParticipantInfo{Username: c.name, Role: c.role, Permissions: c.perms}
	s.broadcast(code, &signal.Envelope{
		Type:         signal.TypeParticipantJoined,
		Participants: []signal.ParticipantInfo{joined},
	}, c.name)
	s.broadcastRoster(code)

	// A student joining a live lesson learns immediately that the teacher's
	// broadcast is up, so it can request the stream without waiting.
	if live && c.role == domain.RoleStudent {
		teacher := s.teacherOf(code)
		s.send(c, &signal.Envelope{Type: signal.TypeTeacherReady, From: teacher})
	}
	return nil
}

func (s *Server) unregister(code domain.RoomCode, c *client) {
	s.mu.Lock()
	rm, exists := s.rooms[code]
	if !exists {
		s.mu.Unlock()
		return
	}
	// Only remove if this connection is still the registered one; a
	// reconnect may have replaced it already.
	if current, ok := rm.clients[c.name]; !ok || current != c {
		s.mu.Unlock()
		return
	}
	delete(rm.clients, c.name)
	wasTeacher := c.role == domain.RoleTeacher
	if wasTeacher {
		rm.live = false
	}
	empty := len(rm.clients) == 0
	if empty {
		delete(s.rooms, code)
		s.metrics.RoomClosed()
	}
	s.mu.Unlock()

	s.logger.Infow("participant disconnected",
		"room_code", code,
		"username", c.name,
		"role", c.role,
	)
	if empty {
		return
	}

	s.broadcast(code, &signal.Envelope{Type: signal.TypeParticipantLeft, Username: c.name, From: c.name}, c.name)
	if wasTeacher {
		s.broadcast(code, &signal.Envelope{Type: signal.TypeStreamStopped, From: c.name, IsTeacher: true}, c.name)
	}
	s.broadcastRoster(code)
}

func (s *Server) handleEnvelope(code domain.RoomCode, c *client, env *signal.Envelope) error {
	// The sender's identity comes from its token, never from the payload.
	env.From = c.name
	s.metrics.MessageRouted(env.Type)

	switch env.Type {
	case signal.TypeJoin:
		// Registration already happened from the join token; the announce
		// is answered with a fresh roster.
		s.broadcastRoster(code)
		return nil

	case signal.TypeTeacherReady:
		if c.role != domain.RoleTeacher {
			return domain.ErrPermissionDenied
		}
		s.mu.Lock()
		if rm, ok := s.rooms[code]; ok {
			rm.live = true
		}
		s.mu.Unlock()
		s.broadcast(code, env, c.name)
		return nil

	case signal.TypeRequestStream:
		// Students pull the broadcast from the teacher.
		if env.Target == "" {
			env.Target = s.teacherOf(code)
		}
		return s.forward(code, env)

	case signal.TypeOffer, signal.TypeAnswer,
		signal.TypeStudentOffer, signal.TypeStudentAnswer,
		signal.TypeICECandidate:
		return s.forward(code, env)

	case signal.TypeGrantPermission:
		return s.handleGrantPermission(code, c, env)

	case signal.TypeStreamStopped:
		env.IsTeacher = c.role == domain.RoleTeacher
		if env.IsTeacher {
			s.mu.Lock()
			if rm, ok := s.rooms[code]; ok {
				rm.live = false
			}
			s.mu.Unlock()
		}
		if env.Target != "" {
			return s.forward(code, env)
		}
		s.broadcast(code, env, c.name)
		return nil

	case signal.TypeChat:
		s.broadcast(code, env, "")
		return nil

	default:
		// Roster and permission-changed messages originate here, never
		// from clients.
		s.logger.Debugw("ignoring client message of server-origin type",
			"username", c.name,
			"type", env.Type,
		)
		return nil
	}
}

func (s *Server) handleGrantPermission(code domain.RoomCode, c *client, env *signal.Envelope) error {
	if c.role != domain.RoleTeacher {
		return domain.ErrPermissionDenied
	}

	s.mu.Lock()
	rm, ok := s.rooms[code]
	if !ok {
		s.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	target, ok := rm.clients[env.Target]
	if !ok {
		s.mu.Unlock()
		return domain.ErrUnknownParticipant
	}
	target.perms.Set(env.Permission, env.Status)
	s.mu.Unlock()

	s.send(target, &signal.Envelope{
		Type:       signal.TypePermissionChanged,
		From:       c.name,
		Permission: env.Permission,
		Status:     env.Status,
	})
	s.broadcastRoster(code)
	return nil
}

// forward delivers a targeted envelope to exactly one participant.
func (s *Server) forward(code domain.RoomCode, env *signal.Envelope) error {
	if env.Target == "" {
		return domain.ErrUnknownParticipant
	}

	s.mu.RLock()
	rm, ok := s.rooms[code]
	if !ok {
		s.mu.RUnlock()
		return domain.ErrRoomNotFound
	}
	target, ok := rm.clients[env.Target]
	s.mu.RUnlock()
	if !ok {
		return domain.ErrUnknownParticipant
	}

	s.logger.Debugw("routing message",
		"room_code", code,
		"type", env.Type,
		"from", env.From,
		"to", env.Target,
	)
	return s.send(target, env)
}

// broadcast delivers to every participant in the room except the named one.
// Pass an empty exclude to reach everyone.
func (s *Server) broadcast(code domain.RoomCode, env *signal.Envelope, exclude domain.Username) {
	s.mu.RLock()
	rm, ok := s.rooms[code]
	if !ok {
		s.mu.RUnlock()
		return
	}
	targets := make([]*client, 0, len(rm.clients))
	for name, other := range rm.clients {
		if exclude != "" && name == exclude {
			continue
		}
		targets = append(targets, other)
	}
	s.mu.RUnlock()

	for _, target := range targets {
		if err := s.send(target, env); err != nil {
			s.logger.Warnw("broadcast delivery failed",
				"room_code", code,
				"username", target.name,
				"type", env.Type,
				"error", err,
			)
		}
	}
}

func (s *Server) broadcastRoster(code domain.RoomCode) {
	s.mu.RLock()
	rm, ok := s.rooms[code]
	if !ok {
		s.mu.RUnlock()
		return
	}
	roster := make([]signal.ParticipantInfo, 0, len(rm.clients))
	for _, other := range rm.clients {
		roster = append(roster, signal.ParticipantInfo{
			Username:    other.name,
			Role:        other.role,
			Permissions: other.perms,
		})
	}
	s.mu.RUnlock()

	// Teacher first, then students by name, so every client renders the
	// same roster order.
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].Role != roster[j].Role {
			return roster[i].Role == domain.RoleTeacher
		}
		return roster[i].Username < roster[j].Username
	})

	s.broadcast(code, &signal.Envelope{Type: signal.TypeParticipantList, Participants: roster}, "")
}

func (s *Server) teacherOf(code domain.RoomCode) domain.Username {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rm, ok := s.rooms[code]; ok {
		for _, c := range rm.clients {
			if c.role == domain.RoleTeacher {
				return c.name
			}
		}
	}
	return ""
}

func (s *Server) send(c *client, env *signal.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) sendError(c *client, message string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	c.conn.WriteJSON(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// RoomCount reports how many rooms currently have participants.
func (s *Server) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// ParticipantCount reports connected participants in one room.
func (s *Server) ParticipantCount(code domain.RoomCode) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rm, ok := s.rooms[code]; ok {
		return len(rm.clients)
	}
	return 0
}

// IsLive reports whether the teacher's broadcast is up in the room.
func (s *Server) IsLive(code domain.RoomCode) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rm, ok := s.rooms[code]; ok {
		return rm.live
	}
	return false
}

// CloseAll tears down every connection, used on shutdown.
func (s *Server) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rm := range s.rooms {
		for _, c := range rm.clients {
			c.conn.Close()
		}
	}
	s.rooms = make(map[domain.RoomCode]*room)
}
