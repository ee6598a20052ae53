package tracker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/decker502/tindahan/pkg/face"
	"github.com/decker502/tindahan/pkg/utils"
)

const (
	// 单条消息上限，478 个关键点的 JSON 大约 40KB
	maxMessageSize = 256 << 10
	// 超过该时长没有任何消息（包括 pong）则断开
	readTimeout = 60 * time.Second
	pingPeriod  = 10 * time.Second
	// 关闭时等待请求结束的时长
	shutdownTimeout = 2 * time.Second
)

// Options 服务器配置
type Options struct {
	Addr           string   // 监听地址，如 "127.0.0.1:8765"
	AllowedOrigins []string // 允许的浏览器来源，空表示全部允许
	Logger         *zap.Logger
	Now            func() time.Time
}

// Server 追踪桥接服务器，实现 face.FrameSource
//
// GET /healthz 返回连接数和收到的消息数；GET /ws 升级为 websocket，
// 每条文本消息解析为一帧交给 emit。无效消息记日志后跳过。
type Server struct {
	opts     Options
	logger   *zap.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader

	mu       sync.Mutex
	emit     func(face.Frame)
	conns    map[*websocket.Conn]struct{}
	cancel   context.CancelFunc
	running  chan struct{} // Serve 退出时关闭
	stopping bool
	addr     net.Addr
	handlers sync.WaitGroup // 进行中的 websocket 连接

	received atomic.Int64
	rejected atomic.Int64
}

// NewServer 创建服务器，不会立即监听
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		opts:   opts,
		logger: opts.Logger.Named("Tracker"),
		conns:  make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestLogger(s.logger))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.opts.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.opts.AllowedOrigins
	}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", s.handleHealth)
	router.GET("/ws", s.handleWebSocket)
	return router
}

// Handler 返回 HTTP 处理器
func (s *Server) Handler() http.Handler {
	return s.router
}

// URL 追踪程序应连接的 websocket 地址
// 监听之后返回实际地址，之前返回配置的地址
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := s.opts.Addr
	if s.addr != nil {
		addr = s.addr.String()
	}
	return "ws://" + addr + "/ws"
}

// Received 累计收到的有效消息数
func (s *Server) Received() int64 {
	return s.received.Load()
}

// Rejected 累计丢弃的无效消息数
func (s *Server) Rejected() int64 {
	return s.rejected.Load()
}

// Run 实现 face.FrameSource：在配置地址上监听直到 ctx 取消
func (s *Server) Run(ctx context.Context, emit func(face.Frame)) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln, emit)
}

// Serve 在给定的 listener 上提供服务，直到 ctx 取消或调用 Close
// 同一时间只能有一个 Serve 在运行
func (s *Server) Serve(ctx context.Context, ln net.Listener, emit func(face.Frame)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.running != nil {
		s.mu.Unlock()
		ln.Close()
		return errors.New("tracker server already running")
	}
	running := make(chan struct{})
	s.running = running
	s.cancel = cancel
	s.emit = emit
	s.addr = ln.Addr()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = nil
		s.stopping = false
		s.cancel = nil
		s.emit = nil
		s.addr = nil
		s.mu.Unlock()
		close(running)
	}()

	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	s.logger.Info("tracker listening", zap.String("url", "ws://"+ln.Addr().String()+"/ws"))

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		s.logger.Warn("tracker shutdown", zap.Error(shutdownErr))
	}
	// Shutdown 不处理被接管的连接
	s.closeConns()
	s.handlers.Wait()
	s.logger.Info("tracker stopped")

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve tracker: %w", err)
	}
	return nil
}

// Close 停止正在运行的 Serve 并等待其退出，可重复调用
func (s *Server) Close() error {
	s.mu.Lock()
	cancel, running := s.cancel, s.running
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-running
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.opts.AllowedOrigins, origin)
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	clients := len(s.conns)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"clients":  clients,
		"received": s.received.Load(),
		"rejected": s.rejected.Load(),
	})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	s.mu.Lock()
	emit := s.emit
	s.mu.Unlock()
	if emit == nil {
		c.String(http.StatusServiceUnavailable, "tracker is not running")
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写了错误响应
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.handlers.Done()
	s.logger.Info("tracker connected", zap.String("remote", c.Request.RemoteAddr))

	done := make(chan struct{})
	go s.keepAlive(conn, done)
	s.readLoop(conn, emit)
	close(done)

	s.untrack(conn)
	conn.Close()
	s.logger.Info("tracker disconnected", zap.String("remote", c.Request.RemoteAddr))
}

// readLoop 读取消息直到连接断开
func (s *Server) readLoop(conn *websocket.Conn, emit func(face.Frame)) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(s.opts.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(s.opts.Now().Add(readTimeout))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(s.opts.Now().Add(readTimeout))

		if msgType != websocket.TextMessage {
			s.rejected.Add(1)
			s.logger.Debug("ignoring non-text message", zap.Int("type", msgType))
			continue
		}
		msg, err := DecodeMessage(data)
		if err != nil {
			s.rejected.Add(1)
			s.logger.Warn("invalid tracker message", zap.Error(err))
			continue
		}
		s.received.Add(1)
		emit(msg.Frame(s.opts.Now()))
	}
}

// keepAlive 定期发送 ping
func (s *Server) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := s.opts.Now().Add(time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == nil || s.stopping {
		return false
	}
	s.conns[conn] = struct{}{}
	s.handlers.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	s.stopping = true
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "tracker stopping")
	for _, c := range conns {
		c.WriteControl(websocket.CloseMessage, msg, deadline)
		c.Close()
	}
}
