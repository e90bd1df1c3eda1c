package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avdeck/cueroom/internal/app"
)

// Options tune the per-connection transport behavior.
type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 30 * time.Second
	}
	return o
}

// Controller upgrades authenticated HTTP requests and bridges the
// socket to the dispatcher.
type Controller struct {
	dispatcher  *app.Dispatcher
	joinLimiter *JoinRateLimiter
	readLimit   int64
	pingPeriod  time.Duration
}

func NewController(d *app.Dispatcher, opts Options) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		dispatcher:  d,
		joinLimiter: NewJoinRateLimiter(10, time.Minute),
		readLimit:   opts.ReadLimit,
		pingPeriod:  opts.PingPeriod,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the request. The auth middleware must have resolved
// the user already; an anonymous request is rejected before upgrading.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	userID := c.GetString("user_id")
	displayName := c.GetString("display_name")
	if userID == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}

	conn := app.ConnID(uuid.NewString())
	wrapped := newConn(ws)
	ctl.dispatcher.Connect(conn, userID, displayName, wrapped)
	log.Info().Str("module", "ws").Str("conn", string(conn)).Str("user", userID).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ctl.writePump(ctx, wrapped)
		cancel()
	}()
	go func() {
		ctl.readPump(ctx, conn, wrapped)
		cancel()
	}()
}
