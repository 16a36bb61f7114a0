package routes

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"flashvote/clock"
	"flashvote/config"
	"flashvote/logging"
	"flashvote/metrics"
	"flashvote/middlewares"
	"flashvote/models"
	"flashvote/utils"
	"flashvote/votes"
)

// ChangeFeed carries "subject got a vote" notifications between instances.
type ChangeFeed interface {
	votes.Publisher
	Subscribe(ctx context.Context) (<-chan string, error)
}

// Deps is everything the handlers need; main wires the real stores, tests
// the mocks. Feed, Redis, Invalidator and Metrics may be nil.
type Deps struct {
	Users     models.UserRepository
	Admins    models.AdminRepository
	Events    models.EventRepository
	Items     models.ItemRepository
	Subjects  models.SubjectRepository
	Locations models.LocationRepository
	Votes     models.VoteRepository

	Window      *votes.Window
	Feed        ChangeFeed
	Redis       *redis.Client
	Invalidator *utils.CacheInvalidator
	Metrics     *metrics.Metrics
	Clock       clock.Clock

	Limits      config.Limits
	DefaultDays int
	// Heartbeat is the keep-alive interval of /votes/changes streams.
	Heartbeat time.Duration
}

type handler struct {
	Deps
	writer   *votes.Writer
	agg      *votes.Aggregator
	bucketer *votes.Bucketer
}

// newLimiter returns nil when the rule is disabled.
func newLimiter(l config.Limiter, idle time.Duration) *middlewares.RateLimiter {
	if l.RPS <= 0 {
		return nil
	}
	return middlewares.NewRateLimiter(middlewares.LimiterConfig{RPS: l.RPS, Burst: l.Burst, IdleTTL: idle})
}

// RegisterRoutes mounts every endpoint on server. The returned func stops the
// limiters' background sweepers.
func RegisterRoutes(server *gin.Engine, d Deps) (stop func()) {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.DefaultDays < 1 {
		d.DefaultDays = votes.DefaultDays
	}
	if d.Heartbeat <= 0 {
		d.Heartbeat = 25 * time.Second
	}
	if d.Window == nil {
		d.Window = votes.NewWindow(votes.NewMemoryStore(), votes.DefaultWindow, d.Clock)
	}

	opts := []votes.WriterOption{votes.WithClock(d.Clock), votes.WithMetrics(d.Metrics)}
	if d.Feed != nil {
		opts = append(opts, votes.WithPublisher(d.Feed))
	}
	h := &handler{
		Deps:     d,
		writer:   votes.NewWriter(d.Votes, d.Subjects, d.Events, d.Window, opts...),
		agg:      votes.NewAggregator(d.Votes, d.Metrics),
		bucketer: votes.NewBucketer(d.Votes, d.Clock),
	}

	var limiters []*middlewares.RateLimiter
	stop = func() {
		for _, l := range limiters {
			l.Close()
		}
	}

	// ===== ① 全域 IP 限速 =====
	if l := newLimiter(d.Limits.Global, 3*time.Minute); l != nil {
		limiters = append(limiters, l)
		server.Use(l.Middleware(func(c *gin.Context) string { return "ip:" + c.ClientIP() }))
	}

	server.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	if d.Metrics != nil {
		server.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// ===== ② /signup、/login 以 IP 嚴格限速 =====
	signup, login := []gin.HandlerFunc{h.signup}, []gin.HandlerFunc{h.login}
	if l := newLimiter(d.Limits.Auth, 10*time.Minute); l != nil {
		limiters = append(limiters, l)
		signup = append([]gin.HandlerFunc{l.Middleware(func(c *gin.Context) string { return "signup:" + c.ClientIP() })}, signup...)
		login = append([]gin.HandlerFunc{l.Middleware(func(c *gin.Context) string { return "login:" + c.ClientIP() })}, login...)
	}
	server.POST("/signup", signup...)
	server.POST("/login", login...)

	// 公開 endpoints
	server.GET("/e/:slug", h.publicEvent)
	server.GET("/e/:slug/:itemSlug", h.publicItem)

	server.POST("/votes", middlewares.OptionalAuthenticate, h.castVote)
	server.POST("/votes/batch", h.batchResults)
	server.GET("/votes/batch", h.batchResultsQuery)
	server.GET("/votes/time-series", h.timeSeries)
	server.GET("/votes/changes", h.voteChanges)

	server.GET("/locations/search", h.searchLocations)
	server.GET("/locations/:id", h.getLocation)

	// ===== ③ 受保護群組：先驗證，再以 userId 限速 + 每日配額 =====
	auth := server.Group("/")
	auth.Use(middlewares.Authenticate)
	if l := newLimiter(d.Limits.User, 10*time.Minute); l != nil {
		limiters = append(limiters, l)
		auth.Use(l.Middleware(func(c *gin.Context) string {
			return "u:" + strconv.FormatInt(c.GetInt64("userId"), 10)
		}))
	}
	if d.Limits.DailyQuota > 0 && d.Redis != nil {
		auth.Use(middlewares.Quota(d.Redis, middlewares.QuotaRule{
			Limit:  d.Limits.DailyQuota,
			Window: 24 * time.Hour,
			KeyFn:  middlewares.DailyUserQuotaKey("api"),
		}))
	}

	auth.GET("/events", h.listEvents)
	auth.POST("/events", h.createEvent)
	auth.GET("/events/:id", h.getEvent)
	auth.PUT("/events/:id", h.updateEvent)
	auth.DELETE("/events/:id", h.deleteEvent)
	auth.POST("/events/:id/archive", h.archiveEvent)
	auth.POST("/events/:id/unarchive", h.unarchiveEvent)

	auth.GET("/events/:id/admins", h.listAdmins)
	auth.POST("/events/:id/admins", h.grantAdmin)
	auth.DELETE("/events/:id/admins/:userId", h.revokeAdmin)

	auth.GET("/events/:id/items", h.listItems)
	auth.POST("/events/:id/items", h.createItem)
	auth.POST("/events/:id/items/bulk", h.bulkItems)
	auth.PUT("/items/:itemId", h.updateItem)
	auth.DELETE("/items/:itemId", h.deleteItem)

	auth.GET("/events/:id/subjects", h.listSubjects)
	auth.POST("/events/:id/subjects", h.createSubject)
	auth.PUT("/subjects/:subjectId", h.updateSubject)
	auth.DELETE("/subjects/:subjectId", h.deleteSubject)

	auth.GET("/events/:id/locations", h.listLocations)
	auth.POST("/events/:id/locations", h.createLocation)
	auth.POST("/events/:id/locations/bulk", h.bulkLocations)
	auth.PUT("/locations/:id", h.updateLocation)
	auth.DELETE("/locations/:id", h.deleteLocation)

	return stop
}

// internalError logs err and answers 500 with a generic message.
func internalError(c *gin.Context, err error, msg string) {
	logrus.WithError(err).WithFields(logrus.Fields{
		logging.FldMethod: c.Request.Method,
		logging.FldPath:   c.FullPath(),
		logging.FldUser:   c.GetInt64("userId"),
	}).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"message": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": msg})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"message": msg})
}
