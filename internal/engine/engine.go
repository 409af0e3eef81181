package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/unfoldindia/unfold/internal/llm"
	"github.com/unfoldindia/unfold/internal/logging"
	"github.com/unfoldindia/unfold/internal/metrics"
	"github.com/unfoldindia/unfold/internal/retention"
	"github.com/unfoldindia/unfold/internal/store"
)

const (
	contextWindow    = 6
	chatMaxTokens    = 4096
	chatTemperature  = 0.7
	defaultChatLimit = 30 * time.Second
)

// ErrEmptyMessage is returned when a chat message has no content.
var ErrEmptyMessage = errors.New("engine: empty message")

// ChatReply is the answer to one chat turn.
type ChatReply struct {
	Reply  string `json:"reply"`
	Status string `json:"status"`
}

// Engine orchestrates chat turns and the scheduled retention sweep.
type Engine struct {
	DB        *store.DB
	LLM       llm.Client
	Retention *retention.Engine

	log         *logrus.Entry
	metrics     *metrics.Metrics
	chatTimeout time.Duration
	scheduler   gocron.Scheduler
}

// New creates a new Engine and registers the retention engine on db's
// append hook. client may be nil; chat then answers with a configuration
// error instead of calling out.
func New(db *store.DB, client llm.Client, ret *retention.Engine, logger *logrus.Logger, m *metrics.Metrics) *Engine {
	if m == nil {
		m = metrics.New()
	}
	if ret == nil {
		ret = retention.New(logger, m)
	}
	db.OnMessageAppended(ret.Hook())
	return &Engine{
		DB:          db,
		LLM:         client,
		Retention:   ret,
		log:         logging.Component(logger, "engine"),
		metrics:     m,
		chatTimeout: defaultChatLimit,
	}
}

// SetChatTimeout bounds each chat generator call.
func (e *Engine) SetChatTimeout(d time.Duration) {
	if d > 0 {
		e.chatTimeout = d
	}
}

// Chat stores the user's message, asks the model for a reply using the
// most recent turns as context, and stores the reply. Generator failures
// come back as a reply with status "error"; only bad input and storage
// failures are returned as errors.
func (e *Engine) Chat(ctx context.Context, ownerID, content string) (*ChatReply, error) {
	content, err := validateMessage(content)
	if err != nil {
		return nil, err
	}
	if err := e.DB.EnsureUser(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	if err := e.DB.AppendMessage(ctx, &store.Message{OwnerID: ownerID, Role: "user", Content: content}); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	logger := e.log.WithField("owner_id", ownerID)
	if e.LLM == nil {
		logger.Warn("chat: no LLM configured")
		e.metrics.ChatRequests.WithLabelValues("error").Inc()
		return &ChatReply{Reply: "Server Config Error: LLM API key missing.", Status: "error"}, nil
	}

	recent, err := e.DB.RecentMessages(ctx, ownerID, contextWindow)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}

	genCtx, cancel := context.WithTimeout(ctx, e.chatTimeout)
	defer cancel()

	start := time.Now()
	resp, err := e.LLM.Complete(genCtx, &llm.Request{
		System:      llm.TravelGuideSystem,
		Messages:    buildHistory(recent),
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
	})
	e.metrics.GeneratorLatency.Observe(time.Since(start).Seconds())
	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = errors.New("empty reply")
	}
	if err != nil {
		logger.WithError(err).Warn("chat: generator failed")
		e.metrics.ChatRequests.WithLabelValues("error").Inc()
		return errorReply(err), nil
	}

	if err := e.DB.AppendMessage(ctx, &store.Message{OwnerID: ownerID, Role: "assistant", Content: truncateClean(resp.Content, maxStoredReply)}); err != nil {
		return nil, fmt.Errorf("store reply: %w", err)
	}

	e.metrics.ChatRequests.WithLabelValues("success").Inc()
	logger.WithFields(logrus.Fields{"provider": resp.Provider, "tokens": resp.TokensUsed}).Debug("chat: replied")
	return &ChatReply{Reply: resp.Content, Status: "success"}, nil
}

func errorReply(err error) *ChatReply {
	if code, ok := llm.StatusCode(err); ok {
		return &ChatReply{Reply: "API Error: " + strconv.Itoa(code), Status: "error"}
	}
	return &ChatReply{Reply: "Connection Error: " + err.Error(), Status: "error"}
}

// Sweep applies every owner's retention policy once.
func (e *Engine) Sweep(ctx context.Context) (int64, error) {
	return e.Retention.Sweep(ctx, e.DB)
}

// StartRetentionSchedule runs the retention sweep daily at hh:mm UTC.
func (e *Engine) StartRetentionSchedule(at string) error {
	hour, minute, err := parseClock(at)
	if err != nil {
		return err
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		gocron.NewTask(e.runSweep),
		gocron.WithName("retention_sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.Shutdown()
		return fmt.Errorf("schedule retention sweep: %w", err)
	}

	s.Start()
	e.scheduler = s
	e.log.WithField("at", at).Info("retention sweep scheduled (UTC)")
	return nil
}

func (e *Engine) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	deleted, err := e.Sweep(ctx)
	if err != nil {
		e.log.WithError(err).Error("retention sweep failed")
		return
	}
	e.log.WithField("deleted", deleted).Info("retention sweep finished")
}

// Stop shuts down the engine's background scheduler.
func (e *Engine) Stop() error {
	if e.scheduler == nil {
		return nil
	}
	err := e.scheduler.Shutdown()
	e.scheduler = nil
	return err
}

func parseClock(at string) (uint, uint, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(at))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid sweep time %q, want HH:MM", at)
	}
	return uint(t.Hour()), uint(t.Minute()), nil
}
