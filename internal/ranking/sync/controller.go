// Package sync orchestrates ranking synchronization: it owns the active
// period, decides between push data and REST polling, supervises
// reconnects, and publishes reconciled snapshots to consumers.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/questlab/ranksync/internal/ranking"
	"github.com/questlab/ranksync/internal/ranking/locator"
	"github.com/questlab/ranksync/internal/ranking/reconcile"
	"github.com/questlab/ranksync/internal/ranking/store"
	"github.com/questlab/ranksync/internal/ranking/transport"
	"github.com/questlab/ranksync/pkg/logger"
)

// State is the controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateLive
	StatePolling
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StatePolling:
		return "polling"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "idle"
	}
}

// Session is the push channel the controller drives. Satisfied by
// transport.Session.
type Session interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, params interface{}) error
	Unsubscribe(topic string) error
	Close() error
}

// Fetcher is the REST fallback. Satisfied by transport.RESTClient.
type Fetcher interface {
	FetchLeaderboard(ctx context.Context, period ranking.Period) (*ranking.FetchResult, error)
}

// Options configures a Controller. Identity is passed in explicitly; the
// controller never reads ambient globals.
type Options struct {
	UserID        string
	InitialPeriod ranking.Period

	ConnectTimeout  time.Duration
	FallbackAfter   time.Duration
	FetchTimeout    time.Duration
	PollInterval    time.Duration
	ReconnectDelay  time.Duration
	ReconnectBudget int
	RolloverRefresh bool
}

func (o *Options) applyDefaults() {
	if o.InitialPeriod == "" {
		o.InitialPeriod = ranking.PeriodDaily
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.FallbackAfter <= 0 {
		o.FallbackAfter = 2 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 5 * time.Second
	}
	if o.ReconnectBudget <= 0 {
		o.ReconnectBudget = 5
	}
}

type inboundMsg struct {
	topic string
	data  []byte
}

type connEvent struct {
	state ranking.ConnState
	err   error
}

type connResult struct {
	err error
}

type pollResult struct {
	gen    uint64
	period ranking.Period
	res    *ranking.FetchResult
	err    error
}

type cmdKind int

const (
	cmdSetPeriod cmdKind = iota
	cmdResync
)

type command struct {
	kind   cmdKind
	period ranking.Period
}

// Controller is the single owner of all sync state. Every inbound
// payload, from either channel, is checked against the active period (and
// a request generation) before it can touch a snapshot.
type Controller struct {
	opts    Options
	session Session
	fetcher Fetcher
	store   *store.Store
	locator *locator.Locator
	log     *logger.Logger

	mu      gosync.Mutex
	state   State
	active  ranking.Period
	authErr error

	// gen tags every outbound poll; bumped on period switch so a late
	// response for the old period can never be applied. Loop-owned.
	gen uint64

	msgCh     chan inboundMsg
	connCh    chan connEvent
	connResCh chan connResult
	pollCh    chan pollResult
	cmdCh     chan command
	updates   chan ranking.Update

	// Loop-owned timers; nil channels when inactive.
	fallbackTimer  *time.Timer
	fallbackC      <-chan time.Time
	pollTicker     *time.Ticker
	pollTickC      <-chan time.Time
	reconnectTimer *time.Timer
	reconnectC     <-chan time.Time
	attempts       int

	cron *cron.Cron

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped gosync.Once
	doneCh  chan struct{}
}

// New creates a Controller. Register HandleMessage and HandleState as the
// session's handlers before calling Start.
func New(session Session, fetcher Fetcher, opts Options, log *logger.Logger) *Controller {
	opts.applyDefaults()

	return &Controller{
		opts:    opts,
		session: session,
		fetcher: fetcher,
		store:   store.New(),
		locator: locator.New(),
		log:     log,

		active: opts.InitialPeriod,

		msgCh:     make(chan inboundMsg, 64),
		connCh:    make(chan connEvent, 8),
		connResCh: make(chan connResult, 4),
		pollCh:    make(chan pollResult, 8),
		cmdCh:     make(chan command, 8),
		updates:   make(chan ranking.Update, 16),

		doneCh: make(chan struct{}),
	}
}

// Start launches the sync loop and the initial connect attempt.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("sync: controller already started")
	}
	c.started = true
	c.mu.Unlock()

	c.ctx, c.cancel = context.WithCancel(ctx)

	if c.opts.RolloverRefresh {
		c.cron = cron.New()
		// Period windows roll over at midnight; force a resync so the
		// fresh window renders without waiting for the next tick.
		if _, err := c.cron.AddFunc("0 0 * * *", c.NotifyActivity); err != nil {
			return fmt.Errorf("sync: schedule rollover refresh: %w", err)
		}
		c.cron.Start()
	}

	c.log.WithField("period", c.active).Info("Starting ranking sync")

	go c.run()
	return nil
}

// Stop tears the controller down. Idempotent; safe from any state.
func (c *Controller) Stop() {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return
	}

	c.stopped.Do(func() {
		c.cancel()
		<-c.doneCh
	})
}

// Updates is the outbound event stream. Closed on teardown.
func (c *Controller) Updates() <-chan ranking.Update {
	return c.updates
}

// SetPeriod switches the active ranking window.
func (c *Controller) SetPeriod(period ranking.Period) error {
	if !period.Valid() {
		return fmt.Errorf("sync: unknown period %q", period)
	}
	c.send(command{kind: cmdSetPeriod, period: period})
	return nil
}

// NotifyActivity signals that a ranking-affecting event happened (e.g.
// the user earned XP) and the active period should re-sync now.
func (c *Controller) NotifyActivity() {
	c.send(command{kind: cmdResync})
}

// HandleMessage is the session message handler. Delivery order per topic
// is preserved by the single channel.
func (c *Controller) HandleMessage(topic string, data []byte) {
	select {
	case c.msgCh <- inboundMsg{topic: topic, data: data}:
	default:
		c.log.WithField("topic", topic).Warn("Inbound message dropped, sync loop backlogged")
	}
}

// HandleState is the session state handler.
func (c *Controller) HandleState(state ranking.ConnState, err error) {
	select {
	case c.connCh <- connEvent{state: state, err: err}:
	default:
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActivePeriod returns the currently selected period.
func (c *Controller) ActivePeriod() ranking.Period {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Err returns the sustained unrecoverable error, if any (e.g. rejected
// credentials). Everything else degrades to polling and is not reported
// here.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authErr
}

// Standings returns the last reconciled snapshot for period.
func (c *Controller) Standings(period ranking.Period) ([]ranking.Entrant, bool) {
	return c.store.Get(period)
}

// OutOfWindow returns the current user's out-of-window entry for period,
// or nil when they are inside the top-N (or nothing is known yet).
func (c *Controller) OutOfWindow(period ranking.Period) *ranking.OutOfWindowEntry {
	return c.locator.Get(period)
}

func (c *Controller) send(cmd command) {
	select {
	case c.cmdCh <- cmd:
	case <-c.doneCh:
	}
}

// run is the single event loop that owns all mutable sync state.
func (c *Controller) run() {
	defer close(c.doneCh)
	defer c.teardown()

	c.beginInitialConnect()

	for {
		select {
		case <-c.ctx.Done():
			return
		case cmd := <-c.cmdCh:
			c.handleCommand(cmd)
		case msg := <-c.msgCh:
			c.handleInbound(msg)
		case ev := <-c.connCh:
			c.handleConnEvent(ev)
		case res := <-c.connResCh:
			c.handleConnResult(res)
		case res := <-c.pollCh:
			c.handlePollResult(res)
		case <-c.fallbackC:
			c.handleFallbackTimeout()
		case <-c.pollTickC:
			c.poll()
		case <-c.reconnectC:
			c.attemptReconnect()
		}
	}
}

// beginInitialConnect starts the first connect attempt and arms the
// fallback timer: if the dial neither succeeds nor fails within the
// bound, polling starts so the consumer is never left without data.
func (c *Controller) beginInitialConnect() {
	c.setState(StateConnecting)
	c.fallbackTimer = time.NewTimer(c.opts.FallbackAfter)
	c.fallbackC = c.fallbackTimer.C
	c.dialPush()
}

// dialPush runs one bounded connect attempt off-loop.
func (c *Controller) dialPush() {
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.ConnectTimeout)
		defer cancel()

		err := c.session.Connect(ctx)
		select {
		case c.connResCh <- connResult{err: err}:
		case <-c.ctx.Done():
		}
	}()
}

func (c *Controller) handleConnResult(res connResult) {
	if res.err == nil {
		c.goLive()
		return
	}

	c.disarmFallback()

	if errors.Is(res.err, transport.ErrInvalidCredential) || errors.Is(res.err, transport.ErrRejected) {
		// Unrecoverable without re-authentication. Surface it and keep
		// serving REST data instead of retrying into the same wall.
		c.log.WithError(res.err).Error("Ranking socket rejected credentials")
		c.mu.Lock()
		c.authErr = res.err
		c.mu.Unlock()
		c.attempts = c.opts.ReconnectBudget
		c.enterPolling()
		return
	}

	c.log.WithError(res.err).Warn("Ranking socket connect failed, falling back to polling")
	c.enterPolling()
	c.scheduleReconnect()
}

// goLive transitions to push-driven delivery: subscribe the active
// period, cancel the keep-alive poll, reset the reconnect budget.
func (c *Controller) goLive() {
	c.disarmFallback()
	c.disarmReconnect()
	c.stopKeepAlive()
	c.attempts = 0

	c.mu.Lock()
	c.authErr = nil
	period := c.active
	c.mu.Unlock()

	c.setState(StateLive)

	if err := c.session.Subscribe(ranking.TopicLeaderboard, ranking.SubscribeParams{Period: period}); err != nil {
		c.log.WithError(err).Error("Failed to subscribe after connect")
	}

	c.log.WithField("period", period).Info("Ranking sync live")
}

// enterPolling makes REST the active data source: one immediate poll plus
// the keep-alive ticker.
func (c *Controller) enterPolling() {
	if c.State() != StateReconnecting {
		c.setState(StatePolling)
	}
	c.poll()
	c.startKeepAlive()
}

func (c *Controller) handleFallbackTimeout() {
	c.fallbackC = nil
	if c.State() != StateConnecting {
		return
	}

	// The dial is still in flight; keep it running but start serving
	// REST data now.
	c.log.Info("Connect not settled in time, polling while it completes")
	c.enterPolling()
}

func (c *Controller) handleConnEvent(ev connEvent) {
	switch ev.state {
	case ranking.ConnDisconnected:
		if c.State() != StateLive {
			return
		}
		c.log.WithError(ev.err).Warn("Push channel lost, reconnecting with polling fallback")
		c.setState(StateReconnecting)
		c.attempts = 0
		c.poll()
		c.startKeepAlive()
		c.scheduleReconnect()
	case ranking.ConnConnected, ranking.ConnReconnecting:
		// Connect outcomes arrive through connResCh.
	}
}

func (c *Controller) scheduleReconnect() {
	if c.attempts >= c.opts.ReconnectBudget {
		if c.State() == StateReconnecting {
			c.setState(StatePolling)
		}
		c.log.WithField("attempts", c.attempts).Error("Reconnect budget exhausted, staying on REST polling")
		return
	}

	c.disarmReconnect()
	c.reconnectTimer = time.NewTimer(c.opts.ReconnectDelay)
	c.reconnectC = c.reconnectTimer.C
}

func (c *Controller) attemptReconnect() {
	c.reconnectC = nil

	state := c.State()
	if state != StateReconnecting && state != StatePolling {
		return
	}

	c.attempts++
	c.log.WithField("attempt", c.attempts).Info("Attempting push channel reconnect")
	c.dialPush()
}

// poll fires one REST fetch for the active period, tagged with the
// current generation so a stale response can be recognized and dropped.
func (c *Controller) poll() {
	gen := c.gen

	c.mu.Lock()
	period := c.active
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.FetchTimeout)
		defer cancel()

		res, err := c.fetcher.FetchLeaderboard(ctx, period)
		select {
		case c.pollCh <- pollResult{gen: gen, period: period, res: res, err: err}:
		case <-c.ctx.Done():
		}
	}()
}

func (c *Controller) handlePollResult(res pollResult) {
	if res.gen != c.gen {
		c.log.WithFields(map[string]interface{}{
			"period": res.period,
			"active": c.ActivePeriod(),
		}).Debug("Dropping poll response from a superseded request")
		return
	}

	if res.period != c.ActivePeriod() {
		c.log.WithField("period", res.period).Debug("Dropping poll response for inactive period")
		return
	}

	if res.err != nil {
		// A single failed poll does not stop the loop; the next tick
		// retries.
		c.log.WithError(res.err).Warn("Leaderboard poll failed")
		return
	}

	c.applySnapshot(res.period, res.res.Leaderboard, res.res.CurrentUserInfo)
}

func (c *Controller) handleInbound(msg inboundMsg) {
	if msg.topic != ranking.TopicLeaderboard {
		c.log.WithField("topic", msg.topic).Debug("Ignoring message on unrelated topic")
		return
	}

	var payload ranking.PushPayload
	if err := json.Unmarshal(msg.data, &payload); err != nil {
		c.log.WithError(err).Warn("Malformed leaderboard payload")
		return
	}

	active := c.ActivePeriod()

	period := payload.Period
	if period == "" {
		// Tolerated, but the server should always echo the period.
		c.log.WithField("assumed", active).Warn("Leaderboard payload missing period tag")
		period = active
	}

	if period != active {
		c.log.WithFields(map[string]interface{}{
			"period": period,
			"active": active,
		}).Debug("Dropping payload for inactive period")
		return
	}

	if payload.CurrentUserRank != nil {
		// The out-of-window entry is sourced from REST only; a bare rank
		// over push has no XP/level to go with it.
		c.log.WithField("rank", *payload.CurrentUserRank).Debug("Ignoring currentUserRank from push payload")
	}

	entrants := payload.Leaderboard
	if entrants == nil {
		entrants = []ranking.Entrant{}
	}

	c.applySnapshot(period, entrants, nil)
}

// applySnapshot runs the reconciliation cycle: compute deltas against the
// previous snapshot, replace it, resolve the out-of-window entry, emit.
func (c *Controller) applySnapshot(period ranking.Period, entrants []ranking.Entrant, oow *ranking.OutOfWindowEntry) {
	prev, _ := c.store.Get(period)
	reconciled := reconcile.List(entrants, prev, c.opts.UserID)
	c.store.Put(period, reconciled)

	if reconcile.ContainsUser(reconciled, c.opts.UserID) {
		c.locator.Clear(period)
	} else if oow != nil {
		c.locator.Set(period, oow)
	}

	update := ranking.Update{
		Period:      period,
		Entrants:    reconciled,
		OutOfWindow: c.locator.Get(period),
	}

	select {
	case c.updates <- update:
	default:
		c.log.WithField("period", period).Debug("Update dropped, consumer not keeping up")
	}

	c.log.WithFields(map[string]interface{}{
		"period":   period,
		"entrants": len(reconciled),
	}).Debug("Published reconciled standings")
}

func (c *Controller) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdSetPeriod:
		c.switchPeriod(cmd.period)
	case cmdResync:
		c.resync()
	}
}

// switchPeriod moves the active pointer and invalidates everything tagged
// with the old period: the generation bump orphans in-flight polls, and
// any push payload still tagged with the old period fails the active
// check.
func (c *Controller) switchPeriod(period ranking.Period) {
	c.mu.Lock()
	old := c.active
	if old == period {
		c.mu.Unlock()
		return
	}
	c.active = period
	c.mu.Unlock()

	c.gen++

	c.log.WithFields(map[string]interface{}{
		"from": old,
		"to":   period,
	}).Info("Switching ranking period")

	// Re-register regardless of connection state: when offline the
	// session records the new subscription and replays it on reconnect.
	if err := c.session.Unsubscribe(ranking.TopicLeaderboard); err != nil {
		c.log.WithError(err).Warn("Unsubscribe failed during period switch")
	}
	if err := c.session.Subscribe(ranking.TopicLeaderboard, ranking.SubscribeParams{Period: period}); err != nil {
		c.log.WithError(err).Error("Subscribe failed during period switch")
	}

	// Fetch the new window right away so the switch renders fast even if
	// the first push payload takes a while.
	c.poll()
}

// resync refreshes the active period immediately instead of waiting for
// the next scheduled tick.
func (c *Controller) resync() {
	c.mu.Lock()
	period := c.active
	c.mu.Unlock()

	if c.State() == StateLive {
		// Re-issuing an identical subscribe is deduplicated by the
		// session, so this only nudges the server when needed.
		if err := c.session.Subscribe(ranking.TopicLeaderboard, ranking.SubscribeParams{Period: period}); err != nil {
			c.log.WithError(err).Warn("Resubscribe failed on resync")
		}
	}

	c.poll()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	if prev != s {
		c.log.WithFields(map[string]interface{}{
			"from": prev.String(),
			"to":   s.String(),
		}).Debug("Sync state changed")
	}
}

func (c *Controller) startKeepAlive() {
	if c.pollTicker != nil {
		return
	}
	c.pollTicker = time.NewTicker(c.opts.PollInterval)
	c.pollTickC = c.pollTicker.C
}

func (c *Controller) stopKeepAlive() {
	if c.pollTicker == nil {
		return
	}
	c.pollTicker.Stop()
	c.pollTicker = nil
	c.pollTickC = nil
}

func (c *Controller) disarmFallback() {
	if c.fallbackTimer == nil {
		return
	}
	c.fallbackTimer.Stop()
	c.fallbackTimer = nil
	c.fallbackC = nil
}

func (c *Controller) disarmReconnect() {
	if c.reconnectTimer == nil {
		return
	}
	c.reconnectTimer.Stop()
	c.reconnectTimer = nil
	c.reconnectC = nil
}

// teardown releases everything exactly once: topics, socket, timers,
// cron, state. Runs on loop exit.
func (c *Controller) teardown() {
	c.disarmFallback()
	c.disarmReconnect()
	c.stopKeepAlive()

	if c.cron != nil {
		c.cron.Stop()
	}

	if err := c.session.Unsubscribe(ranking.TopicLeaderboard); err != nil && !errors.Is(err, transport.ErrClosed) {
		c.log.WithError(err).Debug("Unsubscribe on teardown failed")
	}
	if err := c.session.Close(); err != nil {
		c.log.WithError(err).Debug("Session close on teardown failed")
	}

	c.store.Clear()
	c.locator.Reset()

	c.setState(StateIdle)
	close(c.updates)

	c.log.Info("Ranking sync stopped")
}
