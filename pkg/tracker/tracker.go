package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"igrelay/pkg/checkpoint"
	"igrelay/pkg/instagram"
	"igrelay/pkg/logger"
)

// MaxMessageLength is the Telegram text message limit
const MaxMessageLength = 4096

// DefaultSchedule runs every tracking job hourly
const DefaultSchedule = "@every 1h"

// Profiles resolves profiles and lists their relations
type Profiles interface {
	ResolveProfile(ctx context.Context, username string) (*instagram.Profile, error)
	Followers(ctx context.Context, profile *instagram.Profile) ([]string, error)
	Following(ctx context.Context, profile *instagram.Profile) ([]string, error)
}

// Notifier delivers tracking reports to a chat
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Snapshots stores the last observed account lists
type Snapshots interface {
	Load(username, relation string) (*checkpoint.Snapshot, error)
	Save(snap *checkpoint.Snapshot) error
}

// Config configures a Tracker
type Config struct {
	Schedule        string
	NotifyUnchanged bool
	// OnRun, when set, is called after every scheduled check
	OnRun func(sub Subscription, err error)
}

// Tracker periodically compares followers and following of subscribed
// profiles against stored snapshots and reports the changes
type Tracker struct {
	profiles  Profiles
	notifier  Notifier
	store     *Store
	snapshots Snapshots
	cfg       Config
	logger    logger.Logger

	cron  *cron.Cron
	every cron.Schedule

	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a cron expression or descriptor such as "@every 1h"
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid tracking schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// New creates a Tracker. Jobs are not scheduled until Start.
func New(profiles Profiles, notifier Notifier, store *Store, snapshots Snapshots, cfg Config, log logger.Logger) (*Tracker, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	schedule, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		profiles:  profiles,
		notifier:  notifier,
		store:     store,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    log.WithField("component", "tracker"),
		cron:      cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		every:     schedule,
		entries:   make(map[string]cron.EntryID),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start schedules every persisted subscription and starts the scheduler.
// Scheduled checks run with a context derived from ctx.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	t.cancel()
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	subs, err := t.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}
	for _, sub := range subs {
		t.add(sub)
	}

	t.cron.Start()
	logger.LogComponentStart("tracker", map[string]interface{}{
		"schedule":      t.cfg.Schedule,
		"subscriptions": len(subs),
	})
	return nil
}

// Stop stops scheduling and waits for running checks to finish
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.cancel()
	t.mu.Unlock()

	<-t.cron.Stop().Done()
	logger.LogComponentStop("tracker", "stopped")
}

// Track subscribes chatID to changes of username. It reports false when the
// subscription was already active.
func (t *Tracker) Track(ctx context.Context, username string, chatID int64) (bool, error) {
	sub := Subscription{Username: username, ChatID: chatID, CreatedAt: time.Now().UTC()}
	added, err := t.store.Add(ctx, sub)
	if err != nil {
		return false, err
	}
	if !added {
		return false, nil
	}
	t.add(sub)

	t.logger.InfoWithFields("Tracking started", map[string]interface{}{
		"username": username,
		"chat_id":  chatID,
	})
	return true, nil
}

// Untrack removes a subscription. It reports false when none was active.
func (t *Tracker) Untrack(ctx context.Context, username string, chatID int64) (bool, error) {
	removed, err := t.store.Remove(ctx, username, chatID)
	if err != nil {
		return false, err
	}

	key := Subscription{Username: username, ChatID: chatID}.Key()
	t.mu.Lock()
	if id, ok := t.entries[key]; ok {
		t.cron.Remove(id)
		delete(t.entries, key)
	}
	t.mu.Unlock()

	if removed {
		t.logger.InfoWithFields("Tracking stopped", map[string]interface{}{
			"username": username,
			"chat_id":  chatID,
		})
	}
	return removed, nil
}

// Active reports whether a subscription is scheduled
func (t *Tracker) Active(username string, chatID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[Subscription{Username: username, ChatID: chatID}.Key()]
	return ok
}

// Schedule returns the configured schedule expression
func (t *Tracker) Schedule() string {
	return t.cfg.Schedule
}

func (t *Tracker) add(sub Subscription) {
	key := sub.Key()

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[key]; ok {
		return
	}
	t.entries[key] = t.cron.Schedule(t.every, cron.FuncJob(func() {
		t.mu.Lock()
		ctx := t.ctx
		t.mu.Unlock()
		err := t.Check(ctx, sub)
		if err != nil {
			t.logger.WithError(err).WarnWithFields("Tracking check failed", map[string]interface{}{
				"username": sub.Username,
				"chat_id":  sub.ChatID,
			})
		}
		if t.cfg.OnRun != nil {
			t.cfg.OnRun(sub, err)
		}
	}))
}

// Check compares followers, then following, of the subscription's profile
// against the stored snapshots and notifies the chat. A failure on one
// relation does not skip the other.
func (t *Tracker) Check(ctx context.Context, sub Subscription) error {
	var errs []error
	for _, relation := range []instagram.Relation{instagram.RelationFollowers, instagram.RelationFollowing} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.checkRelation(ctx, sub, relation); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", relation, err))
			if nerr := t.notify(ctx, sub.ChatID, fmt.Sprintf("⚠️ Failed to track %s", relation)); nerr != nil {
				errs = append(errs, nerr)
			}
		}
	}
	return errors.Join(errs...)
}

func (t *Tracker) checkRelation(ctx context.Context, sub Subscription, relation instagram.Relation) error {
	profile, err := t.profiles.ResolveProfile(ctx, sub.Username)
	if err != nil {
		return err
	}
	if !profile.Accessible() {
		return t.notify(ctx, sub.ChatID, "🔒 Private profile - you don't follow this account")
	}

	var current []string
	switch relation {
	case instagram.RelationFollowers:
		current, err = t.profiles.Followers(ctx, profile)
	default:
		current, err = t.profiles.Following(ctx, profile)
	}
	if err != nil {
		return err
	}

	previous, err := t.snapshots.Load(sub.Username, string(relation))
	if err != nil {
		return err
	}

	var message string
	switch {
	case previous == nil:
		message = fmt.Sprintf("📊 First tracking run for @%s: %d %s saved.", sub.Username, len(current), relation)
	default:
		added, removed := Diff(previous.Accounts, current)
		switch {
		case len(added) > 0 || len(removed) > 0:
			message = FormatChanges(sub.Username, relation, added, removed)
		case t.cfg.NotifyUnchanged:
			message = fmt.Sprintf("📊 No changes in %s of @%s.", relation, sub.Username)
		}
		t.logger.InfoWithFields("Tracking check finished", map[string]interface{}{
			"username": sub.Username,
			"relation": string(relation),
			"added":    len(added),
			"removed":  len(removed),
		})
	}

	if message != "" {
		if err := t.notify(ctx, sub.ChatID, message); err != nil {
			return err
		}
	}

	return t.snapshots.Save(&checkpoint.Snapshot{
		Username: sub.Username,
		Relation: string(relation),
		Accounts: current,
	})
}

func (t *Tracker) notify(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range SplitMessage(text, MaxMessageLength) {
		if err := t.notifier.SendText(ctx, chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}
