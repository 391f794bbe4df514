package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/multierr"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/logger"
)

// Message is a notification addressed to a user. Channels without a matching contact on the
// user are skipped.
type Message struct {
	UserID   uuid.UUID
	Channels []enums.NotificationChannel
	Subject  string
	Body     string
	Data     map[string]string
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByRole(ctx context.Context, role enums.UserRole) ([]models.User, error)
}

const defaultSendTimeout = 10 * time.Second

// Notifier fans messages out to the dispatcher. Delivery is best-effort: failures and panics
// are logged, never returned to the caller.
type Notifier struct {
	dispatcher  Dispatcher
	users       userDirectory
	logg        *logger.Logger
	sendTimeout time.Duration
	inflight    sync.WaitGroup
}

// Option tunes a Notifier.
type Option func(*Notifier)

// WithSendTimeout bounds one Notify batch.
func WithSendTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.sendTimeout = d
		}
	}
}

func NewNotifier(dispatcher Dispatcher, users userDirectory, logg *logger.Logger, opts ...Option) (*Notifier, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	n := &Notifier{dispatcher: dispatcher, users: users, logg: logg, sendTimeout: defaultSendTimeout}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify hands the messages to a background delivery and returns immediately. Delivery keeps
// the caller's context values but not its cancellation, and is bounded by the send timeout.
func (n *Notifier) Notify(ctx context.Context, msgs ...Message) {
	if n == nil || len(msgs) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		sendCtx, cancel := context.WithTimeout(detached, n.sendTimeout)
		defer cancel()
		var pc panics.Catcher
		pc.Try(func() { n.deliver(sendCtx, msgs) })
		if r := pc.Recovered(); r != nil {
			n.logg.Error(sendCtx, "notification batch panicked", r.AsError())
		}
	}()
}

// Flush waits for every in-flight Notify batch.
func (n *Notifier) Flush() {
	if n == nil {
		return
	}
	n.inflight.Wait()
}

func (n *Notifier) deliver(ctx context.Context, msgs []Message) {
	var (
		mu   sync.Mutex
		errs error
		wg   conc.WaitGroup
	)
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
	}

	for _, msg := range msgs {
		msg := msg
		user, err := n.users.FindByID(ctx, msg.UserID)
		if err != nil {
			record(fmt.Errorf("load recipient %s: %w", msg.UserID, err))
			continue
		}
		for _, channel := range msg.Channels {
			channel := channel
			wg.Go(func() {
				record(n.send(ctx, channel, user, msg))
			})
		}
	}

	if recovered := wg.WaitAndRecover(); recovered != nil {
		record(recovered.AsError())
	}
	if errs != nil {
		n.logg.Warn(n.logg.WithField(ctx, "error", errs.Error()), "notification delivery failed")
	}
}

// NotifyRole emails every user holding role plus the extra addresses.
func (n *Notifier) NotifyRole(ctx context.Context, role enums.UserRole, extra []string, subject, body string) error {
	users, err := n.users.ListByRole(ctx, role)
	if err != nil {
		return fmt.Errorf("list %s users: %w", role, err)
	}

	seen := map[string]struct{}{}
	recipients := make([]string, 0, len(users)+len(extra))
	for _, addr := range extra {
		if _, ok := seen[addr]; !ok && addr != "" {
			seen[addr] = struct{}{}
			recipients = append(recipients, addr)
		}
	}
	for _, u := range users {
		if _, ok := seen[u.Email]; !ok && u.Email != "" {
			seen[u.Email] = struct{}{}
			recipients = append(recipients, u.Email)
		}
	}

	var errs error
	for _, to := range recipients {
		errs = multierr.Append(errs, n.dispatcher.SendEmail(ctx, to, subject, body))
	}
	return errs
}

func (n *Notifier) send(ctx context.Context, channel enums.NotificationChannel, user *models.User, msg Message) error {
	switch channel {
	case enums.NotificationChannelEmail:
		return n.dispatcher.SendEmail(ctx, user.Email, msg.Subject, msg.Body)
	case enums.NotificationChannelSMS:
		if user.Phone == nil || *user.Phone == "" {
			return nil
		}
		return n.dispatcher.SendSMS(ctx, *user.Phone, msg.Body)
	case enums.NotificationChannelPush:
		if user.PushToken == nil || *user.PushToken == "" {
			return nil
		}
		return n.dispatcher.SendPush(ctx, *user.PushToken, msg.Subject, msg.Body, msg.Data)
	default:
		return fmt.Errorf("unknown notification channel %q", channel)
	}
}
