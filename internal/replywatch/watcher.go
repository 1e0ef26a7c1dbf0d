// Package replywatch polls the applicant's mailbox and flags history records
// whose contact address has written back.
package replywatch

import (
	"context"
	"log"
	"strings"
	"time"

	"autoapply-engine/internal/domain"
	"autoapply-engine/internal/events"

	"github.com/emersion/go-imap/v2"
)

// Inbox is the mail side; IMAPInbox is the real one.
type Inbox interface {
	FetchUnseen(ctx context.Context, max int, keep func([]Message) []imap.UID) error
}

type HistoryStore interface {
	List(ctx context.Context, userID string) ([]domain.Application, error)
	Update(ctx context.Context, userID string, app domain.Application) error
}

// UserLister names the users whose history should be scanned for replies.
type UserLister interface {
	UserIDs(ctx context.Context) ([]string, error)
}

type Watcher struct {
	inbox   Inbox
	history HistoryStore
	users   UserLister
	hub     *events.Hub
	poll    time.Duration
	clock   func() time.Time
}

type Options struct {
	Inbox   Inbox
	History HistoryStore
	Users   UserLister
	Hub     *events.Hub
	Poll    time.Duration
}

func New(opts Options) *Watcher {
	if opts.Poll <= 0 {
		opts.Poll = 5 * time.Minute
	}
	return &Watcher{
		inbox:   opts.Inbox,
		history: opts.History,
		users:   opts.Users,
		hub:     opts.Hub,
		poll:    opts.Poll,
		clock:   time.Now,
	}
}

// Start polls until ctx is cancelled. Poll failures are logged and retried on
// the next tick; a flaky mailbox must not take the engine down.
func (w *Watcher) Start(ctx context.Context) {
	t := time.NewTicker(w.poll)
	defer t.Stop()

	log.Printf("[replywatch] started (every %s)", w.poll)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := w.PollOnce(ctx); err != nil {
				log.Printf("[replywatch] poll: %v", err)
			} else if n > 0 {
				log.Printf("[replywatch] matched %d replies", n)
			}
		}
	}
}

type pendingRecord struct {
	userID string
	app    domain.Application
}

// PollOnce fetches unseen mail and matches senders against outstanding
// contact addresses. Matched messages are marked seen; everything else stays
// unseen for the next owner of the inbox.
func (w *Watcher) PollOnce(ctx context.Context) (int, error) {
	pending, err := w.pendingByContact(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	matched := 0
	err = w.inbox.FetchUnseen(ctx, 50, func(msgs []Message) []imap.UID {
		var seen []imap.UID
		for _, msg := range msgs {
			sender := strings.ToLower(strings.TrimSpace(msg.From))
			recs, ok := pending[sender]
			if !ok || sender == "" {
				continue
			}
			for _, rec := range recs {
				if w.record(ctx, rec, msg) {
					matched++
				}
			}
			delete(pending, sender)
			seen = append(seen, msg.UID)
		}
		return seen
	})
	return matched, err
}

// pendingByContact maps lowercased contact address to the history records
// still waiting for a reply.
func (w *Watcher) pendingByContact(ctx context.Context) (map[string][]pendingRecord, error) {
	userIDs, err := w.users.UserIDs(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]pendingRecord)
	for _, userID := range userIDs {
		apps, err := w.history.List(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, app := range apps {
			if app.ContactEmail == "" || app.ResponseReceived {
				continue
			}
			key := strings.ToLower(app.ContactEmail)
			out[key] = append(out[key], pendingRecord{userID: userID, app: app})
		}
	}
	return out, nil
}

func (w *Watcher) record(ctx context.Context, rec pendingRecord, msg Message) bool {
	at := msg.Date
	if at.IsZero() {
		at = w.clock()
	}
	at = at.UTC()

	app := rec.app
	app.ResponseReceived = true
	app.ResponseAt = &at
	if err := w.history.Update(ctx, rec.userID, app); err != nil {
		log.Printf("[replywatch] update %s/%s: %v", rec.userID, app.PostingID, err)
		return false
	}

	if w.hub != nil {
		w.hub.Publish(events.MakeEvent("", events.TypeResponseReceived, 1, map[string]any{
			"userId":    rec.userID,
			"postingId": app.PostingID,
			"company":   app.Company,
			"from":      msg.From,
		}))
	}
	log.Printf("[replywatch] reply from %s for %s at %s", msg.From, app.Title, app.Company)
	return true
}
