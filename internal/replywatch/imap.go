package replywatch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Message is the slice of an inbox message the watcher cares about: who sent
// it and when.
type Message struct {
	UID     imap.UID
	From    string
	Subject string
	Date    time.Time
}

// IMAPInbox reads unseen mail from one mailbox over TLS. Each FetchUnseen
// call opens a fresh connection; polling is infrequent enough that keeping a
// session alive buys nothing and costs reconnect handling.
type IMAPInbox struct {
	Host     string
	Port     int
	Username string
	Mailbox  string
	Password func() (string, error)
}

func (ib *IMAPInbox) addr() string {
	return fmt.Sprintf("%s:%d", ib.Host, ib.Port)
}

func (ib *IMAPInbox) dial(ctx context.Context) (*imapclient.Client, error) {
	if ib.Host == "" || ib.Username == "" {
		return nil, errors.New("imap host/username is required")
	}
	pw, err := ib.Password()
	if err != nil {
		return nil, fmt.Errorf("imap password: %w", err)
	}

	c, err := imapclient.DialTLS(ib.addr(), &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: ib.Host},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	if err := c.Login(ib.Username, pw).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}

	mailbox := ib.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		logoutAndClose(c)
		return nil, fmt.Errorf("imap select %s: %w", mailbox, err)
	}
	return c, nil
}

// FetchUnseen returns up to max unseen messages, newest first, then marks the
// ones whose UIDs are returned by keep as seen. Envelope-only fetch: the
// watcher matches on sender address, bodies stay on the server.
func (ib *IMAPInbox) FetchUnseen(ctx context.Context, max int, keep func([]Message) []imap.UID) error {
	c, err := ib.dial(ctx)
	if err != nil {
		return err
	}
	defer logoutAndClose(c)

	if max <= 0 {
		max = 50
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   time.Now().AddDate(0, -3, 0),
	}
	searchData, err := c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return fmt.Errorf("imap uid search unseen: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil
	}
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > max {
		uids = uids[:max]
	}

	fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
	})
	defer func() { _ = fetchCmd.Close() }()

	msgs := make([]Message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return fmt.Errorf("imap fetch collect: %w", err)
		}

		m := Message{UID: buf.UID}
		if buf.Envelope != nil {
			m.Subject = buf.Envelope.Subject
			m.Date = buf.Envelope.Date
			m.From = firstAddr(buf.Envelope.From)
		}
		if m.Date.IsZero() {
			m.Date = buf.InternalDate
		}
		msgs = append(msgs, m)
	}
	if err := fetchCmd.Close(); err != nil {
		return fmt.Errorf("imap fetch close: %w", err)
	}

	matched := keep(msgs)
	if len(matched) == 0 {
		return nil
	}
	return markSeen(c, matched)
}

func markSeen(c *imapclient.Client, uids []imap.UID) error {
	cmd := c.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

func logoutAndClose(c *imapclient.Client) {
	if err := c.Logout().Wait(); err != nil {
		log.Printf("[replywatch] imap logout: %v", err)
	}
	_ = c.Close()
}

func firstAddr(addrs []imap.Address) string {
	for i := range addrs {
		if a := strings.TrimSpace(addrs[i].Addr()); a != "" {
			return a
		}
	}
	return ""
}
