// Package mailbox reads inbound mail over IMAP for reply detection.
//
// A Session is one authenticated connection with INBOX selected. The
// poller opens a session per cycle, fetches everything past its UID
// cursor, and marks processed messages seen before closing.
package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/pkg/logger"
)

// Message is one fetched inbound email with the headers reply
// correlation needs and the cleaned visible text.
type Message struct {
	UID        uint32
	MessageID  string
	InReplyTo  []string
	References []string
	From       string
	Subject    string
	Date       time.Time
	Body       string
}

// Session is an open mailbox connection.
type Session interface {
	// FetchSince returns up to max messages with UID strictly greater
	// than afterUID, in ascending UID order. A message that cannot be
	// parsed is returned as a placeholder carrying only its UID, so the
	// caller can mark it seen and move its cursor past it.
	FetchSince(ctx context.Context, afterUID uint32, max int) ([]Message, error)

	// MarkSeen flags the given messages as read.
	MarkSeen(ctx context.Context, uids []uint32) error

	Close() error
}

// Dialer opens mailbox sessions. The production implementation speaks
// IMAP; tests substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, settings *domain.OrgMailSettings) (Session, error)
}

// IMAPDialer opens TLS IMAP connections using per-org settings.
type IMAPDialer struct{}

// NewDialer creates the production IMAP dialer.
func NewDialer() *IMAPDialer { return &IMAPDialer{} }

func (d *IMAPDialer) Dial(ctx context.Context, s *domain.OrgMailSettings) (Session, error) {
	addr := fmt.Sprintf("%s:%d", s.IMAPHost, s.IMAPPort)

	var c *imapclient.Client
	var err error
	if s.IMAPUseSSL {
		c, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: s.IMAPHost},
		})
	} else {
		c, err = imapclient.DialStartTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: s.IMAPHost},
		})
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", addr, err)
	}

	if err := c.Login(s.IMAPUsername, s.IMAPPassword).Wait(); err != nil {
		c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select("INBOX", nil).Wait(); err != nil {
		c.Logout().Wait()
		c.Close()
		return nil, fmt.Errorf("select inbox: %w", err)
	}
	return &imapSession{c: c}, nil
}

type imapSession struct {
	c *imapclient.Client
}

func (s *imapSession) FetchSince(ctx context.Context, afterUID uint32, max int) ([]Message, error) {
	criteria := &imap.SearchCriteria{
		UID: []imap.UIDSet{{imap.UIDRange{Start: imap.UID(afterUID + 1), Stop: 0}}},
	}
	search, err := s.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	uids := search.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if max > 0 && len(uids) > max {
		uids = uids[:max]
	}

	var set imap.UIDSet
	for _, uid := range uids {
		set.AddNum(uid)
	}
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetch := s.c.Fetch(set, &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})

	var out []Message
	for {
		msgData := fetch.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			fetch.Close()
			return nil, fmt.Errorf("collect message: %w", err)
		}
		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			// No body section in the response; keep the UID so the
			// poller still marks it seen and the cursor moves past it.
			out = append(out, Message{UID: uint32(buf.UID)})
			continue
		}
		msg, err := ParseMessage(uint32(buf.UID), raw)
		if err != nil {
			// An unparseable message must still count toward the
			// cursor; dropping it here would refetch it every cycle.
			logger.Warn("inbound message parse failed",
				"uid", fmt.Sprintf("%d", uint32(buf.UID)), "error", err.Error())
			out = append(out, Message{UID: uint32(buf.UID)})
			continue
		}
		out = append(out, *msg)
	}
	if err := fetch.Close(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return out, nil
}

func (s *imapSession) MarkSeen(ctx context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	var set imap.UIDSet
	for _, uid := range uids {
		set.AddNum(imap.UID(uid))
	}
	flags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := s.c.Store(set, flags, nil).Close(); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

func (s *imapSession) Close() error {
	err := s.c.Logout().Wait()
	s.c.Close()
	return err
}
