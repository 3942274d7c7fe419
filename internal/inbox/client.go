// Package inbox reads the user's own mailbox over IMAP to pick up the
// verification and reset codes the server mails out.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/todopro/internal/model"
)

// ErrNoMessage is returned when no matching message has arrived.
var ErrNoMessage = errors.New("no matching message in mailbox")

// Message is a fetched mail reduced to what the extractors need.
type Message struct {
	UID     uint32
	Subject string
	From    string
	Date    time.Time
	Text    string
}

// Client is an IMAP client configuration. Every call opens its own
// connection and logs out when done.
type Client struct {
	cfg model.InboxConfig
}

func NewClient(cfg model.InboxConfig) *Client {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	return &Client{cfg: cfg}
}

// Configured reports whether a host and user are set.
func (c *Client) Configured() bool {
	return c.cfg.Host != "" && c.cfg.Username != ""
}

func (c *Client) connect() (*imapclient.Client, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	var client *imapclient.Client
	var err error
	if c.cfg.Port == 143 {
		client, err = imapclient.DialStartTLS(addr, nil)
	} else {
		client, err = imapclient.DialTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("IMAP login as %s: %w", c.cfg.Username, err)
	}
	return client, nil
}

// Latest returns the newest message received since the given time whose
// subject contains subject. The configured sender, if any, narrows the
// search.
func (c *Client) Latest(ctx context.Context, subject string, since time.Time) (*Message, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", c.cfg.Mailbox, err)
	}

	// SINCE has day granularity; the exact cut-off is applied below.
	criteria := &imap.SearchCriteria{Since: since}
	if c.cfg.Sender != "" {
		criteria.Header = []imap.SearchCriteriaHeaderField{{Key: "From", Value: c.cfg.Sender}}
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, ErrNoMessage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	var found []*Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		m := messageFromBuffer(buf, bodySection)
		if m.Date.Before(since) || !strings.Contains(m.Subject, subject) {
			continue
		}
		found = append(found, m)
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	return newest(found)
}

// WaitFor polls Latest every interval until a message arrives or ctx ends.
func (c *Client) WaitFor(ctx context.Context, subject string, since time.Time, interval time.Duration) (*Message, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		msg, err := c.Latest(ctx, subject, since)
		if !errors.Is(err, ErrNoMessage) {
			return msg, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %q: %w", subject, ctx.Err())
		case <-ticker.C:
		}
	}
}

func messageFromBuffer(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) *Message {
	m := &Message{UID: uint32(buf.UID), Date: buf.InternalDate}
	if buf.Envelope != nil {
		m.Subject = buf.Envelope.Subject
		if !buf.Envelope.Date.IsZero() && m.Date.IsZero() {
			m.Date = buf.Envelope.Date
		}
		if len(buf.Envelope.From) > 0 {
			m.From = buf.Envelope.From[0].Addr()
		}
	}
	if raw := buf.FindBodySection(section); raw != nil {
		m.Text = ParseText(raw)
	}
	return m
}

func newest(msgs []*Message) (*Message, error) {
	if len(msgs) == 0 {
		return nil, ErrNoMessage
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Date.Equal(msgs[j].Date) {
			return msgs[i].UID > msgs[j].UID
		}
		return msgs[i].Date.After(msgs[j].Date)
	})
	return msgs[0], nil
}
