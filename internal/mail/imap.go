package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"

	"github.com/nhle/mail-assistant/internal/model"
)

// snippetLimit caps how much body text a RawMessage carries. The
// conversation store holds snippets, not full bodies.
const snippetLimit = 200

// Client implements Transport over IMAP (fetch, flags) and SMTP (send).
// Each operation opens its own connection and logs out when done.
type Client struct {
	imapHost    string
	imapPort    string
	username    string
	password    string
	tls         bool
	sentMailbox string
	smtp        SMTPConfig
	logger      *slog.Logger
}

// NewClient creates a mail client from connection settings. The same
// username/password pair authenticates both IMAP and SMTP.
func NewClient(cfg model.MailConfig, password string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		logger:      logger,
		imapHost:    cfg.IMAPHost,
		imapPort:    cfg.IMAPPort,
		username:    cfg.Username,
		password:    password,
		tls:         cfg.TLS,
		sentMailbox: cfg.SentMailbox,
		smtp: SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.Username,
			Password: password,
			TLS:      cfg.TLS,
		},
	}
}

// connect establishes a connection to the IMAP server and authenticates.
// The caller is responsible for calling Logout on the returned client.
func (c *Client) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.imapHost + ":" + c.imapPort

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, &TransientError{
			Op:  "connect",
			Err: fmt.Errorf("connecting to IMAP %s: %w", addr, err),
		}
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			Message: fmt.Sprintf(
				"authentication failed for %s: %v", c.username, err,
			),
		}
	}

	return client, nil
}

// ListUnread selects INBOX and returns the UIDs of up to limit unseen
// messages, oldest first.
func (c *Client) ListUnread(ctx context.Context, limit int) ([]string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &TransientError{
			Op:  "search",
			Err: fmt.Errorf("searching unread messages: %w", err),
		}
	}

	uids := searchData.AllUIDs()
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}

	return ids, nil
}

// GetMessage fetches one inbox message by UID. The body section is
// fetched with Peek so the read state is untouched; MarkRead is the
// only operation that mutates it.
func (c *Client) GetMessage(ctx context.Context, id string) (*RawMessage, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	raw, err := fetchRawMessage(client, uid)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}

	return raw, nil
}

// MarkRead adds the \Seen flag to the message with the given UID.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}

	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return fmt.Errorf("selecting INBOX: %w", err)
	}

	storeCmd := client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return &TransientError{
			Op:  "mark-read",
			Err: fmt.Errorf("marking UID %d read: %w", uid, err),
		}
	}
	return nil
}

// ListSent selects the sent mailbox and returns up to limit of its
// most recent messages.
func (c *Client) ListSent(ctx context.Context, limit int) ([]RawMessage, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	mailbox := c.sentMailbox
	if mailbox == "" {
		mailbox = "Sent"
	}

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, &TransientError{
			Op:  "search",
			Err: fmt.Errorf("searching sent messages: %w", err),
		}
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	var messages []RawMessage
	for _, uid := range uids {
		raw, err := fetchRawMessage(client, uint32(uid))
		if err != nil {
			// Dropped sent messages shrink the self history, so make
			// the skip visible instead of failing the whole listing.
			c.logger.Warn("fetching sent message failed",
				"mailbox", mailbox, "uid", uint32(uid), "error", err)
			continue
		}
		if raw == nil {
			continue
		}
		messages = append(messages, *raw)
	}

	return messages, nil
}

// fetchRawMessage fetches envelope and body for one UID over an
// already-selected mailbox and builds a RawMessage from it.
func fetchRawMessage(
	client *imapclient.Client, uid uint32,
) (*RawMessage, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, nil
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message data: %w", err)
	}

	raw := &RawMessage{
		ID:      strconv.FormatUint(uint64(uid), 10),
		Headers: make(map[string]string),
	}

	if buf.Envelope != nil {
		env := buf.Envelope
		raw.Headers["Subject"] = env.Subject
		raw.Headers["Message-Id"] = env.MessageID
		raw.ThreadID = env.MessageID
		if !env.Date.IsZero() {
			raw.Headers["Date"] = env.Date.Format("Mon, 02 Jan 2006 15:04:05 -0700")
		}
		if len(env.From) > 0 {
			from := env.From[0]
			if from.Name != "" {
				raw.Headers["From"] = fmt.Sprintf("%s <%s>", from.Name, from.Addr())
			} else {
				raw.Headers["From"] = from.Addr()
			}
		}
		var to []string
		for _, addr := range env.To {
			to = append(to, addr.Addr())
		}
		if len(to) > 0 {
			raw.Headers["To"] = strings.Join(to, ", ")
		}
	}

	if rawBody := buf.FindBodySection(bodySection); rawBody != nil {
		raw.Snippet = snippetOf(extractTextBody(rawBody))
	}

	if err := fetchCmd.Close(); err != nil {
		return raw, fmt.Errorf("closing fetch: %w", err)
	}

	return raw, nil
}

// extractTextBody parses a raw RFC 2822 message with go-message and
// returns the text/plain part, falling back to stripped text/html.
func extractTextBody(raw []byte) string {
	reader := bytes.NewReader(raw)

	mr, err := gomail.CreateReader(reader)
	if err != nil {
		// If parsing fails, treat the whole thing as plain text.
		return string(raw)
	}
	defer mr.Close()

	var textBody, htmlBody string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	if textBody != "" {
		return textBody
	}
	return stripHTML(htmlBody)
}

// snippetOf collapses whitespace and truncates text to snippetLimit runes.
func snippetOf(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) > snippetLimit {
		return string(runes[:snippetLimit])
	}
	return collapsed
}

// parseUID converts a transport message ID to a uint32 IMAP UID.
func parseUID(id string) (uint32, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message UID %q: %w", id, err)
	}
	return uint32(uid), nil
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags from a string and decodes common
// entities, providing a basic plain-text rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
