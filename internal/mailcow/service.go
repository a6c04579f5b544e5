package mailcow

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nhle/mailcow-companion/internal/observable"
	"github.com/nhle/mailcow-companion/internal/settings"
)

// API endpoints, relative to /api/v1/.
const (
	EndpointDomains   = "get/domain/all"
	EndpointMailboxes = "get/mailbox/all"
	EndpointAddAlias  = "add/alias"
)

// User-facing messages.
const (
	MsgDomainsFailed   = "Failed to load domains"
	MsgMailboxesFailed = "Failed to load mailboxes"
	MsgAliasCreated    = "Alias created successfully!"
	MsgAliasFailed     = "Failed to create alias"
)

// Notifier receives user-facing messages. notify.Store satisfies it.
type Notifier interface {
	Success(message string) string
	Error(message string) string
}

// SettingsSource publishes settings changes. settings.Store satisfies it.
type SettingsSource interface {
	Subscribe(fn func(settings.Settings)) func()
}

// Fields holding the display name of each list record.
const (
	fieldDomainName = "domain_name"
	fieldUsername   = "username"
)

// AliasRequest is the body of an add/alias call.
type AliasRequest struct {
	Address string `json:"address"`
	Goto    string `json:"goto"`
	Active  int    `json:"active"`
}

// Service exposes the domain and mailbox lists and alias creation.
type Service struct {
	client    *Client
	notifier  Notifier
	logger    *zap.Logger
	domains   *observable.Store[[]string]
	mailboxes *observable.Store[[]string]
}

// NewService creates a Service with empty lists.
func NewService(client *Client, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:    client,
		notifier:  notifier,
		logger:    logger,
		domains:   observable.New([]string{}),
		mailboxes: observable.New([]string{}),
	}
}

// Watch empties both lists whenever src becomes unconfigured. The
// returned function stops watching.
func (s *Service) Watch(src SettingsSource) func() {
	return src.Subscribe(func(cur settings.Settings) {
		if !cur.Configured() {
			s.domains.Set([]string{})
			s.mailboxes.Set([]string{})
		}
	})
}

// Domains is the list of domain names from the last load.
func (s *Service) Domains() observable.Readable[[]string] {
	return s.domains
}

// Mailboxes is the list of mailbox usernames from the last load.
func (s *Service) Mailboxes() observable.Readable[[]string] {
	return s.mailboxes
}

// LoadDomains replaces the domain list with the server's domains. On
// failure the list is emptied; request errors also notify the user.
func (s *Service) LoadDomains(ctx context.Context) {
	s.loadList(ctx, EndpointDomains, s.domains, MsgDomainsFailed, fieldDomainName)
}

// LoadMailboxes replaces the mailbox list with the server's mailboxes.
// Failure handling matches LoadDomains.
func (s *Service) LoadMailboxes(ctx context.Context) {
	s.loadList(ctx, EndpointMailboxes, s.mailboxes, MsgMailboxesFailed, fieldUsername)
}

// loadList fetches endpoint and publishes field of every record into
// target. Only a payload that is not an array counts as malformed; a
// record that is not an object is skipped.
func (s *Service) loadList(
	ctx context.Context,
	endpoint string,
	target *observable.Store[[]string],
	failMsg string,
	field string,
) {
	data, err := s.client.FetchWithAuth(ctx, endpoint, RequestOptions{})
	if err != nil {
		s.notifier.Error(failMsg)
		s.logger.Error("loading list", zap.String("endpoint", endpoint), zap.Error(err))
		target.Set([]string{})
		return
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil || records == nil {
		// Malformed payloads are not reported to the user.
		s.logger.Error("invalid list data",
			zap.String("endpoint", endpoint),
			zap.ByteString("data", data),
		)
		target.Set([]string{})
		return
	}

	names := make([]string, 0, len(records))
	for i, raw := range records {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			s.logger.Warn("skipping list record",
				zap.String("endpoint", endpoint),
				zap.Int("index", i),
				zap.ByteString("record", raw),
			)
			continue
		}
		names = append(names, fieldText(fields[field]))
	}
	target.Set(names)
}

// fieldText renders a JSON value as text: strings unquoted, null or
// absent as "", anything else as its JSON encoding.
func fieldText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// CreateAlias creates alias@domain forwarding to target and returns the
// server response unmodified.
func (s *Service) CreateAlias(
	ctx context.Context,
	alias, domain, target string,
) (json.RawMessage, error) {
	resp, err := s.client.FetchWithAuth(ctx, EndpointAddAlias, RequestOptions{
		Method: http.MethodPost,
		Body: AliasRequest{
			Address: alias + "@" + domain,
			Goto:    target,
			Active:  1,
		},
	})
	if err != nil {
		s.notifier.Error(MsgAliasFailed)
		return nil, err
	}

	s.notifier.Success(MsgAliasCreated)
	return resp, nil
}
