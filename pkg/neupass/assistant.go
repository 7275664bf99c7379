package neupass

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"

	"github.com/aussiebroadwan/neupass/pkg/slogx"
)

// Assistant API paths.
const (
	AssistantNewSessionIDPath  = "/site/voom/get_new_session_id"
	AssistantSessionUpdatePath = "/site/voom/session_update"
	AssistantSessionListPath   = "/site/voom/session_list"
	AssistantChatHistoryPath   = "/site/voom/chat_history_info"
	AssistantComposeChatPath   = "/site/ai/compose_chat"
	AssistantNewChatRecordPath = "/common/voom/new_chat_record"
)

// AssistantClient drives the campus AI assistant.
type AssistantClient struct {
	client  *Client
	tickets portalTickets

	mu      sync.Mutex
	session *AssistantSession
}

// NewAssistantClient creates an AssistantClient reading credentials from store.
func NewAssistantClient(client *Client, store CredentialStore) *AssistantClient {
	return &AssistantClient{
		client:  client,
		tickets: portalTickets{client: client, store: store},
	}
}

// Login establishes a new assistant session.
func (a *AssistantClient) Login(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.login(ctx)
}

func (a *AssistantClient) login(ctx context.Context) error {
	ctx = beginFlow(ctx, "assistant")
	a.session = nil

	var session AssistantSession
	err := a.tickets.withServiceTicket(ctx, a.client.Endpoints.AssistantCallbackURL(), func(ticket ServiceTicket) error {
		s, err := a.client.LoginAssistantSession(ctx, ticket)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return err
	}

	a.session = &session
	slogx.FromContext(ctx).Info("assistant session established")
	return nil
}

// Session returns the current session, if any.
func (a *AssistantClient) Session() (AssistantSession, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return AssistantSession{}, false
	}
	return *a.session, true
}

// NewSessionID asks the assistant for a new conversation id.
func (a *AssistantClient) NewSessionID(ctx context.Context) (string, error) {
	return assistantCall[string](ctx, a, AssistantNewSessionIDPath, nil, nil)
}

// SessionList lists the user's conversations.
func (a *AssistantClient) SessionList(ctx context.Context) (json.RawMessage, error) {
	return a.Call(ctx, AssistantSessionListPath, nil, nil)
}

// ChatHistoryInfo fetches the history of one conversation.
func (a *AssistantClient) ChatHistoryInfo(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return a.Call(ctx, AssistantChatHistoryPath, query, nil)
}

// UpdateSession updates conversation metadata.
func (a *AssistantClient) UpdateSession(ctx context.Context, form map[string]string) (json.RawMessage, error) {
	return a.Call(ctx, AssistantSessionUpdatePath, nil, form)
}

// NewChatRecord records a chat message.
func (a *AssistantClient) NewChatRecord(ctx context.Context, form map[string]string) (json.RawMessage, error) {
	return a.Call(ctx, AssistantNewChatRecordPath, nil, form)
}

// Call performs an arbitrary assistant API call and returns the raw payload.
func (a *AssistantClient) Call(ctx context.Context, path string, query url.Values, form map[string]string) (json.RawMessage, error) {
	return assistantCall[json.RawMessage](ctx, a, path, query, form)
}

func assistantCall[T any](ctx context.Context, a *AssistantClient, path string, query url.Values, form map[string]string) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rawURL := a.client.Endpoints.AssistantURL(path, query)

	if a.session == nil {
		if err := a.login(ctx); err != nil {
			var zero T
			return zero, err
		}
	}

	out, err := RequestForm[T](ctx, a.client, *a.session, rawURL, form)
	if !errors.Is(err, ErrSessionExpired) {
		return out, err
	}

	slogx.FromContext(ctx).Info("assistant session expired, logging in again")
	if err := a.login(ctx); err != nil {
		var zero T
		return zero, err
	}
	return RequestForm[T](ctx, a.client, *a.session, rawURL, form)
}
