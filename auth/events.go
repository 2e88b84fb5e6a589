package auth

import "github.com/jrsteele09/go-brief-portal/model"

type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	}
	return "unknown"
}

type EventType int

const (
	EventStateChanged EventType = iota
	EventAuthError
	EventSessionExpired
)

// ErrorContext says which operation an EventAuthError came from.
type ErrorContext string

const (
	ContextLogin        ErrorContext = "login"
	ContextLogout       ErrorContext = "logout"
	ContextRefresh      ErrorContext = "refresh"
	ContextUnauthorized ErrorContext = "unauthorized"
)

// Event is delivered to subscribers. Which fields are set depends on Type:
// State for EventStateChanged, Context, Code and Message for EventAuthError,
// Redirect and Err for EventSessionExpired.
type Event struct {
	Type     EventType
	State    State
	Context  ErrorContext
	Code     model.ErrorCode
	Message  string
	Redirect string
	Err      error
}

// Subscribe registers fn for session events and returns a function that removes it.
// fn must not call back into Subscribe.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubscriber
	m.nextSubscriber++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *Manager) emit(event Event) {
	m.mu.Lock()
	fns := make([]func(Event), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.mu.Unlock()

	m.logger.Debug().Stringer("state", state).Msg("auth state changed")
	m.emit(Event{Type: EventStateChanged, State: state})
}

func (m *Manager) authError(context ErrorContext, code model.ErrorCode, message string) {
	m.emit(Event{Type: EventAuthError, Context: context, Code: code, Message: message})
}
