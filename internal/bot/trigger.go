package bot

import (
	"context"
	"regexp"
	"strings"
)

// HandlerFunc processes one matched update. Handlers must be re-entrant;
// shared state lives only behind the session store and middleware maps.
type HandlerFunc func(ctx context.Context, u *Update) error

// Trigger decides whether a handler fires for an update. Exactly one of
// the match fields is set.
type Trigger struct {
	// Command matches a message whose text is this slash command,
	// optionally followed by arguments ("/start", "/containers").
	Command string
	// Pattern matches a message's full text against a regular expression
	// (keyboard-button triggers like "Load average").
	Pattern *regexp.Regexp
	// CallbackPrefix matches a callback query whose data begins with this
	// prefix ("__manage__:", "back_to_containers").
	CallbackPrefix string
	// CallbackPattern matches a callback query's full data against a
	// regular expression (signed-token predicates).
	CallbackPattern *regexp.Regexp
	// AnyMessage matches every message; used only by the fallback echo
	// handler registered last.
	AnyMessage bool
}

// Matches reports whether the trigger fires for u.
func (t Trigger) Matches(u *Update) bool {
	switch {
	case t.Command != "":
		if u.Message == nil {
			return false
		}
		cmd, _, _ := strings.Cut(u.Message.Text, " ")
		return cmd == t.Command
	case t.Pattern != nil:
		return u.Message != nil && t.Pattern.MatchString(u.Message.Text)
	case t.CallbackPrefix != "":
		return u.CallbackQuery != nil && strings.HasPrefix(u.CallbackQuery.Data, t.CallbackPrefix)
	case t.CallbackPattern != nil:
		return u.CallbackQuery != nil && t.CallbackPattern.MatchString(u.CallbackQuery.Data)
	case t.AnyMessage:
		return u.Message != nil
	}
	return false
}

type registration struct {
	trigger Trigger
	handler HandlerFunc
	name    string
}

// Registry is the static trigger→handler table, built once at startup and
// consulted for every dispatched update. Registration order is match
// order, so the fallback handler must be added last.
type Registry struct {
	entries []registration
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a trigger→handler registration. name labels the handler in
// dispatch logs.
func (r *Registry) Add(name string, t Trigger, h HandlerFunc) {
	r.entries = append(r.entries, registration{trigger: t, handler: h, name: name})
}

// Match returns the first registered handler whose trigger fires for u,
// or ("", nil) when none matches.
func (r *Registry) Match(u *Update) (string, HandlerFunc) {
	for _, e := range r.entries {
		if e.trigger.Matches(u) {
			return e.name, e.handler
		}
	}
	return "", nil
}

// Len returns the number of registrations, for startup logging and tests.
func (r *Registry) Len() int {
	return len(r.entries)
}
