// Package plugin defines the extension port and its factory registry,
// plus the manager that discovers, validates, and registers plugins at
// startup.
package plugin

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Strob0t/dockside/internal/bot"
)

// Permissions declares what a plugin needs from the host.
type Permissions struct {
	// BasePermission names the minimum caller class required for the
	// plugin's handlers: "user" or "admin".
	BasePermission string
	// NeedRunningOnHostMachine excludes the plugin when the bot itself
	// runs inside a container.
	NeedRunningOnHostMachine bool
}

// ResourceLimits bounds a plugin's declared appetite. Zero values mean
// unbounded; the manager records them for operators, it does not meter.
type ResourceLimits struct {
	MaxHandlers int
}

// Info is the metadata a plugin must expose.
type Info struct {
	Name        string
	Version     string
	Description string
	// Commands maps a slash command (without the slash) to its help line.
	Commands map[string]string
	// IndexKey maps keyboard-button text to the trigger it fires.
	IndexKey map[string]string
	Permissions    Permissions
	ResourceLimits ResourceLimits
}

// Plugin is the port every extension implements.
type Plugin interface {
	// Info returns the plugin's metadata; Name must match the registered
	// factory name.
	Info() Info

	// RegisterHandlers adds the plugin's triggers to the dispatch table.
	RegisterHandlers(reg *bot.Registry)

	// Cleanup releases plugin resources at shutdown. Optional work; a
	// plugin with nothing to release returns nil.
	Cleanup() error
}

// Env is what the host hands each plugin at construction: the platform
// client for replies and a logger scoped by the manager.
type Env struct {
	Client bot.Client
	Log    *slog.Logger
}

// Factory constructs a plugin instance from the host environment and the
// plugin's configuration bag.
type Factory func(env Env, config map[string]string) (Plugin, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// RegisterFactory makes a plugin factory available by name. It is called
// from init() in each plugin package, activated by a blank import.
func RegisterFactory(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("plugin: duplicate registration for %q", name))
	}
	factories[name] = factory
}

// factoryFor returns the registered factory for name.
func factoryFor(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Available returns the names of all registered plugin factories.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
