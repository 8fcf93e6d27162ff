package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/Strob0t/dockside/internal/bot"
)

// namePattern is the strict plugin-name allow-pattern.
var namePattern = regexp.MustCompile(`^[a-z_]+$`)

// Validation sentinels.
var (
	ErrBadName       = errors.New("plugin: invalid name")
	ErrOutsideBase   = errors.New("plugin: path escapes plugins directory")
	ErrUnknown       = errors.New("plugin: no such plugin")
	ErrNeedsHost     = errors.New("plugin: requires running on the host machine")
	ErrAlreadyLoaded = errors.New("plugin: already loaded")
)

// blacklistedName rejects hidden files, traversal fragments, and bare
// source-file targets that must never be treated as plugin names.
func blacklistedName(name string) bool {
	if strings.HasPrefix(name, ".") || strings.Contains(name, "..") {
		return true
	}
	for _, sep := range []string{"/", "\\", ":"} {
		if strings.Contains(name, sep) {
			return true
		}
	}
	for _, ext := range []string{".go", ".so", ".py", ".sh"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Manager owns every loaded plugin through an explicit handle table and
// drops them on shutdown. Registration is idempotent per plugin name.
type Manager struct {
	basePath     string
	inContainer  bool
	env          Env
	pluginConfig map[string]map[string]string
	log          *slog.Logger

	mu        sync.Mutex
	instances map[string]Plugin
}

// NewManager creates a Manager rooted at basePath. inContainer reports
// whether the bot itself runs containerized, which excludes plugins that
// require the host machine.
func NewManager(basePath string, inContainer bool, env Env, pluginConfig map[string]map[string]string, log *slog.Logger) *Manager {
	return &Manager{
		basePath:     basePath,
		inContainer:  inContainer,
		env:          env,
		pluginConfig: pluginConfig,
		log:          log,
		instances:    make(map[string]Plugin),
	}
}

// validateName enforces the allow-pattern, the blacklist, and that the
// resolved path stays inside the plugins directory.
func (m *Manager) validateName(name string) error {
	if !namePattern.MatchString(name) || blacklistedName(name) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}

	resolved := filepath.Clean(filepath.Join(m.basePath, name))
	rel, err := filepath.Rel(m.basePath, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q", ErrOutsideBase, name)
	}
	return nil
}

// Load validates, constructs, permission-checks, and registers one plugin
// by name. A plugin already loaded under the same name is a no-op.
func (m *Manager) Load(name string, reg *bot.Registry) error {
	if err := m.validateName(name); err != nil {
		return err
	}

	m.mu.Lock()
	if _, loaded := m.instances[name]; loaded {
		m.mu.Unlock()
		m.log.Info("plugin already loaded", "plugin", name)
		return nil
	}
	m.mu.Unlock()

	factory, ok := factoryFor(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknown, name)
	}

	p, err := factory(m.env, m.pluginConfig[name])
	if err != nil {
		return fmt.Errorf("plugin %s: construct: %w", name, err)
	}

	info := p.Info()
	if info.Name != name {
		return fmt.Errorf("%w: factory %q produced plugin %q", ErrBadName, name, info.Name)
	}
	if info.Permissions.NeedRunningOnHostMachine && m.inContainer {
		return fmt.Errorf("%w: %q", ErrNeedsHost, name)
	}

	p.RegisterHandlers(reg)

	m.mu.Lock()
	m.instances[name] = p
	m.mu.Unlock()

	m.log.Info("plugin loaded", "plugin", name, "version", info.Version)
	return nil
}

// LoadAll loads every named plugin, registering handlers into reg. A
// single failing plugin never prevents the others from loading; each
// failure is logged with the plugin name.
func (m *Manager) LoadAll(names []string, reg *bot.Registry) {
	for _, name := range names {
		if err := m.Load(name, reg); err != nil {
			m.log.Error("plugin load failed", "plugin", name, "error", err)
		}
	}
}

// Loaded returns the names of all loaded plugins.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	return names
}

// Get returns a loaded plugin by name.
func (m *Manager) Get(name string) (Plugin, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.instances[name]
	return p, ok
}

// Drop unloads one plugin, running its cleanup.
func (m *Manager) Drop(name string) error {
	m.mu.Lock()
	p, ok := m.instances[name]
	delete(m.instances, name)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	if err := p.Cleanup(); err != nil {
		return fmt.Errorf("plugin %s: cleanup: %w", name, err)
	}
	return nil
}

// Shutdown runs every loaded plugin's cleanup and clears the handle
// table. Cleanup failures are logged, never propagated.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	instances := m.instances
	m.instances = make(map[string]Plugin)
	m.mu.Unlock()

	for name, p := range instances {
		if err := p.Cleanup(); err != nil {
			m.log.Error("plugin cleanup failed", "plugin", name, "error", err)
		}
	}
}
