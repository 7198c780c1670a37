package plugin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/felixgeelhaar/crew/pkg/domain/agent"
)

// PluginName is the key every crew plugin serves its agent under.
const PluginName = "agent"

var HandshakeConfig = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "CREW_PLUGIN",
	MagicCookieValue: "crew",
}

var PluginMap = map[string]goplugin.Plugin{
	PluginName: &AgentPlugin{},
}

// Serve runs a as a plugin. It is called from the plugin binary's main and
// does not return.
func Serve(a agent.Agent) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]goplugin.Plugin{
			PluginName: &AgentPlugin{Impl: a},
		},
	})
}

// Loader starts plugin binaries and keeps them running until Cleanup.
type Loader struct {
	mu      sync.Mutex
	plugins map[string]*goplugin.Client
}

func NewLoader() *Loader {
	return &Loader{
		plugins: make(map[string]*goplugin.Client),
	}
}

// Load starts the binary at path and returns its agent.
func (l *Loader) Load(path string) (agent.Agent, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid plugin path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("plugin not found: %s", absPath)
		}
		return nil, fmt.Errorf("cannot access plugin: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("plugin path is a directory: %s", absPath)
	}
	if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
		return nil, fmt.Errorf("plugin is not executable: %s", absPath)
	}

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  HandshakeConfig,
		Plugins:          PluginMap,
		Cmd:              exec.Command(absPath),
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to start plugin: %w", err)
	}
	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense plugin: %w", err)
	}
	a, ok := raw.(agent.Agent)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s does not serve an agent", absPath)
	}

	l.mu.Lock()
	if old, ok := l.plugins[absPath]; ok {
		old.Kill()
	}
	l.plugins[absPath] = client
	l.mu.Unlock()
	return a, nil
}

// Cleanup stops every loaded plugin process.
func (l *Loader) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for path, client := range l.plugins {
		client.Kill()
		delete(l.plugins, path)
	}
}

// Close is Cleanup with a closer signature.
func (l *Loader) Close() error {
	l.Cleanup()
	return nil
}
