// Package catalog resolves tool names to validated invocations.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonrepair"

	"ward/internal/logging"
	"ward/internal/ports"
)

// Catalog holds the registered tools, split by origin the way the model
// surfaces them: builtin, dynamically registered, and MCP-sourced.
type Catalog struct {
	mu      sync.RWMutex
	static  map[string]ports.Tool
	dynamic map[string]ports.Tool
	mcp     map[string]ports.Tool
	logger  logging.Logger
}

// New creates an empty catalog.
func New(logger logging.Logger) *Catalog {
	return &Catalog{
		static:  make(map[string]ports.Tool),
		dynamic: make(map[string]ports.Tool),
		mcp:     make(map[string]ports.Tool),
		logger:  logging.OrNop(logger),
	}
}

// RegisterBuiltin adds a builtin tool. Builtins cannot be replaced.
func (c *Catalog) RegisterBuiltin(tool ports.Tool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := tool.Name()
	if _, exists := c.static[name]; exists {
		return fmt.Errorf("tool already exists: %s", name)
	}
	c.static[name] = tool
	return nil
}

// Register adds a dynamic or MCP tool. Tools named mcp__* land in the MCP map.
func (c *Catalog) Register(tool ports.Tool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := tool.Name()
	if _, exists := c.static[name]; exists {
		return fmt.Errorf("tool already exists: %s", name)
	}
	if strings.HasPrefix(name, "mcp__") {
		c.mcp[name] = tool
	} else {
		c.dynamic[name] = tool
	}
	return nil
}

// Unregister removes a dynamic or MCP tool. Builtins stay.
func (c *Catalog) Unregister(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.static[name]; ok {
		return fmt.Errorf("cannot unregister builtin tool: %s", name)
	}
	delete(c.dynamic, name)
	delete(c.mcp, name)
	return nil
}

// GetTool retrieves a tool by name.
func (c *Catalog) GetTool(name string) (ports.Tool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if tool, ok := c.static[name]; ok {
		return tool, nil
	}
	if tool, ok := c.dynamic[name]; ok {
		return tool, nil
	}
	if tool, ok := c.mcp[name]; ok {
		return tool, nil
	}
	return nil, fmt.Errorf("tool not found: %s", name)
}

// AllToolNames returns every registered name, sorted.
func (c *Catalog) AllToolNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.static)+len(c.dynamic)+len(c.mcp))
	for name := range c.static {
		names = append(names, name)
	}
	for name := range c.dynamic {
		names = append(names, name)
	}
	for name := range c.mcp {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildInvocation resolves name and raw args into a validated invocation.
// Malformed argument JSON gets one repair attempt before failing; the model
// routinely emits almost-JSON.
func (c *Catalog) BuildInvocation(name string, rawArgs json.RawMessage) (ports.Invocation, error) {
	tool, err := c.GetTool(name)
	if err != nil {
		return nil, err
	}

	args, err := c.parseArgs(rawArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
	}

	return tool.Build(args)
}

func (c *Catalog) parseArgs(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err == nil {
		return args, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(raw))
	if repairErr != nil {
		return nil, fmt.Errorf("unparseable argument JSON: %w", repairErr)
	}
	c.logger.Info("repaired malformed argument JSON (%d -> %d bytes)", len(raw), len(repaired))

	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, fmt.Errorf("argument JSON invalid even after repair: %w", err)
	}
	return args, nil
}
