// Package policy decides whether tool calls run, ask, or are refused, and
// translates confirmation outcomes into new authorization rules.
package policy

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"ward/internal/logging"
	"ward/internal/ports"
	"ward/internal/shellcmd"
)

// sessionCacheSize bounds remembered session-only grants.
const sessionCacheSize = 512

// Engine is a prefix-rule policy engine. Persisted rules come from the rule
// store; session-only grants live in an LRU so a long session cannot grow
// them without bound.
type Engine struct {
	mu      sync.RWMutex
	rules   []ports.PolicyRule
	session *lru.Cache[string, ports.PolicyRule]
	store   *RuleStore
	logger  logging.Logger
}

// NewEngine creates an engine seeded with the store's persisted rules. A nil
// store yields a purely in-memory engine.
func NewEngine(store *RuleStore, logger logging.Logger) (*Engine, error) {
	session, err := lru.New[string, ports.PolicyRule](sessionCacheSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		session: session,
		store:   store,
		logger:  logging.OrNop(logger),
	}

	if store != nil {
		rules, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("load persisted rules: %w", err)
		}
		e.rules = rules
	}
	return e, nil
}

// AddRule installs a static rule (e.g. from settings).
func (e *Engine) AddRule(rule ports.PolicyRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
}

// Rules returns every active rule: static and persisted first, then
// session-only grants.
func (e *Engine) Rules() []ports.PolicyRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ports.PolicyRule, 0, len(e.rules)+e.session.Len())
	out = append(out, e.rules...)
	out = append(out, e.session.Values()...)
	return out
}

// Check returns the decision for one call. Deny rules win over allow rules;
// anything unmatched asks the user.
func (e *Engine) Check(_ context.Context, call ports.CallMetadata) (ports.PolicyDecision, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if rule := e.match(call, ports.VerdictDeny); rule != nil {
		return ports.PolicyDecision{Verdict: ports.VerdictDeny, Rule: rule}, nil
	}
	if rule := e.match(call, ports.VerdictAllow); rule != nil {
		return ports.PolicyDecision{Verdict: ports.VerdictAllow, Rule: rule}, nil
	}
	return ports.PolicyDecision{Verdict: ports.VerdictAskUser}, nil
}

// match finds the first rule with the wanted verdict covering the call.
// Caller holds at least the read lock.
func (e *Engine) match(call ports.CallMetadata, verdict ports.Verdict) *ports.PolicyRule {
	for i := range e.rules {
		rule := e.rules[i]
		if rule.Verdict != verdict {
			continue
		}
		if ruleCovers(rule, call) {
			return &rule
		}
	}
	if verdict != ports.VerdictAllow {
		return nil
	}
	for _, key := range e.session.Keys() {
		rule, ok := e.session.Get(key)
		if !ok {
			continue
		}
		if ruleCovers(rule, call) {
			return &rule
		}
	}
	return nil
}

// CoversCommand reports whether every sub-command of command is already
// allowed for toolName. Invocations consult this to skip confirmations that
// a broader prior approval covers.
func (e *Engine) CoversCommand(toolName, command string) bool {
	subs := shellcmd.SplitCompound(command)
	if len(subs) == 0 {
		return false
	}
	for _, sub := range subs {
		decision, _ := e.Check(context.Background(), ports.CallMetadata{
			ToolName: toolName,
			Command:  sub,
		})
		if decision.Verdict != ports.VerdictAllow {
			return false
		}
	}
	return true
}

// ApplyUpdate consumes one published policy update. Wired to the message bus
// through the scheduler's subscription registry.
func (e *Engine) ApplyUpdate(update ports.PolicyUpdate) {
	rules := rulesFromUpdate(update)
	if len(rules) == 0 {
		return
	}

	e.mu.Lock()
	if update.Persist {
		e.rules = append(e.rules, rules...)
	} else {
		for _, rule := range rules {
			e.session.Add(sessionKey(rule), rule)
		}
	}
	e.mu.Unlock()

	if update.Persist && e.store != nil {
		if err := e.store.Append(rules); err != nil {
			// Persistence is fire and forget; the call state machine never
			// sees this failure.
			e.logger.Warn("failed to persist %d policy rules: %v", len(rules), err)
		}
	}
}

func rulesFromUpdate(update ports.PolicyUpdate) []ports.PolicyRule {
	var rules []ports.PolicyRule
	switch {
	case update.ServerName != "" && update.ToolName == "":
		rules = append(rules, ports.PolicyRule{
			ServerName: update.ServerName,
			Verdict:    ports.VerdictAllow,
			Persisted:  update.Persist,
		})
	case len(update.Prefixes) > 0:
		for _, prefix := range update.Prefixes {
			rules = append(rules, ports.PolicyRule{
				ToolName:  update.ToolName,
				Pattern:   prefix,
				Verdict:   ports.VerdictAllow,
				Persisted: update.Persist,
			})
		}
	case update.ToolName != "":
		rules = append(rules, ports.PolicyRule{
			ToolName:  update.ToolName,
			Verdict:   ports.VerdictAllow,
			Persisted: update.Persist,
		})
	}
	return rules
}

func sessionKey(rule ports.PolicyRule) string {
	return rule.ToolName + "\x00" + rule.ServerName + "\x00" + rule.Pattern
}

// ruleCovers reports whether rule authorizes the call.
func ruleCovers(rule ports.PolicyRule, call ports.CallMetadata) bool {
	if rule.ServerName != "" {
		return rule.ServerName == call.ServerName && (rule.ToolName == "" || rule.ToolName == call.ToolName)
	}
	if rule.ToolName != "" && rule.ToolName != call.ToolName {
		return false
	}
	if rule.Pattern == "" {
		return rule.ToolName != ""
	}
	if call.Command == "" {
		return false
	}
	for _, sub := range shellcmd.SplitCompound(call.Command) {
		if !prefixCovers(rule.Pattern, sub) {
			return false
		}
	}
	return true
}

// prefixCovers matches pattern tokens against the command's leading tokens.
func prefixCovers(pattern, command string) bool {
	want := shellcmd.Fields(pattern)
	have := shellcmd.Fields(command)
	if len(want) == 0 || len(want) > len(have) {
		return false
	}
	for i, token := range want {
		if have[i] != token {
			// A one-token pattern also covers path-qualified binaries.
			if i == 0 && len(want) == 1 && shellcmd.Binary(command) == token {
				return true
			}
			return false
		}
	}
	return true
}
