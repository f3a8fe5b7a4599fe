// Package autoscale holds the rule storage and forwarding seam for the
// autoscaler. The autoscaler's own policy engine is an external collaborator
// per spec §1 ("referenced only by interface"); this package only stores
// rules and forwards scaling signals to a configured callback.
package autoscale

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/uber/fenzo-go/pkg/scalar"
	"github.com/uber/fenzo-go/pkg/task"
)

// Rule is a per-host-group autoscale policy (spec §3 Autoscale Rule).
type Rule struct {
	MinIdleHostsToKeep        int
	MaxIdleHostsToKeep        int
	CoolDown                  time.Duration
	ShortfallTriggerCapacity  scalar.Resources
}

// Validate enforces spec §8's boundary behaviors: minIdleHostsToKeep=0 is
// rejected at rule-add time, and min must not exceed max.
func (r Rule) Validate() error {
	if r.MinIdleHostsToKeep < 1 {
		return errors.New("minIdleHostsToKeep must be >= 1")
	}
	if r.MaxIdleHostsToKeep < r.MinIdleHostsToKeep {
		return errors.New("maxIdleHostsToKeep must be >= minIdleHostsToKeep")
	}
	return nil
}

// ActionKind distinguishes a scale-up request from a scale-down request.
type ActionKind string

const (
	// ActionScaleUp requests additional capacity in a group.
	ActionScaleUp ActionKind = "scale-up"
	// ActionScaleDown requests idle capacity be released from a group.
	ActionScaleDown ActionKind = "scale-down"
)

// Action is forwarded to the configured autoscaler callback (spec §6
// autoscalerCallback).
type Action struct {
	Kind        ActionKind
	Group       string
	Requested   scalar.Resources // shortfall to cover, for scale-up
	IdleHosts   int              // candidate idle hosts, for scale-down
}

// Callback receives forwarded scaling actions. Invocation is non-blocking
// from the scheduler's point of view (spec §4.6 step 8).
type Callback func(Action)

// Store holds per-group rules and forwards round-end signals to the
// configured Callback; scale-down signals honor each group's cooldown.
type Store struct {
	mu sync.Mutex

	byAttributeNameSet bool
	attributeName       string

	rules    map[string]Rule
	limiters map[string]*rate.Limiter

	callback                Callback
	disableShortfallEval    bool
}

// NewStore returns an empty autoscale rule store. callback may be nil, in
// which case forwarded signals are dropped (no autoscaler configured).
func NewStore(callback Callback, disableShortfallEval bool) *Store {
	return &Store{
		rules:                make(map[string]Rule),
		limiters:              make(map[string]*rate.Limiter),
		callback:              callback,
		disableShortfallEval: disableShortfallEval,
	}
}

// SetAttributeName records the host attribute naming the scaling group
// (spec §6 autoScaleByAttributeName). Must be called before any rule is
// added.
func (s *Store) SetAttributeName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributeName = name
	s.byAttributeNameSet = name != ""
}

// AddOrReplaceRule validates and stores a rule for group (spec §6
// addOrReplaceAutoScaleRule). Returns a usage error if the scale-attribute
// name has not been configured yet, or if the rule itself is malformed
// (spec §7a).
func (s *Store) AddOrReplaceRule(group string, rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.byAttributeNameSet {
		return errors.New("autoScaleByAttributeName must be configured before adding autoscale rules")
	}
	s.rules[group] = rule
	s.limiters[group] = rate.NewLimiter(rate.Every(rule.CoolDown), 1)
	return nil
}

// RemoveRule deletes the rule for group, if any (spec §6
// removeAutoScaleRule).
func (s *Store) RemoveRule(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, group)
	delete(s.limiters, group)
}

// Rules returns a copy of every configured rule, keyed by group (spec §6
// getAutoScaleRules).
func (s *Store) Rules() map[string]Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Rule, len(s.rules))
	for k, v := range s.rules {
		out[k] = v
	}
	return out
}

// SetCallback replaces the configured callback (spec §6
// setAutoscalerCallback). Requires the scale-attribute name to already be
// configured, matching spec §7a's "autoscaler callback set without
// scale-attribute" usage error.
func (s *Store) SetCallback(cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.byAttributeNameSet {
		return errors.New("autoScaleByAttributeName must be configured before setting an autoscaler callback")
	}
	s.callback = cb
	return nil
}

// Forward feeds idle host counts and tasks that failed for reasons other
// than quota into the autoscaler. For each group with a rule, it sends a
// scale-down action when the group's idle host count exceeds
// MaxIdleHostsToKeep and the group's cooldown limiter allows it. Unless
// shortfall evaluation is disabled, it then sends one scale-up action per
// group of failed tasks, carrying their summed resources; scale-up actions
// are not gated by rules or cooldowns. idleByGroup is not consulted. Called
// non-blockingly by the orchestrator at round end (spec §4.6 step 8, §6
// disableShortfallEvaluation).
func (s *Store) Forward(idleByGroup map[string]scalar.Resources, idleHostCountByGroup map[string]int, failedNotQuota []task.Request) {
	s.mu.Lock()
	cb := s.callback
	disableShortfall := s.disableShortfallEval
	rules := make(map[string]Rule, len(s.rules))
	for k, v := range s.rules {
		rules[k] = v
	}
	limiters := make(map[string]*rate.Limiter, len(s.limiters))
	for k, v := range s.limiters {
		limiters[k] = v
	}
	s.mu.Unlock()

	if cb == nil {
		return
	}

	go func() {
		for group, rule := range rules {
			if limiters[group] != nil && !limiters[group].Allow() {
				continue
			}
			if idle := idleHostCountByGroup[group]; idle > rule.MaxIdleHostsToKeep {
				cb(Action{Kind: ActionScaleDown, Group: group, IdleHosts: idle})
			}
		}

		if disableShortfall {
			return
		}
		shortfallByGroup := map[string]scalar.Resources{}
		for _, req := range failedNotQuota {
			shortfallByGroup[req.GroupName] = shortfallByGroup[req.GroupName].Add(req.Resources)
		}
		for group, need := range shortfallByGroup {
			log.WithField("group", group).Debug("forwarding scale-up shortfall")
			cb(Action{Kind: ActionScaleUp, Group: group, Requested: need})
		}
	}()
}
