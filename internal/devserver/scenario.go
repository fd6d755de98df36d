package devserver

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ScenarioEvent is one scripted frame: wait Delay, then broadcast the event.
type ScenarioEvent struct {
	Delay   time.Duration  `yaml:"delay"`
	Type    string         `yaml:"type"`
	Payload map[string]any `yaml:"payload"`
}

// Scenario is an ordered script of events replayed to every connected client.
type Scenario struct {
	Name   string          `yaml:"name"`
	Events []ScenarioEvent `yaml:"events"`
}

// LoadScenario parses a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses YAML scenario bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	for i, evt := range s.Events {
		if evt.Type == "" {
			return nil, fmt.Errorf("scenario event %d has no type", i)
		}
		if evt.Delay < 0 {
			return nil, fmt.Errorf("scenario event %d has negative delay", i)
		}
	}
	return &s, nil
}

// DefaultScenario is a small built-in demo: one goal executing three steps
// with a retry, a pending approval, a signal, and a chat reply.
func DefaultScenario() *Scenario {
	step := 400 * time.Millisecond
	return &Scenario{
		Name: "demo",
		Events: []ScenarioEvent{
			{Delay: step, Type: "step_started", Payload: map[string]any{
				"goal_id": "demo-goal", "step_id": "s1", "agent": "scout", "title": "Find champions"}},
			{Delay: step, Type: "step_completed", Payload: map[string]any{
				"goal_id": "demo-goal", "step_id": "s1", "success": true}},
			{Delay: step, Type: "step_started", Payload: map[string]any{
				"goal_id": "demo-goal", "step_id": "s2", "agent": "outreach", "title": "Draft outreach email"}},
			{Delay: step, Type: "step_retrying", Payload: map[string]any{
				"goal_id": "demo-goal", "step_id": "s2", "retry_count": 2, "reason": "rate limited"}},
			{Delay: step, Type: "step_completed", Payload: map[string]any{
				"goal_id": "demo-goal", "step_id": "s2", "success": true}},
			{Delay: step, Type: "action.pending", Payload: map[string]any{
				"action_id": "demo-action", "title": "Send intro email to ACME", "agent": "outreach", "risk_level": "medium"}},
			{Delay: step, Type: "signal.detected", Payload: map[string]any{
				"title": "ACME announced a new funding round", "signal_type": "news", "severity": "info"}},
			{Delay: step, Type: "aria.message", Payload: map[string]any{
				"message_id": "demo-msg", "role": "assistant", "delta": "Two renewal accounts "}},
			{Delay: step, Type: "aria.message", Payload: map[string]any{
				"message_id": "demo-msg", "delta": "need attention today.", "complete": true}},
			{Delay: step, Type: "step_started", Payload: map[string]any{
				"goal_id": "demo-goal", "step_id": "s3", "agent": "ops", "title": "Log activity in CRM"}},
			{Delay: step, Type: "step_completed", Payload: map[string]any{
				"goal_id": "demo-goal", "step_id": "s3", "success": true}},
			{Delay: step, Type: "execution.complete", Payload: map[string]any{
				"goal_id": "demo-goal", "success": true}},
			{Delay: step, Type: "briefing.ready", Payload: map[string]any{
				"briefing_id": "demo-briefing", "duration": 120, "topics": []string{"renewals", "outreach"}}},
		},
	}
}
