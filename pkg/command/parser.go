// Package command maps free-form chat text onto the gateway's bounded
// command vocabulary. Most chat messages are not device commands, so "no
// match" is a normal outcome, never an error.
package command

import (
	"strings"
)

type Action string

const (
	ActionEnable    Action = "enable"
	ActionDisable   Action = "disable"
	ActionGetStatus Action = "getStatus"
)

// Command is a recognized device command. It is ephemeral: constructed per
// inbound message and never persisted.
type Command struct {
	Action   Action
	DeviceID string
}

type ResultKind int

const (
	// KindNoMatch: the text is not a device command at all.
	KindNoMatch ResultKind = iota
	// KindMatch: a command with a known device id.
	KindMatch
	// KindUnknownDevice: a recognized verb with a device token that resolves
	// to no catalog id. Distinct from KindNoMatch so callers can answer with
	// a not-found response instead of staying silent.
	KindUnknownDevice
)

type Result struct {
	Kind    ResultKind
	Command Command
	// Token is the unresolved device token for KindUnknownDevice.
	Token string
}

// verbs are matched as prefixes of the lowercased input, longest first.
// "set status on|off" is the original gateway's alias for enable|disable.
var verbs = []struct {
	phrase string
	action Action
}{
	{"set status on", ActionEnable},
	{"set status off", ActionDisable},
	{"/setstatus on", ActionEnable},
	{"/setstatus off", ActionDisable},
	{"turn on", ActionEnable},
	{"turn off", ActionDisable},
	{"get status", ActionGetStatus},
	{"/getstatus", ActionGetStatus},
	{"/enable", ActionEnable},
	{"/disable", ActionDisable},
	{"enable", ActionEnable},
	{"disable", ActionDisable},
	{"status", ActionGetStatus},
	{"check", ActionGetStatus},
}

// Parser resolves device tokens against the closed catalog id set.
type Parser struct {
	ids        []string
	normalized map[string]string // normalized form -> canonical id
}

func NewParser(ids []string) *Parser {
	p := &Parser{
		ids:        ids,
		normalized: make(map[string]string, len(ids)),
	}
	for _, id := range ids {
		p.normalized[normalize(id)] = id
	}
	return p
}

// Parse tokenizes text case-insensitively, recognizes an action verb from
// the fixed table, and resolves the remainder as a device id: exact first,
// then normalized (underscores, spaces and hyphens interchangeable).
func (p *Parser) Parse(text string) Result {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return Result{Kind: KindNoMatch}
	}

	action, rest, ok := matchVerb(lowered)
	if !ok {
		return Result{Kind: KindNoMatch}
	}

	token := strings.TrimSpace(rest)
	token = strings.TrimPrefix(token, "the ")
	token = strings.TrimSpace(token)

	if token == "" {
		// Single-device installations imply the device, as the original
		// gateway did. With several devices a bare verb is ambiguous
		// chatter ("turn on what?") and is treated as no match.
		if len(p.ids) == 1 {
			return Result{Kind: KindMatch, Command: Command{Action: action, DeviceID: p.ids[0]}}
		}
		return Result{Kind: KindNoMatch}
	}

	if id, found := p.resolve(token); found {
		return Result{Kind: KindMatch, Command: Command{Action: action, DeviceID: id}}
	}
	return Result{Kind: KindUnknownDevice, Token: token}
}

func (p *Parser) resolve(token string) (string, bool) {
	for _, id := range p.ids {
		if strings.EqualFold(token, id) {
			return id, true
		}
	}
	id, ok := p.normalized[normalize(token)]
	return id, ok
}

// matchVerb finds the longest verb phrase prefixing text, requiring a word
// boundary so "enabled" or "checking" never match.
func matchVerb(text string) (Action, string, bool) {
	for _, v := range verbs {
		if !strings.HasPrefix(text, v.phrase) {
			continue
		}
		rest := text[len(v.phrase):]
		if rest != "" && !strings.HasPrefix(rest, " ") {
			continue
		}
		return v.action, rest, true
	}
	return "", "", false
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}
