// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package policy defines the consent gate the dispatcher consults before
// running any tool handler: a Guard that allows, denies, or defers each
// invocation, with an audit record per evaluation.
package policy

import (
	"context"
	"time"
)

// Verdict is the outcome of a policy evaluation.
type Verdict int

const (
	// Allow permits the tool invocation to proceed.
	Allow Verdict = iota
	// Deny refuses the invocation; Reason is surfaced to the caller as
	// an application error (CallToolResult.IsError), never a protocol error.
	Deny
	// RequireConsent defers the decision to an interactive consent sink.
	// If none is attached to the session, it is treated as Deny.
	RequireConsent
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case RequireConsent:
		return "require_consent"
	default:
		return "unknown"
	}
}

// Decision is the result of one Guard.Evaluate call.
type Decision struct {
	Verdict Verdict
	// Reason explains a Deny or names the prompt text for RequireConsent.
	Reason string
}

// SessionIdentity is the subset of session state a policy decision may
// condition on: the peer's declared identity and any scopes it was
// granted out of band (e.g. by a bearer token the embedding application
// validated before handing the session to this runtime).
type SessionIdentity struct {
	SessionID     string
	ClientName    string
	GrantedScopes []string
}

// Guard is the policy/consent gate contract. Implementations must be
// deterministic for identical inputs within one session.
type Guard interface {
	Evaluate(ctx context.Context, toolName string, requiredScopes []string, session SessionIdentity, args map[string]interface{}) Decision
}

// AuditRecord is produced for every Evaluate call, win or lose.
type AuditRecord struct {
	Timestamp time.Time
	SessionID string
	Tool      string
	Decision  Verdict
	Reason    string
}

// AuditSink receives one AuditRecord per policy evaluation. Implementations
// must not block tool execution; Record should be fire-and-forget or fail
// fast. A nil sink is valid; audit is simply skipped.
type AuditSink interface {
	Record(AuditRecord)
}

// AllowAll is a Guard that allows every invocation unconditionally. It is
// the default guard when no policy backend is configured, and is useful
// in tests and for embedders that enforce authorization elsewhere.
type AllowAll struct{}

func (AllowAll) Evaluate(context.Context, string, []string, SessionIdentity, map[string]interface{}) Decision {
	return Decision{Verdict: Allow}
}

// ScopeGuard denies a tool invocation unless every one of the tool's
// required scopes is present in the session's granted scopes. It is a
// minimal, deterministic Guard with no interactive consent backend wired
// in (RequireConsent is never produced by this guard).
type ScopeGuard struct {
	// Sink, if non-nil, receives one AuditRecord per evaluation.
	Sink AuditSink
}

func (g *ScopeGuard) Evaluate(_ context.Context, toolName string, requiredScopes []string, session SessionIdentity, _ map[string]interface{}) Decision {
	granted := make(map[string]bool, len(session.GrantedScopes))
	for _, s := range session.GrantedScopes {
		granted[s] = true
	}
	var missing string
	for _, req := range requiredScopes {
		if !granted[req] {
			missing = req
			break
		}
	}

	decision := Decision{Verdict: Allow}
	if missing != "" {
		decision = Decision{Verdict: Deny, Reason: "missing required scope: " + missing}
	}

	if g.Sink != nil {
		g.Sink.Record(AuditRecord{
			Timestamp: time.Now(),
			SessionID: session.SessionID,
			Tool:      toolName,
			Decision:  decision.Verdict,
			Reason:    decision.Reason,
		})
	}
	return decision
}
