// ABOUTME: Per-invocation permission checks for capability calls.
// ABOUTME: Fails closed: collaborator errors and ambiguous data deny access.

package permission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/murmurchat/concierge/internal/capability"
	"github.com/murmurchat/concierge/internal/upstream"
)

// Decision is the outcome of a permission check. Decisions are computed per
// invocation and never cached; access can change between calls.
type Decision struct {
	Allowed bool
	Reason  string
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Checker evaluates whether a caller may invoke a capability with the given
// normalized parameters. Resource references are located via the schema's
// permission hints.
type Checker struct {
	members upstream.Membership
	logger  *slog.Logger
}

// NewChecker creates a Checker backed by the membership collaborator.
func NewChecker(members upstream.Membership, logger *slog.Logger) *Checker {
	return &Checker{members: members, logger: logger}
}

// Check runs the capability's declared permission rules. Thread-scoped
// capabilities require membership in the referenced thread; user references
// other than the caller require an explicit scheduling relationship.
func (c *Checker) Check(ctx context.Context, callerID string, schema *capability.Schema, params map[string]any) Decision {
	if callerID == "" {
		return deny("missing caller identity")
	}

	if schema.ThreadIDParam != "" {
		threadID, ok := stringParam(params, schema.ThreadIDParam)
		if !ok {
			// Optional thread scope: absent means unscoped, present but
			// malformed means deny.
			if _, present := params[schema.ThreadIDParam]; present {
				return deny("malformed thread reference")
			}
		} else {
			if d := c.checkThreadMembership(ctx, callerID, threadID); !d.Allowed {
				return d
			}
		}
	}

	if schema.UserRefParam != "" {
		userID, ok := stringParam(params, schema.UserRefParam)
		if !ok {
			if _, present := params[schema.UserRefParam]; present {
				return deny("malformed user reference")
			}
		} else if d := c.checkSchedulingRelationship(ctx, callerID, userID); !d.Allowed {
			return d
		}
	}

	if schema.ParticipantsParam != "" {
		raw, present := params[schema.ParticipantsParam]
		if present {
			ids, ok := stringSlice(raw)
			if !ok {
				return deny("malformed participant list")
			}
			for _, userID := range ids {
				if d := c.checkSchedulingRelationship(ctx, callerID, userID); !d.Allowed {
					return d
				}
			}
		}
	}

	return Decision{Allowed: true}
}

func (c *Checker) checkThreadMembership(ctx context.Context, callerID, threadID string) Decision {
	member, err := c.members.IsMember(ctx, callerID, threadID)
	if err != nil {
		c.logger.Warn("membership lookup failed, denying",
			"caller_id", callerID,
			"thread_id", threadID,
			"error", err,
		)
		return deny("membership could not be verified")
	}
	if !member {
		return deny(fmt.Sprintf("caller is not a member of thread %s", threadID))
	}
	return Decision{Allowed: true}
}

func (c *Checker) checkSchedulingRelationship(ctx context.Context, callerID, userID string) Decision {
	if userID == callerID {
		return Decision{Allowed: true}
	}
	allowed, err := c.members.CanSchedule(ctx, callerID, userID)
	if err != nil {
		c.logger.Warn("scheduling relationship lookup failed, denying",
			"caller_id", callerID,
			"user_id", userID,
			"error", err,
		)
		return deny("scheduling relationship could not be verified")
	}
	if !allowed {
		return deny(fmt.Sprintf("no scheduling relationship with user %s", userID))
	}
	return Decision{Allowed: true}
}

// stringParam extracts a non-empty string parameter.
func stringParam(params map[string]any, name string) (string, bool) {
	v, ok := params[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// stringSlice coerces a JSON array value into a string slice.
func stringSlice(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
