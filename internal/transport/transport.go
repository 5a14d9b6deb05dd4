// Package transport moves protocol envelopes between named parties.
// The negotiation core only sees opaque PartyRef identifiers; resolving
// them to endpoints is this package's job. Delivery is fire-and-forget:
// at-least-one-attempt, no ordering guarantee across senders.
package transport

import (
	"context"
	"errors"

	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

var ErrUnknownParty = errors.New("unknown party")

// HandlerFunc consumes one inbound envelope.
type HandlerFunc func(ctx context.Context, env protocol.Envelope)

// Transport delivers an envelope to the named party. A returned error
// means the attempt failed; callers broadcasting to many parties log
// per-target failures and continue.
type Transport interface {
	Send(ctx context.Context, to protocol.PartyRef, env protocol.Envelope) error
}
