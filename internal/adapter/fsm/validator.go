package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/billiq/internal/domain"
)

// Compile-time check: Validator implements domain.OrderTransitionValidator.
var _ domain.OrderTransitionValidator = (*Validator)(nil)

// orderEvents converts domain.OrderTransitions into looplab/fsm
// EventDesc format, consolidating transitions with the same
// event+destination into one EventDesc with multiple source states.
var orderEvents = buildOrderEvents()

func buildOrderEvents() []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range domain.OrderTransitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// ordinarySubscriptionChanges indexes domain.SubscriptionTransitions
// for the advisory check.
var ordinarySubscriptionChanges = buildSubscriptionIndex()

func buildSubscriptionIndex() map[domain.SubscriptionTransition]bool {
	index := make(map[domain.SubscriptionTransition]bool, len(domain.SubscriptionTransitions))
	for _, t := range domain.SubscriptionTransitions {
		index[t] = true
	}
	return index
}

// Validator implements domain.OrderTransitionValidator using
// looplab/fsm. It creates a short-lived FSM instance per ApplyOrder
// call, initialized with the order's current state, because looplab/fsm
// is stateful (it tracks the current state internally).
type Validator struct{}

// New creates a new FSM-backed transition validator.
func New() *Validator {
	return &Validator{}
}

// ApplyOrder checks if the given event is valid from the current order
// status and returns the destination status. Returns a
// *domain.OrderTransitionError if the transition is not allowed — in
// particular, any attempt to re-complete a completed order.
func (v *Validator) ApplyOrder(ctx context.Context, current domain.OrderStatus, event domain.OrderEvent) (domain.OrderStatus, error) {
	machine := loopfsm.NewFSM(string(current), orderEvents, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &noTransition) {
			return "", &domain.OrderTransitionError{
				Event:   event,
				Current: current,
			}
		}
		return "", err
	}

	return domain.OrderStatus(machine.Current()), nil
}

// OrdinarySubscriptionChange reports whether a provider status change
// is in the expected lifecycle. Identity changes are trivially
// ordinary.
func (v *Validator) OrdinarySubscriptionChange(from, to domain.SubscriptionStatus) bool {
	if from == to {
		return true
	}
	return ordinarySubscriptionChanges[domain.SubscriptionTransition{Src: from, Dst: to}]
}
