package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, false},
		{StateSubmitted, false},
		{StateInProgress, false},
		{StateApproved, true},
		{StateRejected, true},
		{StateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"draft", StateDraft, true},
		{"cancelled", StateCancelled, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	builder.Configure(State("INVALID"))
}

func TestDocumentMachine_SubmitPath(t *testing.T) {
	m := NewDocumentMachine(StateDraft)

	if !m.CanFire(TriggerSubmit) {
		t.Error("CanFire(SUBMIT) should be true in DRAFT")
	}
	if m.CanFire(TriggerApprove) {
		t.Error("CanFire(APPROVE) should be false in DRAFT")
	}

	if err := m.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Fatalf("Fire(SUBMIT) failed: %v", err)
	}
	if m.State() != StateSubmitted {
		t.Errorf("State() = %v, want %v", m.State(), StateSubmitted)
	}

	if err := m.Fire(context.Background(), TriggerProgress); err != nil {
		t.Fatalf("Fire(PROGRESS) failed: %v", err)
	}
	if err := m.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire(APPROVE) failed: %v", err)
	}
	if m.State() != StateApproved {
		t.Errorf("State() = %v, want %v", m.State(), StateApproved)
	}
}

func TestDocumentMachine_TerminalStatesPermitNothing(t *testing.T) {
	for _, state := range []State{StateApproved, StateRejected, StateCancelled} {
		m := NewDocumentMachine(state)
		if got := m.PermittedTriggers(); len(got) != 0 {
			t.Errorf("PermittedTriggers() in %s = %v, want none", state, got)
		}
		err := m.Fire(context.Background(), TriggerCancel)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Fire(CANCEL) in %s: err = %v, want ErrInvalidTransition", state, err)
		}
	}
}

func TestDocumentMachine_CancelFromEveryLiveState(t *testing.T) {
	for _, state := range []State{StateDraft, StateSubmitted, StateInProgress} {
		m := NewDocumentMachine(state)
		if err := m.Fire(context.Background(), TriggerCancel); err != nil {
			t.Errorf("Fire(CANCEL) from %s failed: %v", state, err)
		}
		if m.State() != StateCancelled {
			t.Errorf("State() = %v, want %v", m.State(), StateCancelled)
		}
	}
}

func TestDocumentMachine_RejectFromInProgress(t *testing.T) {
	m := NewDocumentMachine(StateInProgress)

	if err := m.Fire(context.Background(), TriggerReject); err != nil {
		t.Fatalf("Fire(REJECT) failed: %v", err)
	}
	if m.State() != StateRejected {
		t.Errorf("State() = %v, want %v", m.State(), StateRejected)
	}
}

func TestStateMachine_PermitIfGuard(t *testing.T) {
	allowed := false
	builder := NewBuilder()
	builder.Configure(StateDraft).
		PermitIf(TriggerSubmit, StateSubmitted, func(ctx context.Context) bool { return allowed })

	machine := builder.Build(StateDraft)

	err := machine.Fire(context.Background(), TriggerSubmit)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() err = %v, want ErrGuardFailed", err)
	}
	if machine.State() != StateDraft {
		t.Errorf("State() = %v, want unchanged %v", machine.State(), StateDraft)
	}

	allowed = true
	if err := machine.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Fatalf("Fire() with passing guard failed: %v", err)
	}
	if machine.State() != StateSubmitted {
		t.Errorf("State() = %v, want %v", machine.State(), StateSubmitted)
	}
}
