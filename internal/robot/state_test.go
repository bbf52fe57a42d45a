package robot

import (
	"testing"

	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/store/tokens"
	"github.com/danmuck/rovlink/internal/testutil/testlog"
	"github.com/danmuck/rovlink/internal/types"
)

func TestStateApplyReportsChanges(t *testing.T) {
	testlog.Start(t)
	s := NewState()
	if !s.Apply(store.CreateUpdate(tokens.Armed, types.Armed)) {
		t.Fatalf("first write should change state")
	}
	if s.Apply(store.CreateUpdate(tokens.Armed, types.Armed)) {
		t.Fatalf("identical write should not change state")
	}
	if !s.Apply(store.CreateDelete(tokens.Armed)) {
		t.Fatalf("delete of present key should change state")
	}
	if s.Apply(store.CreateDelete(tokens.Armed)) {
		t.Fatalf("delete of absent key should not change state")
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty state, got %d", s.Len())
	}
}

func TestStateApplyBatchReturnsChangedInOrder(t *testing.T) {
	testlog.Start(t)
	s := NewState()
	s.Apply(store.CreateUpdate(tokens.Leak, types.Leak(false)))

	changed := s.ApplyBatch([]store.Update{
		store.CreateUpdate(tokens.MotorSpeed(types.MotorRearL), types.Percent(0.25)),
		store.CreateUpdate(tokens.Leak, types.Leak(false)),
		store.CreateUpdate(tokens.Armed, types.Armed),
	})
	if len(changed) != 2 {
		t.Fatalf("expected 2 changed updates, got %d", len(changed))
	}
	if changed[0].Key != tokens.MotorSpeed(types.MotorRearL).Key() || changed[1].Key != tokens.Armed.Key() {
		t.Fatalf("unexpected change order: %v, %v", changed[0].Key, changed[1].Key)
	}
}

func TestStateToUpdatesSortedAndTyped(t *testing.T) {
	testlog.Start(t)
	s := NewState()
	s.Apply(store.CreateUpdate(tokens.MotorSpeed(types.MotorFrontL), types.Percent(-0.5)))
	s.Apply(store.CreateUpdate(tokens.Armed, types.Armed))
	s.Apply(store.CreateUpdate(tokens.Leak, types.Leak(true)))

	updates := s.ToUpdates()
	if len(updates) != 3 {
		t.Fatalf("expected 3 updates, got %d", len(updates))
	}
	for i := 1; i < len(updates); i++ {
		if updates[i-1].Key >= updates[i].Key {
			t.Fatalf("updates not sorted: %v", updates)
		}
	}
	for _, u := range updates {
		if !u.Present {
			t.Fatalf("snapshot update %s should be present", u.Key)
		}
	}

	speed, ok := Read(s, tokens.MotorSpeed(types.MotorFrontL))
	if !ok || speed != -0.5 {
		t.Fatalf("expected -0.5, got %v ok=%v", speed, ok)
	}
	if _, ok := Read(s, tokens.Status); ok {
		t.Fatalf("status was never written")
	}
}
