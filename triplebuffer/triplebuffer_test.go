package triplebuffer

import "testing"

func TestReadWithoutPublishReturnsNoChange(t *testing.T) {
	tb := New[int]()
	_, r := tb.Split()

	_, state := r.Read()
	if state != StateNoChange {
		t.Errorf("state = %v, want StateNoChange before any Publish", state)
	}
}

func TestPublishMakesDataVisibleToReader(t *testing.T) {
	tb := New[int]()
	w, r := tb.Split()

	*w.WritableSlot() = 42
	w.Publish()

	v, state := r.Read()
	if state != StateNewData {
		t.Errorf("state = %v, want StateNewData after a Publish", state)
	}
	if *v != 42 {
		t.Errorf("*v = %d, want 42", *v)
	}
}

func TestReadTwiceWithoutNewPublishReturnsNoChangeOnSecond(t *testing.T) {
	tb := New[int]()
	w, r := tb.Split()

	*w.WritableSlot() = 7
	w.Publish()

	if _, state := r.Read(); state != StateNewData {
		t.Fatal("expected StateNewData on the first Read after Publish")
	}
	v, state := r.Read()
	if state != StateNoChange {
		t.Errorf("state = %v, want StateNoChange on the second consecutive Read", state)
	}
	if *v != 7 {
		t.Errorf("*v = %d, want the same value to still be readable", *v)
	}
}

func TestMultiplePublishesOnlyExposeLatest(t *testing.T) {
	tb := New[int]()
	w, r := tb.Split()

	*w.WritableSlot() = 1
	next := w.Publish()
	*next = 2
	w.Publish()

	v, state := r.Read()
	if state != StateNewData {
		t.Fatal("expected StateNewData")
	}
	if *v != 2 {
		t.Errorf("*v = %d, want 2 (the most recent publish)", *v)
	}
}

type initTracker struct {
	initialized bool
}

func (i *initTracker) Init() { i.initialized = true }

func TestNewInitializesAllSlotsImplementingInit(t *testing.T) {
	tb := New[initTracker]()
	w, r := tb.Split()

	if !w.WritableSlot().initialized {
		t.Error("writer's initial slot was not Init()-ed")
	}
	v, _ := r.Read()
	if !v.initialized {
		t.Error("reader's initial slot was not Init()-ed")
	}
}
