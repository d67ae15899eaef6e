package variable

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evtA struct{}
type evtB struct{ N int }

// recorder counts notifications fired by a variable.
type recorder[T any] struct {
	changed []T
	updated int
}

func record[T any](v Variable[T]) *recorder[T] {
	r := &recorder[T]{}
	v.OnChanged().Subscribe(func(x T) { r.changed = append(r.changed, x) })
	v.OnUpdated().Subscribe(func() { r.updated++ })
	return r
}

func TestTriggerKey_Identity(t *testing.T) {
	assert.Equal(t, TriggerFor[evtA](), TriggerOf(evtA{}))
	assert.Equal(t, TriggerFor[evtB](), TriggerOf(evtB{N: 7}))
	assert.NotEqual(t, TriggerFor[evtA](), TriggerFor[evtB]())
	assert.NotEqual(t, TriggerFor[evtA](), TriggerOf(&evtA{}), "pointer and value types are distinct keys")

	assert.True(t, TriggerOf(nil).IsZero())
	assert.Equal(t, "<nil>", TriggerOf(nil).String())
	assert.Equal(t, "variable.evtA", TriggerFor[evtA]().String())
}

func TestTriggerForType(t *testing.T) {
	assert.Equal(t, TriggerFor[evtB](), TriggerForType(reflect.TypeFor[evtB]()))
	assert.Equal(t, TriggerOf(evtA{}), TriggerForType(reflect.TypeOf(evtA{})))
	assert.True(t, TriggerForType(nil).IsZero())
}

func TestTriggerKey_MapKey(t *testing.T) {
	index := map[TriggerKey]int{}
	index[TriggerFor[evtA]()]++
	index[TriggerOf(evtA{})]++
	index[TriggerOf(evtB{})]++

	assert.Equal(t, 2, index[TriggerFor[evtA]()])
	assert.Equal(t, 1, index[TriggerFor[evtB]()])
}

func TestEvaluate_UpdatedFiresEveryCall(t *testing.T) {
	c := NewConstant("five", 5)
	r := record[int](c)

	for i := 1; i <= 3; i++ {
		v, err := c.Evaluate()
		require.NoError(t, err)
		assert.Equal(t, 5, v)
		assert.Equal(t, i, r.updated)
	}
	assert.Equal(t, []int{5}, r.changed, "changed fires only on the first evaluation")
}

func TestEvaluate_ChangedIffValueDiffers(t *testing.T) {
	values := []int{0, 1, 1, 2, 2, 0}
	i := 0
	v := NewFunc("seq", func() (int, error) {
		x := values[i]
		i++
		return x, nil
	}, nil)
	r := record[int](v)

	for range values {
		_, err := v.Evaluate()
		require.NoError(t, err)
	}

	// First 0 equals the zero value baseline, so no change fires.
	assert.Equal(t, []int{1, 2, 0}, r.changed)
	assert.Equal(t, len(values), r.updated)
	assert.Equal(t, 0, v.LastValue())
}

func TestEvaluate_WithInitialBaseline(t *testing.T) {
	v := NewConstant("zero", 0, WithInitial(-1))
	r := record[int](v)

	_, err := v.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, []int{0}, r.changed)
}

func TestEvaluate_WithEqual(t *testing.T) {
	n := 0
	v := NewFunc("tens", func() (int, error) {
		n += 3
		return n, nil
	}, nil, WithEqual(func(old, new int) bool { return old/10 == new/10 }))
	r := record[int](v)

	for range 5 {
		_, err := v.Evaluate()
		require.NoError(t, err)
	}

	// 3, 6, 9 stay in the same decade as 0; 12 moves; 15 does not.
	assert.Equal(t, []int{12}, r.changed)
	assert.Equal(t, 5, r.updated)
	assert.Equal(t, 15, v.LastValue())
}

func TestEvaluate_StoresBeforeNotifying(t *testing.T) {
	v := NewConstant("seven", 7)

	var seenOnChanged, seenOnUpdated int
	v.OnChanged().Subscribe(func(int) { seenOnChanged = v.LastValue() })
	v.OnUpdated().Subscribe(func() { seenOnUpdated = v.LastValue() })

	_, err := v.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 7, seenOnChanged)
	assert.Equal(t, 7, seenOnUpdated)
}

func TestEvaluate_FailureHasNoSideEffects(t *testing.T) {
	boom := errors.New("boom")
	fail := false
	v := NewFunc("flaky", func() (string, error) {
		if fail {
			return "", boom
		}
		return "ok", nil
	}, nil)
	r := record[string](v)

	_, err := v.Evaluate()
	require.NoError(t, err)

	fail = true
	_, err = v.Evaluate()
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, "ok", v.LastValue())
	assert.Equal(t, []string{"ok"}, r.changed)
	assert.Equal(t, 1, r.updated)
}

func TestEvaluateAny(t *testing.T) {
	v := NewConstant("name", "x")

	got, changed, err := v.EvaluateAny()
	require.NoError(t, err)
	assert.Equal(t, "x", got)
	assert.True(t, changed)

	got, changed, err = v.EvaluateAny()
	require.NoError(t, err)
	assert.Equal(t, "x", got)
	assert.False(t, changed)

	boom := errors.New("boom")
	f := NewFunc("fail", func() (int, error) { return 0, boom }, nil)
	got, changed, err = f.EvaluateAny()
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
	assert.False(t, changed)
}

func TestConstant(t *testing.T) {
	c := NewConstant("pi", 3.14)

	assert.Equal(t, "pi", c.Name())
	assert.Empty(t, c.UpdateTriggers())
	assert.Equal(t, 3.14, c.Value())

	for range 3 {
		v, err := c.Evaluate()
		require.NoError(t, err)
		assert.Equal(t, 3.14, v)
	}
}

func TestFunc_TriggersAreCopied(t *testing.T) {
	triggers := []TriggerKey{TriggerFor[evtA]()}
	f := NewFunc("f", func() (int, error) { return 1, nil }, triggers)

	triggers[0] = TriggerFor[evtB]()
	got := f.UpdateTriggers()
	assert.Equal(t, []TriggerKey{TriggerFor[evtA]()}, got)

	got[0] = TriggerFor[evtB]()
	assert.Equal(t, []TriggerKey{TriggerFor[evtA]()}, f.UpdateTriggers())
}

func TestCounter(t *testing.T) {
	c := NewCounter[int64]("hits", TriggerFor[evtA](), TriggerFor[evtB]())
	r := record[int64](c)

	for i := int64(1); i <= 3; i++ {
		v, err := c.Evaluate()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, []int64{1, 2, 3}, r.changed)
	assert.Equal(t, []TriggerKey{TriggerFor[evtA](), TriggerFor[evtB]()}, c.UpdateTriggers())
}

func TestNewBase_NilComputePanics(t *testing.T) {
	assert.Panics(t, func() { NewBase[int]("nil", nil) })
}

func TestSignal_Unsubscribe(t *testing.T) {
	var s Signal[int]
	var a, b []int

	unsubA := s.Subscribe(func(v int) { a = append(a, v) })
	s.Subscribe(func(v int) { b = append(b, v) })
	assert.Equal(t, 2, s.Len())

	s.Emit(1)
	unsubA()
	unsubA()
	s.Emit(2)

	assert.Equal(t, []int{1}, a)
	assert.Equal(t, []int{1, 2}, b)
	assert.Equal(t, 1, s.Len())
}

func TestSignal_UnsubscribeDuringEmit(t *testing.T) {
	var s Signal[int]
	var calls []string

	var unsubSecond func()
	s.Subscribe(func(int) {
		calls = append(calls, "first")
		unsubSecond()
	})
	unsubSecond = s.Subscribe(func(int) { calls = append(calls, "second") })

	s.Emit(1)
	s.Emit(2)

	assert.Equal(t, []string{"first", "second", "first"}, calls)
}

func TestNotifier(t *testing.T) {
	var n Notifier
	count := 0
	unsub := n.Subscribe(func() { count++ })

	n.Emit()
	n.Emit()
	unsub()
	n.Emit()

	assert.Equal(t, 2, count)
	assert.Equal(t, 0, n.Len())
}
