package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varsys/internal/testutil"
	"github.com/roach88/varsys/internal/variable"
)

type EvtA struct{}
type EvtB struct{ N int }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startedSystem(t *testing.T, opts ...Option) *System {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	s := New(opts...)
	require.NoError(t, s.Start())
	return s
}

// counting returns a variable that counts its evaluations and appends its
// name to order on each one.
func counting(name string, order *[]string, triggers ...variable.TriggerKey) *variable.Func[int] {
	n := 0
	return variable.NewFunc(name, func() (int, error) {
		n++
		if order != nil {
			*order = append(*order, name)
		}
		return n, nil
	}, triggers)
}

func TestSystem_Lifecycle(t *testing.T) {
	s := New(WithLogger(quietLogger()))

	err := s.AddVariable(variable.NewConstant("c", 1))
	assert.True(t, IsLifecycleError(err))
	err = s.ListenTo(testutil.NewScriptedChannel())
	assert.True(t, IsLifecycleError(err))
	err = s.Tick()
	assert.True(t, IsLifecycleError(err))

	require.NoError(t, s.Start())
	err = s.Start()
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeAlreadyStarted, re.Code)

	require.NoError(t, s.Tick())

	s.Destroy()
	s.Destroy()
	err = s.Tick()
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeDestroyed, re.Code)
	assert.Equal(t, 0, s.TriggerCount())
	assert.Equal(t, 0, s.ChannelCount())
}

func TestSystem_PreferredPhase(t *testing.T) {
	assert.Equal(t, PhaseEarly, New().PreferredPhase())
}

func TestSystem_AddVariable_IndexesPerTrigger(t *testing.T) {
	s := startedSystem(t)

	v := counting("v", nil, variable.TriggerFor[EvtA](), variable.TriggerFor[EvtB]())
	require.NoError(t, s.AddVariable(v))

	assert.Equal(t, 2, s.TriggerCount())
	assert.Equal(t, []variable.Handle{v}, s.Variables(variable.TriggerFor[EvtA]()))
	assert.Equal(t, []variable.Handle{v}, s.Variables(variable.TriggerFor[EvtB]()))
}

func TestSystem_AddVariable_ConstantNeverIndexed(t *testing.T) {
	s := startedSystem(t)
	require.NoError(t, s.AddVariable(variable.NewConstant("c", 5)))
	assert.Equal(t, 0, s.TriggerCount())
}

func TestSystem_AddVariable_DuplicatesKept(t *testing.T) {
	s := startedSystem(t)
	v := counting("v", nil, variable.TriggerFor[EvtA]())

	require.NoError(t, s.AddVariable(v))
	require.NoError(t, s.AddVariable(v))
	assert.Len(t, s.Variables(variable.TriggerFor[EvtA]()), 2)

	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{EvtA{}})))
	require.NoError(t, s.Tick())
	assert.Equal(t, 2, v.LastValue(), "registered twice, evaluated twice")
}

func TestSystem_AddVariable_WiresOncePerCall(t *testing.T) {
	var wired []string
	s := startedSystem(t, WithWirer(WirerFunc(func(h variable.Handle) error {
		wired = append(wired, h.Name())
		return nil
	})))

	require.NoError(t, s.AddVariable(variable.NewConstant("a", 1)))
	require.NoError(t, s.AddVariable(counting("b", nil, variable.TriggerFor[EvtA]())))
	assert.Equal(t, []string{"a", "b"}, wired)
}

func TestSystem_AddVariable_WireFailureSkipsIndex(t *testing.T) {
	boom := errors.New("missing service")
	s := startedSystem(t, WithWirer(WirerFunc(func(variable.Handle) error { return boom })))

	err := s.AddVariable(counting("v", nil, variable.TriggerFor[EvtA]()))
	require.ErrorIs(t, err, boom)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeWireFailed, re.Code)
	assert.Equal(t, "v", re.Variable)
	assert.Equal(t, 0, s.TriggerCount())
}

// Scenario 1: a channel yields one EvtA on its first poll only.
func TestSystem_Scenario_CounterEvaluatedOnlyWhenTriggered(t *testing.T) {
	s := startedSystem(t)
	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{EvtA{}})))

	v1 := counting("V1", nil, variable.TriggerFor[EvtA]())
	changed, updated := 0, 0
	v1.OnChanged().Subscribe(func(int) { changed++ })
	v1.OnUpdated().Subscribe(func() { updated++ })
	require.NoError(t, s.AddVariable(v1))

	require.NoError(t, s.Tick())
	assert.Equal(t, 1, v1.LastValue())
	assert.Equal(t, 1, changed)
	assert.Equal(t, 1, updated)

	require.NoError(t, s.Tick())
	assert.Equal(t, 1, v1.LastValue())
	assert.Equal(t, 1, changed)
	assert.Equal(t, 1, updated)
	assert.Equal(t, int64(2), s.Clock().Current())
}

// Scenario 2: a condition over two constants is never dispatched.
func TestSystem_Scenario_ConditionOverConstants(t *testing.T) {
	s := startedSystem(t)
	cond := variable.Compare[int]("same", variable.NewConstant("a", 5), variable.NewConstant("b", 5), variable.EqualTo)
	require.NoError(t, s.AddVariable(cond))
	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{EvtA{}, EvtB{}})))

	updated := 0
	cond.OnUpdated().Subscribe(func() { updated++ })

	require.NoError(t, s.Tick())
	assert.Equal(t, 0, updated)
	assert.Empty(t, cond.UpdateTriggers())

	v, err := cond.Evaluate()
	require.NoError(t, err)
	assert.True(t, v)
}

// Scenario 3: bucket order is registration order, every tick.
func TestSystem_Scenario_RegistrationOrder(t *testing.T) {
	s := startedSystem(t)
	var order []string
	require.NoError(t, s.AddVariable(counting("A", &order, variable.TriggerFor[EvtA]())))
	require.NoError(t, s.AddVariable(counting("B", &order, variable.TriggerFor[EvtA]())))
	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{EvtA{}}, []any{EvtA{}}, []any{EvtA{}})))

	for range 3 {
		require.NoError(t, s.Tick())
	}
	assert.Equal(t, []string{"A", "B", "A", "B", "A", "B"}, order)
}

func TestSystem_Tick_DispatchesOncePerEvent(t *testing.T) {
	s := startedSystem(t)
	x := counting("X", nil, variable.TriggerFor[EvtA]())
	require.NoError(t, s.AddVariable(x))
	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{EvtA{}})))

	require.NoError(t, s.Tick())
	assert.Equal(t, 1, x.LastValue())
}

func TestSystem_Tick_NoDedupWithinTick(t *testing.T) {
	s := startedSystem(t)

	x := counting("X", nil, variable.TriggerFor[EvtA](), variable.TriggerFor[EvtB]())
	limit := variable.NewConstant("limit", 0)
	cond := variable.Compare[int]("positive", x, limit, variable.GreaterThan)
	require.NoError(t, s.AddVariable(x))
	require.NoError(t, s.AddVariable(cond))

	// Two events in one batch plus one from a second channel.
	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{EvtA{}, EvtB{N: 1}})))
	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{EvtA{}})))

	require.NoError(t, s.Tick())
	// Each of 3 events evaluates X directly and again as cond's operand.
	assert.Equal(t, 6, x.LastValue())
	assert.True(t, cond.LastValue())
}

func TestSystem_Tick_UnknownEventDropped(t *testing.T) {
	s := startedSystem(t)
	x := counting("X", nil, variable.TriggerFor[EvtA]())
	require.NoError(t, s.AddVariable(x))
	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{"stray", 42, &EvtA{}, EvtA{}})))

	require.NoError(t, s.Tick())
	assert.Equal(t, 1, x.LastValue(), "only the value-typed EvtA matches")
}

func TestSystem_Tick_BeforeDispatchPerEvent(t *testing.T) {
	var trace []string
	s := startedSystem(t, WithBeforeDispatch(func(ev any) {
		switch e := ev.(type) {
		case EvtB:
			trace = append(trace, fmt.Sprintf("before B%d", e.N))
		default:
			trace = append(trace, fmt.Sprintf("before %T", ev))
		}
	}))
	require.NoError(t, s.AddVariable(counting("X", &trace, variable.TriggerFor[EvtB]())))
	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{EvtB{N: 1}, "stray", EvtB{N: 2}})))

	require.NoError(t, s.Tick())
	assert.Equal(t, []string{"before B1", "X", "before string", "before B2", "X"}, trace)
}

func TestSystem_Tick_PollsEveryChannelEveryTick(t *testing.T) {
	s := startedSystem(t)
	a := testutil.NewScriptedChannel()
	b := testutil.NewScriptedChannel([]any{EvtA{}})
	require.NoError(t, s.ListenTo(a))
	require.NoError(t, s.ListenTo(b))

	for range 3 {
		require.NoError(t, s.Tick())
	}
	assert.Equal(t, 3, a.Polls())
	assert.Equal(t, 3, b.Polls())
}

func TestSystem_Tick_EvaluationFailureAbortsTick(t *testing.T) {
	s := startedSystem(t)
	boom := errors.New("boom")

	var order []string
	require.NoError(t, s.AddVariable(counting("before", &order, variable.TriggerFor[EvtA]())))
	require.NoError(t, s.AddVariable(variable.NewFunc("broken", func() (int, error) {
		order = append(order, "broken")
		return 0, boom
	}, []variable.TriggerKey{variable.TriggerFor[EvtA]()})))
	require.NoError(t, s.AddVariable(counting("after", &order, variable.TriggerFor[EvtA]())))
	later := counting("later", &order, variable.TriggerFor[EvtB]())
	require.NoError(t, s.AddVariable(later))

	first := testutil.NewScriptedChannel([]any{EvtA{}, EvtB{}})
	second := testutil.NewScriptedChannel([]any{EvtB{}})
	require.NoError(t, s.ListenTo(first))
	require.NoError(t, s.ListenTo(second))

	err := s.Tick()
	require.ErrorIs(t, err, boom)
	assert.True(t, IsEvaluationError(err))

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "broken", re.Variable)
	assert.Equal(t, int64(1), re.Tick)
	assert.Contains(t, re.Trigger, "EvtA")

	assert.Equal(t, []string{"before", "broken"}, order)
	assert.Equal(t, 0, second.Polls(), "later channels are skipped")
	assert.Equal(t, 0, later.LastValue())
}

func TestSystem_Tick_PollFailureAbortsTick(t *testing.T) {
	s := startedSystem(t)
	boom := errors.New("socket closed")

	x := counting("X", nil, variable.TriggerFor[EvtA]())
	require.NoError(t, s.AddVariable(x))

	failing := testutil.NewScriptedChannel().FailOn(0, boom)
	after := testutil.NewScriptedChannel([]any{EvtA{}})
	require.NoError(t, s.ListenTo(failing))
	require.NoError(t, s.ListenTo(after))

	err := s.Tick()
	require.ErrorIs(t, err, boom)
	assert.True(t, IsPollError(err))
	assert.Equal(t, 0, after.Polls())
	assert.Equal(t, 0, x.LastValue())

	// The next tick recovers and polls both.
	require.NoError(t, s.Tick())
	assert.Equal(t, 1, after.Polls())
}

func TestSystem_Tick_IsolationContinues(t *testing.T) {
	s := startedSystem(t, WithIsolation())
	evalErr := errors.New("eval")
	pollErr := errors.New("poll")

	require.NoError(t, s.AddVariable(variable.NewFunc("broken", func() (int, error) {
		return 0, evalErr
	}, []variable.TriggerKey{variable.TriggerFor[EvtA]()})))
	after := counting("after", nil, variable.TriggerFor[EvtA]())
	require.NoError(t, s.AddVariable(after))

	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel().FailOn(0, pollErr)))
	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{EvtA{}, EvtA{}})))

	err := s.Tick()
	require.Error(t, err)
	assert.ErrorIs(t, err, evalErr)
	assert.ErrorIs(t, err, pollErr)
	assert.Equal(t, 2, after.LastValue())
}

func TestSystem_Observer(t *testing.T) {
	obs := &MemoryObserver{}
	s := startedSystem(t, WithObserver(obs))

	a := variable.NewFunc("a", func() (string, error) { return "on", nil }, []variable.TriggerKey{variable.TriggerFor[EvtA]()})
	require.NoError(t, s.AddVariable(a))
	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{EvtA{}}, nil, []any{EvtA{}})))

	for range 3 {
		require.NoError(t, s.Tick())
	}

	assert.Equal(t, int64(3), obs.Ticks)
	assert.Equal(t, []Evaluation{
		{Tick: 1, Variable: "a", Value: "on", Changed: true},
		{Tick: 3, Variable: "a", Value: "on", Changed: false},
	}, obs.Evaluations)
	assert.Empty(t, obs.InTick(2))
}

func TestSystem_RegisterDuringTick(t *testing.T) {
	s := startedSystem(t)
	late := counting("late", nil, variable.TriggerFor[EvtA]())

	first := counting("first", nil, variable.TriggerFor[EvtA]())
	first.OnUpdated().Subscribe(func() {
		if first.LastValue() == 1 {
			require.NoError(t, s.AddVariable(late))
		}
	})
	require.NoError(t, s.AddVariable(first))
	require.NoError(t, s.ListenTo(testutil.NewScriptedChannel([]any{EvtA{}}, []any{EvtA{}})))

	require.NoError(t, s.Tick())
	assert.Equal(t, 0, late.LastValue(), "bucket snapshot taken before the event")

	require.NoError(t, s.Tick())
	assert.Equal(t, 1, late.LastValue())
}

func TestServices_Wire(t *testing.T) {
	svc := NewServices()
	svc.Provide("limit", 10)

	w := &wantsLimit{Constant: variable.NewConstant("w", 0)}
	s := startedSystem(t, WithWirer(svc))
	require.NoError(t, s.AddVariable(w))
	assert.Equal(t, 10, w.limit)

	missing := &wantsLimit{Constant: variable.NewConstant("m", 0), key: "other"}
	assert.Error(t, s.AddVariable(missing))
}

func TestLookup_WrongType(t *testing.T) {
	svc := NewServices()
	svc.Provide("limit", "ten")
	_, err := Lookup[int](svc, "limit")
	assert.ErrorContains(t, err, "is string")
}

type wantsLimit struct {
	*variable.Constant[int]
	key   string
	limit int
}

func (w *wantsLimit) Wire(s *Services) error {
	key := w.key
	if key == "" {
		key = "limit"
	}
	limit, err := Lookup[int](s, key)
	if err != nil {
		return err
	}
	w.limit = limit
	return nil
}
