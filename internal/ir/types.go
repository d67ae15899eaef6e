package ir

// GraphSpec is a compiled graph definition.
type GraphSpec struct {
	Variables []VariableSpec `json:"variables"`
	Channels  []ChannelSpec  `json:"channels"`
}

// Variable kinds.
const (
	KindConstant  = "constant"
	KindSample    = "sample"
	KindCondition = "condition"
	KindCounter   = "counter"
	KindScript    = "script"
)

// VariableKinds lists the variable kinds in documentation order.
var VariableKinds = []string{KindConstant, KindSample, KindCondition, KindCounter, KindScript}

// VariableSpec declares one variable. Which fields apply depends on Kind:
//
//	constant   value
//	sample     source
//	condition  op, lhs, rhs
//	counter    triggers
//	script     inputs, source, triggers
type VariableSpec struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Value    any      `json:"value,omitempty"`
	Source   string   `json:"source,omitempty"`
	Op       string   `json:"op,omitempty"`
	LHS      string   `json:"lhs,omitempty"`
	RHS      string   `json:"rhs,omitempty"`
	Inputs   []string `json:"inputs,omitempty"`
	Triggers []string `json:"triggers,omitempty"` // event kind names
}

// References returns the names of the variables v reads, in evaluation
// order.
func (v VariableSpec) References() []string {
	switch v.Kind {
	case KindCondition:
		return []string{v.LHS, v.RHS}
	case KindScript:
		return v.Inputs
	default:
		return nil
	}
}

// Channel kinds.
const (
	ChannelRedis     = "redis"
	ChannelMQTT      = "mqtt"
	ChannelWebSocket = "websocket"
	ChannelCron      = "cron"
)

// ChannelKinds lists the channel kinds in documentation order.
var ChannelKinds = []string{ChannelRedis, ChannelMQTT, ChannelWebSocket, ChannelCron}

// ChannelSpec declares one event source. Addr is the Redis address, MQTT
// broker URL or WebSocket URL; cron channels use Schedules instead.
type ChannelSpec struct {
	Name      string         `json:"name"`
	Kind      string         `json:"kind"`
	Addr      string         `json:"addr,omitempty"`
	Topics    []string       `json:"topics,omitempty"`
	QoS       int            `json:"qos,omitempty"`
	Schedules []ScheduleSpec `json:"schedules,omitempty"`
}

// ScheduleSpec is one named cron expression.
type ScheduleSpec struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

// Value types a variable can produce.
const (
	TypeNumber = "number"
	TypeBool   = "bool"
	TypeString = "string"
	TypeAny    = "any"
)

// ValueType returns the graph type of a constant value, or "" if the value
// has no graph type.
func ValueType(v any) string {
	switch v.(type) {
	case float64:
		return TypeNumber
	case bool:
		return TypeBool
	case string:
		return TypeString
	default:
		return ""
	}
}

// Variable returns the declaration named name.
func (g *GraphSpec) Variable(name string) (VariableSpec, bool) {
	for _, v := range g.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableSpec{}, false
}
