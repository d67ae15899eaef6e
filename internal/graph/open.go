package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/varsys/internal/channel"
	"github.com/roach88/varsys/internal/event"
	"github.com/roach88/varsys/internal/ir"
)

// ChannelEnv is what an Opener needs from the runtime.
type ChannelEnv struct {
	Logger   *slog.Logger
	Registry *event.Registry
	Now      func() time.Time
}

func (env ChannelEnv) options() []channel.Option {
	return []channel.Option{
		channel.WithLogger(env.Logger),
		channel.WithRegistry(env.Registry),
		channel.WithNow(env.Now),
	}
}

// Opener opens a declared channel. The returned close func may be nil.
type Opener func(ctx context.Context, cs ir.ChannelSpec, env ChannelEnv) (channel.Channel, func() error, error)

// OpenChannel is the default Opener: it connects the transport named by
// cs.Kind.
func OpenChannel(ctx context.Context, cs ir.ChannelSpec, env ChannelEnv) (channel.Channel, func() error, error) {
	switch cs.Kind {
	case ir.ChannelRedis:
		client := redis.NewClient(&redis.Options{Addr: cs.Addr})
		ch, err := channel.NewRedis(ctx, client, cs.Topics, env.options()...)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return ch, func() error {
			err := ch.Close()
			if cerr := client.Close(); err == nil {
				err = cerr
			}
			return err
		}, nil

	case ir.ChannelMQTT:
		opts := mqtt.NewClientOptions().
			AddBroker(cs.Addr).
			SetClientID("varsys-" + cs.Name).
			SetAutoReconnect(true)
		ch := channel.NewMQTT(opts, cs.Topics, byte(cs.QoS), env.options()...)
		if err := ch.Start(); err != nil {
			return nil, nil, err
		}
		return ch, ch.Close, nil

	case ir.ChannelWebSocket:
		ch, err := channel.DialWebSocket(ctx, cs.Addr, env.options()...)
		if err != nil {
			return nil, nil, err
		}
		return ch, ch.Close, nil

	case ir.ChannelCron:
		schedules := make([]channel.Schedule, 0, len(cs.Schedules))
		for _, s := range cs.Schedules {
			schedules = append(schedules, channel.Schedule{Name: s.Name, Expr: s.Expr})
		}
		ch, err := channel.NewCron(schedules, env.options()...)
		if err != nil {
			return nil, nil, err
		}
		return ch, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown channel kind %q", cs.Kind)
	}
}
