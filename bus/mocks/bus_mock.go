package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/inkroom/inkroom/bus"
)

type MockRoomBus struct {
	mock.Mock
}

func (m *MockRoomBus) Publish(ctx context.Context, topic string, env bus.Envelope) error {
	args := m.Called(ctx, topic, env)
	return args.Error(0)
}

func (m *MockRoomBus) Subscribe(ctx context.Context, topic string, handler bus.Handler) error {
	args := m.Called(ctx, topic, handler)
	return args.Error(0)
}
