package main

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/claude-usage-dashboard/internal/services"
)

type fakeGateway struct {
	err     error
	started bool
}

func (f *fakeGateway) StartGateway(context.Context) error {
	f.started = true
	return f.err
}

func (f *fakeGateway) GatewayAddr() net.Addr {
	if f.err != nil {
		return nil
	}
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19876}
}

func TestStartGateway(t *testing.T) {
	gw := &fakeGateway{}
	require.NoError(t, startGateway(context.Background(), gw))
	assert.True(t, gw.started)
}

func TestStartGateway_DegradedKeepsServing(t *testing.T) {
	gw := &fakeGateway{err: services.ErrStorageDisabled}
	assert.NoError(t, startGateway(context.Background(), gw))
}

func TestStartGateway_ListenFailure(t *testing.T) {
	listenErr := errors.New("address already in use")
	err := startGateway(context.Background(), &fakeGateway{err: listenErr})
	require.Error(t, err)
	assert.ErrorIs(t, err, listenErr)
}
