package notifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/khatabook-backend/pkg/config"
)

func TestFromConfigWiresEnabledPorts(t *testing.T) {
	pub := &fakePublisher{}
	inbox := &fakeInboxRepo{}
	n, err := FromConfig(config.NotifierConfig{ChannelPrefix: "kb", RedisEnabled: true, InboxEnabled: true}, testLogger(), nil, pub, inbox)
	require.NoError(t, err)

	order := sampleOrder()
	n.Dispatch(context.Background(), OrderPlaced(order))
	require.Equal(t, "kb:"+order.RetailerID.String(), pub.channel)
	require.Len(t, inbox.created, 1)
}

func TestFromConfigSkipsDisabledPorts(t *testing.T) {
	n, err := FromConfig(config.NotifierConfig{}, testLogger(), nil, nil, nil)
	require.NoError(t, err)
	require.Empty(t, n.ports)

	_, err = FromConfig(config.NotifierConfig{RedisEnabled: true}, testLogger(), nil, nil, nil)
	require.Error(t, err)
	_, err = FromConfig(config.NotifierConfig{InboxEnabled: true}, testLogger(), nil, nil, nil)
	require.Error(t, err)
}
