package bridge

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	"github.com/gridbase-io/gridbase/internal/handler"
	"github.com/gridbase-io/gridbase/internal/protocol"
)

func TestLocalBridge_CommandProducesEventsInOrder(t *testing.T) {
	b := NewLocalBridge(context.Background(), handler.New(handler.Options{}), dataservice.NewSampleMemory(), "", nil)

	var names []string
	b.OnEvent(protocol.EvtTableSchema, func(payload json.RawMessage) {
		names = append(names, protocol.EvtTableSchema)
	})
	b.OnEvent(protocol.EvtTableData, func(payload json.RawMessage) {
		names = append(names, protocol.EvtTableData)
	})

	require.NoError(t, b.SendCommand(protocol.CmdSelectTable, protocol.SelectTablePayload{
		Namespace: "SAMPLES",
		Table:     "Customer",
	}))

	assert.Equal(t, []string{protocol.EvtTableSchema, protocol.EvtTableData}, names)
}

func TestLocalBridge_OffEventStopsDelivery(t *testing.T) {
	b := NewLocalBridge(context.Background(), handler.New(handler.Options{}), dataservice.NewSampleMemory(), "", nil)

	calls := 0
	sub := b.OnEvent(protocol.EvtNamespaceList, func(json.RawMessage) { calls++ })

	require.NoError(t, b.SendCommand(protocol.CmdListNamespaces, nil))
	b.OffEvent(sub)
	require.NoError(t, b.SendCommand(protocol.CmdListNamespaces, nil))

	assert.Equal(t, 1, calls)
}

func TestLocalBridge_HandlersRunInRegistrationOrder(t *testing.T) {
	b := NewLocalBridge(context.Background(), handler.New(handler.Options{}), dataservice.NewSampleMemory(), "", nil)

	var order []int
	b.OnEvent(protocol.EvtNamespaceList, func(json.RawMessage) { order = append(order, 1) })
	b.OnEvent(protocol.EvtNamespaceList, func(json.RawMessage) { order = append(order, 2) })
	b.OnEvent(protocol.EvtNamespaceList, func(json.RawMessage) { order = append(order, 3) })

	require.NoError(t, b.SendCommand(protocol.CmdListNamespaces, nil))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBridge_StateRoundTrip(t *testing.T) {
	b := NewLocalBridge(context.Background(), handler.New(handler.Options{}), dataservice.NewSampleMemory(), "", nil)

	got, err := b.GetState()
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, b.SetState([]byte(`{"panel":"open"}`)))
	got, err = b.GetState()
	require.NoError(t, err)
	assert.JSONEq(t, `{"panel":"open"}`, string(got))
}

func TestPipeBridge_EndToEnd(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	t.Cleanup(func() {
		clientEnd.Close()
		serverEnd.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ServePipe(ctx, serverEnd, handler.New(handler.Options{}), dataservice.NewSampleMemory(), "", nil)

	b := NewPipeBridge(clientEnd, nil)

	got := make(chan json.RawMessage, 1)
	b.OnEvent(protocol.EvtNamespaceList, func(payload json.RawMessage) {
		got <- payload
	})
	disconnected := make(chan struct{})
	b.OnEvent(protocol.EvtDisconnected, func(json.RawMessage) {
		close(disconnected)
	})

	require.NoError(t, b.SendCommand(protocol.CmdListNamespaces, nil))

	select {
	case payload := <-got:
		var list protocol.NamespaceListPayload
		require.NoError(t, json.Unmarshal(payload, &list))
		assert.Equal(t, []string{"SAMPLES"}, list.Namespaces)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for namespaceList")
	}

	// Dropping the server end surfaces as a local disconnected event.
	serverEnd.Close()
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnected")
	}
}

func TestPipeBridge_ErrorsArriveAsEvents(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	t.Cleanup(func() {
		clientEnd.Close()
		serverEnd.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ServePipe(ctx, serverEnd, handler.New(handler.Options{}), dataservice.NewSampleMemory(), "", nil)

	b := NewPipeBridge(clientEnd, nil)

	got := make(chan json.RawMessage, 1)
	b.OnEvent(protocol.EvtError, func(payload json.RawMessage) {
		got <- payload
	})

	require.NoError(t, b.SendCommand(protocol.CmdFetchPage, protocol.FetchPagePayload{Limit: 10}))

	select {
	case payload := <-got:
		var errEvt protocol.ErrorPayload
		require.NoError(t, json.Unmarshal(payload, &errEvt))
		assert.Equal(t, "VALIDATION_ERROR", errEvt.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error event")
	}
}
