package handler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	"github.com/gridbase-io/gridbase/internal/protocol"
	apperrors "github.com/gridbase-io/gridbase/internal/shared/errors"
)

func newTestHandler() *Handler {
	return New(Options{BatchSize: 2})
}

func cmd(t *testing.T, name string, payload any) protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(name, payload)
	require.NoError(t, err)
	return env
}

func decodePayload[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Payload, &out))
	return out
}

func TestHandle_SelectTableEmitsSchemaThenData(t *testing.T) {
	h := newTestHandler()
	svc := dataservice.NewSampleMemory()
	cc := NewConnContext("")

	events := h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdSelectTable, protocol.SelectTablePayload{
		Namespace: "SAMPLES",
		Table:     "Customer",
	}), nil)

	require.Len(t, events, 2)
	assert.Equal(t, protocol.EvtTableSchema, events[0].Name)
	assert.Equal(t, protocol.EvtTableData, events[1].Name)

	schema := decodePayload[protocol.TableSchemaPayload](t, events[0])
	assert.Equal(t, "Customer", schema.Schema.Table)

	data := decodePayload[protocol.TableDataPayload](t, events[1])
	assert.Equal(t, int64(3), data.Page.Total)
	assert.Len(t, data.Page.Rows, 3)

	assert.Equal(t, "SAMPLES", cc.Namespace)
	assert.Equal(t, "Customer", cc.Table)
	require.NotNil(t, cc.Schema)
}

func TestHandle_ListCommands(t *testing.T) {
	h := newTestHandler()
	svc := dataservice.NewSampleMemory()
	cc := NewConnContext("")

	events := h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdListNamespaces, nil), nil)
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EvtNamespaceList, events[0].Name)
	nsList := decodePayload[protocol.NamespaceListPayload](t, events[0])
	assert.Equal(t, []string{"SAMPLES"}, nsList.Namespaces)

	events = h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdListTables, protocol.ListTablesPayload{Namespace: "SAMPLES"}), nil)
	require.Len(t, events, 1)
	tables := decodePayload[protocol.TableListPayload](t, events[0])
	assert.Equal(t, []string{"Customer", "Order"}, tables.Tables)
}

func TestHandle_SetNamespaceClearsSelection(t *testing.T) {
	h := newTestHandler()
	svc := dataservice.NewSampleMemory()
	cc := NewConnContext("")

	h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdSelectTable, protocol.SelectTablePayload{Namespace: "SAMPLES", Table: "Customer"}), nil)
	require.Equal(t, "Customer", cc.Table)

	events := h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdSetNamespace, protocol.SetNamespacePayload{Namespace: "OTHER"}), nil)
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EvtNamespaceChanged, events[0].Name)
	assert.Equal(t, "OTHER", cc.Namespace)
	assert.Empty(t, cc.Table)
	assert.Nil(t, cc.Schema)
}

func TestHandle_FetchPageAndRefresh(t *testing.T) {
	h := newTestHandler()
	svc := dataservice.NewSampleMemory()
	cc := NewConnContext("")

	h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdSelectTable, protocol.SelectTablePayload{Namespace: "SAMPLES", Table: "Customer"}), nil)

	events := h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdFetchPage, protocol.FetchPagePayload{
		Filters: []dataservice.Filter{{Column: "city", Operator: "=", Value: "Austin"}},
		Offset:  0,
		Limit:   10,
	}), nil)
	require.Len(t, events, 1)
	data := decodePayload[protocol.TableDataPayload](t, events[0])
	require.Len(t, data.Page.Rows, 1)
	assert.Equal(t, "Initech", data.Page.Rows[0]["name"])

	// refresh re-runs the same window, picking up data changes.
	_, err := svc.InsertRow(context.Background(), "SAMPLES", "Customer", dataservice.Row{"name": "Hooli", "city": "Austin"})
	require.NoError(t, err)

	events = h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdRefresh, nil), nil)
	require.Len(t, events, 1)
	data = decodePayload[protocol.TableDataPayload](t, events[0])
	assert.Len(t, data.Page.Rows, 2)
}

func TestHandle_RefreshEchoesOpID(t *testing.T) {
	h := newTestHandler()
	svc := dataservice.NewSampleMemory()
	cc := NewConnContext("")

	h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdSelectTable, protocol.SelectTablePayload{Namespace: "SAMPLES", Table: "Customer"}), nil)

	events := h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdRefresh, protocol.RefreshPayload{OpID: "req-9"}), nil)
	require.Len(t, events, 1)
	data := decodePayload[protocol.TableDataPayload](t, events[0])
	assert.Equal(t, "req-9", data.OpID)
}

func TestHandle_RowMutations(t *testing.T) {
	h := newTestHandler()
	svc := dataservice.NewSampleMemory()
	cc := NewConnContext("")

	h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdSelectTable, protocol.SelectTablePayload{Namespace: "SAMPLES", Table: "Customer"}), nil)

	events := h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdInsertRow, protocol.InsertRowPayload{
		Row:  dataservice.Row{"name": "Hooli", "city": "Palo Alto"},
		OpID: "op-1",
	}), nil)
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EvtRowInserted, events[0].Name)
	inserted := decodePayload[protocol.RowInsertedPayload](t, events[0])
	assert.Equal(t, "op-1", inserted.OpID)
	require.NotNil(t, inserted.Row["id"])

	key := dataservice.Row{"id": inserted.Row["id"]}
	events = h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdUpdateCell, protocol.UpdateCellPayload{
		Key:    key,
		Column: "city",
		Value:  "Menlo Park",
	}), nil)
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EvtCellUpdated, events[0].Name)

	events = h.Handle(context.Background(), svc, cc, cmd(t, protocol.CmdDeleteRow, protocol.DeleteRowPayload{Key: key}), nil)
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EvtRowDeleted, events[0].Name)
	assert.Equal(t, 3, svc.RowCount("SAMPLES", "Customer"))
}

func TestHandle_ErrorEvents(t *testing.T) {
	h := newTestHandler()
	svc := dataservice.NewSampleMemory()

	tests := []struct {
		name     string
		env      protocol.Envelope
		wantKind apperrors.ErrorKind
	}{
		{
			name:     "unknown command",
			env:      protocol.Envelope{Name: "definitelyNotACommand"},
			wantKind: apperrors.KindValidation,
		},
		{
			name:     "malformed payload",
			env:      protocol.Envelope{Name: protocol.CmdSelectTable, Payload: json.RawMessage(`{"table": 42}`)},
			wantKind: apperrors.KindValidation,
		},
		{
			name:     "missing required field",
			env:      protocol.Envelope{Name: protocol.CmdSelectTable, Payload: json.RawMessage(`{"namespace": "SAMPLES"}`)},
			wantKind: apperrors.KindValidation,
		},
		{
			name:     "fetch before select",
			env:      protocol.Envelope{Name: protocol.CmdFetchPage, Payload: json.RawMessage(`{"offset": 0}`)},
			wantKind: apperrors.KindValidation,
		},
		{
			name:     "data service failure",
			env:      protocol.Envelope{Name: protocol.CmdListTables, Payload: json.RawMessage(`{"namespace": "NOPE"}`)},
			wantKind: apperrors.KindDataService,
		},
		{
			name:     "cancel unknown operation",
			env:      protocol.Envelope{Name: protocol.CmdCancelOperation, Payload: json.RawMessage(`{"opId": "ghost"}`)},
			wantKind: apperrors.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := NewConnContext("")
			events := h.Handle(context.Background(), svc, cc, tt.env, nil)
			require.Len(t, events, 1)
			require.Equal(t, protocol.EvtError, events[0].Name)
			payload := decodePayload[protocol.ErrorPayload](t, events[0])
			assert.Equal(t, string(tt.wantKind), payload.Kind)
		})
	}
}

func TestHandle_ErrorEchoesOpID(t *testing.T) {
	h := newTestHandler()
	svc := dataservice.NewSampleMemory()
	cc := NewConnContext("")

	env := protocol.Envelope{Name: protocol.CmdFetchPage, Payload: json.RawMessage(`{"offset": 0, "opId": "req-7"}`)}
	events := h.Handle(context.Background(), svc, cc, env, nil)
	require.Len(t, events, 1)
	payload := decodePayload[protocol.ErrorPayload](t, events[0])
	assert.Equal(t, "req-7", payload.OpID)
}
