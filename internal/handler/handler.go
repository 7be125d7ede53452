// Package handler routes parsed commands to data-service operations and
// turns the results into events. It knows nothing about transports: callers
// hand it an envelope plus the connection's browsing context and get events
// back, either synchronously or through the emitter for long-running work.
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	"github.com/gridbase-io/gridbase/internal/protocol"
	apperrors "github.com/gridbase-io/gridbase/internal/shared/errors"
	"github.com/gridbase-io/gridbase/internal/shared/logger"
)

const defaultPageSize = 100

// Emitter delivers an event outside the synchronous reply path. Transports
// back it with the connection's outbound queue.
type Emitter func(protocol.Envelope)

// Options configures a Handler.
type Options struct {
	BatchSize    int
	MaxRowsPerOp int
	Logger       logger.Interface
}

// Handler is the transport-agnostic command router. One instance serves all
// connections; per-connection state lives in ConnContext.
type Handler struct {
	validate     *validator.Validate
	batchSize    int
	maxRowsPerOp int
	logger       logger.Interface
}

// New creates a Handler.
func New(opts Options) *Handler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.MaxRowsPerOp <= 0 {
		opts.MaxRowsPerOp = 1_000_000
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger()
	}
	return &Handler{
		validate:     validator.New(),
		batchSize:    opts.BatchSize,
		maxRowsPerOp: opts.MaxRowsPerOp,
		logger:       opts.Logger.Named("handler"),
	}
}

// Handle routes one command and returns the events it produced, in emission
// order. Failures are returned as error events, never as Go errors: the
// transport boundary only ever sees envelopes. Bulk commands return no
// synchronous events and report through emit instead.
func (h *Handler) Handle(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope, emit Emitter) []protocol.Envelope {
	events, err := h.route(ctx, svc, cc, env, emit)
	if err != nil {
		return []protocol.Envelope{h.errorEvent(err, opIDOf(env))}
	}
	return events
}

func (h *Handler) route(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope, emit Emitter) ([]protocol.Envelope, error) {
	switch env.Name {
	case protocol.CmdListNamespaces:
		return h.listNamespaces(ctx, svc)
	case protocol.CmdListTables:
		return h.listTables(ctx, svc, cc, env)
	case protocol.CmdSetNamespace:
		return h.setNamespace(ctx, svc, cc, env)
	case protocol.CmdSelectTable:
		return h.selectTable(ctx, svc, cc, env)
	case protocol.CmdFetchPage:
		return h.fetchPage(ctx, svc, cc, env)
	case protocol.CmdRefresh:
		return h.refresh(ctx, svc, cc, env)
	case protocol.CmdInsertRow:
		return h.insertRow(ctx, svc, cc, env)
	case protocol.CmdUpdateCell:
		return h.updateCell(ctx, svc, cc, env)
	case protocol.CmdDeleteRow:
		return h.deleteRow(ctx, svc, cc, env)
	case protocol.CmdExportTable:
		return h.exportTable(ctx, svc, cc, env, emit)
	case protocol.CmdImportRows:
		return h.importRows(ctx, svc, cc, env, emit)
	case protocol.CmdCancelOperation:
		return h.cancelOperation(cc, env)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown command %q", env.Name))
	}
}

func (h *Handler) listNamespaces(ctx context.Context, svc dataservice.Interface) ([]protocol.Envelope, error) {
	namespaces, err := svc.ListNamespaces(ctx)
	if err != nil {
		return nil, err
	}
	return h.events(protocol.EvtNamespaceList, protocol.NamespaceListPayload{Namespaces: namespaces})
}

func (h *Handler) listTables(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope) ([]protocol.Envelope, error) {
	var payload protocol.ListTablesPayload
	if err := h.decode(env, &payload); err != nil {
		return nil, err
	}
	namespace := payload.Namespace
	if namespace == "" {
		namespace = cc.Namespace
	}
	if namespace == "" {
		return nil, apperrors.NewValidationError("no namespace selected")
	}
	tables, err := svc.ListTables(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return h.events(protocol.EvtTableList, protocol.TableListPayload{Namespace: namespace, Tables: tables})
}

func (h *Handler) setNamespace(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope) ([]protocol.Envelope, error) {
	var payload protocol.SetNamespacePayload
	if err := h.decode(env, &payload); err != nil {
		return nil, err
	}
	// Switching the namespace drops the table selection; the cached schema
	// belongs to the old namespace.
	cc.Namespace = payload.Namespace
	cc.Table = ""
	cc.Schema = nil
	return h.events(protocol.EvtNamespaceChanged, protocol.NamespaceChangedPayload{Namespace: payload.Namespace})
}

func (h *Handler) selectTable(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope) ([]protocol.Envelope, error) {
	var payload protocol.SelectTablePayload
	if err := h.decode(env, &payload); err != nil {
		return nil, err
	}
	namespace := payload.Namespace
	if namespace == "" {
		namespace = cc.Namespace
	}
	if namespace == "" {
		return nil, apperrors.NewValidationError("no namespace selected")
	}

	schema, err := svc.GetSchema(ctx, namespace, payload.Table)
	if err != nil {
		return nil, err
	}

	pageSize := payload.PageSize
	if pageSize <= 0 {
		pageSize = cc.PageSize
	}
	page, err := svc.FetchPage(ctx, namespace, payload.Table, nil, nil, 0, pageSize)
	if err != nil {
		return nil, err
	}

	cc.selectTable(namespace, payload.Table, schema, pageSize)

	schemaEvt, err := protocol.NewEnvelope(protocol.EvtTableSchema, protocol.TableSchemaPayload{Schema: schema, OpID: payload.OpID})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode event", err.Error())
	}
	dataEvt, err := protocol.NewEnvelope(protocol.EvtTableData, protocol.TableDataPayload{
		Namespace: namespace,
		Table:     payload.Table,
		Page:      page,
		OpID:      payload.OpID,
	})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode event", err.Error())
	}
	// Schema strictly before first page, on the issuing connection.
	return []protocol.Envelope{schemaEvt, dataEvt}, nil
}

func (h *Handler) fetchPage(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope) ([]protocol.Envelope, error) {
	var payload protocol.FetchPagePayload
	if err := h.decode(env, &payload); err != nil {
		return nil, err
	}
	if cc.Table == "" {
		return nil, apperrors.NewValidationError("no table selected")
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = cc.PageSize
	}

	page, err := svc.FetchPage(ctx, cc.Namespace, cc.Table, payload.Filters, payload.Sorts, payload.Offset, limit)
	if err != nil {
		return nil, err
	}

	// The window becomes the connection's current view, used by refresh.
	cc.Filters = payload.Filters
	cc.Sorts = payload.Sorts
	cc.Offset = payload.Offset
	cc.PageSize = limit

	return h.events(protocol.EvtTableData, protocol.TableDataPayload{
		Namespace: cc.Namespace,
		Table:     cc.Table,
		Page:      page,
		OpID:      payload.OpID,
	})
}

func (h *Handler) refresh(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope) ([]protocol.Envelope, error) {
	var payload protocol.RefreshPayload
	if err := h.decode(env, &payload); err != nil {
		return nil, err
	}
	if cc.Table == "" {
		return nil, apperrors.NewValidationError("no table selected")
	}
	page, err := svc.FetchPage(ctx, cc.Namespace, cc.Table, cc.Filters, cc.Sorts, cc.Offset, cc.PageSize)
	if err != nil {
		return nil, err
	}
	return h.events(protocol.EvtTableData, protocol.TableDataPayload{
		Namespace: cc.Namespace,
		Table:     cc.Table,
		Page:      page,
		OpID:      payload.OpID,
	})
}

// insertRow is the one non-idempotent route; retries are the caller's
// responsibility, not this layer's.
func (h *Handler) insertRow(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope) ([]protocol.Envelope, error) {
	var payload protocol.InsertRowPayload
	if err := h.decode(env, &payload); err != nil {
		return nil, err
	}
	if cc.Table == "" {
		return nil, apperrors.NewValidationError("no table selected")
	}
	row, err := svc.InsertRow(ctx, cc.Namespace, cc.Table, payload.Row)
	if err != nil {
		return nil, err
	}
	return h.events(protocol.EvtRowInserted, protocol.RowInsertedPayload{Row: row, OpID: payload.OpID})
}

func (h *Handler) updateCell(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope) ([]protocol.Envelope, error) {
	var payload protocol.UpdateCellPayload
	if err := h.decode(env, &payload); err != nil {
		return nil, err
	}
	if cc.Table == "" {
		return nil, apperrors.NewValidationError("no table selected")
	}
	if err := svc.UpdateCell(ctx, cc.Namespace, cc.Table, payload.Key, payload.Column, payload.Value); err != nil {
		return nil, err
	}
	return h.events(protocol.EvtCellUpdated, protocol.CellUpdatedPayload{
		Key:    payload.Key,
		Column: payload.Column,
		Value:  payload.Value,
		OpID:   payload.OpID,
	})
}

func (h *Handler) deleteRow(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope) ([]protocol.Envelope, error) {
	var payload protocol.DeleteRowPayload
	if err := h.decode(env, &payload); err != nil {
		return nil, err
	}
	if cc.Table == "" {
		return nil, apperrors.NewValidationError("no table selected")
	}
	if err := svc.DeleteRow(ctx, cc.Namespace, cc.Table, payload.Key); err != nil {
		return nil, err
	}
	return h.events(protocol.EvtRowDeleted, protocol.RowDeletedPayload{Key: payload.Key, OpID: payload.OpID})
}

func (h *Handler) cancelOperation(cc *ConnContext, env protocol.Envelope) ([]protocol.Envelope, error) {
	var payload protocol.CancelOperationPayload
	if err := h.decode(env, &payload); err != nil {
		return nil, err
	}
	if !cc.ops.cancel(payload.OpID) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("no running operation %q", payload.OpID))
	}
	// The cancelled operation reports its own operationCancelled event with
	// the completed count once it observes the flag.
	return nil, nil
}

// decode unmarshals and validates a command payload.
func (h *Handler) decode(env protocol.Envelope, out any) error {
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, out); err != nil {
			return apperrors.NewValidationError("malformed payload", err.Error())
		}
	}
	if err := h.validate.Struct(out); err != nil {
		return apperrors.NewValidationError("invalid payload", err.Error())
	}
	return nil
}

func (h *Handler) events(name string, payload any) ([]protocol.Envelope, error) {
	evt, err := protocol.NewEnvelope(name, payload)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode event", err.Error())
	}
	return []protocol.Envelope{evt}, nil
}

// errorEvent converts a failure into the error event for the originating
// connection. INTERNAL details stay in the log, never on the wire.
func (h *Handler) errorEvent(err error, opID string) protocol.Envelope {
	appErr := apperrors.Classify(err)
	payload := protocol.ErrorPayload{
		Kind:    string(appErr.Kind),
		Message: appErr.Message,
		Details: appErr.Details,
		OpID:    opID,
	}
	if appErr.Kind == apperrors.KindInternal {
		h.logger.Errorw("internal error handling command", "error", err)
		payload.Message = "internal error"
		payload.Details = ""
	}
	evt, encErr := protocol.NewEnvelope(protocol.EvtError, payload)
	if encErr != nil {
		// ErrorPayload marshaling cannot realistically fail; fall back to a
		// bare envelope rather than dropping the event.
		return protocol.Envelope{Name: protocol.EvtError}
	}
	return evt
}

// opIDOf extracts the optional correlation id without failing on malformed
// payloads.
func opIDOf(env protocol.Envelope) string {
	if len(env.Payload) == 0 {
		return ""
	}
	var probe struct {
		OpID string `json:"opId"`
	}
	if err := json.Unmarshal(env.Payload, &probe); err != nil {
		return ""
	}
	return probe.OpID
}
