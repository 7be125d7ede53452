package handler

import (
	"context"
	"fmt"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	"github.com/gridbase-io/gridbase/internal/protocol"
	apperrors "github.com/gridbase-io/gridbase/internal/shared/errors"
	"github.com/gridbase-io/gridbase/internal/shared/goroutine"
)

// Bulk export/import run on their own goroutine so a slow batch never blocks
// the connection's read loop. Cancellation is cooperative: the flag is
// checked between row batches, and the terminal event always carries the
// exact completed count.

func (h *Handler) exportTable(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope, emit Emitter) ([]protocol.Envelope, error) {
	var payload protocol.ExportTablePayload
	if err := h.decode(env, &payload); err != nil {
		return nil, err
	}
	if cc.Table == "" {
		return nil, apperrors.NewValidationError("no table selected")
	}
	if emit == nil {
		return nil, apperrors.NewInternalError("transport does not support bulk operations")
	}

	op, ok := cc.ops.register(payload.OpID)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("operation %q already running", payload.OpID))
	}

	// Snapshot the browsing state; the goroutine must not touch cc, which
	// stays exclusively owned by the connection's read loop.
	namespace, table := cc.Namespace, cc.Table
	filters, sorts := payload.Filters, payload.Sorts
	ops := &cc.ops

	goroutine.SafeGo(h.logger, "bulk-export-"+payload.OpID, func() {
		defer ops.remove(payload.OpID)
		h.runExport(ctx, svc, op, emit, payload.OpID, namespace, table, filters, sorts)
	})
	return nil, nil
}

func (h *Handler) runExport(ctx context.Context, svc dataservice.Interface, op *operation, emit Emitter, opID, namespace, table string, filters []dataservice.Filter, sorts []dataservice.Sort) {
	completed := 0
	total := 0

	for offset := 0; ; {
		if op.isCancelled() {
			h.emitEvent(emit, protocol.EvtOperationCancelled, protocol.BulkProgressPayload{OpID: opID, Completed: completed, Total: total})
			return
		}

		page, err := svc.FetchPage(ctx, namespace, table, filters, sorts, offset, h.batchSize)
		if err != nil {
			h.emitBulkError(emit, err, opID, completed, total)
			return
		}
		if offset == 0 {
			total = int(page.Total)
		}
		if len(page.Rows) == 0 {
			break
		}

		h.emitEvent(emit, protocol.EvtExportData, protocol.ExportDataPayload{OpID: opID, Rows: page.Rows})
		completed += len(page.Rows)
		offset += len(page.Rows)
		h.emitEvent(emit, protocol.EvtExportProgress, protocol.BulkProgressPayload{OpID: opID, Completed: completed, Total: total})

		if completed >= total || completed >= h.maxRowsPerOp {
			break
		}
	}

	h.emitEvent(emit, protocol.EvtExportComplete, protocol.BulkProgressPayload{OpID: opID, Completed: completed, Total: total})
}

func (h *Handler) importRows(ctx context.Context, svc dataservice.Interface, cc *ConnContext, env protocol.Envelope, emit Emitter) ([]protocol.Envelope, error) {
	var payload protocol.ImportRowsPayload
	if err := h.decode(env, &payload); err != nil {
		return nil, err
	}
	if cc.Table == "" {
		return nil, apperrors.NewValidationError("no table selected")
	}
	if emit == nil {
		return nil, apperrors.NewInternalError("transport does not support bulk operations")
	}
	if len(payload.Rows) > h.maxRowsPerOp {
		return nil, apperrors.NewValidationError(fmt.Sprintf("import exceeds the %d row limit", h.maxRowsPerOp))
	}

	op, ok := cc.ops.register(payload.OpID)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("operation %q already running", payload.OpID))
	}

	namespace, table := cc.Namespace, cc.Table
	rows := payload.Rows
	ops := &cc.ops

	goroutine.SafeGo(h.logger, "bulk-import-"+payload.OpID, func() {
		defer ops.remove(payload.OpID)
		h.runImport(ctx, svc, op, emit, payload.OpID, namespace, table, rows)
	})
	return nil, nil
}

func (h *Handler) runImport(ctx context.Context, svc dataservice.Interface, op *operation, emit Emitter, opID, namespace, table string, rows []dataservice.Row) {
	total := len(rows)
	completed := 0

	for start := 0; start < total; start += h.batchSize {
		if op.isCancelled() {
			h.emitEvent(emit, protocol.EvtOperationCancelled, protocol.BulkProgressPayload{OpID: opID, Completed: completed, Total: total})
			return
		}

		end := start + h.batchSize
		if end > total {
			end = total
		}
		for _, row := range rows[start:end] {
			if _, err := svc.InsertRow(ctx, namespace, table, row); err != nil {
				h.emitBulkError(emit, err, opID, completed, total)
				return
			}
			completed++
		}
		h.emitEvent(emit, protocol.EvtImportProgress, protocol.BulkProgressPayload{OpID: opID, Completed: completed, Total: total})
	}

	h.emitEvent(emit, protocol.EvtImportComplete, protocol.BulkProgressPayload{OpID: opID, Completed: completed, Total: total})
}

func (h *Handler) emitEvent(emit Emitter, name string, payload any) {
	evt, err := protocol.NewEnvelope(name, payload)
	if err != nil {
		h.logger.Errorw("failed to encode bulk event", "event", name, "error", err)
		return
	}
	emit(evt)
}

// emitBulkError reports a failed bulk operation with its progress context so
// the client can tell how far it got.
func (h *Handler) emitBulkError(emit Emitter, err error, opID string, completed, total int) {
	appErr := apperrors.Classify(err)
	h.emitEvent(emit, protocol.EvtError, protocol.ErrorPayload{
		Kind:    string(appErr.Kind),
		Message: appErr.Message,
		Details: fmt.Sprintf("completed %d of %d rows", completed, total),
		OpID:    opID,
	})
}
