package protocol

import "github.com/gridbase-io/gridbase/internal/dataservice"

// Command payloads. OpID is an optional client-supplied correlation id; when
// present it is echoed verbatim on every event produced for that command.
// Bulk operations require it so cancelOperation can target them.

type ListTablesPayload struct {
	Namespace string `json:"namespace,omitempty"`
}

type SetNamespacePayload struct {
	Namespace string `json:"namespace" validate:"required"`
}

type SelectTablePayload struct {
	Namespace string `json:"namespace,omitempty"`
	Table     string `json:"table" validate:"required"`
	PageSize  int    `json:"pageSize,omitempty" validate:"omitempty,min=1,max=10000"`
	OpID      string `json:"opId,omitempty"`
}

// RefreshPayload is optional; refresh re-runs the connection's current page
// window as-is.
type RefreshPayload struct {
	OpID string `json:"opId,omitempty"`
}

type FetchPagePayload struct {
	Filters []dataservice.Filter `json:"filters,omitempty" validate:"omitempty,dive"`
	Sorts   []dataservice.Sort   `json:"sorts,omitempty" validate:"omitempty,dive"`
	Offset  int                  `json:"offset" validate:"min=0"`
	Limit   int                  `json:"limit,omitempty" validate:"omitempty,min=1,max=10000"`
	OpID    string               `json:"opId,omitempty"`
}

type InsertRowPayload struct {
	Row  dataservice.Row `json:"row" validate:"required"`
	OpID string          `json:"opId,omitempty"`
}

type UpdateCellPayload struct {
	Key    dataservice.Row `json:"key" validate:"required"`
	Column string          `json:"column" validate:"required"`
	Value  any             `json:"value"`
	OpID   string          `json:"opId,omitempty"`
}

type DeleteRowPayload struct {
	Key  dataservice.Row `json:"key" validate:"required"`
	OpID string          `json:"opId,omitempty"`
}

type ExportTablePayload struct {
	Filters []dataservice.Filter `json:"filters,omitempty" validate:"omitempty,dive"`
	Sorts   []dataservice.Sort   `json:"sorts,omitempty" validate:"omitempty,dive"`
	OpID    string               `json:"opId" validate:"required"`
}

type ImportRowsPayload struct {
	Rows []dataservice.Row `json:"rows" validate:"required,min=1"`
	OpID string            `json:"opId" validate:"required"`
}

type CancelOperationPayload struct {
	OpID string `json:"opId" validate:"required"`
}

// Event payloads.

type NamespaceListPayload struct {
	Namespaces []string `json:"namespaces"`
}

type TableListPayload struct {
	Namespace string   `json:"namespace"`
	Tables    []string `json:"tables"`
}

type NamespaceChangedPayload struct {
	Namespace string `json:"namespace"`
}

type TableSchemaPayload struct {
	Schema *dataservice.Schema `json:"schema"`
	OpID   string              `json:"opId,omitempty"`
}

type TableDataPayload struct {
	Namespace string            `json:"namespace"`
	Table     string            `json:"table"`
	Page      *dataservice.Page `json:"page"`
	OpID      string            `json:"opId,omitempty"`
}

type RowInsertedPayload struct {
	Row  dataservice.Row `json:"row"`
	OpID string          `json:"opId,omitempty"`
}

type CellUpdatedPayload struct {
	Key    dataservice.Row `json:"key"`
	Column string          `json:"column"`
	Value  any             `json:"value"`
	OpID   string          `json:"opId,omitempty"`
}

type RowDeletedPayload struct {
	Key  dataservice.Row `json:"key"`
	OpID string          `json:"opId,omitempty"`
}

// BulkProgressPayload reports progress for exportProgress/importProgress and
// the terminal exportComplete/importComplete/operationCancelled events.
// Completed counts rows actually processed; partial completion on cancel is
// reported exactly, never rounded to success or failure.
type BulkProgressPayload struct {
	OpID      string `json:"opId"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// ExportDataPayload carries one batch of exported rows.
type ExportDataPayload struct {
	OpID string            `json:"opId"`
	Rows []dataservice.Row `json:"rows"`
}

type SessionExpiredPayload struct {
	Reason string `json:"reason"`
}

// ErrorPayload is the body of every error event. Kind is one of the
// shared/errors taxonomy values.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	OpID    string `json:"opId,omitempty"`
}
