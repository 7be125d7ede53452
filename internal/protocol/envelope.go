// Package protocol defines the wire protocol shared by every transport:
// the command/event envelope, the command and event names, the close codes,
// and the payload shapes.
package protocol

import "encoding/json"

// Envelope is the wire unit in both directions. Commands flow UI to server,
// events flow server to UI. Envelopes are stateless and never reference one
// another; ordering is per-connection FIFO.
type Envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope by marshaling the payload.
func NewEnvelope(name string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Name: name}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Name: name, Payload: raw}, nil
}

// Command names (UI to server).
const (
	CmdListNamespaces  = "listNamespaces"
	CmdListTables      = "listTables"
	CmdSetNamespace    = "setNamespace"
	CmdSelectTable     = "selectTable"
	CmdFetchPage       = "fetchPage"
	CmdRefresh         = "refresh"
	CmdInsertRow       = "insertRow"
	CmdUpdateCell      = "updateCell"
	CmdDeleteRow       = "deleteRow"
	CmdExportTable     = "exportTable"
	CmdImportRows      = "importRows"
	CmdCancelOperation = "cancelOperation"
)

// Event names (server to UI).
const (
	EvtNamespaceList      = "namespaceList"
	EvtTableList          = "tableList"
	EvtNamespaceChanged   = "namespaceChanged"
	EvtTableSchema        = "tableSchema"
	EvtTableData          = "tableData"
	EvtRowInserted        = "rowInserted"
	EvtCellUpdated        = "cellUpdated"
	EvtRowDeleted         = "rowDeleted"
	EvtExportProgress     = "exportProgress"
	EvtExportData         = "exportData"
	EvtExportComplete     = "exportComplete"
	EvtImportProgress     = "importProgress"
	EvtImportComplete     = "importComplete"
	EvtOperationCancelled = "operationCancelled"
	EvtSessionExpired     = "sessionExpired"
	EvtError              = "error"
)

// Local pseudo-events emitted by the socket bridge itself, never by the
// server. The UI subscribes to them like any other event.
const (
	EvtReconnecting = "reconnecting"
	EvtReconnected  = "reconnected"
	EvtDisconnected = "disconnected"
)

// Close codes carried on the websocket close frame.
const (
	// CloseUnauthorized rejects a handshake whose token failed validation.
	CloseUnauthorized = 4001
	// CloseSessionExpired is sent when the server forcibly expires the
	// session behind a live connection. Clients must not reconnect after it.
	CloseSessionExpired = 4002
)
