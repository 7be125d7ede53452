// Package dataservice defines the boundary to the vendor database layer.
// The command handler drives everything through Interface; the actual
// query/DDL construction lives behind it and is never done by this module.
package dataservice

import "context"

// Credentials identifies one remote database plus the account used to reach it.
// The password is held in memory only and must never be written to durable
// storage or logs.
type Credentials struct {
	Host       string `json:"host" validate:"required"`
	Port       int    `json:"port" validate:"required,min=1,max=65535"`
	PathPrefix string `json:"pathPrefix,omitempty"`
	Namespace  string `json:"namespace,omitempty"`
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password"`
}

// Column describes one column of a table schema.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primaryKey"`
}

// Schema is the column layout of one table.
type Schema struct {
	Namespace string   `json:"namespace"`
	Table     string   `json:"table"`
	Columns   []Column `json:"columns"`
}

// Filter is one column predicate applied to a page fetch.
type Filter struct {
	Column   string `json:"column" validate:"required"`
	Operator string `json:"operator" validate:"required,oneof== != < <= > >= like"`
	Value    any    `json:"value"`
}

// Sort is one ordering term applied to a page fetch.
type Sort struct {
	Column     string `json:"column" validate:"required"`
	Descending bool   `json:"descending"`
}

// Row is one table row keyed by column name.
type Row map[string]any

// Page is one window of rows plus the total matching count.
type Page struct {
	Rows   []Row `json:"rows"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

// Interface is the data-service contract consumed by the command handler.
// Implementations return errors already classified through shared/errors so
// the handler never has to inspect vendor error types.
type Interface interface {
	ListNamespaces(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, namespace string) ([]string, error)
	GetSchema(ctx context.Context, namespace, table string) (*Schema, error)
	FetchPage(ctx context.Context, namespace, table string, filters []Filter, sorts []Sort, offset, limit int) (*Page, error)
	InsertRow(ctx context.Context, namespace, table string, row Row) (Row, error)
	UpdateCell(ctx context.Context, namespace, table string, key Row, column string, value any) error
	DeleteRow(ctx context.Context, namespace, table string, key Row) error
	Close() error
}

// Factory opens a data service for one set of credentials. The socket server
// opens one instance per session on demand.
type Factory interface {
	Open(ctx context.Context, creds Credentials) (Interface, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, creds Credentials) (Interface, error)

func (f FactoryFunc) Open(ctx context.Context, creds Credentials) (Interface, error) {
	return f(ctx, creds)
}
