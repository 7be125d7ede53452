// Package database reaches the remote database for the login credential
// probe. Query construction stays behind the dataservice boundary; this
// package only answers "do these credentials open a connection".
package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	apperrors "github.com/gridbase-io/gridbase/internal/shared/errors"
)

// Probe attempts to open and ping a connection with the supplied credentials.
// It returns nil on success or an AppError classified as AUTH_FAILED,
// SERVER_UNREACHABLE, or TIMEOUT. No connection is kept open.
func Probe(ctx context.Context, creds dataservice.Credentials, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/?charset=utf8mb4&parseTime=true&timeout=%s",
		creds.Username, creds.Password, creds.Host, creds.Port, timeout)

	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       dsn,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return classifyProbeError(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return apperrors.NewInternalError("failed to access connection pool", err.Error())
	}
	defer sqlDB.Close()

	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		return classifyProbeError(err)
	}
	return nil
}

// classifyProbeError maps driver failures onto the login error taxonomy.
func classifyProbeError(err error) *apperrors.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("database did not respond in time")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewTimeoutError("database did not respond in time")
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "Access denied"):
		return apperrors.NewAuthFailedError("invalid username or password")
	case strings.Contains(msg, "i/o timeout") || strings.Contains(msg, "timeout"):
		return apperrors.NewTimeoutError("database did not respond in time")
	default:
		return apperrors.NewServerUnreachableError("could not reach database server", msg)
	}
}
