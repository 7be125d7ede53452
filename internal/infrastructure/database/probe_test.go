package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/gridbase-io/gridbase/internal/shared/errors"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyProbeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperrors.ErrorKind
	}{
		{
			name:     "access denied maps to auth failed",
			err:      errors.New(`Error 1045 (28000): Access denied for user 'root'@'10.0.0.1' (using password: YES)`),
			wantKind: apperrors.KindAuthFailed,
		},
		{
			name:     "context deadline maps to timeout",
			err:      context.DeadlineExceeded,
			wantKind: apperrors.KindTimeout,
		},
		{
			name:     "net timeout maps to timeout",
			err:      timeoutErr{},
			wantKind: apperrors.KindTimeout,
		},
		{
			name:     "connection refused maps to unreachable",
			err:      errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"),
			wantKind: apperrors.KindServerUnreachable,
		},
		{
			name:     "unknown host maps to unreachable",
			err:      errors.New("dial tcp: lookup db.internal: no such host"),
			wantKind: apperrors.KindServerUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := classifyProbeError(tt.err)
			assert.Equal(t, tt.wantKind, appErr.Kind)
		})
	}
}
