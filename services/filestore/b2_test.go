package filestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/schooldesk/core"
)

func Test_classify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind core.Kind
	}{
		{name: "cap exceeded", err: errors.New("403: cap_exceeded: transaction cap exceeded"), wantKind: core.KindQuotaExceeded},
		{name: "too many requests", err: errors.New("429: too_many_requests"), wantKind: core.KindQuotaExceeded},
		{name: "bad auth token", err: errors.New("401: bad_auth_token"), wantKind: core.KindPermission},
		{name: "expired auth token", err: errors.New("401: expired_auth_token"), wantKind: core.KindPermission},
		{name: "unauthorized", err: errors.New("401: unauthorized: key not valid for bucket"), wantKind: core.KindPermission},
		{name: "access denied", err: errors.New("403: ACCESS_DENIED"), wantKind: core.KindPermission},
		{name: "deadline", err: fmt.Errorf("writing chunk: %w", context.DeadlineExceeded), wantKind: core.KindNetwork},
		{name: "canceled", err: context.Canceled, wantKind: core.KindNetwork},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "api.backblazeb2.com"}, wantKind: core.KindNetwork},
		{
			name:     "connection refused",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			wantKind: core.KindNetwork,
		},
		{name: "anything else", err: errors.New("500: internal_error"), wantKind: core.KindUploadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("filestore.Upload", tt.err)
			assert.Equal(t, tt.wantKind, core.KindOf(got), "kind = %s", core.KindOf(got))
			assert.True(t, errors.Is(got, tt.err), "wraps the cause")
			assert.True(t, strings.HasPrefix(got.Error(), "filestore.Upload: "), got.Error())
		})
	}
}
