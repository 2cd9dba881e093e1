package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness)
		meta  RouteMeta
		want  []error
	}{
		{
			name:  "public route",
			setup: func(*testing.T, *harness) {},
			meta:  RouteMeta{},
		},
		{
			name:  "logged out on protected route",
			setup: func(*testing.T, *harness) {},
			meta:  RouteMeta{RequiresAuth: true},
			want:  []error{ErrSessionInvalid, ErrNotLoggedIn},
		},
		{
			name: "logged in on protected route",
			setup: func(t *testing.T, h *harness) {
				_, err := h.ctrl.Login(context.Background(), "bob", "hunter2")
				require.NoError(t, err)
			},
			meta: RouteMeta{RequiresAuth: true},
		},
		{
			name: "admin on admin route",
			setup: func(t *testing.T, h *harness) {
				_, err := h.ctrl.Login(context.Background(), "alice", "s3cret")
				require.NoError(t, err)
			},
			meta: RouteMeta{RequiresAuth: true, RequiresAdmin: true},
		},
		{
			name: "merchant on admin route",
			setup: func(t *testing.T, h *harness) {
				_, err := h.ctrl.Login(context.Background(), "bob", "hunter2")
				require.NoError(t, err)
			},
			meta: RouteMeta{RequiresAuth: true, RequiresAdmin: true},
			want: []error{ErrPermissionDenied},
		},
		{
			name:  "credential without profile on admin route",
			setup: func(t *testing.T, h *harness) { h.seed(t, "alice") },
			meta:  RouteMeta{RequiresAdmin: true},
			want:  []error{ErrSessionInvalid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(t, h)

			err := h.ctrl.Authorize(tt.meta)
			if len(tt.want) == 0 {
				assert.NoError(t, err)
				return
			}

			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}
