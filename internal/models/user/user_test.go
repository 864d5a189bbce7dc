package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissions(t *testing.T) {
	tests := []struct {
		name       string
		u          *User
		owner      int
		wantManage bool
		wantDelete bool
	}{
		{"owner", &User{ID: 1, Role: CUSTOMER}, 1, true, true},
		{"stranger", &User{ID: 2, Role: CUSTOMER}, 1, false, false},
		{"staff", &User{ID: 3, Role: STAFF}, 1, true, false},
		{"admin", &User{ID: 4, Role: ADMIN}, 1, true, true},
		{"nil", nil, 1, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantManage, tt.u.CanManage(tt.owner))
			assert.Equal(t, tt.wantDelete, tt.u.CanDelete(tt.owner))
		})
	}
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	u := &User{ID: 7}
	got, ok := FromContext(NewContext(context.Background(), u))
	assert.True(t, ok)
	assert.Same(t, u, got)
}
