package simplestore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-store/pkg/simplestore"
	"github.com/tendant/simple-store/pkg/simplestore/repo/memory"
	memorystorage "github.com/tendant/simple-store/pkg/simplestore/storage/memory"
)

func setupService(t *testing.T, extra ...simplestore.Option) simplestore.Service {
	t.Helper()
	options := append([]simplestore.Option{
		simplestore.WithUserRepository(memory.New()),
		simplestore.WithObjectStore(memorystorage.New()),
	}, extra...)

	svc, err := simplestore.New(options...)
	require.NoError(t, err)
	return svc
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []simplestore.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []simplestore.Option{},
			expectError: true,
		},
		{
			name: "repository without object store should fail",
			options: []simplestore.Option{
				simplestore.WithUserRepository(memory.New()),
			},
			expectError: true,
		},
		{
			name: "object store without repository should fail",
			options: []simplestore.Option{
				simplestore.WithObjectStore(memorystorage.New()),
			},
			expectError: true,
		},
		{
			name: "with repository and object store should succeed",
			options: []simplestore.Option{
				simplestore.WithUserRepository(memory.New()),
				simplestore.WithObjectStore(memorystorage.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simplestore.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestUpdateUserRequest_Patch(t *testing.T) {
	name := "Ann"
	empty := ""

	patch := simplestore.UpdateUserRequest{ID: 1, Name: &name, Email: &empty}.Patch()
	assert.Equal(t, simplestore.UserPatch{simplestore.UserFieldName: "Ann"}, patch)
	assert.True(t, patch.Valid())

	assert.Empty(t, simplestore.UpdateUserRequest{ID: 1}.Patch())
	assert.False(t, simplestore.UserPatch{"id": "2"}.Valid())
}
