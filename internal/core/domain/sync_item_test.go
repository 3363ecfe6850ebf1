package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

func TestShouldAcceptSyncItem(t *testing.T) {
	tests := []struct {
		name     string
		local    *domain.CloudSyncItem
		incoming domain.CloudSyncItem
		expected bool
	}{
		{
			name:     "no local item",
			local:    nil,
			incoming: domain.CloudSyncItem{DataTime: 1, PwdHash: "a", Data: "x"},
			expected: true,
		},
		{
			name:     "equal time with password hash mismatch",
			local:    &domain.CloudSyncItem{DataTime: 100, PwdHash: "a", Data: "x"},
			incoming: domain.CloudSyncItem{DataTime: 100, PwdHash: "b", Data: "y"},
			expected: true,
		},
		{
			name:     "older incoming with mismatch",
			local:    &domain.CloudSyncItem{DataTime: 100, PwdHash: "a", Data: "x"},
			incoming: domain.CloudSyncItem{DataTime: 10, PwdHash: "b", Data: "y"},
			expected: true,
		},
		{
			name:     "older incoming same epoch",
			local:    &domain.CloudSyncItem{DataTime: 100, PwdHash: "a", Data: "x"},
			incoming: domain.CloudSyncItem{DataTime: 50, PwdHash: "a", Data: "y"},
			expected: false,
		},
		{
			name:     "equal time same epoch",
			local:    &domain.CloudSyncItem{DataTime: 100, PwdHash: "a", Data: "x"},
			incoming: domain.CloudSyncItem{DataTime: 100, PwdHash: "a", Data: "y"},
			expected: true,
		},
		{
			name:     "local without data",
			local:    &domain.CloudSyncItem{DataTime: 100, PwdHash: "a"},
			incoming: domain.CloudSyncItem{DataTime: 50, PwdHash: "a", Data: "y"},
			expected: true,
		},
		{
			name:     "local without data and incoming without data",
			local:    &domain.CloudSyncItem{DataTime: 100, PwdHash: "a"},
			incoming: domain.CloudSyncItem{DataTime: 50, PwdHash: "a"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, domain.ShouldAcceptSyncItem(tt.local, tt.incoming))
		})
	}
}

func TestMergeSyncItem(t *testing.T) {
	local := &domain.CloudSyncItem{ID: "k", DataTime: 100, PwdHash: "a", Data: "local"}

	merged, accepted := domain.MergeSyncItem(local, domain.CloudSyncItem{
		ID: "k", DataTime: 50, PwdHash: "a", Data: "server",
	})
	require.False(t, accepted)
	require.Equal(t, "local", merged.Data)

	merged, accepted = domain.MergeSyncItem(local, domain.CloudSyncItem{
		ID: "k", DataTime: 100, PwdHash: "b", Data: "server",
	})
	require.True(t, accepted)
	require.Equal(t, "server", merged.Data)
}

func TestIsUploadable(t *testing.T) {
	require.True(t, domain.CloudSyncItem{Data: "x", PwdHash: "a"}.IsUploadable("a"))
	require.True(t, domain.CloudSyncItem{IsDeleted: true, PwdHash: "a"}.IsUploadable("a"))
	require.False(t, domain.CloudSyncItem{Data: "x", PwdHash: "a"}.IsUploadable("b"))
	require.False(t, domain.CloudSyncItem{RawData: "x", PwdHash: "a"}.IsUploadable("a"))
	require.False(t, domain.CloudSyncItem{Data: "x"}.IsUploadable(""))
}

func TestMergeSyncItemKeepsLocalKeyFields(t *testing.T) {
	local := &domain.CloudSyncItem{
		ID: "k", DataType: domain.SyncDataTypeWallet, RawKey: "hd--abc",
		DataTime: 100, PwdHash: "a",
	}
	merged, accepted := domain.MergeSyncItem(local, domain.CloudSyncItem{
		ID: "k", PwdHash: "b", Data: "server",
	})
	require.True(t, accepted)
	require.Equal(t, "hd--abc", merged.RawKey)
	require.Equal(t, domain.SyncDataTypeWallet, merged.DataType)
	require.Equal(t, int64(100), merged.DataTime)
	require.Equal(t, "server", merged.Data)
}
