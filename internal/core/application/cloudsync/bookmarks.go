package cloudsync

import (
	"context"
	"sort"

	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

// SetBrowserBookmark adds or replaces a bookmark.
func (e *Engine) SetBrowserBookmark(ctx context.Context, bookmark BrowserBookmarkPayload) error {
	if !e.IsEnabled() {
		return domain.NewGenericLocalError("cloud sync is not enabled")
	}
	return e.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			return e.BrowserBookmarks.TxUpsertSyncItems(
				tx, []BrowserBookmarkTarget{{Bookmark: bookmark}}, false,
			)
		},
	)
}

// RemoveBrowserBookmark writes the tombstone of the bookmark.
func (e *Engine) RemoveBrowserBookmark(ctx context.Context, url string) error {
	if !e.IsEnabled() {
		return domain.NewGenericLocalError("cloud sync is not enabled")
	}
	return e.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			target := BrowserBookmarkTarget{Bookmark: BrowserBookmarkPayload{URL: url}}
			key, err := e.BrowserBookmarks.BuildSyncKey(target)
			if err != nil {
				return err
			}
			if _, err := records.Get[domain.CloudSyncItem](
				tx, domain.StoreCloudSyncItem, key,
			); err != nil {
				return err
			}
			return e.BrowserBookmarks.TxUpsertSyncItems(
				tx, []BrowserBookmarkTarget{target}, true,
			)
		},
	)
}

// ListBrowserBookmarks returns the bookmarks sorted by sort index.
func (e *Engine) ListBrowserBookmarks(ctx context.Context) ([]BrowserBookmarkPayload, error) {
	items, err := e.GetAllLocalSyncItems(ctx)
	if err != nil {
		return nil, err
	}
	bookmarks := make([]BrowserBookmarkPayload, 0)
	for _, item := range items {
		if item.DataType != domain.SyncDataTypeBrowserBookmark || item.IsDeleted {
			continue
		}
		payload, err := e.BrowserBookmarks.DecodeSyncItem(item)
		if err != nil {
			continue
		}
		bookmarks = append(bookmarks, *payload)
	}
	sort.SliceStable(bookmarks, func(i, j int) bool {
		if bookmarks[i].SortIndex != bookmarks[j].SortIndex {
			return bookmarks[i].SortIndex < bookmarks[j].SortIndex
		}
		return bookmarks[i].URL < bookmarks[j].URL
	})
	return bookmarks, nil
}
