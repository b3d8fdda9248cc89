package api

import (
	"context"
	"fmt"

	"github.com/rickgao/tradestream/internal/model"
)

// GetUnreadCount returns the number of unread notifications for the
// logged-in user. Returns ErrNoCredential when no token is stored.
func (c *Client) GetUnreadCount(ctx context.Context) (int, error) {
	resp, err := getJSON[model.UnreadCount](ctx, c, "/notifications/unread-count", nil)
	if err != nil {
		return 0, err
	}
	if resp.UnreadCount < 0 {
		return 0, fmt.Errorf("unread count: negative value %d", resp.UnreadCount)
	}
	return resp.UnreadCount, nil
}
