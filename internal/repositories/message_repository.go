package repositories

import (
	"context"
	"net/http"
	"net/url"

	"chat-client/internal/models"
)

// History returns the messages exchanged with otherUserID in backend order.
func (r *ChatRepo) History(ctx context.Context, tenantCode string, otherUserID string) Result[models.Message] {
	var msgs []models.Message
	query := url.Values{"companyCode": {tenantCode}, "otherUserId": {otherUserID}}
	if err := r.api.do(ctx, http.MethodGet, "history", "chats/history", query, &msgs); err != nil {
		return failed[models.Message](err)
	}
	for i := range msgs {
		if msgs[i].Status == "" {
			msgs[i].Status = models.StatusDelivered
		}
	}
	return okOrEmpty(msgs)
}
