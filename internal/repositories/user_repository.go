package repositories

import (
	"context"
	"net/http"

	"chat-client/internal/models"
)

// ListUsers returns every addressable user of the caller's tenant.
func (r *ChatRepo) ListUsers(ctx context.Context) Result[models.UserSummary] {
	var users []models.UserSummary
	if err := r.api.do(ctx, http.MethodGet, "list_users", "companies/everybody", nil, &users); err != nil {
		return failed[models.UserSummary](err)
	}
	return okOrEmpty(users)
}
