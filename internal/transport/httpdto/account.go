package httpdto

import (
	"time"

	"safehaven-service/internal/domain/account"
)

type CreateSafeHavenRequest struct {
	Reference  string `json:"reference" binding:"required"`
	OwnerName  string `json:"ownerName" binding:"required"`
	OwnerEmail string `json:"ownerEmail" binding:"required,email"`
}

type UpdateSafeHavenRequest struct {
	OwnerName  string `json:"ownerName"`
	OwnerEmail string `json:"ownerEmail" binding:"omitempty,email"`
}

type SafeHavenResponse struct {
	ID         string    `json:"id"`
	Reference  string    `json:"reference"`
	OwnerName  string    `json:"ownerName"`
	OwnerEmail string    `json:"ownerEmail"`
	Balance    int64     `json:"balance"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type ListSafeHavensResponse struct {
	Items []SafeHavenResponse `json:"items"`
	Total int64               `json:"total"`
}

func FromSafeHaven(s account.SafeHaven) SafeHavenResponse {
	return SafeHavenResponse{
		ID:         s.ID.String(),
		Reference:  s.Reference,
		OwnerName:  s.OwnerName,
		OwnerEmail: s.OwnerEmail,
		Balance:    s.Balance,
		Status:     string(s.Status),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func FromSafeHavenSlice(items []account.SafeHaven) []SafeHavenResponse {
	out := make([]SafeHavenResponse, 0, len(items))
	for _, s := range items {
		out = append(out, FromSafeHaven(s))
	}
	return out
}
