package dto

import "github.com/pampermomma/backend/internal/models"

type NotificationListResponse struct {
	Count    int64                 `json:"count"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Results  []models.Notification `json:"results"`
}
