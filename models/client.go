package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/config"
	"gorm.io/gorm"
)

const (
	MarketplaceOzon         = "Ozon"
	MarketplaceWildberries  = "Wildberries"
	MarketplaceYandexMarket = "YandexMarket"
)

const (
	ClientStatusConnected    = "connected"
	ClientStatusDisconnected = "disconnected"
)

// Client is a tracked marketplace cabinet. Rows are managed by the onboarding
// flow; the sync engine only reads them and filters by marketplace tag.
type Client struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	ClientId    string    `gorm:"uniqueIndex;size:64;not null" json:"client_id" validate:"required"`
	NameCompany string    `gorm:"size:255" json:"name_company"`
	Marketplace string    `gorm:"index;size:32;not null" json:"marketplace" validate:"required"`
	ApiKey      string    `gorm:"type:text;not null" json:"-" validate:"required"`
	Status      string    `gorm:"size:20;not null;default:'connected'" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetClients returns connected clients, optionally filtered by marketplace tag.
func GetClients(ctx context.Context, marketplace string) ([]Client, error) {
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}

	dbCtx := db.WithContext(ctx).Where("status = ?", ClientStatusConnected)
	if marketplace != "" {
		dbCtx = dbCtx.Where("marketplace = ?", marketplace)
	}

	var clients []Client
	if err := dbCtx.Order("id").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func GetClientByClientId(ctx context.Context, clientId string) (*Client, error) {
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}

	var client Client
	err := db.WithContext(ctx).Where("client_id = ?", clientId).Take(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

type clientStatusCache struct {
	Status      string `json:"status"`
	Marketplace string `json:"marketplace"`
}

// ClientConnected answers the trigger-path connectivity check through a short
// redis cache. The credential itself is never cached; sync cycles always load
// the full row from the database.
func ClientConnected(ctx context.Context, clientId string) (bool, error) {
	var cached clientStatusCache
	if found, err := config.GetRedisObject("ClientStatus:"+clientId, &cached); err == nil && found {
		return cached.Status == ClientStatusConnected, nil
	}

	client, err := GetClientByClientId(ctx, clientId)
	if err != nil {
		return false, err
	}
	if client == nil {
		return false, nil
	}
	_ = config.SetRedisObject("ClientStatus:"+clientId,
		clientStatusCache{Status: client.Status, Marketplace: client.Marketplace}, 10*time.Minute)
	return client.Status == ClientStatusConnected, nil
}

// InvalidateClientCache drops the cached status after credential or status
// changes so the next check reads the database.
func InvalidateClientCache(clientId string) {
	_ = config.RemoveRedisKey("ClientStatus:" + clientId)
}

// ClientExists checks the reference row on the given handle so the check takes
// part in the caller's transaction.
func ClientExists(ctx context.Context, tx *gorm.DB, clientId string) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&Client{}).
		Where("client_id = ?", clientId).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
