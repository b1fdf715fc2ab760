package ozonsync

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/marketsync_backend/config"
	"bitbucket.org/mmdatafocus/marketsync_backend/models"
	"bitbucket.org/mmdatafocus/marketsync_backend/utils"
	"github.com/gin-gonic/gin"
)

type RegisterClientRequest struct {
	ClientId    string `json:"clientId" validate:"required"`
	NameCompany string `json:"nameCompany"`
	Marketplace string `json:"marketplace" validate:"required,oneof=Ozon Wildberries YandexMarket"`
	ApiKey      string `json:"apiKey" validate:"required"`
}

// RegisterClientHandler connects a new cabinet, or refreshes the credentials
// of an existing one and marks it connected again.
func RegisterClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterClientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		db := config.GetDB().WithContext(ctx)

		existing, err := models.GetClientByClientId(ctx, strings.TrimSpace(req.ClientId))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if existing == nil {
			client := models.Client{
				ClientId:    strings.TrimSpace(req.ClientId),
				NameCompany: strings.TrimSpace(req.NameCompany),
				Marketplace: req.Marketplace,
				ApiKey:      req.ApiKey,
				Status:      models.ClientStatusConnected,
			}
			if err := db.Create(&client).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			models.InvalidateClientCache(client.ClientId)
			c.JSON(http.StatusOK, client)
			return
		}

		updates := map[string]interface{}{
			"marketplace": req.Marketplace,
			"api_key":     req.ApiKey,
			"status":      models.ClientStatusConnected,
		}
		if strings.TrimSpace(req.NameCompany) != "" {
			updates["name_company"] = strings.TrimSpace(req.NameCompany)
		}
		if err := db.Model(existing).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		models.InvalidateClientCache(existing.ClientId)
		c.JSON(http.StatusOK, existing)
	}
}

// DisconnectClientHandler drops a cabinet from the sync rotation and clears
// its credential.
func DisconnectClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientId := strings.TrimSpace(c.Param("clientId"))
		if clientId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "client id is required"})
			return
		}

		ctx := c.Request.Context()
		db := config.GetDB().WithContext(ctx)

		client, err := models.GetClientByClientId(ctx, clientId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if client == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		if err := db.Model(client).Updates(map[string]interface{}{
			"status":  models.ClientStatusDisconnected,
			"api_key": "",
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		models.InvalidateClientCache(clientId)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
