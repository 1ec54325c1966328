package indexer

import (
	"net/http"
	"strconv"

	"dadchain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const defaultLimit = 20

type Env struct {
	Store    *Store
	MaxLimit int
}

// SetupRoutes mounts the read endpoints of the index.
func SetupRoutes(router *gin.Engine, env *Env) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/events", env.GetEvents)
	router.GET("/accounts/:address/events", env.GetAccountEvents)
}

func (e *Env) GetEvents(c *gin.Context) {
	limit, ok := e.limit(c)
	if !ok {
		return
	}

	events, err := e.Store.Recent(limit, c.Query("name"))
	if err != nil {
		logger.Error("Failed to list events", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (e *Env) GetAccountEvents(c *gin.Context) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}
	limit, ok := e.limit(c)
	if !ok {
		return
	}

	events, err := e.Store.ByAccount(common.HexToAddress(raw).Hex(), limit)
	if err != nil {
		logger.Error("Failed to list account events", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (e *Env) limit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return min(defaultLimit, e.maxLimit()), true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return 0, false
	}
	return min(limit, e.maxLimit()), true
}

func (e *Env) maxLimit() int {
	if e.MaxLimit <= 0 {
		return 100
	}
	return e.MaxLimit
}
