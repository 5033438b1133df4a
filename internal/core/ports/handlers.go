package ports

import (
	"github.com/gin-gonic/gin"
)

type AdminHandler interface {
	GetSession(c *gin.Context)
	GetSettings(c *gin.Context)
	UpdateSettings(c *gin.Context)
	RotatePIN(c *gin.Context)
	KickPeer(c *gin.Context)
	Healthz(c *gin.Context)
}
