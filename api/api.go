package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	studycafe "github.com/rpatechnologies/study-cafe-api"
	"github.com/rpatechnologies/study-cafe-api/api/middleware"
	"github.com/rpatechnologies/study-cafe-api/config"
)

type Api struct {
	service *studycafe.StudyCafe
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/orders/create", a.CreateOrder)
	router.POST("/orders/verify", a.VerifyOrder)
	router.GET("/orders", a.GetAllOrders)
	router.GET("/orders/:order_id/invoice", a.GetInvoice)
	return a.router
}

func NewAPI(s *studycafe.StudyCafe) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{service: s, router: r}
}
