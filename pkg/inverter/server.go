package inverter

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"growattgateway/pkg/apis"
	"growattgateway/pkg/apis/response"
	"growattgateway/pkg/protocol/growatt"
	"growattgateway/pkg/runtime"
	"k8s.io/klog/v2"
)

func InstallHandler(group *gin.RouterGroup, mgr *Manager) {
	group.GET("/inverters", listInverters(mgr))
	group.GET("/inverters/:id", getInverterById(mgr))
	group.GET("/inverters/:id/entities", listEntities(mgr))
	group.GET("/inverters/:id/entities/:entityId", getEntityById(mgr))
	group.POST("/inverters/:id/refresh", refreshInverterById(mgr))
}

func parseFilter(c *gin.Context) (*runtime.ObjectFilter, bool) {
	filter := runtime.ObjectFilter{}
	if v := c.Query(apis.Filter); len(v) > 0 {
		if err := json.Unmarshal([]byte(v), &filter); err != nil {
			klog.V(3).InfoS("Failed to parse filter", "filter", v, "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return nil, false
		}
	}
	return &filter, true
}

func listInverters(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		filter, ok := parseFilter(c)
		if !ok {
			return
		}
		exploded, _ := strconv.ParseBool(c.Query(apis.Exploded))
		c.JSON(http.StatusOK, &runtime.ResponseModel{Inverters: mgr.ListInverters(filter, exploded)})
	}
}

func getInverterById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		id := c.Param("id")
		exploded, _ := strconv.ParseBool(c.Query(apis.Exploded))
		inv, err := mgr.GetInverterById(id, exploded)
		if err != nil {
			notFound(c, err, response.ErrInverterNotFound(id))
			return
		}
		c.JSON(http.StatusOK, inv)
	}
}

func listEntities(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		filter, ok := parseFilter(c)
		if !ok {
			return
		}
		id := c.Param("id")
		states, err := mgr.ListEntities(id, filter)
		if err != nil {
			notFound(c, err, response.ErrInverterNotFound(id))
			return
		}
		c.JSON(http.StatusOK, &runtime.ResponseModel{Entities: states})
	}
}

func getEntityById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		id := c.Param("id")
		if _, err := mgr.GetInverter(id); err != nil {
			notFound(c, err, response.ErrInverterNotFound(id))
			return
		}
		entityID := c.Param("entityId")
		state, err := mgr.GetEntity(id, entityID)
		if err != nil {
			notFound(c, err, response.ErrEntityNotFound(entityID))
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// refreshInverterById polls the inverter now. It answers 503 when not a
// single entity could be read.
func refreshInverterById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		id := c.Param("id")
		ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
		defer cancel()
		pvr, err := mgr.Refresh(ctx, id)
		if errors.Is(err, ErrInverterStopped) {
			c.JSON(http.StatusServiceUnavailable, response.NewMultiError(response.ErrNoData(id)))
			return
		}
		if err != nil {
			notFound(c, err, response.ErrInverterNotFound(id))
			return
		}
		inv, _ := mgr.GetInverter(id)
		if len(pvr.Err) > 0 && len(pvr.Err) == len(inv.Entities()) {
			c.JSON(http.StatusServiceUnavailable, response.NewMultiError(response.ErrNoData(id)))
			return
		}
		states := make([]*growatt.EntityState, 0, len(pvr.VariableSlice))
		for _, v := range pvr.VariableSlice {
			states = append(states, v.(*growatt.EntityState))
		}
		c.JSON(http.StatusOK, &runtime.ResponseModel{Entities: states})
	}
}

func notFound(c *gin.Context, err error, re error) {
	if os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, response.NewMultiError(re))
		return
	}
	c.Status(http.StatusInternalServerError)
}
