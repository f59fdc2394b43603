package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIVersion is the path segment every resource is mounted under
const APIVersion = "v1"

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// Resource collects the routes of one REST resource under a common prefix
type Resource struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
}

// NewResource starts a resource at prefix; middleware runs before each of
// its routes only.
func NewResource(prefix string, middleware ...gin.HandlerFunc) *Resource {
	return &Resource{prefix: prefix, middleware: middleware}
}

// Handle adds a route relative to the resource prefix
func (r *Resource) Handle(method, path string, handlers ...gin.HandlerFunc) *Resource {
	r.routes = append(r.routes, route{method: method, path: path, handlers: handlers})
	return r
}

func (r *Resource) GET(path string, h ...gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodGet, path, h...)
}

func (r *Resource) POST(path string, h ...gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodPost, path, h...)
}

func (r *Resource) PUT(path string, h ...gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodPut, path, h...)
}

func (r *Resource) PATCH(path string, h ...gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodPatch, path, h...)
}

func (r *Resource) DELETE(path string, h ...gin.HandlerFunc) *Resource {
	return r.Handle(http.MethodDelete, path, h...)
}

func (r *Resource) mount(api *gin.RouterGroup) {
	group := api.Group(r.prefix, r.middleware...)
	for _, rt := range r.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
}

// Mount registers resources under /api/{version}. Nil resources are skipped
// so optional handlers can be left out.
func Mount(engine *gin.Engine, version string, resources ...*Resource) *gin.RouterGroup {
	api := engine.Group("/api/" + version)
	for _, res := range resources {
		if res != nil {
			res.mount(api)
		}
	}
	return api
}
