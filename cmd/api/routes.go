package main

import (
	"collab-platform/internal/graph"
	"collab-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d *deps) error {
	httpapi.Register(r, httpapi.Handlers{
		Users:         d.users,
		Admins:        d.admins,
		Accounts:      d.accounts,
		Collab:        d.collab,
		Engine:        d.engine,
		Ping:          d.store.Ping,
		SecureCookies: d.cfg.IsProduction(),
	})

	gql, err := graph.NewHandler(&graph.Resolver{Accounts: d.accounts, Collab: d.collab})
	if err != nil {
		return err
	}
	r.POST("/graphql", gql.Serve)
	r.GET("/graphql", gql.Serve)
	return nil
}
