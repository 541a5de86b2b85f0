package graph

import (
	"context"
	"encoding/json"
	"net/http"

	"collab-platform/internal/session"
	"collab-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
)

// Handler serves the schema over HTTP.
type Handler struct {
	schema graphql.Schema
}

func NewHandler(r *Resolver) (*Handler, error) {
	s, err := NewSchema(r)
	if err != nil {
		return nil, err
	}
	return &Handler{schema: s}, nil
}

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// Execute runs one operation. The principal must already be in ctx.
func (h *Handler) Execute(ctx context.Context, query, operation string, vars map[string]any) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  query,
		VariableValues: vars,
		OperationName:  operation,
		Context:        ctx,
	})
}

// Serve handles POST with a JSON body and GET with query parameters.
// Mutations are refused over GET.
func (h *Handler) Serve(c *gin.Context) {
	var req request
	switch c.Request.Method {
	case http.MethodGet:
		req.Query = c.Query("query")
		req.OperationName = c.Query("operationName")
		if raw := c.Query("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "variables must be a JSON object"})
				return
			}
		}
		if isMutation(req.Query, req.OperationName) {
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "mutations require POST"})
			return
		}
	default:
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	if req.Query == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "query required"})
		return
	}

	ctx := WithDevice(c.Request.Context(), session.Device{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()})
	res := h.Execute(ctx, req.Query, req.OperationName, req.Variables)
	if res.HasErrors() {
		logger.FromGin(c).Debug("graphql errors", "op", req.OperationName, "count", len(res.Errors))
	}
	c.JSON(http.StatusOK, res)
}

func isMutation(query, operation string) bool {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return false
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operation != "" && (op.Name == nil || op.Name.Value != operation) {
			continue
		}
		if op.Operation == ast.OperationTypeMutation {
			return true
		}
	}
	return false
}
