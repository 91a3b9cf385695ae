// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/pantry/internal/adapters/server/common"
	"github.com/hylla/pantry/internal/app"
	"github.com/hylla/pantry/internal/domain"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the picker tools.
func NewHandler(cfg Config, picker common.PickerService) (*Handler, error) {
	if picker == nil {
		return nil, fmt.Errorf("picker service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerCatalogTools(mcpSrv, picker)
	registerSelectionTools(mcpSrv, picker)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r.WithContext(app.WithActor(r.Context(), app.ActorMCP)))
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "pantry"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerCatalogTools registers the search and preset tools.
func registerCatalogTools(srv *mcpserver.MCPServer, picker common.PickerService) {
	srv.AddTool(
		mcp.NewTool(
			"pantry.search_ingredients",
			mcp.WithDescription("Search the ingredient catalog. Results are ranked best match first."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			query, err := req.RequireString("query")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			list, err := picker.SearchIngredients(ctx, common.SearchRequest{
				Query: query,
				Limit: req.GetInt("limit", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("search_ingredients", list)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pantry.list_presets",
			mcp.WithDescription("List the preset ingredients a fresh selection starts with."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			list, err := picker.Presets(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_presets", list)
		},
	)
}

// registerSelectionTools registers selection read and mutation tools.
func registerSelectionTools(srv *mcpserver.MCPServer, picker common.PickerService) {
	srv.AddTool(
		mcp.NewTool(
			"pantry.list_selection",
			mcp.WithDescription("Return the current ingredient selection with its counts."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			state, err := picker.Selection(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_selection", state)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pantry.add_ingredient",
			mcp.WithDescription("Add one ingredient to the selection. Without a name the id is resolved through the catalog."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Ingredient id")),
			mcp.WithString("name", mcp.Description("Display name for ingredients outside the catalog")),
			mcp.WithString("category", mcp.Description("Optional category")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			res, err := picker.AddIngredient(ctx, common.AddIngredientRequest{
				ID:       id,
				Name:     req.GetString("name", ""),
				Category: req.GetString("category", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_ingredient", res)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pantry.remove_ingredient",
			mcp.WithDescription("Remove one ingredient from the selection. Removing an absent id is not an error."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Ingredient id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			res, err := picker.RemoveIngredient(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("remove_ingredient", res)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pantry.clear_selection",
			mcp.WithDescription("Remove every ingredient from the selection."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			res, err := picker.ClearSelection(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("clear_selection", res)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pantry.save_selection",
			mcp.WithDescription("Replace the whole selection with the given ingredients."),
			mcp.WithArray("ingredients",
				mcp.Required(),
				mcp.Description("Ingredients in display order"),
				mcp.Items(map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":       map[string]any{"type": "string"},
						"name":     map[string]any{"type": "string"},
						"category": map[string]any{"type": "string"},
					},
					"required": []string{"id", "name"},
				}),
			),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			items, err := ingredientsArgument(req.GetArguments(), "ingredients")
			if err != nil {
				return toolResultFromError(err), nil
			}
			res, err := picker.SaveSelection(ctx, common.SaveSelectionRequest{Ingredients: items})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("save_selection", res)
		},
	)
}

// ingredientsArgument decodes one array-of-objects argument into ingredients.
func ingredientsArgument(args map[string]any, key string) ([]domain.Ingredient, error) {
	raw, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("required argument %q not found: %w", key, common.ErrInvalidRequest)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, errors.Join(common.ErrInvalidRequest, err))
	}
	var items []domain.Ingredient
	if err := json.Unmarshal(encoded, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, errors.Join(common.ErrInvalidRequest, err))
	}
	return items, nil
}

// jsonResult encodes one structured tool result.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrAlreadySelected):
		return mcp.NewToolResultError("already_selected: " + err.Error())
	case errors.Is(err, common.ErrSelectionFull):
		return mcp.NewToolResultError("selection_full: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
