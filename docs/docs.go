// Package docs holds the OpenAPI document for the tracker API, in the layout
// swag init writes. Regenerate with: swag init -g cmd/tracker/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/logs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sync"],
                "summary": "Sync log tail",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "lines to return (default 100, max 1000)",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/handler.apiResponse"},
                                {"type": "object", "properties": {"data": {"type": "array", "items": {"type": "string"}}}}
                            ]
                        }
                    }
                }
            }
        },
        "/api/stocks": {
            "get": {
                "description": "Every merged record ordered by id. Unreadable entries are skipped and counted in meta.skipped.",
                "produces": ["application/json"],
                "tags": ["stocks"],
                "summary": "List merged stocks",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/handler.apiResponse"},
                                {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/models.StockRecord"}}}}
                            ]
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {"$ref": "#/definitions/handler.apiResponse"}
                    }
                }
            }
        },
        "/api/stocks/stream": {
            "get": {
                "description": "Server-sent \"stocks\" events, one on connect and then one per stream interval.",
                "produces": ["text/event-stream"],
                "tags": ["stocks"],
                "summary": "Stream merged stocks",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/handler.stocksFrame"}
                    }
                }
            }
        },
        "/api/stocks/ws": {
            "get": {
                "description": "Pushes the same frames as the event stream. Client messages are ignored.",
                "tags": ["stocks"],
                "summary": "Merged stocks over websocket",
                "responses": {
                    "101": {
                        "description": "Switching Protocols",
                        "schema": {"$ref": "#/definitions/handler.stocksFrame"}
                    }
                }
            }
        },
        "/api/stocks/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["stocks"],
                "summary": "Get one merged stock",
                "parameters": [
                    {
                        "type": "string",
                        "description": "stock id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/handler.apiResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/models.StockRecord"}}}
                            ]
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {"$ref": "#/definitions/handler.apiResponse"}
                    }
                }
            }
        },
        "/api/sync": {
            "get": {
                "description": "Latest marker per stage, whether the market window is open now, and the scheduler state.",
                "produces": ["application/json"],
                "tags": ["sync"],
                "summary": "Sync status",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/handler.apiResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.syncStatus"}}}
                            ]
                        }
                    }
                }
            }
        },
        "/api/sync/run": {
            "post": {
                "description": "Scrapes fundamentals then merges. Returns 409 when a merge is already running.",
                "produces": ["application/json"],
                "tags": ["sync"],
                "summary": "Run one sync pass",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/handler.apiResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/scheduler.PassResult"}}}
                            ]
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {"$ref": "#/definitions/handler.apiResponse"}
                    }
                }
            }
        },
        "/healthz": {
            "get": {
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Pings the cache store.",
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        }
    },
    "definitions": {
        "handler.apiResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"},
                "meta": {"type": "object", "additionalProperties": true}
            }
        },
        "handler.stocksFrame": {
            "type": "object",
            "properties": {
                "at": {"type": "string"},
                "expired": {"type": "integer"},
                "skipped": {"type": "integer"},
                "stocks": {"type": "array", "items": {"$ref": "#/definitions/models.StockRecord"}}
            }
        },
        "handler.syncStatus": {
            "type": "object",
            "properties": {
                "market_open": {"type": "boolean"},
                "markers": {"type": "object", "additionalProperties": {"$ref": "#/definitions/models.SyncMarker"}},
                "scheduler": {"$ref": "#/definitions/scheduler.State"}
            }
        },
        "models.NumericField": {
            "type": "object",
            "properties": {
                "numeric": {"type": "number"},
                "raw": {"type": "string"}
            }
        },
        "models.StockRecord": {
            "type": "object",
            "properties": {
                "currency": {"type": "string"},
                "displayName": {"type": "string"},
                "earningsPerShare": {"$ref": "#/definitions/models.NumericField"},
                "exchange": {"type": "string"},
                "expTime": {"type": "string"},
                "gainLoss": {"type": "string", "example": "0"},
                "google_symbol": {"type": "string"},
                "id": {"type": "string"},
                "investment": {"type": "string", "example": "0"},
                "mergedAt": {"type": "string"},
                "name": {"type": "string"},
                "peRatio": {"$ref": "#/definitions/models.NumericField"},
                "portfolioPercentage": {"type": "string", "example": "0"},
                "presentValue": {"type": "string", "example": "0"},
                "price": {"type": "number"},
                "purchasePrice": {"type": "string", "example": "0"},
                "quantity": {"type": "integer"},
                "sector": {"type": "string"},
                "shortName": {"type": "string"},
                "yahoo_symbol": {"type": "string"}
            }
        },
        "models.SyncMarker": {
            "type": "object",
            "properties": {
                "at": {"type": "string"},
                "count": {"type": "integer"},
                "error": {"type": "string"},
                "fallback": {"type": "boolean"},
                "misses": {"type": "integer"},
                "ok": {"type": "boolean"},
                "source": {"type": "string"}
            }
        },
        "scheduler.PassResult": {
            "type": "object",
            "properties": {
                "finished_at": {"type": "string"},
                "fundamentals_error": {"type": "string"},
                "merge_busy": {"type": "boolean"},
                "merge_error": {"type": "string"},
                "records": {"type": "integer"},
                "run_id": {"type": "string"},
                "started_at": {"type": "string"}
            }
        },
        "scheduler.State": {
            "type": "object",
            "properties": {
                "activated_at": {"type": "string"},
                "active": {"type": "boolean"},
                "fundamentals_job": {"type": "integer"},
                "fundamentals_period": {"type": "string"},
                "last_pass_at": {"type": "string"},
                "last_pass_error": {"type": "string"},
                "last_tick_at": {"type": "string"},
                "market_open": {"type": "boolean"},
                "merge_job": {"type": "integer"},
                "merge_period": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Portfolio Tracker API",
	Description:      "Merged portfolio quotes and fundamentals, sync status and operator controls.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
