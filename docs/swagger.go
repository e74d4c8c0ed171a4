// Package docs registers the feedbrief API description with swag.
//
//	Schemes: http, https
//	Host: localhost:8080
//	BasePath: /
//	Version: 1.0.0
//
//	Produces:
//	- application/json
package docs

import "github.com/swaggo/swag"

// @title feedbrief API
// @version 1.0
// @description Ingests technology news feeds, summarizes new articles and serves the enriched list.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey cron_secret
// @in header
// @name Authorization
// @description "Bearer <CRON_SECRET>"

func init() {
	swag.Register(swag.Name, &swag.Spec{
		InfoInstanceName: "swagger",
		SwaggerTemplate:  docTemplate,
	})
}

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "feedbrief API",
        "description": "Ingests technology news feeds, summarizes new articles and serves the enriched list.",
        "version": "1.0.0",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        }
    },
    "host": "localhost:8080",
    "basePath": "/",
    "schemes": ["http", "https"],
    "produces": ["application/json"],
    "securityDefinitions": {
        "cron_secret": {
            "type": "apiKey",
            "in": "header",
            "name": "Authorization",
            "description": "Bearer <CRON_SECRET>"
        }
    },
    "paths": {
        "/health": {
            "get": {
                "description": "Reports store reachability and poller state",
                "summary": "Health Check",
                "operationId": "healthCheck",
                "tags": ["Health"],
                "responses": {
                    "200": {
                        "description": "Service is healthy",
                        "schema": {"$ref": "#/definitions/Health"}
                    },
                    "503": {
                        "description": "Store unreachable",
                        "schema": {"$ref": "#/definitions/Health"}
                    }
                }
            }
        },
        "/api/cron": {
            "get": {
                "description": "Runs one ingestion pass: fetch, dedupe, summarize, store and trim",
                "summary": "Run Ingestion",
                "operationId": "runIngestion",
                "tags": ["Ingestion"],
                "security": [{"cron_secret": []}],
                "responses": {
                    "200": {
                        "description": "Run completed",
                        "schema": {"$ref": "#/definitions/RunResponse"}
                    },
                    "401": {
                        "description": "Missing or wrong bearer secret",
                        "schema": {"$ref": "#/definitions/ErrorResponse"}
                    },
                    "500": {
                        "description": "Run failed while reading or writing the store",
                        "schema": {"$ref": "#/definitions/ErrorResponse"}
                    }
                }
            },
            "post": {
                "description": "Same as GET, for schedulers that only POST",
                "summary": "Run Ingestion",
                "operationId": "runIngestionPost",
                "tags": ["Ingestion"],
                "security": [{"cron_secret": []}],
                "responses": {
                    "200": {
                        "description": "Run completed",
                        "schema": {"$ref": "#/definitions/RunResponse"}
                    },
                    "401": {
                        "description": "Missing or wrong bearer secret",
                        "schema": {"$ref": "#/definitions/ErrorResponse"}
                    },
                    "500": {
                        "description": "Run failed while reading or writing the store",
                        "schema": {"$ref": "#/definitions/ErrorResponse"}
                    }
                }
            }
        },
        "/api/feeds": {
            "get": {
                "description": "Returns stored articles, newest first",
                "summary": "List Articles",
                "operationId": "listArticles",
                "tags": ["Articles"],
                "parameters": [
                    {
                        "name": "limit",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "minimum": 1,
                        "description": "Maximum number of articles, capped at the retention limit"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Stored articles",
                        "schema": {"$ref": "#/definitions/FeedsResponse"}
                    },
                    "400": {
                        "description": "Invalid query parameters"
                    },
                    "500": {
                        "description": "Store read failed",
                        "schema": {"$ref": "#/definitions/ErrorResponse"}
                    }
                }
            }
        },
        "/api/sources": {
            "get": {
                "description": "Lists the upstream feeds and their categories",
                "summary": "List Sources",
                "operationId": "listSources",
                "tags": ["Articles"],
                "responses": {
                    "200": {
                        "description": "Configured sources",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "sources": {
                                    "type": "array",
                                    "items": {"$ref": "#/definitions/FeedSource"}
                                }
                            }
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "Health": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "healthy"},
                "service": {"type": "string", "example": "feedbrief"},
                "store": {"type": "string", "example": "ok"},
                "articles": {"type": "integer"},
                "ai_configured": {"type": "boolean"},
                "poller_active": {"type": "boolean"},
                "last_run": {
                    "type": "object",
                    "properties": {
                        "started_at": {"type": "string", "format": "date-time"},
                        "processed": {"type": "integer"},
                        "total": {"type": "integer"},
                        "error": {"type": "string"}
                    }
                }
            }
        },
        "RunResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Cron completed"},
                "processed": {"type": "integer", "description": "Articles summarized in this run"},
                "total": {"type": "integer", "description": "Stored articles after retention"}
            }
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "FeedsResponse": {
            "type": "object",
            "properties": {
                "articles": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/Article"}
                },
                "meta": {
                    "type": "object",
                    "properties": {
                        "total": {"type": "integer"},
                        "processed": {"type": "integer"},
                        "timestamp": {"type": "string", "format": "date-time"}
                    }
                }
            }
        },
        "Article": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "description": "URL-safe base64 of the link"},
                "originalTitle": {"type": "string"},
                "titleKo": {"type": "string", "description": "Translated title"},
                "link": {"type": "string"},
                "pubDate": {"type": "string", "format": "date-time"},
                "source": {"type": "string"},
                "summary": {
                    "type": "array",
                    "items": {"type": "string"}
                },
                "imageUrl": {"type": "string"},
                "createdAt": {"type": "string", "format": "date-time"},
                "error": {"type": "string", "description": "Set when summarization failed"}
            }
        },
        "FeedSource": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "url": {"type": "string"},
                "category": {"type": "string"}
            }
        }
    },
    "tags": [
        {
            "name": "Health",
            "description": "Health check endpoints"
        },
        {
            "name": "Ingestion",
            "description": "Scheduled ingestion trigger"
        },
        {
            "name": "Articles",
            "description": "Read endpoints"
        }
    ]
}`
