// Package docs holds the OpenAPI description served at /swagger.
// Regenerate with `swag init -g cmd/api/main.go`.
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
        "/submissions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["submissions"],
                "summary": "List submissions",
                "parameters": [
                    {"type": "string", "description": "pending, approved or rejected", "name": "status", "in": "query"},
                    {"type": "string", "description": "Club name", "name": "club", "in": "query"},
                    {"type": "integer", "description": "Max results (default 50)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.ListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Multipart form; file parts become attachments, text parts become fields.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["submissions"],
                "summary": "Submit the intake form",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/response.CreatedResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/submissions/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["submissions"],
                "summary": "Submission counts per status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessResponse"}}
                }
            }
        },
        "/submissions/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["submissions"],
                "summary": "Get a submission",
                "parameters": [{"type": "string", "description": "Submission ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["submissions"],
                "summary": "Review a submission",
                "parameters": [
                    {"type": "string", "description": "Submission ID", "name": "id", "in": "path", "required": true},
                    {"description": "New status and optional note", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/submission.UpdateStatusDTO"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.MessageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["submissions"],
                "summary": "Delete a submission and its files",
                "parameters": [{"type": "string", "description": "Submission ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.MessageResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/submissions/{id}/files/{filename}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/octet-stream"],
                "tags": ["submissions"],
                "summary": "Download one attachment",
                "parameters": [
                    {"type": "string", "description": "Submission ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Stored name or field name", "name": "filename", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/submissions/{id}/download-all": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/zip"],
                "tags": ["submissions"],
                "summary": "Download every attachment as a zip",
                "parameters": [{"type": "string", "description": "Submission ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/submissions/{id}/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "List the messages of a submission",
                "parameters": [{"type": "string", "description": "Submission ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.ListResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "Post a message on a submission",
                "parameters": [
                    {"type": "string", "description": "Submission ID", "name": "id", "in": "path", "required": true},
                    {"description": "Message", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/submission.CreateMessageDTO"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/response.SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/templates": {
            "get": {
                "produces": ["application/json"],
                "tags": ["templates"],
                "summary": "List downloadable form templates",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.TemplateListResponse"}}
                }
            }
        },
        "/templates/download/{id}": {
            "get": {
                "description": "Google-native documents are exported to docx, xlsx or pptx.",
                "produces": ["application/octet-stream"],
                "tags": ["templates"],
                "summary": "Download a template",
                "parameters": [{"type": "string", "description": "Template ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/templates/refresh": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["templates"],
                "summary": "Drop the cached template listing and reload it",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.TemplateListResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current identity",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.UserResponse"}}
                }
            }
        },
        "/audit/logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "Query review audit logs",
                "parameters": [
                    {"type": "string", "name": "actor", "in": "query"},
                    {"type": "string", "name": "resource_id", "in": "query"},
                    {"type": "string", "name": "action", "in": "query"},
                    {"type": "string", "name": "start_time", "in": "query"},
                    {"type": "string", "name": "end_time", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.ListResponse"}}
                }
            }
        }
    },
    "definitions": {
        "response.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "message": {"type": "string"}}
        },
        "response.MessageResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "message": {"type": "string"}}
        },
        "response.SuccessResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "message": {"type": "string"}, "data": {}}
        },
        "response.ListResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "count": {"type": "integer"}, "data": {}}
        },
        "response.CreatedResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "submissionId": {"type": "string"}, "data": {}}
        },
        "response.TemplateListResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "templates": {}, "count": {"type": "integer"}}
        },
        "response.UserResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "user": {}}
        },
        "submission.UpdateStatusDTO": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "example": "approved"},
                "reviewNote": {"type": "string", "example": "ok"}
            }
        },
        "submission.CreateMessageDTO": {
            "type": "object",
            "properties": {"content": {"type": "string", "example": "請補上保險證明"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Club Intake API",
	Description:      "Club activity submission intake and review service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
