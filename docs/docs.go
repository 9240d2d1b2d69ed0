// Package docs holds the OpenAPI description served at /api/swagger.
// Regenerate with: swag init -g internal/server/server.go -o docs
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
        "/auth/signup": {"post": {"tags": ["auth"], "summary": "User signup", "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Session"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "User login", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Session"}}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}},
        "/auth/logout": {"post": {"tags": ["auth"], "security": [{"BearerAuth": []}], "summary": "Revoke the current token", "responses": {"204": {"description": "No Content"}}}},
        "/auth/session": {"get": {"tags": ["auth"], "summary": "Current session", "responses": {"200": {"description": "OK"}}}},
        "/auth/admin-setup": {"post": {"tags": ["auth"], "summary": "First admin account", "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Session"}}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}},
        "/posts": {"get": {"tags": ["posts"], "summary": "Public feed", "parameters": [{"type": "string", "name": "cursor", "in": "query"}, {"type": "integer", "name": "page", "in": "query"}, {"type": "integer", "name": "limit", "in": "query"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.PostPage"}}}}},
        "/posts/liked": {"post": {"tags": ["posts"], "security": [{"BearerAuth": []}], "summary": "Which of the given posts the caller has liked", "responses": {"200": {"description": "OK"}}}},
        "/posts/{id}": {"get": {"tags": ["posts"], "summary": "One published post", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Post"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}},
        "/posts/{id}/comments": {
            "get": {"tags": ["posts"], "summary": "Comments on a post, oldest first", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Comment"}}}}},
            "post": {"tags": ["posts"], "security": [{"BearerAuth": []}], "summary": "Comment on a post", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Comment"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}
        },
        "/posts/{id}/like": {"post": {"tags": ["posts"], "security": [{"BearerAuth": []}], "summary": "Like or unlike a post", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.LikeResult"}}}}},
        "/posts/{id}/share": {"post": {"tags": ["posts"], "summary": "Record a share", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/admin/posts": {
            "get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "All posts including drafts", "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Post"}}}}},
            "post": {"tags": ["admin"], "security": [{"BearerAuth": []}], "consumes": ["multipart/form-data"], "summary": "Create a post", "parameters": [{"type": "string", "name": "title", "in": "formData", "required": true}, {"type": "string", "name": "content", "in": "formData", "required": true}, {"type": "string", "name": "caption", "in": "formData"}, {"type": "string", "name": "status", "in": "formData"}, {"type": "file", "name": "media", "in": "formData"}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Post"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}, "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}
        },
        "/admin/posts/{id}": {"delete": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Delete a post with its likes and comments", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}, "500": {"description": "PERSISTENCE_ERROR, including a post that does not exist", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}},
        "/admin/posts/{id}/status": {"patch": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Publish or unpublish a post", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Post"}}}}},
        "/admin/stats": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Dashboard totals", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.DashboardStats"}}}}}
    },
    "definitions": {
        "models.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "string"}, "details": {"type": "string"}}},
        "models.User": {"type": "object", "properties": {"id": {"type": "integer"}, "email": {"type": "string"}, "full_name": {"type": "string"}, "role": {"type": "string"}, "created_at": {"type": "string"}, "updated_at": {"type": "string"}}},
        "models.Session": {"type": "object", "properties": {"token": {"type": "string"}, "user": {"$ref": "#/definitions/models.User"}, "expires_at": {"type": "string"}}},
        "models.Post": {"type": "object", "properties": {"id": {"type": "integer"}, "title": {"type": "string"}, "content": {"type": "string"}, "caption": {"type": "string"}, "image_urls": {"type": "array", "items": {"type": "string"}}, "status": {"type": "string"}, "author_id": {"type": "integer"}, "likes_count": {"type": "integer"}, "comments_count": {"type": "integer"}, "shares_count": {"type": "integer"}, "liked": {"type": "boolean"}, "created_at": {"type": "string"}, "updated_at": {"type": "string"}}},
        "models.PostPage": {"type": "object", "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/models.Post"}}, "has_more": {"type": "boolean"}, "next_cursor": {"type": "string"}}},
        "models.Comment": {"type": "object", "properties": {"id": {"type": "integer"}, "post_id": {"type": "integer"}, "user_id": {"type": "integer"}, "user_name": {"type": "string"}, "content": {"type": "string"}, "created_at": {"type": "string"}, "comments_count": {"type": "integer"}}},
        "models.LikeResult": {"type": "object", "properties": {"post_id": {"type": "integer"}, "liked": {"type": "boolean"}, "likes_count": {"type": "integer"}}},
        "models.DashboardStats": {"type": "object", "properties": {"total_users": {"type": "integer"}, "total_posts": {"type": "integer"}, "total_likes": {"type": "integer"}, "total_comments": {"type": "integer"}}}
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
	Title:            "Charity Feed API",
	Description:      "Posts, likes, comments and shares for the foundation gallery.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
