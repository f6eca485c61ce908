// Package docs holds the OpenAPI document served under /docs.
// Regenerate with `swag init -g cmd/server/main.go` after changing handler annotations.
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
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a new user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "input", "required": true, "schema": {"$ref": "#/definitions/httpserver.registerRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.TokenResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "input", "required": true, "schema": {"$ref": "#/definitions/httpserver.loginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.TokenResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["auth"],
                "summary": "Logout",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["auth"],
                "summary": "Get Current User",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.User"}}}
            }
        },
        "/users/{userID}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Get a user",
                "parameters": [{"type": "integer", "name": "userID", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.User"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/conversations": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["conversations"],
                "summary": "List conversations",
                "parameters": [{"type": "boolean", "name": "archived", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.ConversationSummary"}}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["conversations"],
                "summary": "Open a conversation",
                "parameters": [{"in": "body", "name": "input", "required": true, "schema": {"$ref": "#/definitions/httpserver.conversationCreateRequest"}}],
                "responses": {
                    "200": {"description": "existing conversation", "schema": {"$ref": "#/definitions/domain.Conversation"}},
                    "201": {"description": "created conversation", "schema": {"$ref": "#/definitions/domain.Conversation"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/conversations/{conversationID}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["conversations"],
                "summary": "Get a conversation",
                "parameters": [{"type": "integer", "name": "conversationID", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Conversation"}},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/conversations/{conversationID}/read": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["conversations"],
                "summary": "Mark a conversation read",
                "parameters": [
                    {"type": "integer", "name": "conversationID", "in": "path", "required": true},
                    {"in": "body", "name": "input", "schema": {"$ref": "#/definitions/httpserver.markReadRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/httpserver.markReadResponse"}}}
            }
        },
        "/conversations/{conversationID}/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["messages"],
                "summary": "List messages",
                "parameters": [
                    {"type": "integer", "name": "conversationID", "in": "path", "required": true},
                    {"type": "integer", "name": "since_id", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["messages"],
                "summary": "Send a message",
                "parameters": [
                    {"type": "integer", "name": "conversationID", "in": "path", "required": true},
                    {"in": "body", "name": "input", "required": true, "schema": {"$ref": "#/definitions/httpserver.messageCreateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Message"}},
                    "400": {"description": "Bad Request"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/conversations/{conversationID}/typing": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["presence"],
                "summary": "Signal typing",
                "parameters": [{"type": "integer", "name": "conversationID", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/conversations/{conversationID}/presence": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["presence"],
                "summary": "Conversation presence",
                "parameters": [{"type": "integer", "name": "conversationID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/httpserver.presenceResponse"}}}
            }
        }
    },
    "definitions": {
        "domain.User": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "username": {"type": "string"},
                "display_name": {"type": "string"},
                "is_active": {"type": "boolean"},
                "created_at": {"type": "string"}
            }
        },
        "domain.Conversation": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "creator_id": {"type": "integer"},
                "ad_id": {"type": "integer"},
                "last_message_at": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "domain.ConversationSummary": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "creator_id": {"type": "integer"},
                "ad_id": {"type": "integer"},
                "last_message_at": {"type": "string"},
                "created_at": {"type": "string"},
                "other_user_id": {"type": "integer"},
                "unread_count": {"type": "integer"},
                "last_read_at": {"type": "string"},
                "is_archived": {"type": "boolean"},
                "last_message": {"$ref": "#/definitions/domain.Message"}
            }
        },
        "domain.Message": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "conversation_id": {"type": "integer"},
                "sender_id": {"type": "integer"},
                "body": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "httpserver.registerRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "display_name": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "httpserver.loginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "httpserver.conversationCreateRequest": {
            "type": "object",
            "properties": {
                "other_user_id": {"type": "integer"},
                "ad_id": {"type": "integer"}
            }
        },
        "httpserver.markReadRequest": {
            "type": "object",
            "properties": {"upto": {"type": "string"}}
        },
        "httpserver.markReadResponse": {
            "type": "object",
            "properties": {
                "conversation_id": {"type": "integer"},
                "last_read_at": {"type": "string"}
            }
        },
        "httpserver.messageCreateRequest": {
            "type": "object",
            "properties": {"body": {"type": "string"}}
        },
        "httpserver.presenceResponse": {
            "type": "object",
            "properties": {
                "conversation_id": {"type": "integer"},
                "user_id": {"type": "integer"},
                "online": {"type": "boolean"},
                "typing": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "service.TokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "token_type": {"type": "string"},
                "user": {"$ref": "#/definitions/domain.User"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "tenismatch messaging API",
	Description:      "Conversations, messages, read markers and presence between players.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
