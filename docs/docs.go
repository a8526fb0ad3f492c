// Package docs registers the OpenAPI document served under /swagger.
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
        "/auth/signup": {
            "post": {
                "description": "Creates the identity, then the profile row, and publishes user.created",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [
                    {
                        "description": "Signup request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.SignupRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/api.SignupResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/apperr.Body"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/apperr.Body"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/apperr.Body"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "description": "Verifies credentials, reconciles the profile and returns a bearer token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in",
                "parameters": [
                    {
                        "description": "Login request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.LoginResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/apperr.Body"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/apperr.Body"}}
                }
            }
        },
        "/users/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the reconciled profile; cached per principal",
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Get the caller's profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.ProfileResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/apperr.Body"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/apperr.Body"}}
                }
            }
        },
        "/users/sync": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Creates the profile row if it is missing and drops cached reads",
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Sync the caller's profile from the identity provider",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.ProfileResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/apperr.Body"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/apperr.Body"}}
                }
            }
        }
    },
    "definitions": {
        "api.LoginResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 200},
                "message": {"type": "string"},
                "status": {"type": "string", "example": "success"},
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/reconcile.View"}
            }
        },
        "api.ProfileResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 200},
                "message": {"type": "string"},
                "status": {"type": "string", "example": "success"},
                "user": {"$ref": "#/definitions/reconcile.View"}
            }
        },
        "api.SignupResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 201},
                "message": {"type": "string"},
                "profile_id": {"type": "string"},
                "profile_saved": {"type": "boolean"},
                "status": {"type": "string", "example": "success"},
                "user_id": {"type": "string"},
                "warning": {"type": "string"}
            }
        },
        "apperr.Body": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "details": {"type": "object", "additionalProperties": true},
                "message": {"type": "string"},
                "reason": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "models.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "example": "jane@campus.edu"},
                "password": {"type": "string", "example": "Password123"},
                "provider": {"type": "string", "example": "password"}
            }
        },
        "models.SignupRequest": {
            "type": "object",
            "required": ["email", "name", "password", "surname"],
            "properties": {
                "department_id": {"type": "integer", "example": 3},
                "email": {"type": "string", "example": "jane@campus.edu"},
                "name": {"type": "string", "example": "Jane"},
                "password": {"type": "string", "example": "Password123"},
                "phone_number": {"type": "string", "example": "+905551112233"},
                "role": {"type": "string", "enum": ["admin", "staff", "user"], "example": "user"},
                "surname": {"type": "string", "example": "Doe"}
            }
        },
        "reconcile.View": {
            "type": "object",
            "properties": {
                "department_id": {"type": "integer"},
                "email": {"type": "string"},
                "id": {"type": "string"},
                "is_active": {"type": "boolean"},
                "name": {"type": "string"},
                "phone_number": {"type": "string"},
                "postgres_available": {"type": "boolean"},
                "role": {"type": "string"},
                "surname": {"type": "string"},
                "warning": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "User Service API",
	Description:      "Signup, login and profile reads over an identity provider and a profile store, with user events published to RabbitMQ.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
