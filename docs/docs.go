// Package docs holds the swagger description served at /swagger. Regenerate
// it with `swag init -g cmd/server/main.go` after changing handler annotations.
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
        "/accounts": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["Accounts"], "summary": "List accounts", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["Accounts"], "summary": "Open account", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}
        },
        "/accounts/{id}/transactions": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["Transactions"], "summary": "Account history", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["Transactions"], "summary": "Post entry", "responses": {"201": {"description": "Created"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/transactions/{id}/reverse": {
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["Transactions"], "summary": "Reverse transaction", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/transfers": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["Transfers"], "summary": "List transfers", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["Transfers"], "summary": "Execute transfer", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/transfers/{id}/cancel": {
            "post": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["Transfers"], "summary": "Cancel transfer", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/transfers/{id}/pacs008": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/xml"], "tags": ["ISO20022"], "summary": "pacs.008 message", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/qr/generate": {
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["QR"], "summary": "Generate QR Code", "responses": {"201": {"description": "Created"}}}
        },
        "/qr/process": {
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["QR"], "summary": "Process QR Code", "responses": {"201": {"description": "Created"}, "404": {"description": "Not Found"}}}
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
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Bank Portal Ledger API",
	Description:      "Accounts, ledger entries and transfers with fees, reversals and ISO 20022 settlement.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
