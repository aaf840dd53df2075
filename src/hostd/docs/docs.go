// Package docs registers the OpenAPI spec for hostd's HTTP facade with
// swaggo/gin-swagger. The spec below is hand-maintained rather than
// regenerated by `swag init` from handler annotations (this repo is built
// without invoking the swag CLI); it documents the routes in routes.go and
// should be kept in sync with them.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "summary": "Liveness probe",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/v1/version": {
            "get": {
                "summary": "Build and release version",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/v1/workspaces/{workspaceID}/panels": {
            "get": {
                "summary": "List root panels for a workspace",
                "responses": {"200": {"description": "ok"}}
            },
            "post": {
                "summary": "Create a panel",
                "responses": {"201": {"description": "created"}}
            }
        },
        "/v1/workspaces/{workspaceID}/build/panel": {
            "post": {
                "summary": "Build a panel source at a version, streaming progress as newline-delimited JSON",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/v1/workspaces/{workspaceID}/typedefs": {
            "post": {
                "summary": "Resolve type-definition files for a batch of package names",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/v1/ns/parse": {
            "post": {
                "summary": "Parse an ns:// panel address",
                "responses": {"200": {"description": "ok"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger metadata for hostd's spec.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "hostd API",
	Description:      "Workspace-scoped panel runtime: tree store, build pipeline, type-definition service, and ns:// codec.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
