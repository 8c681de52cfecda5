// Package docs registers the audiobridge OpenAPI document with swag.
//
// Regenerate with: swag init -g internal/transport/http/http.go -o internal/docs --outputTypes go
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
        "/publish/{topic}": {
            "post": {
                "description": "Queues a message for the dispatcher as if it had arrived on the given topic.\nPlayback happens asynchronously; the response only confirms the message was queued.",
                "consumes": [
                    "text/plain",
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "publish"
                ],
                "summary": "Publish a message",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Full topic, e.g. audio/play/70",
                        "name": "topic",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Message payload",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Message queued",
                        "schema": {
                            "$ref": "#/definitions/http.PublishResponse"
                        }
                    },
                    "400": {
                        "description": "Unreadable body",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "503": {
                        "description": "Queue full",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "http.PublishResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "topic": {
                    "type": "string"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "audiobridge API",
	Description:      "Publish audio commands to audiobridge over HTTP.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
