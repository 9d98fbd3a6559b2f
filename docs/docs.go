package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "On-call Dispatch API",
    "description": "Resolves a ticket location and date to the on-call market and technician",
    "version": "1.0"
  },
  "basePath": "/",
  "paths": {
    "/healthz": {
      "get": {"tags": ["health"], "summary": "Health", "produces": ["application/json"],
        "responses": {"200": {"description": "OK"}, "503": {"description": "Database unavailable"}}}
    },
    "/metrics": {
      "get": {"tags": ["health"], "summary": "Prometheus metrics", "produces": ["text/plain"],
        "responses": {"200": {"description": "OK"}}}
    },
    "/api/lookup": {
      "post": {"tags": ["lookup"], "summary": "Look up the on-call technician",
        "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/LookupRequest"}}],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Validation failed"}, "404": {"description": "Unknown location or no candidates"},
          "409": {"description": "Boundary date, AM/PM required"}, "412": {"description": "Table not loaded"}, "422": {"description": "Date outside the rotation"}}}
    },
    "/api/lookup/choose": {
      "post": {"tags": ["lookup"], "summary": "Pick one of the top two markets",
        "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/ChooseRequest"}}],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Validation failed"}}}
    },
    "/api/oncall/rotation": {
      "post": {"tags": ["oncall"], "summary": "Load rotation workbook", "consumes": ["multipart/form-data"],
        "parameters": [{"in": "formData", "name": "file", "type": "file", "required": true}],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Bad upload"}, "422": {"description": "Sheet structure not recognised"}}}
    },
    "/api/oncall/rotation/cleaned": {
      "get": {"tags": ["oncall"], "summary": "Download cleaned rotation",
        "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
        "responses": {"200": {"description": "OK"}, "304": {"description": "Not modified"}, "412": {"description": "Rotation not loaded"}}}
    },
    "/api/oncall/techdb": {
      "post": {"tags": ["oncall"], "summary": "Load technician workbook", "consumes": ["multipart/form-data"],
        "parameters": [{"in": "formData", "name": "file", "type": "file", "required": true}],
        "responses": {"200": {"description": "OK"}, "422": {"description": "No technicians found"}}}
    },
    "/api/oncall/refdata/reload": {
      "post": {"tags": ["oncall"], "summary": "Reload reference tables",
        "responses": {"200": {"description": "OK"}, "502": {"description": "Every provider failed"}}}
    },
    "/api/oncall/weeks": {
      "get": {"tags": ["oncall"], "summary": "Week intervals", "responses": {"200": {"description": "OK"}}}
    },
    "/api/oncall/boundary": {
      "get": {"tags": ["oncall"], "summary": "Boundary check",
        "parameters": [{"in": "query", "name": "date", "type": "string", "required": true}],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid date"}}}
    },
    "/api/oncall/nonavailability": {
      "get": {"tags": ["oncall"], "summary": "Non-available technicians",
        "parameters": [{"in": "query", "name": "date", "type": "string", "required": true}, {"in": "query", "name": "state", "type": "string"}],
        "responses": {"200": {"description": "OK"}}}
    }
  },
  "definitions": {
    "LookupRequest": {
      "type": "object",
      "required": ["state", "date"],
      "properties": {
        "zip": {"type": "string"},
        "city": {"type": "string"},
        "state": {"type": "string", "minLength": 2, "maxLength": 2},
        "date": {"type": "string"},
        "ampm": {"type": "string", "enum": ["AM", "PM"]}
      }
    },
    "ChooseRequest": {
      "type": "object",
      "required": ["state", "date", "choice"],
      "properties": {
        "zip": {"type": "string"},
        "city": {"type": "string"},
        "state": {"type": "string"},
        "date": {"type": "string"},
        "ampm": {"type": "string"},
        "choice": {"type": "integer", "minimum": 0, "maximum": 1}
      }
    }
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
