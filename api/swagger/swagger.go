package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Final Exams API",
        "description": "Search and filter the final exam schedule",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Exams", "description": "Final exam schedule search"},
        {"name": "Filters", "description": "Values for the date and building filter tabs"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/HealthStatus"}}
                }
            }
        },
        "/exams": {
            "get": {
                "tags": ["Exams"],
                "summary": "Search exams",
                "parameters": [
                    {"name": "q", "in": "query", "type": "string", "maxLength": 100, "description": "Matches course number, course name or CRN"},
                    {"name": "date", "in": "query", "type": "string", "format": "date"},
                    {"name": "location", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer", "minimum": 1, "default": 1},
                    {"name": "limit", "in": "query", "type": "integer", "minimum": 1, "maximum": 100, "default": 20}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ExamsResponse"}},
                    "400": {"description": "Invalid parameters", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/filters/dates": {
            "get": {
                "tags": ["Filters"],
                "summary": "Distinct exam dates",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DatesResponse"}}
                }
            }
        },
        "/filters/locations": {
            "get": {
                "tags": ["Filters"],
                "summary": "Exam rooms grouped by building",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LocationsResponse"}}
                }
            }
        }
    },
    "definitions": {
        "Exam": {
            "type": "object",
            "properties": {
                "subject": {"type": "string"},
                "course_number": {"type": "string"},
                "section": {"type": "string"},
                "crn": {"type": "string"},
                "course_name": {"type": "string"},
                "start_time": {"type": "string", "example": "2025-12-08T08:00:00"},
                "end_time": {"type": "string", "example": "2025-12-08T11:00:00"},
                "location": {"type": "string"},
                "term_code": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "hasMore": {"type": "boolean"}
            }
        },
        "ExamsResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/Exam"}},
                "pagination": {"$ref": "#/definitions/Pagination"}
            }
        },
        "DatesResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"type": "string", "format": "date"}}
            }
        },
        "BuildingLocation": {
            "type": "object",
            "properties": {
                "building": {"type": "string"},
                "rooms": {"type": "array", "items": {"type": "string"}}
            }
        },
        "LocationsResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/BuildingLocation"}}
            }
        },
        "HealthStatus": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "healthy"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ErrorEnvelope": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/APIError"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
