package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Trámites Gateway API",
        "description": "Workflow gateway between the trámites dashboard and the authoritative backend.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Tramites",
            "description": "Worklist search and generic transitions"
        },
        {
            "name": "Workflow",
            "description": "Assignment and finalization"
        },
        {
            "name": "Evidence",
            "description": "Transient evidence viewing"
        },
        {
            "name": "Catalogs",
            "description": "Types and analysts"
        },
        {
            "name": "Session",
            "description": "Per-session gateway state"
        }
    ],
    "paths": {
        "/tramites": {
            "get": {
                "tags": [
                    "Tramites"
                ],
                "summary": "Search the worklist",
                "parameters": [
                    {
                        "name": "subUnitId",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "statusId",
                        "in": "query",
                        "type": "integer",
                        "minimum": 1,
                        "maximum": 5
                    },
                    {
                        "name": "assignedTo",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "assigned",
                        "in": "query",
                        "type": "boolean"
                    },
                    {
                        "name": "q",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "size",
                        "in": "query",
                        "type": "integer",
                        "maximum": 200
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/tramites/export": {
            "get": {
                "tags": [
                    "Tramites"
                ],
                "summary": "Export the worklist",
                "produces": [
                    "text/csv",
                    "application/pdf",
                    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
                ],
                "parameters": [
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "enum": [
                            "csv",
                            "pdf",
                            "xlsx"
                        ]
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "400": {
                        "description": "Unsupported format",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/tramites/{folio}": {
            "get": {
                "tags": [
                    "Tramites"
                ],
                "summary": "Get detail, history and documents",
                "parameters": [
                    {
                        "name": "folio",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/tramites/{folio}/type": {
            "patch": {
                "tags": [
                    "Tramites"
                ],
                "summary": "Reclassify a trámite",
                "parameters": [
                    {
                        "name": "folio",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ChangeTypeRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/tramites/{folio}/status": {
            "patch": {
                "tags": [
                    "Tramites"
                ],
                "summary": "Move a trámite to another status",
                "parameters": [
                    {
                        "name": "folio",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ChangeStatusRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Role may not perform the transition",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Transition not allowed from current status",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/tramites/{folio}/debt": {
            "patch": {
                "tags": [
                    "Tramites"
                ],
                "summary": "Edit the local debt fields",
                "parameters": [
                    {
                        "name": "folio",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/EditDebtRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/tramites/{folio}/assign": {
            "post": {
                "tags": [
                    "Workflow"
                ],
                "summary": "Assign a trámite to an analyst",
                "parameters": [
                    {
                        "name": "folio",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AssignRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/tramites/{folio}/assignment": {
            "get": {
                "tags": [
                    "Workflow"
                ],
                "summary": "Latest assignment operation",
                "parameters": [
                    {
                        "name": "folio",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "No assignment recorded",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/tramites/{folio}/assignment/revert": {
            "post": {
                "tags": [
                    "Workflow"
                ],
                "summary": "Revert a failed assignment",
                "parameters": [
                    {
                        "name": "folio",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Latest assignment is not failed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/tramites/{folio}/finalize": {
            "post": {
                "tags": [
                    "Workflow"
                ],
                "summary": "Finalize with evidence",
                "consumes": [
                    "multipart/form-data"
                ],
                "parameters": [
                    {
                        "name": "folio",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "officeMemoNumber",
                        "in": "formData",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "inDebt",
                        "in": "formData",
                        "type": "boolean"
                    },
                    {
                        "name": "debtAmount",
                        "in": "formData",
                        "type": "string"
                    },
                    {
                        "name": "comment",
                        "in": "formData",
                        "type": "string"
                    },
                    {
                        "name": "evidencia",
                        "in": "formData",
                        "required": true,
                        "type": "file"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "Missing evidence or office memo",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/tramites/{folio}/evidence": {
            "post": {
                "tags": [
                    "Evidence"
                ],
                "summary": "Open a transient evidence handle",
                "parameters": [
                    {
                        "name": "folio",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "schema": {
                            "$ref": "#/definitions/OpenEvidenceRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/evidence/{token}": {
            "get": {
                "tags": [
                    "Evidence"
                ],
                "summary": "Redeem an evidence handle",
                "parameters": [
                    {
                        "name": "token",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "404": {
                        "description": "Unknown, expired or used handle",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/catalogs/types": {
            "get": {
                "tags": [
                    "Catalogs"
                ],
                "summary": "List trámite types",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/catalogs/analysts": {
            "get": {
                "tags": [
                    "Catalogs"
                ],
                "summary": "List analysts of a sub-unit",
                "parameters": [
                    {
                        "name": "subUnitId",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/catalogs/refresh": {
            "post": {
                "tags": [
                    "Catalogs"
                ],
                "summary": "Drop cached catalogs",
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/session": {
            "delete": {
                "tags": [
                    "Session"
                ],
                "summary": "End the caller's gateway session",
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "ChangeTypeRequest": {
            "type": "object",
            "required": [
                "newTypeId"
            ],
            "properties": {
                "newTypeId": {
                    "type": "integer"
                },
                "comment": {
                    "type": "string"
                }
            }
        },
        "ChangeStatusRequest": {
            "type": "object",
            "required": [
                "toStatusId"
            ],
            "properties": {
                "toStatusId": {
                    "type": "integer",
                    "minimum": 1,
                    "maximum": 5
                },
                "comment": {
                    "type": "string"
                }
            }
        },
        "EditDebtRequest": {
            "type": "object",
            "properties": {
                "inDebt": {
                    "type": "boolean"
                },
                "debtAmount": {
                    "type": "string"
                }
            }
        },
        "AssignRequest": {
            "type": "object",
            "required": [
                "assigneeUserId"
            ],
            "properties": {
                "assigneeUserId": {
                    "type": "string"
                },
                "comment": {
                    "type": "string"
                }
            }
        },
        "OpenEvidenceRequest": {
            "type": "object",
            "properties": {
                "inline": {
                    "type": "boolean"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
