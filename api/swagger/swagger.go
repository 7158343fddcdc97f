package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Benglish Academic Core API",
        "description": "Session scheduling, reservations, academic history and progress",
        "version": "1.0.0"
    },
    "basePath": "/",
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
            "name": "Agenda"
        },
        {
            "name": "Sessions"
        },
        {
            "name": "Enrollments"
        },
        {
            "name": "Progress"
        },
        {
            "name": "History"
        },
        {
            "name": "Plans"
        },
        {
            "name": "Catalog"
        },
        {
            "name": "Placement"
        },
        {
            "name": "Maintenance"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "Database unavailable"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": [
                    "text/plain"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/agenda": {
            "get": {
                "tags": [
                    "Agenda"
                ],
                "summary": "Upcoming sessions visible to a student",
                "parameters": [
                    {
                        "name": "window",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "from",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "studentId",
                        "in": "query",
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
                }
            }
        },
        "/api/v1/agenda/{sessionId}/viewed": {
            "post": {
                "tags": [
                    "Agenda"
                ],
                "summary": "Mark a session notification as viewed",
                "parameters": [
                    {
                        "name": "sessionId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                }
            }
        },
        "/api/v1/sessions": {
            "post": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Create an academic session",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateSessionRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/sessions/{id}": {
            "get": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Session detail with seats",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/sessions/{id}/publish": {
            "post": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Publish a session",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/sessions/{id}/unpublish": {
            "post": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Withdraw a session from the agenda",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/sessions/{id}/start": {
            "post": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Start a session",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/sessions/{id}/cancel": {
            "post": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Cancel a session",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/sessions/{id}/resolution": {
            "get": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Concrete subject a session stands for a student",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "studentId",
                        "in": "query",
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
                }
            }
        },
        "/api/v1/sessions/{id}/reservations": {
            "post": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Reserve a seat",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "schema": {
                            "$ref": "#/definitions/ReservationRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Release a reserved seat",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "schema": {
                            "$ref": "#/definitions/ReservationRequest"
                        }
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                }
            }
        },
        "/api/v1/sessions/{id}/attendance": {
            "post": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Mark attendance on a started session",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/MarkAttendanceRequest"
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
                }
            }
        },
        "/api/v1/sessions/{id}/finish": {
            "post": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Close a started session",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/session/{id}/novelty": {
            "post": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Record why a session closes without attendance",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RecordNoveltyRequest"
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
                }
            }
        },
        "/api/v1/session/{id}/novelty/attachments": {
            "post": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Attach a file to a session novelty",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "file",
                        "in": "formData",
                        "type": "file",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "consumes": [
                    "multipart/form-data"
                ]
            }
        },
        "/api/v1/session-enrollments/{id}/grade": {
            "put": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Set or clear the grade of a seat",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SetGradeRequest"
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
                }
            }
        },
        "/api/v1/enrollments": {
            "post": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Enroll a student in a plan",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateEnrollmentRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/enrollments/{id}": {
            "get": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Enrollment detail with per-subject progress",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/enrollments/{id}/transition": {
            "post": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Change enrollment state",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TransitionEnrollmentRequest"
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
                }
            }
        },
        "/api/v1/students/{id}/enrollments": {
            "get": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "List a student's enrollments",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/students/{id}/progress": {
            "get": {
                "tags": [
                    "Progress"
                ],
                "summary": "Student progress derived from the history ledger",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/students/{id}/progress/recompute": {
            "post": {
                "tags": [
                    "Progress"
                ],
                "summary": "Recompute and store student progress",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/students/{id}/history": {
            "get": {
                "tags": [
                    "History"
                ],
                "summary": "Academic history of a student",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "from",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "to",
                        "in": "query",
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
                }
            }
        },
        "/api/v1/students/{id}/history/retroactive": {
            "post": {
                "tags": [
                    "History"
                ],
                "summary": "Generate history for units a student already covered",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RetroactiveHistoryRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/students/{id}/history/export": {
            "post": {
                "tags": [
                    "History"
                ],
                "summary": "Render a student's history and return a signed download URL",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "enum": [
                            "xlsx",
                            "csv",
                            "pdf"
                        ]
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/history/{id}": {
            "patch": {
                "tags": [
                    "History"
                ],
                "summary": "Update grade, notes or novedad of a history row",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateHistoryRequest"
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
                }
            }
        },
        "/api/v1/history/import": {
            "post": {
                "tags": [
                    "History"
                ],
                "summary": "Import a history workbook or CSV",
                "parameters": [
                    {
                        "name": "file",
                        "in": "formData",
                        "type": "file",
                        "required": true
                    },
                    {
                        "name": "format",
                        "in": "query",
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
                "consumes": [
                    "multipart/form-data"
                ]
            }
        },
        "/api/v1/exports/{token}": {
            "get": {
                "tags": [
                    "History"
                ],
                "summary": "Download an export via signed token",
                "parameters": [
                    {
                        "name": "token",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "file"
                        }
                    }
                },
                "produces": [
                    "application/octet-stream"
                ]
            }
        },
        "/api/v1/plans": {
            "post": {
                "tags": [
                    "Plans"
                ],
                "summary": "Create a plan",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SavePlanRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/plans/{id}": {
            "get": {
                "tags": [
                    "Plans"
                ],
                "summary": "Plan with its phases, levels and subjects",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "put": {
                "tags": [
                    "Plans"
                ],
                "summary": "Update a plan and recompute its subjects",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SavePlanRequest"
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
                }
            }
        },
        "/api/v1/plans/{id}/reconcile": {
            "post": {
                "tags": [
                    "Plans"
                ],
                "summary": "Re-derive plan subjects and align enrollment progress",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/subjects/{id}": {
            "get": {
                "tags": [
                    "Catalog"
                ],
                "summary": "Subject detail",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "put": {
                "tags": [
                    "Catalog"
                ],
                "summary": "Create or update a subject",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/Subject"
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
                }
            }
        },
        "/api/v1/elective-pools/{id}": {
            "get": {
                "tags": [
                    "Catalog"
                ],
                "summary": "Elective pool with its subjects",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/catalog/check": {
            "get": {
                "tags": [
                    "Catalog"
                ],
                "summary": "Catalog consistency report",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/placement-tests": {
            "post": {
                "tags": [
                    "Placement"
                ],
                "summary": "Open a placement test",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreatePlacementRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/placement-tests/{id}": {
            "get": {
                "tags": [
                    "Placement"
                ],
                "summary": "Placement test detail",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/placement-tests/{id}/consolidate": {
            "post": {
                "tags": [
                    "Placement"
                ],
                "summary": "Consolidate a placement test awaiting decision",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/placement/lms_result": {
            "post": {
                "tags": [
                    "Placement"
                ],
                "summary": "LMS placement result webhook (always 200)",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/LMSResultPayload"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/LMSResultResponse"
                        }
                    }
                }
            }
        },
        "/api/v1/admin/maintenance": {
            "get": {
                "tags": [
                    "Maintenance"
                ],
                "summary": "List maintenance tasks",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/admin/maintenance/{task}": {
            "post": {
                "tags": [
                    "Maintenance"
                ],
                "summary": "Queue a maintenance task",
                "parameters": [
                    {
                        "name": "task",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "revert",
                        "in": "query",
                        "type": "boolean"
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "CreateSessionRequest": {
            "type": "object",
            "properties": {
                "program_id": {
                    "type": "string"
                },
                "subject_id": {
                    "type": "string"
                },
                "elective_pool_id": {
                    "type": "string"
                },
                "teacher_id": {
                    "type": "string"
                },
                "datetime_start": {
                    "type": "string",
                    "format": "date-time"
                },
                "datetime_end": {
                    "type": "string",
                    "format": "date-time"
                },
                "is_virtual": {
                    "type": "boolean"
                },
                "meeting_url": {
                    "type": "string"
                },
                "audience_unit_from": {
                    "type": "integer"
                },
                "audience_unit_to": {
                    "type": "integer"
                },
                "max_capacity": {
                    "type": "integer"
                },
                "publish": {
                    "type": "boolean"
                }
            },
            "required": [
                "program_id",
                "teacher_id",
                "datetime_start",
                "datetime_end",
                "audience_unit_from",
                "audience_unit_to"
            ]
        },
        "ReservationRequest": {
            "type": "object",
            "properties": {
                "student_id": {
                    "type": "string"
                }
            }
        },
        "AttendanceEntry": {
            "type": "object",
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "state": {
                    "type": "string",
                    "enum": [
                        "attended",
                        "absent"
                    ]
                },
                "grade": {
                    "type": "string",
                    "description": "decimal"
                }
            },
            "required": [
                "student_id",
                "state"
            ]
        },
        "MarkAttendanceRequest": {
            "type": "object",
            "properties": {
                "entries": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/AttendanceEntry"
                    }
                }
            },
            "required": [
                "entries"
            ]
        },
        "SetGradeRequest": {
            "type": "object",
            "properties": {
                "grade": {
                    "type": "string",
                    "description": "decimal"
                }
            }
        },
        "RecordNoveltyRequest": {
            "type": "object",
            "properties": {
                "novelty_type": {
                    "type": "string",
                    "enum": [
                        "postponed",
                        "material"
                    ]
                },
                "observation": {
                    "type": "string"
                }
            },
            "required": [
                "novelty_type"
            ]
        },
        "CreateEnrollmentRequest": {
            "type": "object",
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "plan_id": {
                    "type": "string"
                },
                "start_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "activate": {
                    "type": "boolean"
                }
            },
            "required": [
                "student_id",
                "plan_id"
            ]
        },
        "TransitionEnrollmentRequest": {
            "type": "object",
            "properties": {
                "state": {
                    "type": "string",
                    "enum": [
                        "enrolled",
                        "in_progress",
                        "suspended",
                        "cancelled"
                    ]
                }
            },
            "required": [
                "state"
            ]
        },
        "RetroactiveHistoryRequest": {
            "type": "object",
            "properties": {
                "target_unit": {
                    "type": "integer"
                },
                "session_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "teacher_id": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                }
            },
            "required": [
                "target_unit"
            ]
        },
        "UpdateHistoryRequest": {
            "type": "object",
            "properties": {
                "grade": {
                    "type": "string",
                    "description": "decimal"
                },
                "clear_grade": {
                    "type": "boolean"
                },
                "notes": {
                    "type": "string"
                },
                "novedad": {
                    "type": "string"
                }
            }
        },
        "SavePlanRequest": {
            "type": "object",
            "properties": {
                "program_id": {
                    "type": "string"
                },
                "code": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "active": {
                    "type": "boolean"
                },
                "phase_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "level_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            },
            "required": [
                "program_id",
                "code",
                "name"
            ]
        },
        "Subject": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "level_id": {
                    "type": "string"
                },
                "subject_type_id": {
                    "type": "string"
                },
                "category": {
                    "type": "string",
                    "enum": [
                        "bcheck",
                        "bskills",
                        "oral_test",
                        "elective",
                        "placement_test",
                        "master_class",
                        "conversation_club"
                    ]
                },
                "sequence": {
                    "type": "integer"
                },
                "unit_number": {
                    "type": "integer"
                },
                "unit_block_start": {
                    "type": "integer"
                },
                "unit_block_end": {
                    "type": "integer"
                },
                "bskill_number": {
                    "type": "integer"
                },
                "hours": {
                    "type": "string",
                    "description": "decimal"
                },
                "is_prerequisite": {
                    "type": "boolean"
                },
                "active": {
                    "type": "boolean"
                },
                "is_configured_for_curriculum": {
                    "type": "boolean"
                },
                "is_elective_pool": {
                    "type": "boolean"
                },
                "prerequisite_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            },
            "required": [
                "code",
                "level_id",
                "category"
            ]
        },
        "CreatePlacementRequest": {
            "type": "object",
            "properties": {
                "student_code": {
                    "type": "string"
                },
                "oral_score": {
                    "type": "string",
                    "description": "decimal"
                }
            },
            "required": [
                "student_code"
            ]
        },
        "LMSResultPayload": {
            "type": "object",
            "properties": {
                "student_code": {
                    "type": "string"
                },
                "lms_score": {
                    "type": "string",
                    "description": "decimal"
                },
                "grammar_score": {
                    "type": "string",
                    "description": "decimal"
                },
                "listening_score": {
                    "type": "string",
                    "description": "decimal"
                },
                "reading_score": {
                    "type": "string",
                    "description": "decimal"
                },
                "token": {
                    "type": "string"
                }
            },
            "required": [
                "student_code",
                "token"
            ]
        },
        "LMSResultResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "enum": [
                        "success",
                        "error"
                    ]
                },
                "message": {
                    "type": "string"
                },
                "placement_id": {
                    "type": "string"
                },
                "state": {
                    "type": "string"
                },
                "recommended_unit": {
                    "type": "integer"
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
