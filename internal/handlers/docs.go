package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func jsonResponse(description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": schema,
			},
		},
	}
}

var errorSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"error":   map[string]string{"type": "string"},
		"message": map[string]string{"type": "string"},
		"code":    map[string]string{"type": "integer"},
	},
}

func filterParams() []map[string]interface{} {
	list := map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}}
	return []map[string]interface{}{
		queryParam("start_date", "Inclusive first day (YYYY-MM-DD)", map[string]interface{}{"type": "string", "format": "date"}),
		queryParam("end_date", "Inclusive last day (YYYY-MM-DD)", map[string]interface{}{"type": "string", "format": "date"}),
		queryParam("company", "Company filter, repeated or comma-separated", list),
		queryParam("destination", "Destination filter, repeated or comma-separated", list),
		queryParam("material", "Material filter, repeated or comma-separated", list),
	}
}

func withParams(base []map[string]interface{}, extra ...map[string]interface{}) []map[string]interface{} {
	return append(base, extra...)
}

func viewResponses(ok map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"200": ok,
		"400": jsonResponse("Invalid query parameter", errorSchema),
		"409": jsonResponse("Superseded by a newer request from the same session", errorSchema),
		"503": jsonResponse("A data source could not be loaded", errorSchema),
	}
}

var matrixRowSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"kind":                  map[string]interface{}{"type": "string", "enum": []string{"detail", "day_total", "grand_total"}},
		"date":                  map[string]string{"type": "string"},
		"vehicle_tag":           map[string]string{"type": "string"},
		"volume_sum":            map[string]string{"type": "number"},
		"volume_min":            map[string]string{"type": "number"},
		"volume_mean":           map[string]string{"type": "number"},
		"volume_max":            map[string]string{"type": "number"},
		"trip_count":            map[string]string{"type": "integer"},
		"unique_plate_count":    map[string]string{"type": "integer"},
		"trips_shift1":          map[string]string{"type": "integer"},
		"trips_shift2":          map[string]string{"type": "integer"},
		"fleet_size":            map[string]interface{}{"type": "integer", "nullable": true},
		"avg_trips_per_vehicle": map[string]interface{}{"type": "number", "nullable": true},
	},
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Fleet Analytics API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Fleet Analytics API",
			"description": "Fleet operations analytics over trip, fleet and pricing feeds: daily matrix, KPIs, summaries and exports",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Fleet Analytics Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"components": map[string]interface{}{
			"parameters": map[string]interface{}{
				"SessionID": map[string]interface{}{
					"name":        SessionHeader,
					"in":          "header",
					"description": "Client session; a newer request supersedes older ones from the same session",
					"required":    false,
					"schema":      map[string]string{"type": "string"},
				},
			},
		},
		"paths": map[string]interface{}{
			"/api/records": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get filtered trip records",
					"description": "Retrieve enriched trip records for the current filter with pagination",
					"parameters": withParams(filterParams(),
						queryParam("page", "Page number (default: 1)", map[string]interface{}{"type": "integer", "default": 1}),
						queryParam("limit", "Records per page (default: 100, max: 1000)", map[string]interface{}{"type": "integer", "default": 100}),
					),
					"responses": viewResponses(jsonResponse("Successful response", map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"data":        map[string]interface{}{"type": "array", "items": map[string]string{"type": "object"}},
							"total":       map[string]string{"type": "integer"},
							"page":        map[string]string{"type": "integer"},
							"limit":       map[string]string{"type": "integer"},
							"total_pages": map[string]string{"type": "integer"},
						},
					})),
				},
			},
			"/api/matrix": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get the daily operations matrix",
					"description": "Per day and vehicle tag statistics with day subtotals and a grand total",
					"parameters": withParams(filterParams(),
						queryParam("view", "raw numbers or locale formatted strings", map[string]interface{}{"type": "string", "enum": []string{"formatted", "raw"}, "default": "formatted"}),
						queryParam("locale", "Number and date locale", map[string]interface{}{"type": "string", "enum": []string{"br", "us"}}),
					),
					"responses": viewResponses(jsonResponse("Successful response", map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"view":             map[string]string{"type": "string"},
							"locale":           map[string]string{"type": "string"},
							"rows":             map[string]interface{}{"type": "array", "items": matrixRowSchema},
							"kpis":             map[string]string{"type": "object"},
							"warning":          map[string]string{"type": "string"},
							"snapshot_version": map[string]string{"type": "integer"},
						},
					})),
				},
			},
			"/api/matrix/export": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Export the daily operations matrix",
					"description": "Download the matrix and KPIs as CSV, XLSX, PDF or SQLite",
					"parameters": withParams(filterParams(),
						queryParam("format", "Export format", map[string]interface{}{"type": "string", "enum": []string{"csv", "xlsx", "pdf", "sqlite"}}),
						queryParam("locale", "Number and date locale", map[string]interface{}{"type": "string", "enum": []string{"br", "us"}}),
					),
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "File attachment"},
						"400": jsonResponse("Unknown format", errorSchema),
						"422": jsonResponse("Matrix input columns missing", errorSchema),
						"503": jsonResponse("A data source could not be loaded", errorSchema),
					},
				},
			},
			"/api/kpis": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Get headline KPIs",
					"parameters": filterParams(),
					"responses":  viewResponses(jsonResponse("Successful response", map[string]interface{}{"type": "object"})),
				},
			},
			"/api/summaries/{name}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get a named chart summary",
					"description": "Grouped totals such as daily, destinations, company-revenue, materials, shifts or trip-gaps",
					"parameters": withParams(filterParams(),
						map[string]interface{}{"name": "name", "in": "path", "required": true, "schema": map[string]string{"type": "string"}},
						queryParam("n", "Bound for ranked summaries", map[string]interface{}{"type": "integer"}),
					),
					"responses": map[string]interface{}{
						"200": jsonResponse("Successful response", map[string]interface{}{"type": "object"}),
						"404": jsonResponse("Unknown summary", errorSchema),
					},
				},
			},
			"/api/filters": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "Get selectable filter values",
					"responses": map[string]interface{}{"200": jsonResponse("Distinct companies, destinations, materials and the date span", map[string]interface{}{"type": "object"})},
				},
			},
			"/api/dataset": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "Describe the published dataset snapshot",
					"responses": map[string]interface{}{"200": jsonResponse("Snapshot version and load report", map[string]interface{}{"type": "object"})},
				},
			},
			"/api/reload": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Reload all sources and publish a new snapshot",
					"responses": map[string]interface{}{
						"200": jsonResponse("New snapshot", map[string]interface{}{"type": "object"}),
						"503": jsonResponse("A data source could not be loaded", errorSchema),
					},
				},
			},
			"/api/pricing": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "List pricing entries",
					"responses": map[string]interface{}{"200": jsonResponse("Pricing entries", map[string]interface{}{"type": "object"}), "404": jsonResponse("Pricing store not configured", errorSchema)},
				},
				"post": map[string]interface{}{
					"summary": "Create a pricing entry",
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": map[string]interface{}{
									"type":     "object",
									"required": []string{"destination", "price_per_unit"},
									"properties": map[string]interface{}{
										"destination":    map[string]string{"type": "string"},
										"price_per_unit": map[string]string{"type": "number"},
										"valid_from":     map[string]string{"type": "string", "format": "date"},
										"valid_to":       map[string]string{"type": "string", "format": "date"},
									},
								},
							},
						},
					},
					"responses": map[string]interface{}{
						"201": jsonResponse("Created", map[string]interface{}{"type": "object"}),
						"400": jsonResponse("Invalid entry", errorSchema),
						"409": jsonResponse("Window overlaps an existing entry", errorSchema),
					},
				},
			},
			"/api/pricing/{id}": map[string]interface{}{
				"delete": map[string]interface{}{
					"summary": "Delete a pricing entry",
					"parameters": []map[string]interface{}{
						{"name": "id", "in": "path", "required": true, "schema": map[string]string{"type": "integer"}},
					},
					"responses": map[string]interface{}{
						"204": map[string]interface{}{"description": "Deleted"},
						"404": jsonResponse("No such entry", errorSchema),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API is running and the pricing store is reachable",
					"responses": map[string]interface{}{
						"200": jsonResponse("API is healthy", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"status":           map[string]string{"type": "string"},
								"snapshot_version": map[string]interface{}{"type": "integer", "nullable": true},
							},
						}),
						"503": jsonResponse("Pricing store unreachable", map[string]interface{}{"type": "object"}),
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
