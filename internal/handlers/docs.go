package handlers

import (
	"encoding/json"
	"net/http"
)

type object = map[string]interface{}

func jsonBody(schema object) object {
	return object{"content": object{"application/json": object{"schema": schema}}}
}

func response(description string, schema object) object {
	r := jsonBody(schema)
	r["description"] = description
	return r
}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func arrayOf(items object) object {
	return object{"type": "array", "items": items}
}

func props(required []string, p object) object {
	s := object{"type": "object", "properties": p}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var (
	str     = object{"type": "string"}
	boolean = object{"type": "boolean"}
	integer = object{"type": "integer"}
	number  = object{"type": "number"}

	errorResponses = object{
		"422": response("Validation error", ref("ErrorResponse")),
		"500": response("Internal server error", ref("ErrorResponse")),
	}
)

func withErrors(ok object, extra object) object {
	out := object{"200": ok}
	for code, r := range errorResponses {
		out[code] = r
	}
	for code, r := range extra {
		out[code] = r
	}
	return out
}

func operation(tag, summary string, responses object) object {
	return object{"tags": []string{tag}, "summary": summary, "responses": responses}
}

func buildOpenAPISpec() object {
	nutrient := func(desc string) object {
		return object{"type": "number", "minimum": 0, "maximum": 100, "description": desc}
	}

	schemas := object{
		"ErrorResponse": props(nil, object{
			"success": boolean, "error": str, "message": str, "code": integer,
		}),
		"MessageResponse": props(nil, object{"success": boolean, "message": str}),
		"Pesticide": props(nil, object{
			"name": str, "dosage": str, "frequency": str, "safety": str,
			"type": object{"type": "string", "enum": []string{"chemical", "organic", "N/A"}},
		}),
		"LabelScore": props(nil, object{"class": str, "confidence": number}),
		"PredictionResult": props(nil, object{
			"class_name": str, "plant": str, "condition": str, "is_healthy": boolean,
			"confidence": number, "confidence_pct": str, "severity_risk": str,
			"description": str, "pesticides": arrayOf(ref("Pesticide")),
			"organic": arrayOf(str), "prevention": arrayOf(str), "etl": str,
			"fertilizer_note": str, "top5": arrayOf(ref("LabelScore")),
		}),
		"RecommendRequest": props([]string{"nitrogen", "phosphorus", "potassium", "crop"}, object{
			"nitrogen":    nutrient("Soil nitrogen (kg/ha scale)"),
			"phosphorus":  nutrient("Soil phosphorus (kg/ha scale)"),
			"potassium":   nutrient("Soil potassium (kg/ha scale)"),
			"crop":        object{"type": "string", "example": "Tomato"},
			"temperature": object{"type": "number", "description": "Air temperature in °C"},
			"humidity":    object{"type": "number", "minimum": 0, "maximum": 100},
			"rainfall":    object{"type": "number", "minimum": 0, "description": "Annual rainfall in mm"},
		}),
		"LineItem": props(nil, object{
			"fertilizer": str, "reason": str, "rate": str, "price_approx": str, "scheme": str,
		}),
		"Recommendation": props(nil, object{
			"crop":                    str,
			"deficiencies":            arrayOf(object{"type": "string", "enum": []string{"N", "P", "K"}}),
			"excesses":                arrayOf(object{"type": "string", "enum": []string{"N", "P", "K"}}),
			"recommended_fertilizers": arrayOf(ref("LineItem")),
			"application_schedule":    str,
			"notes":                   str,
		}),
		"CatalogueItem": props(nil, object{
			"name": str, "npk": str, "price_inr_per_mt": integer, "scheme": str, "best_for": str,
		}),
		"HistoryEntry": props(nil, object{
			"id": str, "timestamp": object{"type": "string", "format": "date-time"},
			"class_name": str, "plant": str, "condition": str, "is_healthy": boolean,
			"confidence": number, "severity_risk": str,
		}),
		"ChatRequest": props([]string{"message"}, object{
			"message": object{"type": "string", "minLength": 1, "maxLength": 2000},
			"model":   str,
		}),
		"ChatMessage": props(nil, object{
			"role":      object{"type": "string", "enum": []string{"user", "assistant"}},
			"content":   str,
			"timestamp": object{"type": "string", "format": "date-time"},
		}),
	}

	paths := object{
		"/health": object{"get": operation("System", "API health check", object{
			"200": response("Service status", props(nil, object{
				"status": str, "model_loaded": boolean, "model_path": str,
				"supported_classes": integer, "version": str,
			})),
		})},
		"/api/predict": object{"post": func() object {
			op := operation("Prediction", "Detect plant disease from a leaf image", withErrors(
				response("Disease identified", props(nil, object{
					"success": boolean, "message": str, "data": ref("PredictionResult"),
				})),
				object{
					"400": response("Empty upload", ref("ErrorResponse")),
					"413": response("Image larger than 16 MB", ref("ErrorResponse")),
					"415": response("Unsupported media type", ref("ErrorResponse")),
					"503": response("Model server unavailable", ref("ErrorResponse")),
				},
			))
			op["requestBody"] = object{
				"required": true,
				"content": object{"multipart/form-data": object{"schema": props([]string{"file"}, object{
					"file": object{"type": "string", "format": "binary", "description": "Leaf image (JPEG/PNG/WEBP/BMP, max 16 MB)"},
				})}},
			}
			return op
		}()},
		"/api/classes": object{"get": operation("Prediction", "List supported disease classes", object{
			"200": response("All class labels in training order", props(nil, object{
				"success": boolean, "count": integer, "classes": arrayOf(str),
			})),
		})},
		"/api/fertilizers": object{"get": operation("Fertilizer", "List the fertilizer catalogue", object{
			"200": response("Catalogue", props(nil, object{
				"success": boolean, "count": integer, "data": arrayOf(ref("CatalogueItem")),
			})),
		})},
		"/api/fertilizers/recommend": object{"post": func() object {
			op := operation("Fertilizer", "Recommend fertilizers from a soil NPK reading", withErrors(
				response("Recommendation", props(nil, object{
					"success": boolean, "data": ref("Recommendation"), "message": str,
				})), nil,
			))
			op["requestBody"] = object{"required": true, "content": jsonBody(ref("RecommendRequest"))["content"]}
			return op
		}()},
		"/api/history": object{
			"get": operation("History", "Recent scans, newest first", object{
				"200": response("Scan history", props(nil, object{
					"success": boolean, "count": integer, "data": arrayOf(ref("HistoryEntry")),
				})),
			}),
			"delete": operation("History", "Clear scan history", object{
				"200": response("Cleared", ref("MessageResponse")),
			}),
		},
		"/api/chat": object{"post": func() object {
			op := operation("Chat", "Ask the agricultural assistant", withErrors(
				response("Assistant reply", props(nil, object{
					"success": boolean, "message": str, "model": str,
					"tokens_used": object{"type": "integer", "nullable": true},
				})),
				object{
					"502": response("Chat model error", ref("ErrorResponse")),
					"503": response("Chat model not configured", ref("ErrorResponse")),
				},
			))
			op["requestBody"] = object{"required": true, "content": jsonBody(ref("ChatRequest"))["content"]}
			return op
		}()},
		"/api/chat/history": object{
			"get": operation("Chat", "Stored conversation", object{
				"200": response("Conversation", props(nil, object{
					"success": boolean, "count": integer, "history": arrayOf(ref("ChatMessage")),
				})),
			}),
			"delete": operation("Chat", "Clear the conversation", object{
				"200": response("Cleared", ref("MessageResponse")),
			}),
		},
	}

	return object{
		"openapi": "3.0.0",
		"info": object{
			"title": "PlantCare AI — Crop Disease Detection API",
			"description": "Leaf disease classification with treatment guidance, soil NPK fertilizer " +
				"recommendations, scan history and an agricultural chat assistant.",
			"version": APIVersion,
		},
		"servers": []object{
			{"url": "http://localhost:8000", "description": "Local development server"},
		},
		"paths":      paths,
		"components": object{"schemas": schemas},
	}
}

var openAPISpec = buildOpenAPISpec()

// OpenAPISpec serves the OpenAPI 3.0 document of the PlantCare API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPISpec)
}
