package threshold

const schemaURL = "https://aegis.local/schemas/threshold-catalog/v1.json"

// catalogSchema describes the on-disk catalog document
const catalogSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["apiVersion", "kind", "thresholds"],
  "additionalProperties": false,
  "properties": {
    "apiVersion": {"const": "aegis/v1"},
    "kind": {"const": "ThresholdCatalog"},
    "thresholds": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["domain", "metric", "target", "warning", "critical", "direction"],
        "additionalProperties": false,
        "properties": {
          "domain": {"type": "string", "minLength": 1},
          "metric": {"type": "string", "minLength": 1},
          "target": {"type": "number"},
          "warning": {"type": "number"},
          "critical": {"type": "number"},
          "unit": {"type": "string"},
          "direction": {"enum": ["higher_is_better", "lower_is_better"]},
          "query": {"type": "string"}
        }
      }
    }
  }
}`
