package outbox

// SchemaCatalogEntry maps an event type to its JSON schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	"steps.synced":        {Schema: stepsSyncedSchema},
	"steps.day_finalized": {Schema: stepsSyncedSchema},
	"steps.boost_folded":  {Schema: boostFoldedSchema},
}

const stepsSyncedSchema = `{
  "type": "object",
  "title": "StepsSynced",
  "properties": {
    "user_id": {"type": "string"},
    "date": {"type": "string"},
    "steps": {"type": "integer"},
    "increment": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "date", "steps", "increment", "occurred_at"],
  "additionalProperties": false
}`

const boostFoldedSchema = `{
  "type": "object",
  "title": "BoostFolded",
  "properties": {
    "user_id": {"type": "string"},
    "date": {"type": "string"},
    "boost_steps": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "date", "boost_steps", "occurred_at"],
  "additionalProperties": false
}`
