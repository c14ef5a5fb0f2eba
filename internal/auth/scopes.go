package auth

// Known OAuth scopes used by the WalkWins backend.
const (
	ScopeStepsRead  = "steps:read"
	ScopeStepsWrite = "steps:write"
)
