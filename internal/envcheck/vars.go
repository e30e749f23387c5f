package envcheck

// Requirement classifies how the application depends on a variable.
type Requirement string

const (
	Required Requirement = "required"
	Optional Requirement = "optional"
)

// Var declares one environment variable the application reads.
type Var struct {
	Name        string
	Requirement Requirement
	Purpose     string
}

// Required variables. Without these the application cannot serve its
// primary function.
var (
	DatabaseURL        = Var{Name: "DATABASE_URL", Requirement: Required, Purpose: "primary database connection string"}
	BlobReadWriteToken = Var{Name: "BLOB_READ_WRITE_TOKEN", Requirement: Required, Purpose: "blob storage uploads"}
	OpenAIAPIKey       = Var{Name: "OPENAI_API_KEY", Requirement: Required, Purpose: "image analysis"}
)

// Optional variables gate enhancements and integrations.
var (
	AuthSecret           = Var{Name: "AUTH_SECRET", Requirement: Optional, Purpose: "session and admin token signing"}
	AnthropicAPIKey      = Var{Name: "ANTHROPIC_API_KEY", Requirement: Optional, Purpose: "report generation"}
	StripeSecretKey      = Var{Name: "STRIPE_SECRET_KEY", Requirement: Optional, Purpose: "billing"}
	StripePublishableKey = Var{Name: "STRIPE_PUBLISHABLE_KEY", Requirement: Optional, Purpose: "billing checkout"}
	MapboxAccessToken    = Var{Name: "MAPBOX_ACCESS_TOKEN", Requirement: Optional, Purpose: "ancestry maps"}
	ReplicateAPIToken    = Var{Name: "REPLICATE_API_TOKEN", Requirement: Optional, Purpose: "image models"}
	NovitaAPIKey         = Var{Name: "NOVITA_API_KEY", Requirement: Optional, Purpose: "image models"}
	RedisURL             = Var{Name: "REDIS_URL", Requirement: Optional, Purpose: "rate limiter store"}
	EmbeddingServiceURL  = Var{Name: "EMBEDDING_SERVICE_URL", Requirement: Optional, Purpose: "similarity search"}
)

// RequiredVars lists required variables in reporting order.
var RequiredVars = []Var{
	DatabaseURL,
	BlobReadWriteToken,
	OpenAIAPIKey,
}

// OptionalVars lists optional variables in reporting order. It shares no
// names with RequiredVars.
var OptionalVars = []Var{
	AuthSecret,
	AnthropicAPIKey,
	StripeSecretKey,
	StripePublishableKey,
	MapboxAccessToken,
	ReplicateAPIToken,
	NovitaAPIKey,
	RedisURL,
	EmbeddingServiceURL,
}
