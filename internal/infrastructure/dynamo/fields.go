package dynamo

// DynamoDB attribute names shared by keys, expressions and the TTL setting.
const (
	fieldEmail      = "email"
	fieldProofID    = "proof_id"
	fieldToken      = "token"
	fieldCustomerID = "customer_id"
	fieldExpiresAt  = "expires_at"
	fieldPurgeAt    = "purge_at"
	fieldUpdatedAt  = "updated_at"
	fieldAttempts   = "attempts"
)
