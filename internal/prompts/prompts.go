package prompts

import "fmt"

// TravelSystem is the fixed persona for response generation.
const TravelSystem = "You are a friendly travel assistant and weather guide. " +
	"Always start with a concise weather summary for the location and date, " +
	"then add 1–2 short travel tips if relevant."

// TravelUser embeds the raw query and the serialized merged context into the
// user instruction.
func TravelUser(query string, contextJSON []byte) string {
	return fmt.Sprintf(
		"Original query: '%s'\nContext: %s\n\nProduce 1–3 sentences for the weather + 1 short travel tip.",
		query, contextJSON,
	)
}
