package guidelines

import (
	"context"
	"os"

	"feedback-server/internal/observability"
)

// defaultGuidelines covers the standard feedback areas when no guideline file
// is deployed alongside the service.
const defaultGuidelines = `Collect feedback on the following areas:
1. Cleanliness of rooms and common areas
2. Staff friendliness and helpfulness
3. Amenities (WiFi, kitchen, lockers, etc.)
4. Location and accessibility
5. Noise levels and comfort
6. Value for money
7. Any specific incidents or concerns
8. Overall satisfaction and likelihood to recommend`

// Load reads the guideline text used in the agent's system prompt. It is
// called once at startup; a missing file falls back to the built-in default.
func Load(ctx context.Context, path string, logger *observability.Logger) string {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.WarnWithError(observability.WithFields(ctx,
			observability.Field{Key: "guidelines_path", Value: path},
		), "Guidelines file not found, using default guidelines", err)
		return defaultGuidelines
	}
	return string(data)
}
