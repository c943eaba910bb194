// Package composer renders a vehicle.Spec into the instruction and output
// schema sent to the generative service.
package composer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/wrench/internal/vehicle"
)

// Limits stated to the generative service.
const (
	MaxParts      = 5
	MaxGuides     = 10
	VideoPlatform = "YouTube"
)

const notSpecified = "Not specified"

// Payload is everything the Lookup Client needs for one invocation.
type Payload struct {
	Prompt                 string  `json:"prompt"`
	AddContextFromInternet bool    `json:"add_context_from_internet"`
	Schema                 *Schema `json:"response_json_schema"`
}

// Key returns a stable digest of the payload. Equal payloads share a key.
func (p Payload) Key() string {
	// json.Marshal sorts map keys, so the encoding is canonical.
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Compose builds the payload for spec. It has no side effects and equal
// specs always yield equal payloads.
func Compose(spec vehicle.Spec) Payload {
	return Payload{
		Prompt:                 buildPrompt(spec),
		AddContextFromInternet: true,
		Schema:                 ResponseSchema(),
	}
}

func buildPrompt(spec vehicle.Spec) string {
	var sb strings.Builder

	sb.WriteString("You are an automotive service expert. Provide detailed information for the following vehicle service:\n\n")

	fmt.Fprintf(&sb, "Vehicle: %s\n", spec.Vehicle())
	fmt.Fprintf(&sb, "Engine: %s\n", orNotSpecified(spec.Engine))
	fmt.Fprintf(&sb, "Drivetrain: %s\n", orNotSpecified(string(spec.Drivetrain)))
	fmt.Fprintf(&sb, "Service: %s\n\n", spec.ServiceType)

	sb.WriteString("Please provide:\n")
	fmt.Fprintf(&sb, "1. The top %d most popular/recommended parts needed for this service with:\n", MaxParts)
	sb.WriteString("   - Part name and description\n")
	sb.WriteString("   - Recommended retailers with actual URLs (Amazon, RockAuto, AutoZone, O'Reilly, NAPA, eBay Motors, etc.)\n")
	sb.WriteString("   - Include multiple retailer options per part\n")
	sb.WriteString("2. Critical specifications needed (torque specs, fluid types, capacities, etc.)\n")
	fmt.Fprintf(&sb, "3. Up to %d installation videos from %s ONLY:\n", MaxGuides, VideoPlatform)
	fmt.Fprintf(&sb, "   - Actual %s video URLs (youtube.com or youtu.be links)\n", VideoPlatform)
	sb.WriteString("   - Title and description of each video\n")
	fmt.Fprintf(&sb, "   - Find real, existing %s videos that are popular and helpful for this specific service\n", VideoPlatform)
	fmt.Fprintf(&sb, "   - Do NOT include any non-%s links\n\n", VideoPlatform)

	fmt.Fprintf(&sb, "Search the internet to find actual, working URLs for %s videos and retailer product pages. ", VideoPlatform)
	sb.WriteString("Return specific links, not search queries.")

	return sb.String()
}

func orNotSpecified(s string) string {
	if s == "" {
		return notSpecified
	}
	return s
}
