// ABOUTME: Version constants for the bridge
// ABOUTME: Reported in logs and identification responses
package version

const (
	Version      = "0.1.0"
	Product      = "NovaBridge"
	Manufacturer = "Nova Studio"
)
