// ABOUTME: Tests for mDNS advertisement
// ABOUTME: Manager construction and lifecycle
package discovery

import (
	"testing"
)

func TestNewManager(t *testing.T) {
	config := Config{
		ServiceName: "Test Bridge",
		Port:        8765,
	}

	mgr := NewManager(config)
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}

	// Stop before Advertise is a no-op
	mgr.Stop()
}
