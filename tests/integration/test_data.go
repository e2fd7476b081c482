package integration

import (
	"fmt"
	"time"
)

// TestUser generates unique credentials so tests sharing a database never
// collide on the email uniqueness constraint.
func TestUser(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123!"
	return
}
