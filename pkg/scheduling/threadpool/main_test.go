package threadpool

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in this package.
// Every test deletes its pool, so no worker may outlive it.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
