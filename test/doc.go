// Package test provides infrastructure and utilities for integration testing.
//
// The Suite runs the assembled server against an in-memory database and
// scriptable vendor mocks, and talks to it through the real API client over
// HTTP.
//
// Example Usage:
//
//	func TestExample(t *testing.T) {
//	    suite := test.NewSuite(t)
//	    defer suite.Cleanup()
//
//	    // Use suite.APIClient to make requests
//	    // Use suite.Vendors to configure vendor behavior
//	}
//
// Options select the driver mode, so the same scenarios can be run with local
// workers, self triggering over HTTP, or vendor webhooks.
package test
