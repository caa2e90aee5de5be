// Package mocks provides in-memory implementations of the vendor capabilities.
//
// Every MockCapability records its submissions and can be scripted to reject
// a submission, fail an operation, stay pending for a number of polls or hold
// an operation until it is released. Webhook renders the document a vendor
// would deliver to a callback URL.
package mocks
