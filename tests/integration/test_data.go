//go:build integration

package integration

import (
	"fmt"
	"sync/atomic"
	"time"
)

var emailSeq atomic.Int64

// UniqueEmail returns an address no other test in the run uses
func UniqueEmail(suffix string) string {
	return fmt.Sprintf("test-%d-%d-%s@example.com", time.Now().Unix(), emailSeq.Add(1), suffix)
}
