package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Signature hooks
	s := NoopSignatureHooks{}
	s.OnCompute("module", time.Millisecond)
	s.OnHit("subpipeline")
	s.OnPurge("connection", 3)

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "result")
	c.OnCacheMiss(ctx, "result")
	c.OnCacheSet(ctx, "artifact", 1024)

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "POST", "/v1/signatures")
	h.OnResponse(ctx, "POST", "/v1/signatures", 200, time.Second)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Signatures().(NoopSignatureHooks); !ok {
		t.Error("Signatures() should return NoopSignatureHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	// Set custom hooks
	customSignatures := &testSignatureHooks{}
	SetSignatureHooks(customSignatures)
	if Signatures() != customSignatures {
		t.Error("SetSignatureHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Signatures().(NoopSignatureHooks); !ok {
		t.Error("Reset() should restore NoopSignatureHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testSignatureHooks{}
	SetSignatureHooks(custom)

	// Setting nil should be ignored
	SetSignatureHooks(nil)

	if Signatures() != custom {
		t.Error("SetSignatureHooks(nil) should be ignored")
	}

	Reset()
}

// Test implementations
type testSignatureHooks struct{ NoopSignatureHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
